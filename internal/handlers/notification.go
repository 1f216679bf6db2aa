package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/devsync-app/devsync/internal/dto"
	apierrors "github.com/devsync-app/devsync/internal/errors"
	"github.com/devsync-app/devsync/internal/middleware"
	"github.com/devsync-app/devsync/internal/services"
	"github.com/devsync-app/devsync/internal/utils"
)

// NotificationHandler coordinates notification-related HTTP handlers.
type NotificationHandler struct {
	notificationService *services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// ListNotifications returns the caller's notifications, newest first, with
// the unread badge count.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	limit, offset := utils.GetLimitOffset(c)
	unreadOnly := c.Query("unread_only") == "true"

	notifications, total, err := h.notificationService.ListNotifications(services.ListNotificationsInput{
		UserID:     userID,
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	unread, err := h.notificationService.UnreadCount(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "", dto.NotificationListResponse{
		Notifications: dto.ToNotificationDTOs(notifications),
		TotalCount:    total,
		UnreadCount:   unread,
	})
}

// UnreadCount returns the caller's unread notification count.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	count, err := h.notificationService.UnreadCount(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "", gin.H{"unread_count": count})
}

// MarkRead marks one notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	notificationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(notificationID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "Notification marked read", nil)
}

// MarkAllRead marks all of the caller's notifications as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	count, err := h.notificationService.MarkAllRead(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.Respond(c, http.StatusOK, "Notifications marked read", gin.H{"marked_count": count})
}
