package dto

import (
	"time"

	"github.com/devsync-app/devsync/internal/models"
)

// NotificationDTO represents a notification in API responses
type NotificationDTO struct {
	ID        uint64                  `json:"id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	ProjectID *uint64                 `json:"project_id"`
	IsRead    bool                    `json:"is_read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NotificationListResponse represents a notification listing with the unread
// badge count
type NotificationListResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	TotalCount    int64             `json:"total_count"`
	UnreadCount   int64             `json:"unread_count"`
}

// ToNotificationDTO converts a Notification model to NotificationDTO
func ToNotificationDTO(notification models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        notification.ID,
		Type:      notification.Type,
		Title:     notification.Title,
		Message:   notification.Message,
		ProjectID: notification.ProjectID,
		IsRead:    notification.IsRead,
		CreatedAt: notification.CreatedAt,
	}
}

// ToNotificationDTOs converts a slice of Notification models
func ToNotificationDTOs(notifications []models.Notification) []NotificationDTO {
	dtos := make([]NotificationDTO, len(notifications))
	for i, notification := range notifications {
		dtos[i] = ToNotificationDTO(notification)
	}
	return dtos
}
