package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/policy"
	"github.com/devsync-app/devsync/internal/repository"
)

// NotificationService handles the recipient-facing side of notifications:
// listing, unread counts and read flags. Creation happens only in the
// notification pipeline.
type NotificationService struct {
	notificationRepo repository.NotificationRepository
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(notificationRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
	}
}

// ListNotificationsInput represents filters for listing notifications.
type ListNotificationsInput struct {
	UserID     uint64
	UnreadOnly bool
	Limit      int
	Offset     int
}

// ListNotifications returns the actor's notifications, newest first.
func (s *NotificationService) ListNotifications(input ListNotificationsInput) ([]models.Notification, int64, error) {
	notifications, total, err := s.notificationRepo.List(repository.NotificationFilter{
		UserID:     input.UserID,
		UnreadOnly: input.UnreadOnly,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

// UnreadCount returns the actor's number of unread notifications.
func (s *NotificationService) UnreadCount(userID uint64) (int64, error) {
	count, err := s.notificationRepo.CountUnread(userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks one of the actor's notifications as read. A notification
// belonging to someone else is indistinguishable from a missing one.
func (s *NotificationService) MarkRead(notificationID, actorID uint64) error {
	notification, err := s.notificationRepo.FindByID(notificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.ErrDenied
		}
		return fmt.Errorf("failed to find notification: %w", err)
	}

	if notification.UserID != actorID {
		return policy.ErrDenied
	}

	if err := s.notificationRepo.MarkRead(notificationID); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the actor as read and
// returns how many were flipped.
func (s *NotificationService) MarkAllRead(actorID uint64) (int64, error) {
	count, err := s.notificationRepo.MarkAllRead(actorID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return count, nil
}
