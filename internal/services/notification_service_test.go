package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/policy"
)

func (env *serviceTestEnv) createNotification(t *testing.T, userID uint64, read bool) *models.Notification {
	t.Helper()
	notification := &models.Notification{
		UserID:  userID,
		Type:    models.NotificationTaskUpdated,
		Title:   "Task updated",
		Message: "something changed",
		IsRead:  read,
	}
	require.NoError(t, env.notificationRepo.Create(notification))
	return notification
}

func TestNotificationService_ListNewestFirst(t *testing.T) {
	env := setupServiceTestEnv(t)
	user := env.createUser(t, "user@example.com")

	first := env.createNotification(t, user.ID, false)
	second := env.createNotification(t, user.ID, false)

	notifications, total, err := env.notifications.ListNotifications(ListNotificationsInput{
		UserID: user.ID,
		Limit:  10,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, second.ID, notifications[0].ID)
	require.Equal(t, first.ID, notifications[1].ID)
}

func TestNotificationService_UnreadOnlyFilter(t *testing.T) {
	env := setupServiceTestEnv(t)
	user := env.createUser(t, "user@example.com")

	env.createNotification(t, user.ID, true)
	unreadNotification := env.createNotification(t, user.ID, false)

	notifications, total, err := env.notifications.ListNotifications(ListNotificationsInput{
		UserID:     user.ID,
		UnreadOnly: true,
		Limit:      10,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, unreadNotification.ID, notifications[0].ID)

	count, err := env.notifications.UnreadCount(user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestNotificationService_MarkReadOwnerOnly(t *testing.T) {
	env := setupServiceTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	other := env.createUser(t, "other@example.com")
	notification := env.createNotification(t, owner.ID, false)

	// Someone else's notification looks like a missing one.
	err := env.notifications.MarkRead(notification.ID, other.ID)
	require.ErrorIs(t, err, policy.ErrDenied)

	err = env.notifications.MarkRead(notification.ID+100, owner.ID)
	require.ErrorIs(t, err, policy.ErrDenied)

	require.NoError(t, env.notifications.MarkRead(notification.ID, owner.ID))

	count, err := env.notifications.UnreadCount(owner.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	env := setupServiceTestEnv(t)
	user := env.createUser(t, "user@example.com")
	env.createNotification(t, user.ID, false)
	env.createNotification(t, user.ID, false)
	env.createNotification(t, user.ID, true)

	count, err := env.notifications.MarkAllRead(user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	count, err = env.notifications.MarkAllRead(user.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, count)
}
