package models

import "time"

type NotificationType string

const (
	NotificationTaskAssigned    NotificationType = "TASK_ASSIGNED"
	NotificationTaskUpdated     NotificationType = "TASK_UPDATED"
	NotificationCommentAdded    NotificationType = "COMMENT_ADDED"
	NotificationProjectAssigned NotificationType = "PROJECT_ASSIGNED"
	NotificationTeamInvite      NotificationType = "TEAM_INVITE"
)

// Notification is a persisted, per-recipient record of a domain event. It is
// created only by the notification pipeline and only its IsRead flag is ever
// mutated afterwards. It is visible to its recipient alone.
type Notification struct {
	ID        uint64           `gorm:"primarykey" json:"id"`
	UserID    uint64           `gorm:"not null;index" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Title     string           `gorm:"type:varchar(255);not null" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	ProjectID *uint64          `json:"project_id"`
	IsRead    bool             `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}
