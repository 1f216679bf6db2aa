package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/devsync-app/devsync/internal/logging"
)

// AddIndexes adds performance-critical indexes beyond what AutoMigrate creates
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		name    string
		columns string
	}{
		// Task indexes for list filtering
		{"tasks", "idx_tasks_project_status", "project_id, status"},
		{"tasks", "idx_tasks_assignee_id", "assignee_id"},
		{"tasks", "idx_tasks_created_by_id", "created_by_id"},
		{"tasks", "idx_tasks_due_date", "due_date"},

		// Membership lookups drive every access check
		{"team_members", "idx_team_members_user_id", "user_id"},
		{"project_members", "idx_project_members_user_id", "user_id"},

		// Notification inbox: newest-first per user, unread count
		{"notifications", "idx_notifications_user_created", "user_id, created_at DESC"},
		{"notifications", "idx_notifications_user_unread", "user_id, is_read"},

		// Comment listing per task
		{"comments", "idx_comments_task_id", "task_id"},
	}

	for _, idx := range indexes {
		var count int64
		err := db.Raw(`
			SELECT COUNT(*)
			FROM pg_indexes
			WHERE tablename = ? AND indexname = ?
		`, idx.table, idx.name).Count(&count).Error

		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", idx.name, err)
		}

		if count > 0 {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		logging.Info().Str("index", idx.name).Str("table", idx.table).Msg("created index")
	}

	return nil
}
