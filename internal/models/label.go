package models

import (
	"time"

	"gorm.io/gorm"
)

// Label is a project-scoped tag. Names are unique within a project; a label
// can only be attached to tasks of its own project.
type Label struct {
	ID        uint64         `gorm:"primarykey" json:"id"`
	ProjectID uint64         `gorm:"not null;uniqueIndex:idx_labels_project_name" json:"project_id"`
	Name      string         `gorm:"type:varchar(100);not null;uniqueIndex:idx_labels_project_name" json:"name"`
	Color     string         `gorm:"type:varchar(20);not null" json:"color"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Tasks   []Task  `gorm:"many2many:task_labels" json:"tasks,omitempty"`
}
