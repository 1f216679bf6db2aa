package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint64         `gorm:"primarykey" json:"id"`
	Email        string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name         string         `gorm:"type:varchar(255);not null" json:"name"`
	PasswordHash string         `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	TeamMemberships    []TeamMember    `gorm:"foreignKey:UserID" json:"-"`
	ProjectMemberships []ProjectMember `gorm:"foreignKey:UserID" json:"-"`
	CreatedTasks       []Task          `gorm:"foreignKey:CreatedByID" json:"-"`
	Notifications      []Notification  `gorm:"foreignKey:UserID" json:"-"`
}
