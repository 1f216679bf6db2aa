package models

import "time"

// ProjectRole is a role scoped to a single project. A member's initial
// project role is inherited from their team role when they are added.
type ProjectRole string

const (
	ProjectRoleAdmin     ProjectRole = "ADMIN"
	ProjectRoleManager   ProjectRole = "MANAGER"
	ProjectRoleDeveloper ProjectRole = "DEVELOPER"
)

// Valid reports whether the role is one of the known project roles.
func (r ProjectRole) Valid() bool {
	switch r {
	case ProjectRoleAdmin, ProjectRoleManager, ProjectRoleDeveloper:
		return true
	}
	return false
}

// ProjectRoleFromTeamRole maps a team role to the project role a member
// starts with.
func ProjectRoleFromTeamRole(r TeamRole) ProjectRole {
	switch r {
	case TeamRoleAdmin:
		return ProjectRoleAdmin
	case TeamRoleManager:
		return ProjectRoleManager
	default:
		return ProjectRoleDeveloper
	}
}

type ProjectMember struct {
	ProjectID uint64      `gorm:"primarykey" json:"project_id"`
	UserID    uint64      `gorm:"primarykey" json:"user_id"`
	Role      ProjectRole `gorm:"type:varchar(20);not null" json:"role"`
	JoinedAt  time.Time   `json:"joined_at"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	User    User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
