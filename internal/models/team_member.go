package models

import "time"

// TeamRole is a role scoped to a single team. It grants nothing outside
// that team.
type TeamRole string

const (
	TeamRoleAdmin     TeamRole = "ADMIN"
	TeamRoleManager   TeamRole = "MANAGER"
	TeamRoleDeveloper TeamRole = "DEVELOPER"
)

// Valid reports whether the role is one of the known team roles.
func (r TeamRole) Valid() bool {
	switch r {
	case TeamRoleAdmin, TeamRoleManager, TeamRoleDeveloper:
		return true
	}
	return false
}

type TeamMember struct {
	TeamID   uint64   `gorm:"primarykey" json:"team_id"`
	UserID   uint64   `gorm:"primarykey" json:"user_id"`
	Role     TeamRole `gorm:"type:varchar(20);not null" json:"role"`
	JoinedAt time.Time `json:"joined_at"`

	// Relations
	Team Team `gorm:"foreignKey:TeamID" json:"team,omitempty"`
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
