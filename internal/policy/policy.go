// Package policy is the single place that answers "may user U perform action
// A on entity E". Every mutating service runs one of these checks before
// touching storage.
//
// Any miss — the entity does not exist, or the actor has no membership row —
// yields ErrDenied. Callers map ErrDenied to the uniform "not found or access
// denied" response so a non-member cannot learn whether an entity exists.
package policy

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/repository"
)

// ErrDenied is returned for every denial, regardless of whether the target
// entity exists.
var ErrDenied = errors.New("not found or access denied")

// Evaluator answers allow/deny questions from membership rows.
type Evaluator struct {
	teams    repository.TeamRepository
	projects repository.ProjectRepository
}

// NewEvaluator creates an Evaluator backed by the given repositories.
func NewEvaluator(teams repository.TeamRepository, projects repository.ProjectRepository) *Evaluator {
	return &Evaluator{teams: teams, projects: projects}
}

// TeamRole returns the actor's role in a team, or ErrDenied if they have none.
func (e *Evaluator) TeamRole(teamID, userID uint64) (models.TeamRole, error) {
	member, err := e.teams.FindMember(teamID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrDenied
		}
		return "", fmt.Errorf("failed to look up team membership: %w", err)
	}
	return member.Role, nil
}

// RequireTeamMember verifies the actor belongs to the team.
func (e *Evaluator) RequireTeamMember(teamID, userID uint64) error {
	_, err := e.TeamRole(teamID, userID)
	return err
}

// RequireTeamRole verifies the actor holds one of the given roles in the team.
func (e *Evaluator) RequireTeamRole(teamID, userID uint64, roles ...models.TeamRole) error {
	role, err := e.TeamRole(teamID, userID)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if role == r {
			return nil
		}
	}
	return ErrDenied
}

// ProjectRole returns the actor's role in a project, or ErrDenied if they
// have none. Project membership is authoritative even if the actor has since
// left the owning team.
func (e *Evaluator) ProjectRole(projectID, userID uint64) (models.ProjectRole, error) {
	member, err := e.projects.FindMember(projectID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrDenied
		}
		return "", fmt.Errorf("failed to look up project membership: %w", err)
	}
	return member.Role, nil
}

// RequireProjectMember verifies the actor belongs to the project.
func (e *Evaluator) RequireProjectMember(projectID, userID uint64) error {
	_, err := e.ProjectRole(projectID, userID)
	return err
}

// RequireProjectRole verifies the actor holds one of the given roles in the
// project.
func (e *Evaluator) RequireProjectRole(projectID, userID uint64, roles ...models.ProjectRole) error {
	role, err := e.ProjectRole(projectID, userID)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if role == r {
			return nil
		}
	}
	return ErrDenied
}

// CanManageProject verifies the actor is a project ADMIN or MANAGER. Covers
// project updates, member add/remove, and label create/delete.
func (e *Evaluator) CanManageProject(projectID, userID uint64) error {
	return e.RequireProjectRole(projectID, userID, models.ProjectRoleAdmin, models.ProjectRoleManager)
}

// CanDeleteProject verifies the actor is a project ADMIN or an ADMIN of the
// owning team. The zero-active-tasks precondition is checked separately by
// the project service.
func (e *Evaluator) CanDeleteProject(project *models.Project, userID uint64) error {
	err := e.RequireProjectRole(project.ID, userID, models.ProjectRoleAdmin)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrDenied) {
		return err
	}
	return e.RequireTeamRole(project.TeamID, userID, models.TeamRoleAdmin)
}

// CanDeleteTask verifies the actor created the task or manages its project.
func (e *Evaluator) CanDeleteTask(task *models.Task, userID uint64) error {
	if task.CreatedByID == userID {
		// Creators can always delete, but only if they can still see the
		// project at all.
		return e.RequireProjectMember(task.ProjectID, userID)
	}
	return e.CanManageProject(task.ProjectID, userID)
}

// CanUpdateComment verifies the actor authored the comment.
func (e *Evaluator) CanUpdateComment(comment *models.Comment, task *models.Task, userID uint64) error {
	if comment.UserID != userID {
		return ErrDenied
	}
	return e.RequireProjectMember(task.ProjectID, userID)
}

// CanDeleteComment verifies the actor authored the comment or manages the
// project.
func (e *Evaluator) CanDeleteComment(comment *models.Comment, task *models.Task, userID uint64) error {
	if comment.UserID == userID {
		return e.RequireProjectMember(task.ProjectID, userID)
	}
	return e.CanManageProject(task.ProjectID, userID)
}

// IsProjectMember reports project membership as a boolean. Realtime room
// joins use this form.
func (e *Evaluator) IsProjectMember(projectID, userID uint64) bool {
	return e.RequireProjectMember(projectID, userID) == nil
}
