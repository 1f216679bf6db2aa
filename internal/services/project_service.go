package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/devsync-app/devsync/internal/events"
	"github.com/devsync-app/devsync/internal/logging"
	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/policy"
	"github.com/devsync-app/devsync/internal/repository"
)

var (
	ErrProjectNameRequired  = errors.New("project name is required")
	ErrProjectHasOpenTasks  = errors.New("project has tasks that are not done")
	ErrNotTeamMember        = errors.New("user is not a member of the owning team")
	ErrAlreadyProjectMember = errors.New("user is already a member of the project")
)

// ProjectService handles project business logic.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	teamRepo    repository.TeamRepository
	userRepo    repository.UserRepository
	policy      *policy.Evaluator
	bus         events.Publisher
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, teamRepo repository.TeamRepository, userRepo repository.UserRepository, evaluator *policy.Evaluator, bus events.Publisher) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		teamRepo:    teamRepo,
		userRepo:    userRepo,
		policy:      evaluator,
		bus:         bus,
	}
}

// CreateProjectInput represents input for creating a project.
type CreateProjectInput struct {
	TeamID      uint64
	Name        string
	Description string
	CreatorID   uint64
}

// CreateProject creates a project under a team. Team ADMINs and MANAGERs
// only; the creator becomes a project member with the role inherited from
// their team role.
func (s *ProjectService) CreateProject(input CreateProjectInput) (*models.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrProjectNameRequired
	}

	role, err := s.policy.TeamRole(input.TeamID, input.CreatorID)
	if err != nil {
		return nil, err
	}
	if role != models.TeamRoleAdmin && role != models.TeamRoleManager {
		return nil, policy.ErrDenied
	}

	project := &models.Project{
		TeamID:      input.TeamID,
		Name:        name,
		Description: input.Description,
		IsActive:    true,
	}
	member := &models.ProjectMember{
		UserID:   input.CreatorID,
		Role:     models.ProjectRoleFromTeamRole(role),
		JoinedAt: time.Now(),
	}

	if err := s.projectRepo.CreateWithMember(project, member); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

// GetProject returns a project visible to the actor.
func (s *ProjectService) GetProject(projectID, actorID uint64) (*models.Project, error) {
	if err := s.policy.RequireProjectMember(projectID, actorID); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.ErrDenied
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	return project, nil
}

// ListProjectsByTeam lists a team's projects. Team members only.
func (s *ProjectService) ListProjectsByTeam(teamID, actorID uint64) ([]models.Project, error) {
	if err := s.policy.RequireTeamMember(teamID, actorID); err != nil {
		return nil, err
	}

	projects, err := s.projectRepo.ListByTeam(teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// ListMyProjects lists the actor's project memberships with projects
// preloaded.
func (s *ProjectService) ListMyProjects(actorID uint64) ([]models.ProjectMember, error) {
	memberships, err := s.projectRepo.ListMembershipsByUserID(actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return memberships, nil
}

// UpdateProjectInput represents input for updating a project.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// UpdateProject updates a project. Project ADMINs and MANAGERs only.
func (s *ProjectService) UpdateProject(projectID, actorID uint64, input UpdateProjectInput) (*models.Project, error) {
	if err := s.policy.CanManageProject(projectID, actorID); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.ErrDenied
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrProjectNameRequired
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.IsActive != nil {
		project.IsActive = *input.IsActive
	}

	if err := s.projectRepo.Update(project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return project, nil
}

// DeleteProject deletes a project with its tasks, labels and memberships.
// Allowed for project ADMINs and ADMINs of the owning team, and only when no
// task is still TODO or IN_PROGRESS.
func (s *ProjectService) DeleteProject(projectID, actorID uint64) error {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.ErrDenied
		}
		return fmt.Errorf("failed to find project: %w", err)
	}

	if err := s.policy.CanDeleteProject(project, actorID); err != nil {
		return err
	}

	open, err := s.projectRepo.CountActiveTasks(projectID)
	if err != nil {
		return fmt.Errorf("failed to count open tasks: %w", err)
	}
	if open > 0 {
		return ErrProjectHasOpenTasks
	}

	if err := s.projectRepo.Delete(projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	return nil
}

// ListMembers lists a project's members. Members only.
func (s *ProjectService) ListMembers(projectID, actorID uint64) ([]models.ProjectMember, error) {
	if err := s.policy.RequireProjectMember(projectID, actorID); err != nil {
		return nil, err
	}

	members, err := s.projectRepo.ListMembers(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// AddProjectMemberInput represents input for adding a project member.
type AddProjectMemberInput struct {
	ProjectID uint64
	ActorID   uint64
	UserID    uint64
	Role      models.ProjectRole
}

// AddMember adds a team member to a project. Project ADMINs and MANAGERs
// only; the user must already belong to the owning team.
func (s *ProjectService) AddMember(ctx context.Context, input AddProjectMemberInput) (*models.ProjectMember, error) {
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}

	if err := s.policy.CanManageProject(input.ProjectID, input.ActorID); err != nil {
		return nil, err
	}

	project, err := s.projectRepo.FindByID(input.ProjectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.ErrDenied
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	if _, err := s.teamRepo.FindMember(project.TeamID, input.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotTeamMember
		}
		return nil, fmt.Errorf("failed to check team membership: %w", err)
	}

	if _, err := s.projectRepo.FindMember(input.ProjectID, input.UserID); err == nil {
		return nil, ErrAlreadyProjectMember
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check project membership: %w", err)
	}

	member := &models.ProjectMember{
		ProjectID: input.ProjectID,
		UserID:    input.UserID,
		Role:      input.Role,
		JoinedAt:  time.Now(),
	}

	if err := s.projectRepo.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	s.publishMemberAdded(ctx, project, input.UserID, input.ActorID)

	return member, nil
}

// RemoveMember removes a user from a project. Project ADMINs and MANAGERs
// only.
func (s *ProjectService) RemoveMember(projectID, actorID, userID uint64) error {
	if err := s.policy.CanManageProject(projectID, actorID); err != nil {
		return err
	}

	if _, err := s.projectRepo.FindMember(projectID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to check membership: %w", err)
	}

	if err := s.projectRepo.RemoveMember(projectID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

func (s *ProjectService) publishMemberAdded(ctx context.Context, project *models.Project, userID, actorID uint64) {
	actor, err := s.userRepo.FindByID(actorID)
	if err != nil {
		logging.Warn().Err(err).Uint64("user_id", actorID).Msg("skipping project-member-added event")
		return
	}

	if err := s.bus.Publish(ctx, events.ProjectMemberAdded(project, userID, actor)); err != nil {
		logging.Warn().Err(err).Uint64("project_id", project.ID).Msg("failed to publish project-member-added event")
	}
}
