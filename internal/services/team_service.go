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
	ErrTeamNameRequired     = errors.New("team name is required")
	ErrInvalidRole          = errors.New("invalid role")
	ErrAlreadyTeamMember    = errors.New("user is already a member of the team")
	ErrCannotRemoveYourself = errors.New("cannot remove yourself from the team")
	ErrMemberNotFound       = errors.New("member not found")
)

// TeamService handles team business logic.
type TeamService struct {
	teamRepo repository.TeamRepository
	userRepo repository.UserRepository
	policy   *policy.Evaluator
	bus      events.Publisher
}

// NewTeamService creates a new TeamService.
func NewTeamService(teamRepo repository.TeamRepository, userRepo repository.UserRepository, evaluator *policy.Evaluator, bus events.Publisher) *TeamService {
	return &TeamService{
		teamRepo: teamRepo,
		userRepo: userRepo,
		policy:   evaluator,
		bus:      bus,
	}
}

// CreateTeamInput represents input for creating a team.
type CreateTeamInput struct {
	Name        string
	Description string
	CreatorID   uint64
}

// CreateTeam creates a team with the creator as its first ADMIN.
func (s *TeamService) CreateTeam(input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}

	team := &models.Team{
		Name:        name,
		Description: input.Description,
	}

	if err := s.teamRepo.CreateWithAdmin(team, input.CreatorID); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	return team, nil
}

// GetTeam returns a team visible to the actor.
func (s *TeamService) GetTeam(teamID, actorID uint64) (*models.Team, error) {
	if err := s.policy.RequireTeamMember(teamID, actorID); err != nil {
		return nil, err
	}

	team, err := s.teamRepo.FindByID(teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.ErrDenied
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}

	return team, nil
}

// ListTeams returns the actor's team memberships with their teams preloaded.
func (s *TeamService) ListTeams(actorID uint64) ([]models.TeamMember, error) {
	memberships, err := s.teamRepo.ListMembershipsByUserID(actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return memberships, nil
}

// UpdateTeamInput represents input for updating a team.
type UpdateTeamInput struct {
	Name        *string
	Description *string
}

// UpdateTeam updates a team. ADMIN only.
func (s *TeamService) UpdateTeam(teamID, actorID uint64, input UpdateTeamInput) (*models.Team, error) {
	if err := s.policy.RequireTeamRole(teamID, actorID, models.TeamRoleAdmin); err != nil {
		return nil, err
	}

	team, err := s.teamRepo.FindByID(teamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.ErrDenied
		}
		return nil, fmt.Errorf("failed to find team: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrTeamNameRequired
		}
		team.Name = name
	}
	if input.Description != nil {
		team.Description = *input.Description
	}

	if err := s.teamRepo.Update(team); err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}

	return team, nil
}

// DeleteTeam deletes a team and its memberships. ADMIN only.
func (s *TeamService) DeleteTeam(teamID, actorID uint64) error {
	if err := s.policy.RequireTeamRole(teamID, actorID, models.TeamRoleAdmin); err != nil {
		return err
	}

	if err := s.teamRepo.Delete(teamID); err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}

	return nil
}

// ListMembers lists a team's members. Members only.
func (s *TeamService) ListMembers(teamID, actorID uint64) ([]models.TeamMember, error) {
	if err := s.policy.RequireTeamMember(teamID, actorID); err != nil {
		return nil, err
	}

	members, err := s.teamRepo.ListMembers(teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// AddMemberInput represents input for adding a team member.
type AddMemberInput struct {
	TeamID  uint64
	ActorID uint64
	UserID  uint64
	Role    models.TeamRole
}

// AddMember adds a user to a team. ADMIN only.
func (s *TeamService) AddMember(ctx context.Context, input AddMemberInput) (*models.TeamMember, error) {
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}

	if err := s.policy.RequireTeamRole(input.TeamID, input.ActorID, models.TeamRoleAdmin); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindByID(input.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if _, err := s.teamRepo.FindMember(input.TeamID, input.UserID); err == nil {
		return nil, ErrAlreadyTeamMember
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	member := &models.TeamMember{
		TeamID:   input.TeamID,
		UserID:   input.UserID,
		Role:     input.Role,
		JoinedAt: time.Now(),
	}

	if err := s.teamRepo.AddMember(member); err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	s.publishMemberAdded(ctx, input.TeamID, input.UserID, input.ActorID)

	return member, nil
}

// RemoveMember removes a user from a team. ADMIN only; admins cannot remove
// themselves.
func (s *TeamService) RemoveMember(teamID, actorID, userID uint64) error {
	if err := s.policy.RequireTeamRole(teamID, actorID, models.TeamRoleAdmin); err != nil {
		return err
	}

	if userID == actorID {
		return ErrCannotRemoveYourself
	}

	if _, err := s.teamRepo.FindMember(teamID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to check membership: %w", err)
	}

	if err := s.teamRepo.RemoveMember(teamID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

func (s *TeamService) publishMemberAdded(ctx context.Context, teamID, userID, actorID uint64) {
	team, err := s.teamRepo.FindByID(teamID)
	if err != nil {
		logging.Warn().Err(err).Uint64("team_id", teamID).Msg("skipping team-member-added event")
		return
	}
	actor, err := s.userRepo.FindByID(actorID)
	if err != nil {
		logging.Warn().Err(err).Uint64("user_id", actorID).Msg("skipping team-member-added event")
		return
	}

	if err := s.bus.Publish(ctx, events.TeamMemberAdded(team, userID, actor)); err != nil {
		logging.Warn().Err(err).Uint64("team_id", teamID).Msg("failed to publish team-member-added event")
	}
}
