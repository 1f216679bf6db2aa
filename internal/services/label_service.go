package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/devsync-app/devsync/internal/events"
	"github.com/devsync-app/devsync/internal/logging"
	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/policy"
	"github.com/devsync-app/devsync/internal/repository"
)

var (
	ErrLabelNameRequired = errors.New("label name is required")
	ErrLabelNameTaken    = errors.New("a label with this name already exists in the project")
)

// LabelService handles label business logic.
type LabelService struct {
	labelRepo repository.LabelRepository
	userRepo  repository.UserRepository
	policy    *policy.Evaluator
	bus       events.Publisher
}

// NewLabelService creates a new LabelService.
func NewLabelService(labelRepo repository.LabelRepository, userRepo repository.UserRepository, evaluator *policy.Evaluator, bus events.Publisher) *LabelService {
	return &LabelService{
		labelRepo: labelRepo,
		userRepo:  userRepo,
		policy:    evaluator,
		bus:       bus,
	}
}

// ListLabels lists a project's labels. Project members only.
func (s *LabelService) ListLabels(projectID, actorID uint64) ([]models.Label, error) {
	if err := s.policy.RequireProjectMember(projectID, actorID); err != nil {
		return nil, err
	}

	labels, err := s.labelRepo.ListByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	return labels, nil
}

// CreateLabelInput represents input for creating a label.
type CreateLabelInput struct {
	ProjectID uint64
	ActorID   uint64
	Name      string
	Color     string
}

// CreateLabel creates a label in a project. Project ADMINs and MANAGERs
// only; names are unique within a project.
func (s *LabelService) CreateLabel(ctx context.Context, input CreateLabelInput) (*models.Label, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrLabelNameRequired
	}

	if err := s.policy.CanManageProject(input.ProjectID, input.ActorID); err != nil {
		return nil, err
	}

	if _, err := s.labelRepo.FindByName(input.ProjectID, name); err == nil {
		return nil, ErrLabelNameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check label name: %w", err)
	}

	label := &models.Label{
		ProjectID: input.ProjectID,
		Name:      name,
		Color:     input.Color,
	}
	if err := s.labelRepo.Create(label); err != nil {
		return nil, fmt.Errorf("failed to create label: %w", err)
	}

	s.publish(ctx, input.ActorID, func(actor *models.User) events.Envelope {
		return events.LabelCreated(label, actor)
	})

	return label, nil
}

// DeleteLabel deletes a label and detaches it from all tasks. Project ADMINs
// and MANAGERs only.
func (s *LabelService) DeleteLabel(ctx context.Context, labelID, actorID uint64) error {
	label, err := s.labelRepo.FindByID(labelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.ErrDenied
		}
		return fmt.Errorf("failed to find label: %w", err)
	}

	if err := s.policy.CanManageProject(label.ProjectID, actorID); err != nil {
		return err
	}

	if err := s.labelRepo.Delete(labelID); err != nil {
		return fmt.Errorf("failed to delete label: %w", err)
	}

	s.publish(ctx, actorID, func(actor *models.User) events.Envelope {
		return events.LabelDeleted(label, actor)
	})

	return nil
}

func (s *LabelService) publish(ctx context.Context, actorID uint64, build func(actor *models.User) events.Envelope) {
	actor, err := s.userRepo.FindByID(actorID)
	if err != nil {
		logging.Warn().Err(err).Uint64("user_id", actorID).Msg("skipping event publish, actor lookup failed")
		return
	}
	if err := s.bus.Publish(ctx, build(actor)); err != nil {
		logging.Warn().Err(err).Uint64("user_id", actorID).Msg("failed to publish label event")
	}
}
