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

var ErrContentRequired = errors.New("content is required")

// CommentService handles comment business logic.
type CommentService struct {
	commentRepo repository.CommentRepository
	taskRepo    repository.TaskRepository
	userRepo    repository.UserRepository
	policy      *policy.Evaluator
	bus         events.Publisher
}

// NewCommentService creates a new CommentService.
func NewCommentService(commentRepo repository.CommentRepository, taskRepo repository.TaskRepository, userRepo repository.UserRepository, evaluator *policy.Evaluator, bus events.Publisher) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		taskRepo:    taskRepo,
		userRepo:    userRepo,
		policy:      evaluator,
		bus:         bus,
	}
}

// ListComments lists a task's comments, oldest first. Project members only.
func (s *CommentService) ListComments(taskID, actorID uint64) ([]models.Comment, error) {
	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireProjectMember(task.ProjectID, actorID); err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.ListByTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

// CreateComment adds a comment to a task. Project members only.
func (s *CommentService) CreateComment(ctx context.Context, taskID, actorID uint64, content string) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrContentRequired
	}

	task, err := s.findTask(taskID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.RequireProjectMember(task.ProjectID, actorID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		TaskID:  taskID,
		UserID:  actorID,
		Content: content,
	}
	if err := s.commentRepo.Create(comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	comment, err = s.commentRepo.FindByID(comment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload comment: %w", err)
	}

	s.publish(ctx, actorID, func(actor *models.User) events.Envelope {
		return events.CommentAdded(comment, task, actor)
	})

	return comment, nil
}

// UpdateComment edits a comment. Author only.
func (s *CommentService) UpdateComment(ctx context.Context, commentID, actorID uint64, content string) (*models.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrContentRequired
	}

	comment, task, err := s.findCommentWithTask(commentID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanUpdateComment(comment, task, actorID); err != nil {
		return nil, err
	}

	comment.Content = content
	if err := s.commentRepo.Update(comment); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}

	s.publish(ctx, actorID, func(actor *models.User) events.Envelope {
		return events.CommentUpdated(comment, task, actor)
	})

	return comment, nil
}

// DeleteComment deletes a comment. Allowed for the author and for project
// ADMINs and MANAGERs.
func (s *CommentService) DeleteComment(ctx context.Context, commentID, actorID uint64) error {
	comment, task, err := s.findCommentWithTask(commentID)
	if err != nil {
		return err
	}
	if err := s.policy.CanDeleteComment(comment, task, actorID); err != nil {
		return err
	}

	if err := s.commentRepo.Delete(commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}

	s.publish(ctx, actorID, func(actor *models.User) events.Envelope {
		return events.CommentDeleted(comment, task, actor)
	})

	return nil
}

func (s *CommentService) findTask(taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.ErrDenied
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

func (s *CommentService) findCommentWithTask(commentID uint64) (*models.Comment, *models.Task, error) {
	comment, err := s.commentRepo.FindByID(commentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, policy.ErrDenied
		}
		return nil, nil, fmt.Errorf("failed to find comment: %w", err)
	}

	task, err := s.findTask(comment.TaskID)
	if err != nil {
		return nil, nil, err
	}
	return comment, task, nil
}

func (s *CommentService) publish(ctx context.Context, actorID uint64, build func(actor *models.User) events.Envelope) {
	actor, err := s.userRepo.FindByID(actorID)
	if err != nil {
		logging.Warn().Err(err).Uint64("user_id", actorID).Msg("skipping event publish, actor lookup failed")
		return
	}
	if err := s.bus.Publish(ctx, build(actor)); err != nil {
		logging.Warn().Err(err).Uint64("user_id", actorID).Msg("failed to publish comment event")
	}
}
