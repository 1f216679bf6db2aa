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
	ErrTitleRequired     = errors.New("title is required")
	ErrTitleEmpty        = errors.New("title cannot be empty")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrInvalidPriority   = errors.New("invalid task priority")
	ErrInvalidAssignee   = errors.New("assignee is not a member of the project")
	ErrLabelNotFound     = errors.New("label not found")
	ErrLabelWrongProject = errors.New("label belongs to a different project")
)

// taskPreloads are the relations loaded whenever a full task is returned.
var taskPreloads = []string{"Assignee", "CreatedBy", "Labels"}

// TaskService handles task business logic. Every successful mutation
// publishes a domain event; publishing is best-effort and never fails the
// mutation.
type TaskService struct {
	taskRepo  repository.TaskRepository
	labelRepo repository.LabelRepository
	userRepo  repository.UserRepository
	policy    *policy.Evaluator
	bus       events.Publisher
}

// NewTaskService creates a new TaskService.
func NewTaskService(taskRepo repository.TaskRepository, labelRepo repository.LabelRepository, userRepo repository.UserRepository, evaluator *policy.Evaluator, bus events.Publisher) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		labelRepo: labelRepo,
		userRepo:  userRepo,
		policy:    evaluator,
		bus:       bus,
	}
}

// ListTasksInput represents filters for listing a project's tasks.
type ListTasksInput struct {
	ProjectID  uint64
	ActorID    uint64
	Status     *models.TaskStatus
	Priority   *models.TaskPriority
	AssigneeID *uint64
	Page       int
	PageSize   int
}

// ListTasks returns a project's tasks. Project members only.
func (s *TaskService) ListTasks(input ListTasksInput) ([]models.Task, int64, error) {
	if err := s.policy.RequireProjectMember(input.ProjectID, input.ActorID); err != nil {
		return nil, 0, err
	}

	if input.Status != nil && !input.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, 0, ErrInvalidPriority
	}

	tasks, total, err := s.taskRepo.List(repository.TaskFilter{
		ProjectID:  input.ProjectID,
		Status:     input.Status,
		Priority:   input.Priority,
		AssigneeID: input.AssigneeID,
		Page:       input.Page,
		PageSize:   input.PageSize,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// GetTask returns a task with related data. Project members only.
func (s *TaskService) GetTask(taskID, actorID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID, taskPreloads...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.ErrDenied
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if err := s.policy.RequireProjectMember(task.ProjectID, actorID); err != nil {
		return nil, err
	}

	return task, nil
}

// CreateTaskInput represents input for creating a task.
type CreateTaskInput struct {
	ProjectID   uint64
	ActorID     uint64
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	AssigneeID  *uint64
	DueDate     *time.Time
}

// CreateTask creates a task in a project. Project members only; the
// assignee, when set, must also be a project member.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrTitleRequired
	}

	if err := s.policy.RequireProjectMember(input.ProjectID, input.ActorID); err != nil {
		return nil, err
	}

	if input.Status == "" {
		input.Status = models.TaskStatusTodo
	} else if !input.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	} else if !input.Priority.Valid() {
		return nil, ErrInvalidPriority
	}

	if err := s.validateAssignee(input.ProjectID, input.AssigneeID); err != nil {
		return nil, err
	}

	task := &models.Task{
		ProjectID:   input.ProjectID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		AssigneeID:  input.AssigneeID,
		CreatedByID: input.ActorID,
		DueDate:     input.DueDate,
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	task, err := s.taskRepo.FindByID(task.ID, taskPreloads...)
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}

	s.publish(ctx, input.ActorID, func(actor *models.User) events.Envelope {
		return events.TaskCreated(task, actor)
	})

	return task, nil
}

// UpdateTaskInput represents input for updating a task.
type UpdateTaskInput struct {
	Title         *string
	Description   *string
	Status        *models.TaskStatus
	Priority      *models.TaskPriority
	AssigneeID    *uint64
	ClearAssignee bool
	DueDate       *time.Time
	ClearDueDate  bool
}

// UpdateTask updates a task. Project members only. Any status may move to
// any other status.
func (s *TaskService) UpdateTask(ctx context.Context, taskID, actorID uint64, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, policy.ErrDenied
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if err := s.policy.RequireProjectMember(task.ProjectID, actorID); err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrTitleEmpty
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		task.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, ErrInvalidPriority
		}
		task.Priority = *input.Priority
	}

	assigneeChanged := false
	if input.ClearAssignee {
		assigneeChanged = task.AssigneeID != nil
		task.AssigneeID = nil
	} else if input.AssigneeID != nil {
		if err := s.validateAssignee(task.ProjectID, input.AssigneeID); err != nil {
			return nil, err
		}
		assigneeChanged = task.AssigneeID == nil || *task.AssigneeID != *input.AssigneeID
		task.AssigneeID = input.AssigneeID
	}

	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	task, err = s.taskRepo.FindByID(task.ID, taskPreloads...)
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}

	s.publish(ctx, actorID, func(actor *models.User) events.Envelope {
		return events.TaskUpdated(task, actor, assigneeChanged)
	})

	return task, nil
}

// DeleteTask deletes a task. Allowed for the task's creator and for project
// ADMINs and MANAGERs.
func (s *TaskService) DeleteTask(ctx context.Context, taskID, actorID uint64) error {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.ErrDenied
		}
		return fmt.Errorf("failed to find task: %w", err)
	}

	if err := s.policy.CanDeleteTask(task, actorID); err != nil {
		return err
	}

	if err := s.taskRepo.Delete(taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.publish(ctx, actorID, func(actor *models.User) events.Envelope {
		return events.TaskDeleted(task.ID, task.ProjectID, actor)
	})

	return nil
}

// AssignLabel attaches a label to a task. Project members only; the label
// must belong to the task's project.
func (s *TaskService) AssignLabel(ctx context.Context, taskID, labelID, actorID uint64) (*models.Task, error) {
	task, label, err := s.taskAndLabel(taskID, labelID, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.AssignLabel(task.ID, label.ID); err != nil {
		return nil, fmt.Errorf("failed to assign label: %w", err)
	}

	task, err = s.taskRepo.FindByID(task.ID, taskPreloads...)
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}

	s.publish(ctx, actorID, func(actor *models.User) events.Envelope {
		return events.TaskLabelAssigned(task, label, actor)
	})

	return task, nil
}

// RemoveLabel detaches a label from a task. Project members only.
func (s *TaskService) RemoveLabel(ctx context.Context, taskID, labelID, actorID uint64) (*models.Task, error) {
	task, label, err := s.taskAndLabel(taskID, labelID, actorID)
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.RemoveLabel(task.ID, label.ID); err != nil {
		return nil, fmt.Errorf("failed to remove label: %w", err)
	}

	task, err = s.taskRepo.FindByID(task.ID, taskPreloads...)
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}

	s.publish(ctx, actorID, func(actor *models.User) events.Envelope {
		return events.TaskLabelRemoved(task, label.ID, actor)
	})

	return task, nil
}

func (s *TaskService) taskAndLabel(taskID, labelID, actorID uint64) (*models.Task, *models.Label, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, policy.ErrDenied
		}
		return nil, nil, fmt.Errorf("failed to find task: %w", err)
	}

	if err := s.policy.RequireProjectMember(task.ProjectID, actorID); err != nil {
		return nil, nil, err
	}

	label, err := s.labelRepo.FindByID(labelID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrLabelNotFound
		}
		return nil, nil, fmt.Errorf("failed to find label: %w", err)
	}
	if label.ProjectID != task.ProjectID {
		return nil, nil, ErrLabelWrongProject
	}

	return task, label, nil
}

func (s *TaskService) validateAssignee(projectID uint64, assigneeID *uint64) error {
	if assigneeID == nil {
		return nil
	}
	if err := s.policy.RequireProjectMember(projectID, *assigneeID); err != nil {
		if errors.Is(err, policy.ErrDenied) {
			return ErrInvalidAssignee
		}
		return err
	}
	return nil
}

func (s *TaskService) publish(ctx context.Context, actorID uint64, build func(actor *models.User) events.Envelope) {
	actor, err := s.userRepo.FindByID(actorID)
	if err != nil {
		logging.Warn().Err(err).Uint64("user_id", actorID).Msg("skipping event publish, actor lookup failed")
		return
	}
	if err := s.bus.Publish(ctx, build(actor)); err != nil {
		logging.Warn().Err(err).Uint64("user_id", actorID).Msg("failed to publish task event")
	}
}
