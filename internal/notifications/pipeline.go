// Package notifications turns domain events into persisted, per-recipient
// notification records. The pipeline is decoupled from the mutation path: it
// consumes the same event stream as the realtime forwarder, derives the
// recipients, writes a row per recipient and republishes a notification event
// on each recipient's personal channel. A failure here never surfaces to the
// user who triggered the mutation.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/devsync-app/devsync/internal/events"
	"github.com/devsync-app/devsync/internal/logging"
	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/repository"
)

// Pipeline subscribes to the event bus and materializes notifications.
type Pipeline struct {
	notifications repository.NotificationRepository
	bus           *events.Bus
}

func NewPipeline(notifications repository.NotificationRepository, bus *events.Bus) *Pipeline {
	return &Pipeline{notifications: notifications, bus: bus}
}

// Run consumes events until the context is canceled.
func (p *Pipeline) Run(ctx context.Context) error {
	sub := events.NewSubscriber("notification-pipeline", p.bus)
	return sub.Run(ctx, p.Handle)
}

// Handle derives notifications for a single event. Decode failures and
// unknown event names are skipped; the stream must keep moving.
func (p *Pipeline) Handle(ctx context.Context, env events.Envelope) error {
	switch env.Name {
	case events.EventTaskCreated:
		return p.onTaskCreated(ctx, env)
	case events.EventTaskUpdated:
		return p.onTaskUpdated(ctx, env)
	case events.EventCommentAdded:
		return p.onCommentAdded(ctx, env)
	case events.EventProjectMemberAdded:
		return p.onProjectMemberAdded(ctx, env)
	case events.EventTeamMemberAdded:
		return p.onTeamMemberAdded(ctx, env)
	default:
		return nil
	}
}

func (p *Pipeline) onTaskCreated(ctx context.Context, env events.Envelope) error {
	var payload events.TaskCreatedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode task-created payload: %w", err)
	}
	task := payload.Task
	if task == nil || task.AssigneeID == nil || *task.AssigneeID == env.ActorID {
		return nil
	}

	p.emit(ctx, env.ActorID, &models.Notification{
		UserID:    *task.AssigneeID,
		Type:      models.NotificationTaskAssigned,
		Title:     "New task assigned",
		Message:   fmt.Sprintf("%s assigned you the task %q", payload.CreatedBy.Name, task.Title),
		ProjectID: &task.ProjectID,
	})
	return nil
}

func (p *Pipeline) onTaskUpdated(ctx context.Context, env events.Envelope) error {
	var payload events.TaskUpdatedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode task-updated payload: %w", err)
	}
	task := payload.Task
	if task == nil || task.AssigneeID == nil || *task.AssigneeID == env.ActorID {
		return nil
	}

	notification := &models.Notification{
		UserID:    *task.AssigneeID,
		ProjectID: &task.ProjectID,
	}
	if payload.AssigneeChanged {
		notification.Type = models.NotificationTaskAssigned
		notification.Title = "New task assigned"
		notification.Message = fmt.Sprintf("%s assigned you the task %q", payload.UpdatedBy.Name, task.Title)
	} else {
		notification.Type = models.NotificationTaskUpdated
		notification.Title = "Task updated"
		notification.Message = fmt.Sprintf("%s updated the task %q", payload.UpdatedBy.Name, task.Title)
	}
	p.emit(ctx, env.ActorID, notification)
	return nil
}

func (p *Pipeline) onCommentAdded(ctx context.Context, env events.Envelope) error {
	var payload events.CommentPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode comment-added payload: %w", err)
	}
	task := payload.Task
	if task == nil {
		return nil
	}

	// Assignee and task creator, deduplicated, never the commenter.
	recipients := make(map[uint64]struct{})
	if task.AssigneeID != nil {
		recipients[*task.AssigneeID] = struct{}{}
	}
	recipients[task.CreatedByID] = struct{}{}
	delete(recipients, env.ActorID)

	for userID := range recipients {
		p.emit(ctx, env.ActorID, &models.Notification{
			UserID:    userID,
			Type:      models.NotificationCommentAdded,
			Title:     "New comment",
			Message:   fmt.Sprintf("%s commented on the task %q", payload.Actor.Name, task.Title),
			ProjectID: &task.ProjectID,
		})
	}
	return nil
}

func (p *Pipeline) onProjectMemberAdded(ctx context.Context, env events.Envelope) error {
	var payload events.MemberAddedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode project-member-added payload: %w", err)
	}
	if payload.UserID == 0 || payload.UserID == env.ActorID {
		return nil
	}

	p.emit(ctx, env.ActorID, &models.Notification{
		UserID:    payload.UserID,
		Type:      models.NotificationProjectAssigned,
		Title:     "Added to project",
		Message:   fmt.Sprintf("%s added you to the project %q", payload.Actor.Name, payload.Name),
		ProjectID: &payload.ProjectID,
	})
	return nil
}

func (p *Pipeline) onTeamMemberAdded(ctx context.Context, env events.Envelope) error {
	var payload events.MemberAddedPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return fmt.Errorf("decode team-member-added payload: %w", err)
	}
	if payload.UserID == 0 || payload.UserID == env.ActorID {
		return nil
	}

	p.emit(ctx, env.ActorID, &models.Notification{
		UserID:  payload.UserID,
		Type:    models.NotificationTeamInvite,
		Title:   "Added to team",
		Message: fmt.Sprintf("%s added you to the team %q", payload.Actor.Name, payload.Name),
	})
	return nil
}

// emit persists the notification, then pushes it on the recipient's personal
// channel. The row is written regardless of whether the recipient is
// connected; the push is best-effort on top.
func (p *Pipeline) emit(ctx context.Context, actorID uint64, notification *models.Notification) {
	if err := p.notifications.Create(notification); err != nil {
		logging.Error().Err(err).
			Uint64("user_id", notification.UserID).
			Str("type", string(notification.Type)).
			Msg("failed to persist notification")
		return
	}

	if err := p.bus.Publish(ctx, events.NotificationCreated(notification, actorID)); err != nil {
		logging.Warn().Err(err).
			Uint64("user_id", notification.UserID).
			Msg("failed to publish notification event")
	}
}
