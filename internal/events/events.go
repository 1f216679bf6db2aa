// Package events carries domain events from the mutation orchestrators to
// their subscribers (the realtime forwarder and the notification pipeline)
// over an in-process Watermill bus. Publishing is best-effort: a mutation
// never fails because an event could not be delivered.
package events

import (
	"encoding/json"

	"github.com/devsync-app/devsync/internal/models"
)

// Event names as delivered on realtime channels.
const (
	EventTaskCreated        = "task-created"
	EventTaskUpdated        = "task-updated"
	EventTaskDeleted        = "task-deleted"
	EventCommentAdded       = "comment-added"
	EventCommentUpdated     = "comment-updated"
	EventCommentDeleted     = "comment-deleted"
	EventLabelCreated       = "label-created"
	EventLabelDeleted       = "label-deleted"
	EventTaskLabelAssigned  = "task-label-assigned"
	EventTaskLabelRemoved   = "task-label-removed"
	EventProjectMemberAdded = "project-member-added"
	EventTeamMemberAdded    = "team-member-added"
	EventNotification       = "notification"
)

// Envelope is the bus wire format. ProjectID routes project-channel events;
// UserID routes personal-channel events. ActorID always identifies who
// triggered the mutation so receiving clients can suppress self-echoes.
type Envelope struct {
	Name      string          `json:"name"`
	ProjectID uint64          `json:"project_id,omitempty"`
	UserID    uint64          `json:"user_id,omitempty"`
	ActorID   uint64          `json:"actor_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// UserRef is the actor identity embedded in payloads.
type UserRef struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewUserRef builds a UserRef from a user model.
func NewUserRef(user *models.User) UserRef {
	return UserRef{ID: user.ID, Name: user.Name, Email: user.Email}
}

// TaskCreatedPayload accompanies EventTaskCreated.
type TaskCreatedPayload struct {
	Task      *models.Task `json:"task"`
	CreatedBy UserRef      `json:"createdBy"`
}

// TaskUpdatedPayload accompanies EventTaskUpdated. AssigneeChanged lets the
// notification pipeline distinguish a fresh assignment from an ordinary edit.
type TaskUpdatedPayload struct {
	Task            *models.Task `json:"task"`
	UpdatedBy       UserRef      `json:"updatedBy"`
	AssigneeChanged bool         `json:"assignee_changed,omitempty"`
}

// TaskDeletedPayload accompanies EventTaskDeleted.
type TaskDeletedPayload struct {
	TaskID    uint64  `json:"taskId"`
	DeletedBy UserRef `json:"deletedBy"`
}

// CommentPayload accompanies the comment events. The task is carried so the
// notification pipeline can reach the assignee and creator without a second
// lookup.
type CommentPayload struct {
	Comment *models.Comment `json:"comment"`
	Task    *models.Task    `json:"task"`
	Actor   UserRef         `json:"actor"`
}

// LabelPayload accompanies EventLabelCreated and EventLabelDeleted.
type LabelPayload struct {
	Label *models.Label `json:"label"`
	Actor UserRef       `json:"actor"`
}

// TaskLabelAssignedPayload accompanies EventTaskLabelAssigned.
type TaskLabelAssignedPayload struct {
	Task  *models.Task  `json:"task"`
	Label *models.Label `json:"label"`
	Actor UserRef       `json:"actor"`
}

// TaskLabelRemovedPayload accompanies EventTaskLabelRemoved.
type TaskLabelRemovedPayload struct {
	Task    *models.Task `json:"task"`
	LabelID uint64       `json:"labelId"`
	Actor   UserRef      `json:"actor"`
}

// MemberAddedPayload accompanies the membership events. UserID is the added
// user, the notification recipient.
type MemberAddedPayload struct {
	TeamID    uint64  `json:"team_id,omitempty"`
	ProjectID uint64  `json:"project_id,omitempty"`
	Name      string  `json:"name"`
	UserID    uint64  `json:"user_id"`
	Actor     UserRef `json:"actor"`
}

// NotificationPayload accompanies EventNotification on the recipient's
// personal channel.
type NotificationPayload struct {
	Notification *models.Notification `json:"notification"`
}

func mustEnvelope(name string, projectID, userID, actorID uint64, payload interface{}) Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Payload structs are plain data; marshaling cannot fail for them.
		raw = []byte("{}")
	}
	return Envelope{
		Name:      name,
		ProjectID: projectID,
		UserID:    userID,
		ActorID:   actorID,
		Payload:   raw,
	}
}

// TaskCreated builds the envelope for a created task.
func TaskCreated(task *models.Task, actor *models.User) Envelope {
	return mustEnvelope(EventTaskCreated, task.ProjectID, 0, actor.ID,
		TaskCreatedPayload{Task: task, CreatedBy: NewUserRef(actor)})
}

// TaskUpdated builds the envelope for an updated task.
func TaskUpdated(task *models.Task, actor *models.User, assigneeChanged bool) Envelope {
	return mustEnvelope(EventTaskUpdated, task.ProjectID, 0, actor.ID,
		TaskUpdatedPayload{Task: task, UpdatedBy: NewUserRef(actor), AssigneeChanged: assigneeChanged})
}

// TaskDeleted builds the envelope for a deleted task.
func TaskDeleted(taskID, projectID uint64, actor *models.User) Envelope {
	return mustEnvelope(EventTaskDeleted, projectID, 0, actor.ID,
		TaskDeletedPayload{TaskID: taskID, DeletedBy: NewUserRef(actor)})
}

// CommentAdded builds the envelope for a new comment.
func CommentAdded(comment *models.Comment, task *models.Task, actor *models.User) Envelope {
	return mustEnvelope(EventCommentAdded, task.ProjectID, 0, actor.ID,
		CommentPayload{Comment: comment, Task: task, Actor: NewUserRef(actor)})
}

// CommentUpdated builds the envelope for an edited comment.
func CommentUpdated(comment *models.Comment, task *models.Task, actor *models.User) Envelope {
	return mustEnvelope(EventCommentUpdated, task.ProjectID, 0, actor.ID,
		CommentPayload{Comment: comment, Task: task, Actor: NewUserRef(actor)})
}

// CommentDeleted builds the envelope for a deleted comment.
func CommentDeleted(comment *models.Comment, task *models.Task, actor *models.User) Envelope {
	return mustEnvelope(EventCommentDeleted, task.ProjectID, 0, actor.ID,
		CommentPayload{Comment: comment, Task: task, Actor: NewUserRef(actor)})
}

// LabelCreated builds the envelope for a new label.
func LabelCreated(label *models.Label, actor *models.User) Envelope {
	return mustEnvelope(EventLabelCreated, label.ProjectID, 0, actor.ID,
		LabelPayload{Label: label, Actor: NewUserRef(actor)})
}

// LabelDeleted builds the envelope for a deleted label.
func LabelDeleted(label *models.Label, actor *models.User) Envelope {
	return mustEnvelope(EventLabelDeleted, label.ProjectID, 0, actor.ID,
		LabelPayload{Label: label, Actor: NewUserRef(actor)})
}

// TaskLabelAssigned builds the envelope for a label attached to a task.
func TaskLabelAssigned(task *models.Task, label *models.Label, actor *models.User) Envelope {
	return mustEnvelope(EventTaskLabelAssigned, task.ProjectID, 0, actor.ID,
		TaskLabelAssignedPayload{Task: task, Label: label, Actor: NewUserRef(actor)})
}

// TaskLabelRemoved builds the envelope for a label detached from a task.
func TaskLabelRemoved(task *models.Task, labelID uint64, actor *models.User) Envelope {
	return mustEnvelope(EventTaskLabelRemoved, task.ProjectID, 0, actor.ID,
		TaskLabelRemovedPayload{Task: task, LabelID: labelID, Actor: NewUserRef(actor)})
}

// ProjectMemberAdded builds the envelope for a user added to a project.
func ProjectMemberAdded(project *models.Project, userID uint64, actor *models.User) Envelope {
	return mustEnvelope(EventProjectMemberAdded, project.ID, 0, actor.ID,
		MemberAddedPayload{ProjectID: project.ID, Name: project.Name, UserID: userID, Actor: NewUserRef(actor)})
}

// TeamMemberAdded builds the envelope for a user added to a team. Team events
// have no project channel; only the notification pipeline consumes them.
func TeamMemberAdded(team *models.Team, userID uint64, actor *models.User) Envelope {
	return mustEnvelope(EventTeamMemberAdded, 0, 0, actor.ID,
		MemberAddedPayload{TeamID: team.ID, Name: team.Name, UserID: userID, Actor: NewUserRef(actor)})
}

// NotificationCreated builds the envelope pushed on the recipient's personal
// channel.
func NotificationCreated(notification *models.Notification, actorID uint64) Envelope {
	return mustEnvelope(EventNotification, 0, notification.UserID, actorID,
		NotificationPayload{Notification: notification})
}
