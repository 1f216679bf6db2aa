package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devsync-app/devsync/internal/events"
	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/policy"
)

func TestTaskService_CreateRejectsNonMemberAssignee(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)

	_, err := env.tasks.CreateTask(context.Background(), CreateTaskInput{
		ProjectID:  project.ID,
		ActorID:    admin.ID,
		Title:      "Ship it",
		AssigneeID: &outsider.ID,
	})
	require.ErrorIs(t, err, ErrInvalidAssignee)
}

func TestTaskService_CreatePublishesEvent(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)

	task, err := env.tasks.CreateTask(context.Background(), CreateTaskInput{
		ProjectID: project.ID,
		ActorID:   admin.ID,
		Title:     "Ship it",
	})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusTodo, task.Status)
	require.Equal(t, models.TaskPriorityMedium, task.Priority)

	published, ok := env.bus.lastNamed(events.EventTaskCreated)
	require.True(t, ok)
	require.Equal(t, project.ID, published.ProjectID)

	var payload events.TaskCreatedPayload
	require.NoError(t, json.Unmarshal(published.Payload, &payload))
	require.Equal(t, task.ID, payload.Task.ID)
	require.Equal(t, admin.ID, payload.CreatedBy.ID)
}

func TestTaskService_UpdateTracksAssigneeChange(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	developer := env.createUser(t, "dev@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, developer.ID, models.TeamRoleDeveloper)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	env.addProjectMember(t, project.ID, developer.ID, models.ProjectRoleDeveloper)
	task := env.createTask(t, project.ID, admin.ID)

	_, err := env.tasks.UpdateTask(context.Background(), task.ID, admin.ID, UpdateTaskInput{
		AssigneeID: &developer.ID,
	})
	require.NoError(t, err)

	published, ok := env.bus.lastNamed(events.EventTaskUpdated)
	require.True(t, ok)
	var payload events.TaskUpdatedPayload
	require.NoError(t, json.Unmarshal(published.Payload, &payload))
	require.True(t, payload.AssigneeChanged)

	// A status edit without touching the assignee is a plain update.
	status := models.TaskStatusDone
	_, err = env.tasks.UpdateTask(context.Background(), task.ID, admin.ID, UpdateTaskInput{
		Status: &status,
	})
	require.NoError(t, err)

	published, ok = env.bus.lastNamed(events.EventTaskUpdated)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(published.Payload, &payload))
	require.False(t, payload.AssigneeChanged)
}

func TestTaskService_StatusMayMoveBackwards(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	task := env.createTask(t, project.ID, admin.ID)

	done := models.TaskStatusDone
	updated, err := env.tasks.UpdateTask(context.Background(), task.ID, admin.ID, UpdateTaskInput{Status: &done})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusDone, updated.Status)

	todo := models.TaskStatusTodo
	updated, err = env.tasks.UpdateTask(context.Background(), task.ID, admin.ID, UpdateTaskInput{Status: &todo})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusTodo, updated.Status)
}

func TestTaskService_DeletePermissions(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	creator := env.createUser(t, "creator@example.com")
	bystander := env.createUser(t, "bystander@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, creator.ID, models.TeamRoleDeveloper)
	env.addTeamMember(t, team.ID, bystander.ID, models.TeamRoleDeveloper)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	env.addProjectMember(t, project.ID, creator.ID, models.ProjectRoleDeveloper)
	env.addProjectMember(t, project.ID, bystander.ID, models.ProjectRoleDeveloper)

	task := env.createTask(t, project.ID, creator.ID)

	// Another developer cannot delete someone else's task.
	err := env.tasks.DeleteTask(context.Background(), task.ID, bystander.ID)
	require.ErrorIs(t, err, policy.ErrDenied)

	// The creator can.
	require.NoError(t, env.tasks.DeleteTask(context.Background(), task.ID, creator.ID))

	// A project admin can delete any task.
	task2 := env.createTask(t, project.ID, creator.ID)
	require.NoError(t, env.tasks.DeleteTask(context.Background(), task2.ID, admin.ID))
}

func TestTaskService_LabelMustBelongToProject(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	other := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	task := env.createTask(t, project.ID, admin.ID)
	foreignLabel := env.createLabel(t, other.ID, "bug")

	_, err := env.tasks.AssignLabel(context.Background(), task.ID, foreignLabel.ID, admin.ID)
	require.ErrorIs(t, err, ErrLabelWrongProject)
}

func TestTaskService_AssignLabelIsIdempotent(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	task := env.createTask(t, project.ID, admin.ID)
	label := env.createLabel(t, project.ID, "bug")

	first, err := env.tasks.AssignLabel(context.Background(), task.ID, label.ID, admin.ID)
	require.NoError(t, err)
	require.Len(t, first.Labels, 1)

	second, err := env.tasks.AssignLabel(context.Background(), task.ID, label.ID, admin.ID)
	require.NoError(t, err)
	require.Len(t, second.Labels, 1)

	removed, err := env.tasks.RemoveLabel(context.Background(), task.ID, label.ID, admin.ID)
	require.NoError(t, err)
	require.Empty(t, removed.Labels)
}

func TestTaskService_GetDeniedLooksLikeMissing(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	task := env.createTask(t, project.ID, admin.ID)

	_, err := env.tasks.GetTask(task.ID, outsider.ID)
	require.ErrorIs(t, err, policy.ErrDenied)

	_, err = env.tasks.GetTask(task.ID+100, outsider.ID)
	require.ErrorIs(t, err, policy.ErrDenied)
}
