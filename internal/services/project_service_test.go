package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devsync-app/devsync/internal/events"
	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/policy"
)

func TestProjectService_CreateInheritsRoleFromTeam(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	manager := env.createUser(t, "manager@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, manager.ID, models.TeamRoleManager)

	project, err := env.projects.CreateProject(CreateProjectInput{
		TeamID:    team.ID,
		Name:      "Rollout",
		CreatorID: manager.ID,
	})
	require.NoError(t, err)

	member, err := env.projectRepo.FindMember(project.ID, manager.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProjectRoleManager, member.Role)
}

func TestProjectService_CreateDeniedForDevelopers(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	developer := env.createUser(t, "dev@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, developer.ID, models.TeamRoleDeveloper)

	_, err := env.projects.CreateProject(CreateProjectInput{
		TeamID:    team.ID,
		Name:      "Rollout",
		CreatorID: developer.ID,
	})
	require.ErrorIs(t, err, policy.ErrDenied)
}

func TestProjectService_DeleteBlockedByOpenTasks(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	task := env.createTask(t, project.ID, admin.ID)

	err := env.projects.DeleteProject(project.ID, admin.ID)
	require.ErrorIs(t, err, ErrProjectHasOpenTasks)

	task.Status = models.TaskStatusDone
	require.NoError(t, env.taskRepo.Update(task))

	require.NoError(t, env.projects.DeleteProject(project.ID, admin.ID))

	_, err = env.projectRepo.FindByID(project.ID)
	require.Error(t, err)
}

func TestProjectService_DeleteAllowedForOwningTeamAdmin(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	manager := env.createUser(t, "manager@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, manager.ID, models.TeamRoleManager)
	// Project created by the manager; the team admin never joined it.
	project := env.createProject(t, team.ID, manager.ID, models.ProjectRoleManager)

	require.NoError(t, env.projects.DeleteProject(project.ID, admin.ID))
}

func TestProjectService_DeleteDeniedForProjectManager(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	manager := env.createUser(t, "manager@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, manager.ID, models.TeamRoleManager)
	project := env.createProject(t, team.ID, manager.ID, models.ProjectRoleManager)

	err := env.projects.DeleteProject(project.ID, manager.ID)
	require.ErrorIs(t, err, policy.ErrDenied)
}

func TestProjectService_AddMemberRequiresTeamMembership(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)

	_, err := env.projects.AddMember(context.Background(), AddProjectMemberInput{
		ProjectID: project.ID,
		ActorID:   admin.ID,
		UserID:    outsider.ID,
		Role:      models.ProjectRoleDeveloper,
	})
	require.ErrorIs(t, err, ErrNotTeamMember)
}

func TestProjectService_AddMemberPublishesEvent(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	developer := env.createUser(t, "dev@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, developer.ID, models.TeamRoleDeveloper)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)

	_, err := env.projects.AddMember(context.Background(), AddProjectMemberInput{
		ProjectID: project.ID,
		ActorID:   admin.ID,
		UserID:    developer.ID,
		Role:      models.ProjectRoleDeveloper,
	})
	require.NoError(t, err)

	published, ok := env.bus.lastNamed(events.EventProjectMemberAdded)
	require.True(t, ok)
	require.Equal(t, project.ID, published.ProjectID)
	require.Equal(t, admin.ID, published.ActorID)
}
