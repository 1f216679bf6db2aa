package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/policy"
)

func TestLabelService_NameUniquePerProject(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	other := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)

	_, err := env.labels.CreateLabel(context.Background(), CreateLabelInput{
		ProjectID: project.ID,
		ActorID:   admin.ID,
		Name:      "bug",
		Color:     "#ff0000",
	})
	require.NoError(t, err)

	_, err = env.labels.CreateLabel(context.Background(), CreateLabelInput{
		ProjectID: project.ID,
		ActorID:   admin.ID,
		Name:      "bug",
		Color:     "#00ff00",
	})
	require.ErrorIs(t, err, ErrLabelNameTaken)

	// The same name is fine in a different project.
	_, err = env.labels.CreateLabel(context.Background(), CreateLabelInput{
		ProjectID: other.ID,
		ActorID:   admin.ID,
		Name:      "bug",
		Color:     "#0000ff",
	})
	require.NoError(t, err)
}

func TestLabelService_CreateRequiresManager(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	developer := env.createUser(t, "dev@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, developer.ID, models.TeamRoleDeveloper)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	env.addProjectMember(t, project.ID, developer.ID, models.ProjectRoleDeveloper)

	_, err := env.labels.CreateLabel(context.Background(), CreateLabelInput{
		ProjectID: project.ID,
		ActorID:   developer.ID,
		Name:      "bug",
		Color:     "#ff0000",
	})
	require.ErrorIs(t, err, policy.ErrDenied)
}

func TestLabelService_DeleteDetachesFromTasks(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	task := env.createTask(t, project.ID, admin.ID)
	label := env.createLabel(t, project.ID, "bug")

	_, err := env.tasks.AssignLabel(context.Background(), task.ID, label.ID, admin.ID)
	require.NoError(t, err)

	require.NoError(t, env.labels.DeleteLabel(context.Background(), label.ID, admin.ID))

	reloaded, err := env.tasks.GetTask(task.ID, admin.ID)
	require.NoError(t, err)
	require.Empty(t, reloaded.Labels)
}
