package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devsync-app/devsync/internal/events"
	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/policy"
)

func TestTeamService_CreateTeamMakesCreatorAdmin(t *testing.T) {
	env := setupServiceTestEnv(t)
	creator := env.createUser(t, "creator@example.com")

	team, err := env.teams.CreateTeam(CreateTeamInput{Name: "Platform", CreatorID: creator.ID})
	require.NoError(t, err)
	require.NotZero(t, team.ID)

	member, err := env.teamRepo.FindMember(team.ID, creator.ID)
	require.NoError(t, err)
	require.Equal(t, models.TeamRoleAdmin, member.Role)
}

func TestTeamService_AddMemberPublishesEvent(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	invitee := env.createUser(t, "invitee@example.com")
	team := env.createTeam(t, "Platform", admin.ID)

	member, err := env.teams.AddMember(context.Background(), AddMemberInput{
		TeamID:  team.ID,
		ActorID: admin.ID,
		UserID:  invitee.ID,
		Role:    models.TeamRoleDeveloper,
	})
	require.NoError(t, err)
	require.Equal(t, models.TeamRoleDeveloper, member.Role)

	env2, ok := env.bus.lastNamed(events.EventTeamMemberAdded)
	require.True(t, ok)
	require.Equal(t, admin.ID, env2.ActorID)
}

func TestTeamService_AddMemberRequiresAdmin(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	developer := env.createUser(t, "dev@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, developer.ID, models.TeamRoleDeveloper)

	_, err := env.teams.AddMember(context.Background(), AddMemberInput{
		TeamID:  team.ID,
		ActorID: developer.ID,
		UserID:  outsider.ID,
		Role:    models.TeamRoleDeveloper,
	})
	require.ErrorIs(t, err, policy.ErrDenied)

	// A non-member sees the same denial as a missing team.
	_, err = env.teams.AddMember(context.Background(), AddMemberInput{
		TeamID:  team.ID + 100,
		ActorID: developer.ID,
		UserID:  outsider.ID,
		Role:    models.TeamRoleDeveloper,
	})
	require.ErrorIs(t, err, policy.ErrDenied)
}

func TestTeamService_AddMemberRejectsDuplicate(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	invitee := env.createUser(t, "invitee@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, invitee.ID, models.TeamRoleDeveloper)

	_, err := env.teams.AddMember(context.Background(), AddMemberInput{
		TeamID:  team.ID,
		ActorID: admin.ID,
		UserID:  invitee.ID,
		Role:    models.TeamRoleDeveloper,
	})
	require.ErrorIs(t, err, ErrAlreadyTeamMember)
}

func TestTeamService_RemoveMemberCannotRemoveSelf(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	team := env.createTeam(t, "Platform", admin.ID)

	err := env.teams.RemoveMember(team.ID, admin.ID, admin.ID)
	require.ErrorIs(t, err, ErrCannotRemoveYourself)
}

func TestTeamService_RemoveMemberKeepsProjectMembership(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	developer := env.createUser(t, "dev@example.com")
	team := env.createTeam(t, "Platform", admin.ID)
	env.addTeamMember(t, team.ID, developer.ID, models.TeamRoleDeveloper)
	project := env.createProject(t, team.ID, admin.ID, models.ProjectRoleAdmin)
	env.addProjectMember(t, project.ID, developer.ID, models.ProjectRoleDeveloper)

	require.NoError(t, env.teams.RemoveMember(team.ID, admin.ID, developer.ID))

	// Project membership is authoritative on its own.
	member, err := env.projectRepo.FindMember(project.ID, developer.ID)
	require.NoError(t, err)
	require.Equal(t, models.ProjectRoleDeveloper, member.Role)
}

func TestTeamService_GetTeamHiddenFromNonMembers(t *testing.T) {
	env := setupServiceTestEnv(t)
	admin := env.createUser(t, "admin@example.com")
	outsider := env.createUser(t, "outsider@example.com")
	team := env.createTeam(t, "Platform", admin.ID)

	_, err := env.teams.GetTeam(team.ID, outsider.ID)
	require.ErrorIs(t, err, policy.ErrDenied)

	_, err = env.teams.GetTeam(team.ID+100, outsider.ID)
	require.ErrorIs(t, err, policy.ErrDenied)
}
