package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/devsync-app/devsync/internal/events"
	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/policy"
	"github.com/devsync-app/devsync/internal/repository"
)

// recordingPublisher captures published envelopes for assertions.
type recordingPublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envelopes = append(p.envelopes, env)
	return nil
}

func (p *recordingPublisher) published() []events.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Envelope(nil), p.envelopes...)
}

func (p *recordingPublisher) lastNamed(name string) (events.Envelope, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.envelopes) - 1; i >= 0; i-- {
		if p.envelopes[i].Name == name {
			return p.envelopes[i], true
		}
	}
	return events.Envelope{}, false
}

type serviceTestEnv struct {
	db  *gorm.DB
	bus *recordingPublisher

	userRepo         repository.UserRepository
	teamRepo         repository.TeamRepository
	projectRepo      repository.ProjectRepository
	taskRepo         repository.TaskRepository
	commentRepo      repository.CommentRepository
	labelRepo        repository.LabelRepository
	notificationRepo repository.NotificationRepository

	evaluator *policy.Evaluator

	auth          *AuthService
	teams         *TeamService
	projects      *ProjectService
	tasks         *TaskService
	comments      *CommentService
	labels        *LabelService
	notifications *NotificationService
}

func setupServiceTestEnv(t *testing.T) *serviceTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMember{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Task{},
		&models.Comment{},
		&models.Label{},
		&models.Notification{},
	)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	env := &serviceTestEnv{
		db:               db,
		bus:              &recordingPublisher{},
		userRepo:         repository.NewUserRepository(db),
		teamRepo:         repository.NewTeamRepository(db),
		projectRepo:      repository.NewProjectRepository(db),
		taskRepo:         repository.NewTaskRepository(db),
		commentRepo:      repository.NewCommentRepository(db),
		labelRepo:        repository.NewLabelRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
	}
	env.evaluator = policy.NewEvaluator(env.teamRepo, env.projectRepo)

	env.auth = NewAuthService(env.userRepo)
	env.teams = NewTeamService(env.teamRepo, env.userRepo, env.evaluator, env.bus)
	env.projects = NewProjectService(env.projectRepo, env.teamRepo, env.userRepo, env.evaluator, env.bus)
	env.tasks = NewTaskService(env.taskRepo, env.labelRepo, env.userRepo, env.evaluator, env.bus)
	env.comments = NewCommentService(env.commentRepo, env.taskRepo, env.userRepo, env.evaluator, env.bus)
	env.labels = NewLabelService(env.labelRepo, env.userRepo, env.evaluator, env.bus)
	env.notifications = NewNotificationService(env.notificationRepo)

	return env
}

func (env *serviceTestEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:        email,
		Name:         email,
		PasswordHash: "x",
	}
	require.NoError(t, env.db.Create(user).Error)
	return user
}

func (env *serviceTestEnv) createTeam(t *testing.T, name string, adminID uint64) *models.Team {
	t.Helper()
	team := &models.Team{Name: name}
	require.NoError(t, env.teamRepo.CreateWithAdmin(team, adminID))
	return team
}

func (env *serviceTestEnv) addTeamMember(t *testing.T, teamID, userID uint64, role models.TeamRole) {
	t.Helper()
	require.NoError(t, env.teamRepo.AddMember(&models.TeamMember{
		TeamID:   teamID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now(),
	}))
}

func (env *serviceTestEnv) createProject(t *testing.T, teamID, creatorID uint64, role models.ProjectRole) *models.Project {
	t.Helper()
	project := &models.Project{TeamID: teamID, Name: "Project", IsActive: true}
	member := &models.ProjectMember{UserID: creatorID, Role: role, JoinedAt: time.Now()}
	require.NoError(t, env.projectRepo.CreateWithMember(project, member))
	return project
}

func (env *serviceTestEnv) addProjectMember(t *testing.T, projectID, userID uint64, role models.ProjectRole) {
	t.Helper()
	require.NoError(t, env.projectRepo.AddMember(&models.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now(),
	}))
}

func (env *serviceTestEnv) createTask(t *testing.T, projectID, creatorID uint64) *models.Task {
	t.Helper()
	task := &models.Task{
		ProjectID:   projectID,
		Title:       "Task",
		Status:      models.TaskStatusTodo,
		Priority:    models.TaskPriorityMedium,
		CreatedByID: creatorID,
	}
	require.NoError(t, env.taskRepo.Create(task))
	return task
}

func (env *serviceTestEnv) createLabel(t *testing.T, projectID uint64, name string) *models.Label {
	t.Helper()
	label := &models.Label{ProjectID: projectID, Name: name, Color: "#ff0000"}
	require.NoError(t, env.labelRepo.Create(label))
	return label
}
