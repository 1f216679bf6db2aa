package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/devsync-app/devsync/internal/constants"
	"github.com/devsync-app/devsync/internal/events"
	"github.com/devsync-app/devsync/internal/models"
	"github.com/devsync-app/devsync/internal/policy"
	"github.com/devsync-app/devsync/internal/repository"
	"github.com/devsync-app/devsync/internal/services"
)

// nopPublisher satisfies events.Publisher; handler tests do not assert on
// the event stream.
type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.Envelope) error { return nil }

type handlerTestEnv struct {
	db *gorm.DB

	authService *services.AuthService

	auth          *AuthHandler
	teams         *TeamHandler
	projects      *ProjectHandler
	tasks         *TaskHandler
	comments      *CommentHandler
	labels        *LabelHandler
	notifications *NotificationHandler
}

func setupHandlerTestEnv(t *testing.T) *handlerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	userRepo := repository.NewUserRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	labelRepo := repository.NewLabelRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	evaluator := policy.NewEvaluator(teamRepo, projectRepo)
	bus := nopPublisher{}

	authService := services.NewAuthService(userRepo)

	return &handlerTestEnv{
		db:          db,
		authService: authService,

		auth:          NewAuthHandler(authService),
		teams:         NewTeamHandler(services.NewTeamService(teamRepo, userRepo, evaluator, bus)),
		projects:      NewProjectHandler(services.NewProjectService(projectRepo, teamRepo, userRepo, evaluator, bus)),
		tasks:         NewTaskHandler(services.NewTaskService(taskRepo, labelRepo, userRepo, evaluator, bus)),
		comments:      NewCommentHandler(services.NewCommentService(commentRepo, taskRepo, userRepo, evaluator, bus)),
		labels:        NewLabelHandler(services.NewLabelService(labelRepo, userRepo, evaluator, bus)),
		notifications: NewNotificationHandler(services.NewNotificationService(notificationRepo)),
	}
}

// forceUser stands in for the session middleware on authed routes.
func forceUser(userID uint64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(constants.ContextKeyUserID, userID)
		c.Next()
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// successEnvelope mirrors utils.SuccessResponse with an opaque data field.
type successEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeSuccess(t *testing.T, w *httptest.ResponseRecorder, out interface{}) successEnvelope {
	t.Helper()
	var envelope successEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return envelope
}

func (env *handlerTestEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: email, PasswordHash: "x"}
	require.NoError(t, env.db.Create(user).Error)
	return user
}

func (env *handlerTestEnv) createTeamWithAdmin(t *testing.T, adminID uint64) *models.Team {
	t.Helper()
	team := &models.Team{Name: "team"}
	require.NoError(t, env.db.Create(team).Error)
	require.NoError(t, env.db.Create(&models.TeamMember{TeamID: team.ID, UserID: adminID, Role: models.TeamRoleAdmin}).Error)
	return team
}

func (env *handlerTestEnv) createProject(t *testing.T, teamID uint64, members map[uint64]models.ProjectRole) *models.Project {
	t.Helper()
	project := &models.Project{TeamID: teamID, Name: "project", IsActive: true}
	require.NoError(t, env.db.Create(project).Error)
	for userID, role := range members {
		require.NoError(t, env.db.Create(&models.ProjectMember{ProjectID: project.ID, UserID: userID, Role: role}).Error)
	}
	return project
}
