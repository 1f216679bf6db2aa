package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"

	"github.com/devsync-app/devsync/internal/config"
	"github.com/devsync-app/devsync/internal/constants"
	"github.com/devsync-app/devsync/internal/database"
	"github.com/devsync-app/devsync/internal/events"
	"github.com/devsync-app/devsync/internal/handlers"
	"github.com/devsync-app/devsync/internal/logging"
	"github.com/devsync-app/devsync/internal/middleware"
	"github.com/devsync-app/devsync/internal/notifications"
	"github.com/devsync-app/devsync/internal/policy"
	"github.com/devsync-app/devsync/internal/realtime"
	"github.com/devsync-app/devsync/internal/repository"
	"github.com/devsync-app/devsync/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	gin.SetMode(cfg.GinMode)

	if err := database.Connect(cfg); err != nil {
		logging.Error().Err(err).Msg("failed to connect to database")
		return
	}
	if err := database.Migrate(); err != nil {
		logging.Error().Err(err).Msg("failed to run migrations")
		return
	}
	if err := database.AddIndexes(database.GetDB()); err != nil {
		logging.Error().Err(err).Msg("failed to create indexes")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.GetDB()
	userRepo := repository.NewUserRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	labelRepo := repository.NewLabelRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	evaluator := policy.NewEvaluator(teamRepo, projectRepo)

	bus := events.NewBus()
	defer bus.Close()

	hub := realtime.NewHub(evaluator)
	go hub.RunWithContext(ctx)

	forwarder := realtime.NewForwarder(hub, bus)
	go func() {
		if err := forwarder.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("realtime forwarder stopped")
		}
	}()

	pipeline := notifications.NewPipeline(notificationRepo, bus)
	go func() {
		if err := pipeline.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("notification pipeline stopped")
		}
	}()

	authService := services.NewAuthService(userRepo)
	teamService := services.NewTeamService(teamRepo, userRepo, evaluator, bus)
	projectService := services.NewProjectService(projectRepo, teamRepo, userRepo, evaluator, bus)
	taskService := services.NewTaskService(taskRepo, labelRepo, userRepo, evaluator, bus)
	commentService := services.NewCommentService(commentRepo, taskRepo, userRepo, evaluator, bus)
	labelService := services.NewLabelService(labelRepo, userRepo, evaluator, bus)
	notificationService := services.NewNotificationService(notificationRepo)

	authHandler := handlers.NewAuthHandler(authService)
	teamHandler := handlers.NewTeamHandler(teamService)
	projectHandler := handlers.NewProjectHandler(projectService)
	taskHandler := handlers.NewTaskHandler(taskService)
	commentHandler := handlers.NewCommentHandler(commentService)
	labelHandler := handlers.NewLabelHandler(labelService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	wsHandler := realtime.NewHandler(hub, cfg.AllowedOrigin)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AllowedOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		AllowCredentials: true,
	}))

	redisAddr := cfg.RedisHost + ":" + cfg.RedisPort
	store, err := redisStore.NewStore(10, "tcp", redisAddr, "", "", []byte(cfg.SessionSecret))
	if err != nil {
		logging.Error().Err(err).Msg("failed to create redis session store")
		return
	}
	isProduction := cfg.GinMode == "release"
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   isProduction,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(constants.SessionName, store))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", middleware.RequireAuth(), authHandler.GetCurrentUser)
		}

		teams := api.Group("/teams")
		teams.Use(middleware.RequireAuth())
		{
			teams.POST("", teamHandler.CreateTeam)
			teams.GET("", teamHandler.ListTeams)
			teams.GET("/:id", teamHandler.GetTeam)
			teams.PUT("/:id", teamHandler.UpdateTeam)
			teams.DELETE("/:id", teamHandler.DeleteTeam)
			teams.GET("/:id/members", teamHandler.ListMembers)
			teams.POST("/:id/members", teamHandler.AddMember)
			teams.DELETE("/:id/members/:userId", teamHandler.RemoveMember)
			teams.GET("/:id/projects", projectHandler.ListTeamProjects)
			teams.POST("/:id/projects", projectHandler.CreateProject)
		}

		projects := api.Group("/projects")
		projects.Use(middleware.RequireAuth())
		{
			projects.GET("", projectHandler.ListMyProjects)
			projects.GET("/:id", projectHandler.GetProject)
			projects.PUT("/:id", projectHandler.UpdateProject)
			projects.DELETE("/:id", projectHandler.DeleteProject)
			projects.GET("/:id/members", projectHandler.ListMembers)
			projects.POST("/:id/members", projectHandler.AddMember)
			projects.DELETE("/:id/members/:userId", projectHandler.RemoveMember)
			projects.GET("/:id/tasks", taskHandler.ListTasks)
			projects.POST("/:id/tasks", taskHandler.CreateTask)
			projects.GET("/:id/labels", labelHandler.ListLabels)
			projects.POST("/:id/labels", labelHandler.CreateLabel)
		}

		tasks := api.Group("/tasks")
		tasks.Use(middleware.RequireAuth())
		{
			tasks.GET("/:id", taskHandler.GetTask)
			tasks.PATCH("/:id", taskHandler.UpdateTask)
			tasks.DELETE("/:id", taskHandler.DeleteTask)
			tasks.GET("/:id/comments", commentHandler.ListComments)
			tasks.POST("/:id/comments", commentHandler.CreateComment)
			tasks.POST("/:id/labels/:labelId", taskHandler.AssignLabel)
			tasks.DELETE("/:id/labels/:labelId", taskHandler.RemoveLabel)
		}

		comments := api.Group("/comments")
		comments.Use(middleware.RequireAuth())
		{
			comments.PUT("/:id", commentHandler.UpdateComment)
			comments.DELETE("/:id", commentHandler.DeleteComment)
		}

		labels := api.Group("/labels")
		labels.Use(middleware.RequireAuth())
		{
			labels.DELETE("/:id", labelHandler.DeleteLabel)
		}

		notificationsGroup := api.Group("/notifications")
		notificationsGroup.Use(middleware.RequireAuth())
		{
			notificationsGroup.GET("", notificationHandler.ListNotifications)
			notificationsGroup.GET("/unread-count", notificationHandler.UnreadCount)
			notificationsGroup.POST("/:id/read", notificationHandler.MarkRead)
			notificationsGroup.POST("/read-all", notificationHandler.MarkAllRead)
		}
	}

	r.GET("/ws", middleware.RequireAuth(), wsHandler.Serve)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logging.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("forced shutdown")
	}
}
