package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/bimbingan-api/api/swagger"
	"github.com/noah-isme/bimbingan-api/internal/handler"
	"github.com/noah-isme/bimbingan-api/internal/middleware"
	"github.com/noah-isme/bimbingan-api/internal/models"
	"github.com/noah-isme/bimbingan-api/internal/repository"
	"github.com/noah-isme/bimbingan-api/internal/service"
	"github.com/noah-isme/bimbingan-api/pkg/cache"
	"github.com/noah-isme/bimbingan-api/pkg/config"
	"github.com/noah-isme/bimbingan-api/pkg/database"
	"github.com/noah-isme/bimbingan-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/bimbingan-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/bimbingan-api/pkg/middleware/requestid"
)

// @title Bimbingan API
// @version 1.0.0
// @description Appointment scheduling and multi-supervisor consensus for thesis supervision meetings
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()
	metricsService := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Appointments.AvailabilityCacheTTL, logr, true)

	userRepo := repository.NewUserRepository(db)
	semesterRepo := repository.NewSemesterRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	appointmentRepo := repository.NewAppointmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	authService := service.NewAuthService(userRepo, semesterRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "bimbingan-api",
	})

	notificationService := service.NewNotificationService(
		notificationRepo, logr,
		cfg.Notifications.WorkerConcurrency, cfg.Notifications.WorkerRetries,
	)

	availabilityService := service.NewAvailabilityService(
		calendarRepo, appointmentRepo, semesterRepo,
		cacheService, metricsService, validate, logr, cfg.Appointments,
	)
	appointmentService := service.NewAppointmentService(
		appointmentRepo, userRepo, semesterRepo, notificationService,
		metricsService, validate, logr,
	)
	recurringService := service.NewRecurringService(
		appointmentRepo, userRepo, semesterRepo, notificationService,
		validate, logr,
	)
	calendarService := service.NewCalendarService(calendarRepo, semesterRepo, cacheService, validate, logr)

	authHandler := handler.NewAuthHandler(authService)
	availabilityHandler := handler.NewAvailabilityHandler(availabilityService)
	appointmentHandler := handler.NewAppointmentHandler(appointmentService, recurringService)
	calendarHandler := handler.NewCalendarHandler(calendarService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authService))
	{
		authed.POST("/auth/logout", authHandler.Logout)
		authed.POST("/auth/change-password", authHandler.ChangePassword)
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/availability/slots", availabilityHandler.GetSlots)

		authed.GET("/schedules/me", calendarHandler.MySchedule)
		authed.PUT("/schedules/me", calendarHandler.ReplaceMySchedule)

		authed.GET("/appointments", appointmentHandler.List)
		authed.GET("/appointments/:id", appointmentHandler.Get)
		authed.GET("/appointments/:id/logs", appointmentHandler.Logs)

		authed.GET("/notifications", notificationHandler.List)
		authed.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		authed.POST("/notifications/read-all", notificationHandler.MarkAllRead)

		authed.GET("/metrics/system", middleware.RequireRoles(models.RoleCoordinator), metricsHandler.System)

		students := authed.Group("")
		students.Use(middleware.RequireRoles(models.RoleStudent))
		{
			students.POST("/appointments",
				middleware.Audit(userRepo, "create", "appointment"),
				appointmentHandler.Submit)
			students.DELETE("/appointments/:id",
				middleware.Audit(userRepo, "cancel", "appointment"),
				appointmentHandler.Cancel)
		}

		lecturers := authed.Group("")
		lecturers.Use(middleware.RequireRoles(models.RoleLecturer))
		{
			lecturers.POST("/appointments/invite",
				middleware.Audit(userRepo, "invite", "appointment"),
				appointmentHandler.Invite)
			lecturers.POST("/appointments/recurring",
				middleware.Audit(userRepo, "generate", "appointment"),
				appointmentHandler.GenerateRecurring)
			lecturers.POST("/appointments/:id/respond",
				middleware.Audit(userRepo, "respond", "appointment"),
				appointmentHandler.Respond)
			lecturers.POST("/appointments/:id/complete",
				middleware.Audit(userRepo, "complete", "appointment"),
				appointmentHandler.Complete)
		}

		authed.PUT("/appointments/:id/reschedule",
			middleware.RequireRoles(models.RoleStudent, models.RoleLecturer),
			middleware.Audit(userRepo, "reschedule", "appointment"),
			appointmentHandler.Reschedule)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.Start(rootCtx)
	defer notificationService.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
