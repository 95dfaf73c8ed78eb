package main

import (
	"context"
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

	_ "github.com/gymflow/gymflow-api/api/swagger"
	"github.com/gymflow/gymflow-api/internal/handler"
	"github.com/gymflow/gymflow-api/internal/middleware"
	"github.com/gymflow/gymflow-api/internal/models"
	"github.com/gymflow/gymflow-api/internal/repository"
	"github.com/gymflow/gymflow-api/internal/service"
	"github.com/gymflow/gymflow-api/pkg/cache"
	"github.com/gymflow/gymflow-api/pkg/config"
	"github.com/gymflow/gymflow-api/pkg/database"
	"github.com/gymflow/gymflow-api/pkg/logger"
	corsmiddleware "github.com/gymflow/gymflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/gymflow/gymflow-api/pkg/middleware/requestid"
)

// @title GymFlow API
// @version 1.0.0
// @description Gym membership, class booking and waitlist management
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.ScheduleTTL, logr, true)
	}

	userRepo := repository.NewUserRepository(db)
	classTypeRepo := repository.NewClassTypeRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	gymLoc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		logr.Sugar().Fatalw("invalid booking timezone", "timezone", cfg.Booking.Timezone, "error", err)
	}

	notificationSvc := service.NewNotificationService(notificationRepo, metricsSvc, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, cfg.JWT.Secret, cfg.JWT.Expiration)
	subscriptionSvc := service.NewSubscriptionService(userRepo, cacheSvc, notificationSvc, cfg.Cache.StatusTTL, logr)
	quotaSvc := service.NewQuotaService(bookingRepo, subscriptionSvc, logr)
	projectorSvc := service.NewProjectorService(templateRepo, bookingRepo, cacheSvc, cfg.Booking.HorizonWeeks, cfg.Cache.ScheduleTTL, logr)
	bookingSvc := service.NewBookingService(
		bookingRepo, templateRepo, quotaSvc, subscriptionSvc, notificationSvc,
		projectorSvc, metricsSvc, validate, logr,
		service.BookingServiceConfig{
			CancellationWindow:      cfg.Booking.CancellationWindow,
			FreeTrainingClassTypeID: cfg.Booking.FreeTrainingClassTypeID,
			Location:                gymLoc,
		})
	templateSvc := service.NewTemplateService(templateRepo, classTypeRepo, projectorSvc, validate, logr)
	memberSvc := service.NewMemberService(userRepo, subscriptionSvc, notificationSvc, logr)
	exportSvc := service.NewExportService(bookingRepo, templateRepo, logr)
	rollforwardSvc := service.NewRollforwardService(
		templateRepo, bookingRepo, subscriptionSvc, notificationSvc, logr,
		service.RollforwardConfig{
			ReminderLookahead: cfg.Scheduler.ReminderLookahead,
			ReminderTolerance: cfg.Scheduler.ReminderTolerance,
			BookingRetention:  cfg.Scheduler.BookingRetention,
		})

	if cfg.Scheduler.Enabled {
		go runScheduler(ctx, rollforwardSvc, cfg.Scheduler.Interval)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:          handler.NewAuthHandler(authSvc),
		classes:       handler.NewClassHandler(templateSvc, projectorSvc),
		bookings:      handler.NewBookingHandler(bookingSvc, quotaSvc),
		freeTrainings: handler.NewFreeTrainingHandler(bookingSvc),
		templates:     handler.NewTemplateHandler(templateSvc),
		members:       handler.NewMemberHandler(memberSvc),
		exports:       handler.NewExportHandler(exportSvc),
		scheduler:     handler.NewSchedulerHandler(rollforwardSvc),
		notifications: handler.NewNotificationHandler(notificationSvc),
		authSvc:       authSvc,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

type routeDeps struct {
	auth          *handler.AuthHandler
	classes       *handler.ClassHandler
	bookings      *handler.BookingHandler
	freeTrainings *handler.FreeTrainingHandler
	templates     *handler.TemplateHandler
	members       *handler.MemberHandler
	exports       *handler.ExportHandler
	scheduler     *handler.SchedulerHandler
	notifications *handler.NotificationHandler
	authSvc       *service.AuthService
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	api.POST("/auth/login", deps.auth.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(deps.authSvc))

	authed.GET("/auth/me", deps.auth.Me)

	authed.GET("/classes", deps.classes.ListClassTypes)
	authed.GET("/classes/:id/instances", deps.classes.Instances)

	authed.POST("/bookings", deps.bookings.Reserve)
	authed.POST("/bookings/cancel", deps.bookings.Cancel)
	authed.GET("/bookings/me", deps.bookings.ListMine)
	authed.GET("/bookings/status", deps.bookings.Status)
	authed.GET("/quota", deps.bookings.Quota)

	authed.POST("/free-trainings", deps.freeTrainings.Reserve)
	authed.POST("/free-trainings/cancel", deps.freeTrainings.Cancel)

	authed.GET("/notifications", deps.notifications.ListMine)

	admin := authed.Group("")
	admin.Use(middleware.RequireRoles(models.RoleAdmin))

	admin.POST("/classes", deps.classes.CreateClassType)
	admin.PUT("/classes/:id", deps.classes.UpdateClassType)
	admin.DELETE("/classes/:id", deps.classes.DeleteClassType)

	admin.GET("/members", deps.members.List)
	admin.GET("/members/:id", deps.members.Get)
	admin.PUT("/members/:id/blocked", deps.members.SetBlocked)

	admin.GET("/templates", deps.templates.List)
	admin.POST("/templates", deps.templates.Create)
	admin.GET("/templates/:id", deps.templates.Get)
	admin.PUT("/templates/:id", deps.templates.Update)
	admin.DELETE("/templates/:id", deps.templates.Delete)
	admin.GET("/templates/:id/roster", deps.exports.Roster)

	admin.POST("/admin/scheduler/run", deps.scheduler.Run)
	admin.POST("/admin/scheduler/roll-forward", deps.scheduler.RollForward)
	admin.POST("/admin/scheduler/reminders", deps.scheduler.SendReminders)
}

// runScheduler drives the periodic maintenance pass until ctx is cancelled.
// One pass runs immediately so a freshly deployed instance catches up.
func runScheduler(ctx context.Context, svc *service.RollforwardService, interval time.Duration) {
	svc.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.Run(ctx)
		}
	}
}
