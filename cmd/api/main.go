package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/rackbook-api/api/swagger"
	"github.com/noah-isme/rackbook-api/internal/handler"
	"github.com/noah-isme/rackbook-api/internal/repository"
	"github.com/noah-isme/rackbook-api/internal/router"
	"github.com/noah-isme/rackbook-api/internal/service"
	"github.com/noah-isme/rackbook-api/pkg/broker"
	"github.com/noah-isme/rackbook-api/pkg/cache"
	"github.com/noah-isme/rackbook-api/pkg/config"
	"github.com/noah-isme/rackbook-api/pkg/database"
	"github.com/noah-isme/rackbook-api/pkg/logger"
)

// @title Rackbook API
// @version 1.0.0
// @description Rack booking reconciliation service
// @BasePath /api/v1
// @schemes http https

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient redis.UniversalClient
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, schedule cache and redis events disabled", zap.Error(err))
	} else {
		redisClient = client
		defer client.Close()
	}

	metrics := service.NewMetricsService()
	if !cfg.Metrics.Enabled {
		metrics = nil
	}
	validate := validator.New()
	loc := cfg.Booking.Location

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Schedules.CacheTTL, logr, cfg.Schedules.CacheEnabled && redisClient != nil)

	bookingRepo := repository.NewBookingRepository(db)
	instanceRepo := repository.NewInstanceRepository(db)
	scheduleRepo := repository.NewCapacityScheduleRepository(db)

	schedules := service.NewCapacityScheduleService(scheduleRepo, cacheSvc, validate, logr, cfg.Schedules.CacheTTL)
	cutoff := service.NewCutoffCalculator(loc)
	conflicts := service.NewConflictService(instanceRepo, loc, logr)
	capacity := service.NewCapacityService(schedules, instanceRepo, loc, logr)

	plannerOpts := []service.BookingPlannerOption{service.WithPlannerMetrics(metrics)}
	notifier, closeNotifier := buildNotifier(ctx, cfg, redisClient, metrics, logr)
	if notifier != nil {
		plannerOpts = append(plannerOpts, service.WithPlannerNotifier(notifier))
		defer closeNotifier()
	}

	planner := service.NewBookingPlannerService(
		bookingRepo,
		instanceRepo,
		instanceRepo,
		conflicts,
		capacity,
		cutoff,
		validate,
		logr,
		service.PlannerConfig{MaxExtendWeeks: cfg.Booking.MaxExtendWeeks, DefaultWeekOffset: cfg.Booking.DefaultWeekOffset},
		plannerOpts...,
	)
	exporter := service.NewExportService(instanceRepo, cutoff, validate, logr, nil, nil)
	auth := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	checks := map[string]handler.ReadinessCheck{"database": db.PingContext}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	engine := router.New(router.Options{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Logger:         logr,
		Metrics:        metrics,
		Auth:           auth,
		Bookings:       handler.NewBookingHandler(planner),
		Cutoff:         handler.NewCutoffHandler(cutoff),
		Schedules:      handler.NewCapacityScheduleHandler(schedules),
		Exports:        handler.NewExportHandler(exporter),
		Health:         handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildNotifier starts the booking event queue on the configured backend. It
// returns nil when events are disabled or the backend is unavailable.
func buildNotifier(ctx context.Context, cfg *config.Config, redisClient redis.UniversalClient, metrics *service.MetricsService, logr *zap.Logger) (*service.NotificationService, func()) {
	if !cfg.Events.Enabled {
		return nil, nil
	}

	var publisher service.BookingEventPublisher
	closers := []func() error{}
	switch cfg.Events.Backend {
	case config.EventBackendAMQP:
		amqp := broker.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.AMQPQueue, broker.DialAMQP, logr)
		publisher = service.NewBrokerEventPublisher(amqp)
		closers = append(closers, amqp.Close)
	default:
		if redisClient == nil {
			logr.Warn("booking events disabled: redis backend unavailable")
			return nil, nil
		}
		publisher = repository.NewEventRepository(redisClient, cfg.Events.RedisList)
	}

	notifier := service.NewNotificationService(publisher, metrics, logr, service.NotificationConfig{
		Backend:    cfg.Events.Backend,
		Workers:    cfg.Events.Workers,
		Retries:    cfg.Events.Retries,
		RetryDelay: time.Second,
	})
	notifier.Start(context.WithoutCancel(ctx))
	return notifier, func() {
		notifier.Stop()
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				logr.Warn("failed to close event backend", zap.Error(err))
			}
		}
	}
}
