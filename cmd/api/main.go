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
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/openadmit/admissions-api/api/swagger"
	"github.com/openadmit/admissions-api/internal/handler"
	"github.com/openadmit/admissions-api/internal/middleware"
	"github.com/openadmit/admissions-api/internal/repository"
	"github.com/openadmit/admissions-api/internal/service"
	"github.com/openadmit/admissions-api/pkg/cache"
	"github.com/openadmit/admissions-api/pkg/config"
	"github.com/openadmit/admissions-api/pkg/database"
	"github.com/openadmit/admissions-api/pkg/logger"
	corsmiddleware "github.com/openadmit/admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/openadmit/admissions-api/pkg/middleware/requestid"
)

// @title Admissions Intake API
// @version 0.1.0
// @description Waitlist ranking and position management for admissions intake
// @BasePath /
// @schemes http

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
	defer db.Close() //nolint:errcheck

	// Redis only backs the capacity snapshot cache; the API runs without it.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, capacity cache disabled", "error", err)
		redisClient = nil
	}

	waitlistRepo := repository.NewWaitlistRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	capacitySvc := service.NewCapacityService(classRepo, cacheRepo, cfg.Waitlist.CapacityCacheTTL, logr)
	siblingSvc := service.NewSiblingService(enrollmentRepo, logr)
	waitlistSvc := service.NewWaitlistService(
		waitlistRepo, leadRepo, capacitySvc, siblingSvc,
		metrics, validate, logr,
		cfg.Waitlist.DefaultBaseScore, cfg.Waitlist.StoreTimeout,
	)
	queueSvc := service.NewQueueService(waitlistRepo, capacitySvc, siblingSvc, enrollmentRepo, metrics, logr)

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportSvc = service.NewExportService(queueSvc, logr)
	}

	waitlistHandler := handler.NewWaitlistHandler(waitlistSvc, queueSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))

	waitlist := api.Group("/waitlist")
	waitlist.GET("/parent-view", waitlistHandler.GetParentView)

	staff := waitlist.Group("")
	staff.Use(middleware.RequireStaff())
	staff.GET("", waitlistHandler.GetQueue)
	staff.POST("", waitlistHandler.Enqueue)
	staff.GET("/export", waitlistHandler.Export)
	staff.PUT("/:id/position", waitlistHandler.Reorder)
	staff.PUT("/:id/status", waitlistHandler.UpdateStatus)
	staff.PATCH("/:id", waitlistHandler.Patch)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Waitlist.SweepEnabled {
		scheduler := cron.New()
		_, err := scheduler.AddFunc("@every "+cfg.Waitlist.SweepInterval.String(), func() {
			ctx, cancel := context.WithTimeout(rootCtx, cfg.Waitlist.SweepInterval)
			defer cancel()
			if err := waitlistSvc.RenormalizeAll(ctx); err != nil {
				logr.Sugar().Errorw("renormalization sweep failed", "error", err)
			}
		})
		if err != nil {
			logr.Sugar().Fatalw("failed to schedule renormalization sweep", "error", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logr.Sugar().Infow("renormalization sweep scheduled", "interval", cfg.Waitlist.SweepInterval)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server shutdown failed", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
