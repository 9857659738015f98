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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/study-replan-api/api/swagger"
	"github.com/noah-isme/study-replan-api/internal/handler"
	internalmiddleware "github.com/noah-isme/study-replan-api/internal/middleware"
	"github.com/noah-isme/study-replan-api/internal/replan"
	"github.com/noah-isme/study-replan-api/internal/repository"
	"github.com/noah-isme/study-replan-api/internal/service"
	"github.com/noah-isme/study-replan-api/pkg/cache"
	"github.com/noah-isme/study-replan-api/pkg/config"
	"github.com/noah-isme/study-replan-api/pkg/database"
	"github.com/noah-isme/study-replan-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/study-replan-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/study-replan-api/pkg/middleware/requestid"
)

// @title Study Replan API
// @version 1.0.0
// @description Reschedules overdue study sessions of a plan onto future dates before the exam.
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

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, running with local plan locks and no cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	planRepo := repository.NewPlanRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	runRepo := repository.NewReplanRunRepository(db)

	var (
		cacheSvc *service.CacheService
		locker   service.PlanLocker = service.NewLocalPlanLocker()
	)
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient), metricsSvc, cfg.Replan.OverdueCacheTTL, logr, true)
		locker = service.NewRedisPlanLocker(repository.NewPlanLockRepository(redisClient), cfg.Replan.LockTTL, logr)
	}

	historySvc := service.NewRunHistoryService(runRepo, metricsSvc, logr, service.RunHistoryConfig{
		Workers:    cfg.Replan.HistoryWorkers,
		MaxRetries: cfg.Replan.HistoryRetries,
		RetryDelay: cfg.Replan.HistoryRetryDelay,
	})
	historySvc.Start(ctx)

	replanSvc := service.NewReplanService(
		planRepo,
		sessionRepo,
		runRepo,
		db,
		locker,
		historySvc,
		cacheSvc,
		metricsSvc,
		validate,
		logr,
		service.ReplanConfig{
			Location: cfg.Replan.Location,
			Policy: replan.Policy{
				MaxPerSubjectPerDay:   cfg.Replan.MaxPerSubjectPerDay,
				PreferredWindowDays:   cfg.Replan.PreferredWindowDays,
				DefaultSessionMinutes: cfg.Replan.DefaultSessionMinutes,
			},
			RunTimeout:      cfg.Replan.RunTimeout,
			OverdueCacheTTL: cfg.Replan.OverdueCacheTTL,
		},
	)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	checks := map[string]handler.Pinger{"database": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	replanHandler := handler.NewReplanHandler(replanSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	plans := api.Group("/plans/:planId", internalmiddleware.JWT(tokenSvc))
	plans.GET("/overdue-check", replanHandler.CheckOverdue)
	plans.GET("/replan-preview", replanHandler.Preview)
	plans.POST("/replan", replanHandler.Execute)
	plans.GET("/replan-runs", replanHandler.ListRuns)
	plans.GET("/replan-runs/:runId/export", replanHandler.ExportRun)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Replan.RunTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	historySvc.Stop()
}
