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
	"go.uber.org/zap"

	"github.com/noah-isme/school-results-api/internal/handler"
	"github.com/noah-isme/school-results-api/internal/repository"
	"github.com/noah-isme/school-results-api/internal/service"
	"github.com/noah-isme/school-results-api/pkg/cache"
	"github.com/noah-isme/school-results-api/pkg/config"
	"github.com/noah-isme/school-results-api/pkg/database"
	"github.com/noah-isme/school-results-api/pkg/jobs"
	"github.com/noah-isme/school-results-api/pkg/logger"
	"github.com/noah-isme/school-results-api/pkg/storage"
)

// @title School Results API
// @version 1.0.0
// @description Marks, ranked results, attendance and homework for classes 6 to 10.
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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("schema migration failed", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, "school-results", logr)
		cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Results.CacheTTL, logr, cfg.Results.CacheEnabled)
	}

	users := repository.NewUserRepository(db)
	students := repository.NewStudentRepository(db)
	attendance := repository.NewAttendanceRepository(db)
	homework := repository.NewHomeworkRepository(db)
	school := repository.NewSchoolRepository(db)
	reports := repository.NewReportRepository(db)

	permissions := service.NewPermissionService(users, logr)
	authSvc := service.NewAuthService(users, students, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(users, validate, logr)
	studentSvc := service.NewStudentService(students, permissions, cacheSvc, metrics, validate, logr)
	resultSvc := service.NewResultService(students, cacheSvc, metrics, cfg.Results.CacheTTL, logr)
	importSvc := service.NewImportService(students, permissions, nil, cacheSvc, metrics, cfg.Imports.MaxFileSizeBytes, logr)
	attendanceSvc := service.NewAttendanceService(attendance, students, permissions, cacheSvc, validate, logr)
	homeworkSvc := service.NewHomeworkService(homework, students, permissions, cacheSvc, validate, logr)
	schoolSvc := service.NewSchoolService(school, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Students:   students,
		Attendance: attendance,
		Homework:   homework,
		Cache:      cacheSvc,
		Metrics:    metrics,
		Logger:     logr,
		Config:     service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})

	files, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("report storage unavailable", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exportSvc := service.NewExportService(students, attendance, school, files, signer, metrics, service.ExportConfig{APIPrefix: cfg.APIPrefix}, logr, nil, nil)

	var reportSvc *service.ReportService
	var queue *jobs.Queue
	if cfg.Reports.Enabled {
		worker := service.NewReportWorker(reports, exportSvc, metrics, cfg.Reports.WorkerRetries, logr)
		queue = jobs.NewQueue("reports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Reports.WorkerConcurrency,
			MaxRetries: cfg.Reports.WorkerRetries,
			RetryDelay: cfg.Reports.RetryDelay,
			JobTimeout: cfg.Reports.JobTimeout,
			OnGiveUp: func(job jobs.Job, err error) {
				logr.Error("report job gave up", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
			},
			Logger: logr,
		})
		metrics.TrackQueue("reports", queue.Pending)
		queue.Start(ctx)
		reportSvc = service.NewReportService(reports, permissions, queue, exportSvc, metrics, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Reports.SignedURLTTL,
			CleanupInterval: cfg.Reports.CleanupInterval,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)
	}

	handlers := routeHandlers{
		auth:       handler.NewAuthHandler(authSvc),
		users:      handler.NewUserHandler(userSvc),
		students:   handler.NewStudentHandler(studentSvc),
		results:    handler.NewResultHandler(resultSvc),
		transfer:   handler.NewTransferHandler(importSvc, exportSvc),
		attendance: handler.NewAttendanceHandler(attendanceSvc),
		homework:   handler.NewHomeworkHandler(homeworkSvc),
		school:     handler.NewSchoolHandler(schoolSvc),
		metrics:    handler.NewMetricsHandler(metrics, db),
	}
	if cfg.Dashboard.Enabled {
		handlers.dashboard = handler.NewDashboardHandler(dashboardSvc)
	}
	if reportSvc != nil {
		handlers.reports = handler.NewReportHandler(reportSvc)
	}

	router := newRouter(cfg, logr, metrics, authSvc, handlers)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if queue != nil {
		queue.Stop()
	}
}
