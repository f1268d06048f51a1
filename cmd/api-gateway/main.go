package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-exam-api/api/swagger"
	"github.com/noah-isme/sma-exam-api/internal/handler"
	"github.com/noah-isme/sma-exam-api/internal/middleware"
	"github.com/noah-isme/sma-exam-api/internal/repository"
	"github.com/noah-isme/sma-exam-api/internal/service"
	"github.com/noah-isme/sma-exam-api/pkg/cache"
	"github.com/noah-isme/sma-exam-api/pkg/config"
	"github.com/noah-isme/sma-exam-api/pkg/export"
	"github.com/noah-isme/sma-exam-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-exam-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-exam-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-exam-api/pkg/storage"
)

// @title SMA Exam API
// @version 0.1.0
// @description Exam session scheduling, eligibility, hall tickets and room allocation
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

	// Redis is optional: without it the run cache degrades to pass-through.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, run cache disabled", "error", err)
		redisClient = nil
	}

	store := repository.NewExamStore()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metrics := service.NewMetricsService()
	scheduler := service.NewSchedulerService(service.SlotTemplate{
		MorningStart:   cfg.Exam.MorningStart,
		MorningEnd:     cfg.Exam.MorningEnd,
		AfternoonStart: cfg.Exam.AfternoonStart,
		AfternoonEnd:   cfg.Exam.AfternoonEnd,
	}, logr)
	eligibility := service.NewEligibilityService(service.NewSeededRosterProvider(), logr)
	tickets := service.NewTicketService(logr)
	allocation := service.NewAllocationService(store, service.AllocationConfig{
		RoomPool:    cfg.Exam.RoomPool,
		Delay:       cfg.Exam.AllocationDelay,
		CapacityMin: cfg.Exam.CapacityMin,
		CapacityMax: cfg.Exam.CapacityMax,
	}, metrics, logr)
	examSvc := service.NewExamService(store, cacheRepo, scheduler, eligibility, tickets, allocation, metrics,
		service.ExamServiceConfig{RunCacheTTL: cfg.Exam.RunCacheTTL}, logr)
	defer examSvc.Close()
	exportSvc := service.NewExportService(store, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	archiveStorage, err := storage.NewLocalStorage(cfg.Archive.ExportDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init archive storage", "error", err)
	}
	if swept, err := archiveStorage.Sweep(cfg.Archive.SignedURLTTL); err != nil {
		logr.Sugar().Warnw("archive sweep failed", "error", err)
	} else if len(swept) > 0 {
		logr.Sugar().Infow("swept expired archives", "count", len(swept))
	}
	archiveSvc := service.NewArchiveService(
		repository.NewArchiveStore(),
		store,
		exportSvc,
		archiveStorage,
		storage.NewSignedURLSigner(cfg.Archive.SignSecret, cfg.Archive.SignedURLTTL),
		service.ArchiveServiceConfig{Workers: cfg.Archive.Workers},
		logr,
	)
	archiveSvc.Start(context.Background())
	defer archiveSvc.Stop()

	examHandler := handler.NewExamHandler(examSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	archiveHandler := handler.NewArchiveHandler(archiveSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/sessions", examHandler.CreateSession)
		api.GET("/sessions", examHandler.ListSessions)
		api.GET("/sessions/:id", examHandler.GetSession)
		api.DELETE("/sessions/:id", examHandler.DeleteSession)

		api.POST("/sessions/:id/subjects", examHandler.AddSubject)
		api.GET("/sessions/:id/subjects", examHandler.ListSubjects)
		api.POST("/sessions/:id/publish", examHandler.PublishAll)
		api.PATCH("/subjects/:id/slot", examHandler.EditSlot)

		api.POST("/sessions/:id/run", examHandler.RunSession)
		api.POST("/sessions/:id/allocate", examHandler.Allocate)
		api.GET("/sessions/:id/runs", examHandler.LastRun)

		api.GET("/sessions/:id/eligibility", examHandler.Eligibility)
		api.GET("/sessions/:id/tickets", examHandler.Tickets)
		api.GET("/sessions/:id/room-requests", examHandler.RoomRequests)
		api.GET("/sessions/:id/export", exportHandler.Export)

		api.POST("/sessions/:id/archives", archiveHandler.Create)
		api.GET("/sessions/:id/archives", archiveHandler.List)
		api.GET("/archives/download", archiveHandler.Download)
		api.GET("/archives/:archiveId", archiveHandler.Get)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
