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
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/cmcs-platform/claims-api/api/swagger"
	"github.com/cmcs-platform/claims-api/internal/handler"
	"github.com/cmcs-platform/claims-api/internal/middleware"
	"github.com/cmcs-platform/claims-api/internal/models"
	"github.com/cmcs-platform/claims-api/internal/repository"
	"github.com/cmcs-platform/claims-api/internal/service"
	"github.com/cmcs-platform/claims-api/pkg/cache"
	"github.com/cmcs-platform/claims-api/pkg/config"
	"github.com/cmcs-platform/claims-api/pkg/database"
	"github.com/cmcs-platform/claims-api/pkg/jobs"
	"github.com/cmcs-platform/claims-api/pkg/logger"
	corsmiddleware "github.com/cmcs-platform/claims-api/pkg/middleware/cors"
	reqidmiddleware "github.com/cmcs-platform/claims-api/pkg/middleware/requestid"
	"github.com/cmcs-platform/claims-api/pkg/storage"
)

// @title CMCS Claims API
// @version 1.0.0
// @description Contract monthly claim submission and approval workflow
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The API degrades to uncached dashboards without Redis.
		logr.Warn("redis unavailable, dashboard caching disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	uploads, err := storage.NewLocalStorage(cfg.Claims.UploadsDir)
	if err != nil {
		logr.Fatal("failed to prepare uploads directory", zap.Error(err))
	}

	defaultRate, err := decimal.NewFromString(cfg.Claims.DefaultHourlyRate)
	if err != nil {
		logr.Fatal("invalid default hourly rate", zap.String("value", cfg.Claims.DefaultHourlyRate), zap.Error(err))
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	claimRepo := repository.NewClaimRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	signer := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Claims.DownloadLinkTTL)

	auditQueue := jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job) error {
		entry, ok := job.Payload.(*models.AuditLog)
		if !ok {
			return fmt.Errorf("unexpected audit payload %T", job.Payload)
		}
		return userRepo.CreateAuditLog(ctx, entry)
	}, jobs.QueueConfig{Workers: 2, Logger: logr})
	auditQueue.Start(context.Background())
	defer auditQueue.Stop()
	audit := &queuedAudit{queue: auditQueue}

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "cmcs-claims-api",
	})
	claimSvc := service.NewClaimService(claimRepo, audit, cacheRepo, metricsSvc, validate, logr, service.ClaimServiceConfig{
		DefaultHourlyRate:    defaultRate,
		MaxDescriptionLength: cfg.Claims.MaxDescriptionLength,
	})
	documentSvc := service.NewDocumentService(documentRepo, claimRepo, uploads, signer, audit, metricsSvc, logr, service.DocumentServiceConfig{
		MaxFileSizeBytes:  cfg.Claims.MaxFileSizeBytes,
		AllowedExtensions: cfg.Claims.AllowedExtensions,
	})
	dashboardSvc := service.NewDashboardService(claimRepo, cacheRepo, metricsSvc, logr, service.DashboardServiceConfig{
		CacheEnabled: cfg.Dashboard.CacheEnabled && redisClient != nil,
		CacheTTL:     cfg.Dashboard.CacheTTL,
	})
	reportSvc := service.NewReportService(claimRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	claimHandler := handler.NewClaimHandler(claimSvc, documentSvc, reportSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	reviewHandler := handler.NewReviewHandler(claimSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
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
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)

	claims := api.Group("/claims", middleware.JWT(authSvc))
	claims.POST("", middleware.RequireRoles(models.RoleLecturer), claimHandler.Submit)
	claims.GET("", middleware.RequireRoles(models.RoleCoordinator, models.RoleAcademicManager), claimHandler.List)
	claims.GET("/mine", claimHandler.ListMine)
	claims.GET("/mine/uploadable", claimHandler.ListUploadable)
	claims.GET("/mine/statement", claimHandler.Statement)
	claims.GET("/:id", claimHandler.Get)
	claims.GET("/:id/documents", documentHandler.List)
	claims.POST("/:id/documents", documentHandler.Upload)
	claims.GET("/:id/documents/:documentId", middleware.Audit(userRepo, models.AuditActionDocumentDownload, "document"), documentHandler.Download)
	claims.GET("/:id/documents/:documentId/link", documentHandler.SignedLink)

	// Signed links carry their own authorisation in the token.
	r.GET("/files", documentHandler.DownloadSigned)

	coordinator := api.Group("/coordinator", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleCoordinator))
	coordinator.GET("/claims", dashboardHandler.CoordinatorQueue)
	coordinator.POST("/claims/:id/approve", reviewHandler.CoordinatorApprove)
	coordinator.POST("/claims/:id/reject", reviewHandler.CoordinatorReject)

	manager := api.Group("/manager", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAcademicManager))
	manager.GET("/claims", dashboardHandler.ManagerQueue)
	manager.GET("/claims/export", dashboardHandler.ExportApproved)
	manager.POST("/claims/:id/approve", reviewHandler.ManagerApprove)
	manager.POST("/claims/:id/reject", reviewHandler.ManagerReject)

	dashboard := api.Group("/dashboard", middleware.JWT(authSvc))
	dashboard.GET("/summary", dashboardHandler.Summary)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Info("server stopped")
}

// queuedAudit hands audit writes to the background queue so requests do
// not wait on the insert.
type queuedAudit struct {
	queue *jobs.Queue
}

func (a *queuedAudit) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	return a.queue.Enqueue(jobs.Job{Type: "audit_log", Payload: entry})
}
