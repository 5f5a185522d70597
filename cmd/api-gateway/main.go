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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/unidocs-api/api/swagger"
	"github.com/noah-isme/unidocs-api/internal/handler"
	internalmiddleware "github.com/noah-isme/unidocs-api/internal/middleware"
	"github.com/noah-isme/unidocs-api/internal/repository"
	"github.com/noah-isme/unidocs-api/internal/service"
	"github.com/noah-isme/unidocs-api/pkg/cache"
	"github.com/noah-isme/unidocs-api/pkg/config"
	"github.com/noah-isme/unidocs-api/pkg/database"
	"github.com/noah-isme/unidocs-api/pkg/jobs"
	"github.com/noah-isme/unidocs-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/unidocs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/unidocs-api/pkg/middleware/requestid"
	"github.com/noah-isme/unidocs-api/pkg/storage"
)

// @title University Document Portal API
// @version 1.0
// @description Document sharing and approval for university bodies.
// @BasePath /api/v1
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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	userRepo := repository.NewUserRepository(db)
	bodyRepo := repository.NewUniversityBodyRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	validate := validator.New()
	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	queue := jobs.NewQueue("blob-gc", jobs.QueueConfig{
		Workers:    cfg.Maintenance.GCWorkers,
		MaxRetries: 5,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})

	authSvc := service.NewAuthService(userRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, bodyRepo, auditRepo, validate, logr)
	bodySvc := service.NewUniversityBodyService(bodyRepo, userRepo, cacheSvc, auditRepo, validate, logr)
	docSvc := service.NewDocumentService(service.DocumentServiceDeps{
		Repo:      docRepo,
		Bodies:    bodyRepo,
		Blobs:     blobs,
		Signer:    storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL),
		Queue:     queue,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Audit:     auditRepo,
		Validator: validate,
		Logger:    logr,
	}, service.DocumentStorageConfig{
		Backend:      cfg.Storage.Backend,
		MaxFileSize:  cfg.Storage.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Storage.AllowedMIMEs,
	})
	approvalSvc := service.NewApprovalService(docRepo, cacheSvc, metrics, auditRepo, logr)
	maintenanceSvc := service.NewMaintenanceService(userRepo, docRepo, blobs, metrics, logr)

	queue.Handle(service.JobBlobDelete, docSvc.HandleBlobDeletion)
	queue.Start(ctx)
	defer queue.Stop()

	if cfg.Maintenance.Enabled {
		scheduler := jobs.NewScheduler(cfg.Maintenance.Schedule, logr)
		for _, task := range maintenanceSvc.Tasks() {
			scheduler.Add(task)
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start maintenance scheduler: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			scheduler.Stop(stopCtx)
		}()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.MaxMultipartMemory = cfg.Storage.MaxFileSizeBytes

	handler.RegisterRoutes(r, cfg.APIPrefix, authSvc, handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Documents: handler.NewDocumentHandler(docSvc, approvalSvc, cfg.APIPrefix),
		Bodies:    handler.NewUniversityBodyHandler(bodySvc),
		Users:     handler.NewUserHandler(userSvc),
		Metrics:   handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)...),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("storage", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newBlobStore returns nil for the database backend, where bytes live in Postgres.
func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendLocal:
		store, err := storage.NewLocalStorage(cfg.Storage.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, nil
	case config.StorageBackendMinio:
		store, err := storage.NewMinioStorage(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("init minio storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure minio bucket: %w", err)
		}
		return store, nil
	}
	return nil, nil
}

func readinessChecks(db *sqlx.DB, client *redis.Client) []handler.ReadinessCheck {
	checks := []handler.ReadinessCheck{{Name: "postgres", Ping: db.PingContext}}
	if client != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	return checks
}
