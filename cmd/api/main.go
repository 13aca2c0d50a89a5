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
	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	_ "github.com/noah-isme/classroom-attendance-api/api/swagger"
	"github.com/noah-isme/classroom-attendance-api/internal/handler"
	"github.com/noah-isme/classroom-attendance-api/internal/repository"
	"github.com/noah-isme/classroom-attendance-api/internal/router"
	"github.com/noah-isme/classroom-attendance-api/internal/service"
	"github.com/noah-isme/classroom-attendance-api/pkg/cache"
	"github.com/noah-isme/classroom-attendance-api/pkg/config"
	"github.com/noah-isme/classroom-attendance-api/pkg/database"
	"github.com/noah-isme/classroom-attendance-api/pkg/export"
	"github.com/noah-isme/classroom-attendance-api/pkg/jobs"
	"github.com/noah-isme/classroom-attendance-api/pkg/logger"
)

// @title Classroom Attendance API
// @version 1.0.0
// @description Accounts, classes, rosters and attendance sessions
// @BasePath /
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

	mongoClient, db, err := database.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		logr.Fatal("failed to connect mongo", zap.Error(err))
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db, metrics)
	classRepo := repository.NewClassRepository(db, metrics)
	attendanceRepo := repository.NewAttendanceRepository(db, metrics)
	if err := ensureIndexes(ctx, userRepo, classRepo, attendanceRepo); err != nil {
		logr.Fatal("failed to ensure indexes", zap.Error(err))
	}

	auditSvc, auditDB := newAuditService(ctx, cfg, logr)
	if auditDB != nil {
		defer auditDB.Close() //nolint:errcheck

		auditQueue := jobs.NewQueue("audit", auditSvc.HandleTask, jobs.Config{
			Workers:    cfg.Audit.Workers,
			MaxRetries: 3,
			Logger:     logr,
		})
		auditQueue.Start(ctx)
		defer auditQueue.Stop()
		auditSvc.UseQueue(auditQueue)
	}

	validate := validator.New()
	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(redisClient), metrics, cfg.Cache.StudentsTTL, logr, cfg.Cache.Enabled)
	access := service.NewClassAccess(classRepo)

	engine := router.New(router.Deps{
		Logger:         logr,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		EnableDocs:     cfg.Env != config.EnvProduction,
		Tokens:         tokens,
		Auth:           service.NewAuthService(userRepo, tokens, cacheSvc, auditSvc, validate, logr),
		Classes:        service.NewClassService(classRepo, userRepo, access, cacheSvc, auditSvc, validate, logr, cfg.Cache.StudentsTTL),
		Attendance: service.NewAttendanceService(
			repository.NewSessionRepository(redisClient),
			attendanceRepo,
			userRepo,
			access,
			export.NewRegistry(),
			metrics,
			auditSvc,
			validate,
			logr,
			cfg.Attendance.SessionTTL,
		),
		Metrics: metrics,
		Dependencies: map[string]handler.Pinger{
			"mongo": handler.PingFunc(func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) }),
			"redis": handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

func ensureIndexes(ctx context.Context, repos ...indexer) error {
	for _, r := range repos {
		if err := r.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

// newAuditService connects the Postgres audit trail when enabled. Without it audit
// entries are written to the log.
func newAuditService(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*service.AuditService, *sqlx.DB) {
	if !cfg.Audit.Enabled {
		return service.NewAuditService(nil, logr), nil
	}

	auditDB, err := database.NewPostgres(cfg.Audit.Database)
	if err != nil {
		logr.Warn("audit database unavailable, falling back to log", zap.Error(err))
		return service.NewAuditService(nil, logr), nil
	}
	repo := repository.NewAuditRepository(auditDB)
	if err := repo.EnsureSchema(ctx); err != nil {
		logr.Warn("audit schema setup failed, falling back to log", zap.Error(err))
		_ = auditDB.Close()
		return service.NewAuditService(nil, logr), nil
	}
	return service.NewAuditService(repo, logr), auditDB
}

