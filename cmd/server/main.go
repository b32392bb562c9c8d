package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/schooldesk/examaccess/internal/app"
	"github.com/schooldesk/examaccess/internal/cache"
	"github.com/schooldesk/examaccess/internal/config"
	"github.com/schooldesk/examaccess/internal/controller/httpapi"
	"github.com/schooldesk/examaccess/internal/repository"
	"github.com/schooldesk/examaccess/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath, logger)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	assignmentRepo := repository.NewAssignmentRepository(pool)
	requestRepo := repository.NewRequestRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	resolver := service.NewResolver(assignmentRepo, logger)
	organizer := service.NewOrganizer(resolver, logger)
	workflow := service.NewWorkflow(requestRepo, logger)
	assignments := service.NewAssignments(assignmentRepo, logger)
	ledger := service.NewLedger(auditRepo)

	var decisions *cache.DecisionCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		decisions = cache.NewDecisionCache(client, cfg.DecisionTTL, logger)
		logger.Info("Decision cache enabled", zap.String("redis_addr", cfg.RedisAddr))
	}

	api := httpapi.NewServer(workflow, assignments, resolver, organizer, ledger, decisions, []byte(cfg.JWTSecret), logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting exam access server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
