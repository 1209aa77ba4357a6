package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/journals"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/mappings"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/accounting/periods"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/app"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/audit"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/ledger"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/observability"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/platform/cache"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/platform/db"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/posting"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/internal/shared"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/jobs"
	"github.com/zydgit-tuys/Erp-Manufactured-sub004/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		logger.Error("apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, mapping cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	retryOpts := db.RetryOptions{Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, auditLogger, logger)
	ledgerService.SetRetryOptions(retryOpts)
	ledgerHandler := ledger.NewHandler(logger, ledgerService)

	periodRepo := periods.NewRepository(pool)
	periodService := periods.NewService(periodRepo, auditLogger)
	periodHandler := periods.NewHandler(logger, periodService)

	mappingRepo := mappings.NewRepository(pool)
	mappingResolver := mappings.NewResolver(mappingRepo, redisClient, cfg.MappingCacheTTL, logger)
	mappingHandler := mappings.NewHandler(logger, mappingRepo, mappingResolver, auditLogger)

	journalRepo := journals.NewRepository(pool)
	journalService := journals.NewService(journalRepo, auditLogger)
	journalHandler := journals.NewHandler(logger, journalService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	postingRepo := posting.NewRepository(pool)
	postingService := posting.NewService(postingRepo, journalService, mappingResolver, auditLogger, jobClient, metrics, logger)
	postingService.SetRetryOptions(retryOpts)
	postingHandler := posting.NewHandler(logger, postingService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	auditHandler := audit.NewHandler(logger, audit.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		LedgerHandler:   ledgerHandler,
		PostingHandler:  postingHandler,
		PeriodsHandler:  periodHandler,
		JournalsHandler: journalHandler,
		MappingsHandler: mappingHandler,
		AuditHandler:    auditHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
