package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/aging"
	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/interest"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/rating"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	ledgerRepo := ledger.NewRepository(pool)
	agingCache := aging.NewCache(redisClient, cfg.AgingTTL)
	ager := aging.NewCachedAger(aging.NewAger(ledgerRepo), agingCache).WithObserver(metrics)
	auditLogger := shared.NewAuditLogger(pool)

	interestRepo := interest.NewRepository(pool)
	interestService := interest.NewService(logger, interestRepo, interest.AutoConfirm, agingCache)
	interestJob := jobs.NewInterestRunJob(interestService, metrics, auditLogger, logger)

	ratingService := rating.NewService(logger, ledgerRepo, ager, rating.Config{})
	ratingJob := jobs.NewRatingRefreshJob(ratingService, metrics, auditLogger, logger)

	// Each configured company gets its own cron entries.
	var cron []jobs.CronRegistration
	for _, company := range strings.Split(cfg.BatchCompanies, ",") {
		company = strings.TrimSpace(company)
		if company == "" {
			continue
		}
		if cfg.InterestRunCron != "" {
			task, err := jobs.NewInterestRunTask(jobs.InterestRunPayload{Company: company})
			if err != nil {
				logger.Error("build interest task", slog.Any("error", err))
				os.Exit(1)
			}
			cron = append(cron, jobs.CronRegistration{
				Spec:    cfg.InterestRunCron,
				Task:    task,
				Options: []asynq.Option{asynq.MaxRetry(3)},
			})
		}
		if cfg.RatingRefreshCron != "" {
			task, err := jobs.NewRatingRefreshTask(jobs.RatingRefreshPayload{Company: company})
			if err != nil {
				logger.Error("build rating task", slog.Any("error", err))
				os.Exit(1)
			}
			cron = append(cron, jobs.CronRegistration{
				Spec:    cfg.RatingRefreshCron,
				Task:    task,
				Options: []asynq.Option{asynq.MaxRetry(3)},
			})
		}
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInterestRun, Handler: interestJob.Handle},
			{Type: jobs.TaskRatingRefresh, Handler: ratingJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
