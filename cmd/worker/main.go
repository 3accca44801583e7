package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/schoolyard-app/schoolyard/internal/app"
	"github.com/schoolyard-app/schoolyard/internal/attendance"
	"github.com/schoolyard-app/schoolyard/internal/audit"
	"github.com/schoolyard-app/schoolyard/internal/fees"
	jobmetrics "github.com/schoolyard-app/schoolyard/internal/jobs"
	"github.com/schoolyard-app/schoolyard/internal/platform/db"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	feeService := fees.NewService(fees.NewRepository(pool), shared.NewIdempotencyStore(pool), shared.NewAuditSink(pool))
	reminderJob := &jobs.FeeReminderJob{Fees: feeService, Logger: logger, Metrics: metrics}

	digestJob := &jobs.AttendanceDigestJob{
		Attendance: attendance.NewRepository(pool),
		Logger:     logger,
		Metrics:    metrics,
	}

	retentionJob := &jobs.AuditRetentionJob{
		Audit:       audit.NewRepository(pool),
		Idempotency: shared.NewIdempotencyStore(pool),
		Retention:   cfg.AuditRetention,
		Logger:      logger,
		Metrics:     metrics,
	}

	reminderTask, err := jobs.NewFeeRemindersTask(time.Now())
	if err != nil {
		logger.Error("build reminder task", slog.Any("error", err))
		os.Exit(1)
	}
	digestTask, err := jobs.NewAttendanceDigestTask(time.Now())
	if err != nil {
		logger.Error("build digest task", slog.Any("error", err))
		os.Exit(1)
	}
	retentionTask, err := jobs.NewAuditRetentionTask(time.Now())
	if err != nil {
		logger.Error("build retention task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskFeeReminders, Handler: reminderJob.Handle},
			{Type: jobs.TaskAttendanceDigest, Handler: digestJob.Handle},
			{Type: jobs.TaskAuditRetention, Handler: retentionJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 7 * * 1-5", Task: reminderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 6 * * 1", Task: digestTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: retentionTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
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
