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

	"github.com/schoolyard-app/schoolyard/internal/admissions"
	"github.com/schoolyard-app/schoolyard/internal/app"
	"github.com/schoolyard-app/schoolyard/internal/attendance"
	"github.com/schoolyard-app/schoolyard/internal/audit"
	audithttp "github.com/schoolyard-app/schoolyard/internal/audit/http"
	"github.com/schoolyard-app/schoolyard/internal/auth"
	"github.com/schoolyard-app/schoolyard/internal/authz"
	"github.com/schoolyard-app/schoolyard/internal/dashboard"
	"github.com/schoolyard-app/schoolyard/internal/exams"
	"github.com/schoolyard-app/schoolyard/internal/fees"
	"github.com/schoolyard-app/schoolyard/internal/observability"
	"github.com/schoolyard-app/schoolyard/internal/platform/cache"
	"github.com/schoolyard-app/schoolyard/internal/platform/db"
	"github.com/schoolyard-app/schoolyard/internal/portal"
	"github.com/schoolyard-app/schoolyard/internal/shared"
	"github.com/schoolyard-app/schoolyard/internal/staff"
	"github.com/schoolyard-app/schoolyard/internal/students"
	"github.com/schoolyard-app/schoolyard/internal/uploads"
	"github.com/schoolyard-app/schoolyard/internal/users"
	"github.com/schoolyard-app/schoolyard/internal/view"
	"github.com/schoolyard-app/schoolyard/jobs"
	"github.com/schoolyard-app/schoolyard/report"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "schoolyard_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()

	auditSink := shared.NewAuditSink(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, auditSink)

	verifier := authz.NewVerifier(authRepo, logger)
	gate := authz.NewGate(verifier, auditSink, logger)
	gate.SetDenialCounter(metrics.CountDenied)

	studentRepo := students.NewRepository(dbpool)
	studentService := students.NewService(studentRepo, auditSink)

	staffRepo := staff.NewRepository(dbpool)
	staffService := staff.NewService(staffRepo, auditSink)

	attendanceRepo := attendance.NewRepository(dbpool)
	attendanceService := attendance.NewService(attendanceRepo, auditSink)

	examRepo := exams.NewRepository(dbpool)
	examService := exams.NewService(examRepo, auditSink)

	feeRepo := fees.NewRepository(dbpool)
	feeService := fees.NewService(feeRepo, idempotencyStore, auditSink)

	admissionRepo := admissions.NewRepository(dbpool)
	admissionService := admissions.NewService(admissionRepo, approvalRecorder, auditSink)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	admissionService.SetNotifier(&jobs.OfferMailer{Client: jobsClient})

	var signer uploads.PresignPort
	if cfg.S3Bucket != "" {
		s3signer, err := uploads.NewSigner(ctx, uploads.SignerConfig{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			logger.Error("init upload signer", slog.Any("error", err))
			os.Exit(1)
		}
		signer = s3signer
	} else {
		logger.Warn("no S3 bucket configured, upload signing disabled")
	}
	uploadRepo := uploads.NewRepository(dbpool)
	uploadService := uploads.NewService(uploadRepo, signer, auditSink)

	userRepo := users.NewRepository(dbpool)
	userService := users.NewService(userRepo, auditSink)

	auditRepo := audit.NewRepository(dbpool)
	auditService := audit.NewService(auditRepo)

	reportClient := report.NewClient(cfg.GotenbergURL)
	receipts := report.NewReceiptRenderer(reportClient)

	feeSummary := func(ctx context.Context, studentID int64) (students.FeeSummary, error) {
		summary, err := feeService.Summary(ctx, studentID)
		if err != nil {
			return students.FeeSummary{}, err
		}
		return students.FeeSummary{
			ChargedCents: summary.ChargedCents,
			PaidCents:    summary.PaidCents,
			BalanceCents: summary.BalanceCents(),
		}, nil
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Metrics:        metrics,

		AuthHandler:       authHandler,
		DashboardHandler:  dashboard.NewHandler(logger, studentService, staffService, admissionService, feeService, templates, csrfManager, gate),
		StudentsHandler:   students.NewHandler(logger, studentService, templates, csrfManager, gate, feeSummary),
		StaffHandler:      staff.NewHandler(logger, staffService, templates, csrfManager, gate),
		AttendanceHandler: attendance.NewHandler(logger, attendanceService, studentService, templates, csrfManager, gate),
		ExamsHandler:      exams.NewHandler(logger, examService, studentService, templates, csrfManager, gate),
		FeesHandler:       fees.NewHandler(logger, feeService, studentService, receipts, templates, csrfManager, gate),
		AdmissionsHandler: admissions.NewHandler(logger, admissionService, templates, csrfManager, gate),
		UploadsHandler:    uploads.NewHandler(logger, uploadService, templates, csrfManager, gate),
		PortalHandler:     portal.NewHandler(logger, studentService, attendanceService, examService, feeService, templates, csrfManager, gate),
		UsersHandler:      users.NewHandler(logger, userService, templates, csrfManager, gate),
		AuditHandler:      audithttp.NewHandler(logger, auditService, audit.CSVExporter{}, templates, csrfManager, gate),
		JobsHandler:       jobs.NewHandler(inspector, logger, templates, csrfManager, gate),
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
