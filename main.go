package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"school-soa/internal/audit"
	"school-soa/internal/auth"
	billingapp "school-soa/internal/billing/application"
	billing "school-soa/internal/billing/domain"
	billingrepo "school-soa/internal/billing/infrastructure/postgres"
	"school-soa/internal/billing/infrastructure/storage"
	billinginterfaces "school-soa/internal/billing/interfaces"
	"school-soa/internal/notify"
	"school-soa/internal/observability/metrics"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(logger)
	soaCfg, err := billingapp.LoadConfig()
	if err != nil {
		logger.Fatal("statement config error", zap.Error(err))
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db open error", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("db ping error", zap.Error(err))
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)
	enrollmentRepo := billingrepo.NewEnrollmentRepository(db)
	fileRepo := billingrepo.NewStatementFileRepository(db)

	store, err := storage.NewLocalStore(soaCfg.StorageRoot)
	if err != nil {
		logger.Fatal("statement storage error", zap.Error(err))
	}

	assembler := billing.NewAssembler(soaCfg.BillingPolicy())
	statementService, err := billingapp.NewStatementService(enrollmentRepo, assembler,
		billingapp.WithRenderer(billinginterfaces.PDFRenderer{CurrencyCode: soaCfg.Currency.Code}),
		billingapp.WithFileStore(store),
		billingapp.WithFileRecorder(fileRepo),
		billingapp.WithClock(localClock{loc: cfg.Location}),
		billingapp.WithLogger(logger.Named("statement")),
	)
	if err != nil {
		logger.Fatal("statement service error", zap.Error(err))
	}

	bulkOpts := []billingapp.BulkOption{
		billingapp.WithWorkers(soaCfg.Bulk.Workers),
		billingapp.WithRate(soaCfg.Bulk.RatePerSecond),
		billingapp.WithBulkLogger(logger.Named("bulk")),
	}
	if soaCfg.Bulk.Archive {
		bulkOpts = append(bulkOpts, billingapp.WithArchiver(store))
	}
	if soaCfg.WebhookURL != "" {
		bulkOpts = append(bulkOpts, billingapp.WithNotifier(notify.NewWebhookNotifier(soaCfg.WebhookURL)))
	}
	bulkRunner, err := billingapp.NewBulkRunner(enrollmentRepo, statementService, bulkOpts...)
	if err != nil {
		logger.Fatal("bulk runner error", zap.Error(err))
	}

	statementHandler, err := billinginterfaces.NewStatementHandler(statementService, bulkRunner, fileRepo, auditRepo, logger.Named("http"))
	if err != nil {
		logger.Fatal("statement handler error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := billingapp.NewScheduler(bulkRunner, soaCfg.Schedule, logger.Named("scheduler"))
	if scheduler.Enabled() {
		logger.Info("bulk schedule enabled",
			zap.String("daily_at", soaCfg.Schedule.DailyAt),
			zap.Strings("school_years", soaCfg.Schedule.SchoolYears),
		)
		go scheduler.Start(ctx)
	}

	verifier := auth.NewTokenVerifier([]byte(cfg.JWTSecret), auth.WithIssuer(cfg.JWTIssuer))
	policy := auth.NewPolicy([]string{"/healthz", "/metrics"}, auth.StatementRules()...)
	authMiddleware := auth.NewMiddleware(verifier, policy, logger.Named("auth"))

	mux := http.NewServeMux()
	mux.Handle("/api/v1/enrollments/", statementHandler)
	mux.Handle("/api/v1/statements/", statementHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger.Named("access")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server error", zap.Error(err))
	}
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// localClock reports "today" in the school's time zone.
type localClock struct {
	loc *time.Location
}

func (c localClock) Now() time.Time { return time.Now().In(c.loc) }
