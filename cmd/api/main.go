package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fleetgate/internal/ai"
	"fleetgate/internal/email"
	"fleetgate/internal/events"
	"fleetgate/internal/geocode"
	apphttp "fleetgate/internal/http"
	"fleetgate/internal/inspection"
	"fleetgate/internal/missions"
	"fleetgate/internal/pdf"
	"fleetgate/internal/report"
	"fleetgate/internal/scheduler"
	"fleetgate/internal/storage"
	"fleetgate/migrations"
	"fleetgate/platform/config"
	"fleetgate/platform/db"
	"fleetgate/platform/logger"
	"fleetgate/platform/validator"
)

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.Service, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	reportScheduler, closeScheduler := initReportScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// Storage service for photos, signatures and reports (MinIO)
	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	ensureBucket(ctx, log, storageSvc, "inspection-photos", cfg.GetMinioBucketInspectionPhotos())
	ensureBucket(ctx, log, storageSvc, "signatures", cfg.GetMinioBucketSignatures())
	ensureBucket(ctx, log, storageSvc, "reports", cfg.GetMinioBucketReports())
	log.Info(
		"storage service initialized",
		"photosBucket", cfg.GetMinioBucketInspectionPhotos(),
		"signaturesBucket", cfg.GetMinioBucketSignatures(),
		"reportsBucket", cfg.GetMinioBucketReports(),
	)

	analyzer, err := ai.NewClient(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize analysis client", "error", err)
		panic("failed to initialize analysis client: " + err.Error())
	}

	geocoder := geocode.NewService(cfg, log)

	converter := pdf.NewGotenbergClient(cfg.GetGotenbergURL(), cfg.GetGotenbergUsername(), cfg.GetGotenbergPassword())
	if cfg.IsGotenbergEnabled() {
		log.Info("gotenberg PDF converter initialized", "url", cfg.GetGotenbergURL())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	missionsModule := missions.NewModule(pool, val, log)

	inspectionModule, err := inspection.NewModule(pool, eventBus, storageSvc, analyzer, geocoder, cfg, val, log)
	if err != nil {
		log.Error("failed to initialize inspection module", "error", err)
		panic("failed to initialize inspection module: " + err.Error())
	}

	reportSvc := report.NewService(
		inspectionModule.Repository(), missionsModule.Repository(),
		storageSvc, converter, sender, eventBus, cfg, log,
	)
	reportModule := report.NewModule(reportSvc, reportScheduler, eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			missionsModule,
			inspectionModule,
			reportModule,
		},
	}

	engine := apphttp.NewRouter(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// let in-flight uploads and analyses land before exiting
		done := make(chan struct{})
		go func() {
			inspectionModule.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			log.Warn("background work did not finish before shutdown deadline")
		}
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initReportScheduler returns the queue client for report generation, or nil
// when Redis is not configured. Without a queue, reports are generated
// in-process off the event bus.
func initReportScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.ReportScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; generating reports in-process")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize report scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
