package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadrouter_backend/internal/agents"
	"leadrouter_backend/internal/assignment"
	"leadrouter_backend/internal/events"
	apphttp "leadrouter_backend/internal/http"
	"leadrouter_backend/internal/http/router"
	"leadrouter_backend/internal/ingest"
	"leadrouter_backend/internal/leads"
	"leadrouter_backend/internal/scheduler"
	"leadrouter_backend/internal/triage"
	"leadrouter_backend/migrations"
	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/db"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

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
		return db.RunMigrations(ctx, cfg, migrations.FS)
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

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule := leads.NewModule(pool, eventBus, log, val)
	triageModule := triage.NewModule(pool, eventBus, log)
	agentsModule := agents.NewModule(pool, val)
	assignmentModule := assignment.NewModule(pool, agentsModule.Repo, leadsModule.Repo, eventBus, log, val, cfg.GetKPICacheTTL())
	ingestModule := ingest.NewModule(leadsModule.Service, cfg, log)

	// Ingestion drives triage and assignment through narrow ports; wired here
	// to keep the modules free of each other's packages.
	leadsModule.Service.SetTriageOpener(triageModule.Service)
	leadsModule.Service.SetAssigner(assignmentModule.Service)
	assignmentModule.Service.SetItemClaimer(triageModule.Service)

	// Background task client is optional; without redis, KPI warmup simply
	// waits for the next cache miss.
	if cfg.RedisURL != "" {
		taskClient, err := scheduler.NewClient(cfg)
		if err != nil {
			log.Error("failed to initialize task client", "error", err)
			panic("failed to initialize task client: " + err.Error())
		}
		defer func() { _ = taskClient.Close() }()
		assignmentModule.Service.SetWarmupEnqueuer(taskClient)
		log.Info("background task client initialized", "queue", cfg.AsynqQueueName)
	} else {
		log.Warn("REDIS_URL not configured; background tasks disabled")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	rc := router.New(cfg, cfg, log)
	app := apphttp.NewApp(cfg.HTTPAddr, rc,
		leadsModule,
		triageModule,
		agentsModule,
		assignmentModule,
		ingestModule,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		return app.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
