package scheduler

import (
	"context"
	"time"

	"leadrouter_backend/platform/config"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TriageSweeper is the triage service's sweep entry point.
type TriageSweeper interface {
	SweepStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// KPIWarmer precomputes a tenant's KPI scores.
type KPIWarmer interface {
	WarmupKPI(ctx context.Context, tenantID uuid.UUID) error
}

// Worker runs the asynq server plus a periodic scheduler that keeps the
// stale sweep recurring without any external cron.
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweeper TriageSweeper, warmer KPIWarmer, log *logger.Logger) (*Worker, error) {
	connOpt, err := redisConnOpt(cfg)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	server := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues:      map[string]int{queue: 1},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTriageStaleSweep, func(ctx context.Context, _ *asynq.Task) error {
		count, err := sweeper.SweepStale(ctx, cfg.GetStaleTriageAfter())
		if err != nil {
			return err
		}
		log.Info("triage stale sweep finished", "stale_items", count)
		return nil
	})
	mux.HandleFunc(TaskKPIWarmup, func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseKPIWarmupPayload(task)
		if err != nil {
			return err
		}
		if err := warmer.WarmupKPI(ctx, payload.TenantID); err != nil {
			return err
		}
		log.Info("kpi cache warmed", "tenant_id", payload.TenantID.String())
		return nil
	})

	sched := asynq.NewScheduler(connOpt, &asynq.SchedulerOpts{})
	if _, err := sched.Register("@every 30m", NewStaleSweepTask(), asynq.Queue(queue)); err != nil {
		return nil, err
	}

	return &Worker{server: server, scheduler: sched, mux: mux, log: log}, nil
}

// Run starts the periodic scheduler and blocks serving tasks.
func (w *Worker) Run() error {
	if err := w.scheduler.Start(); err != nil {
		return err
	}
	return w.server.Run(w.mux)
}

// Shutdown stops accepting tasks and waits for in-flight handlers.
func (w *Worker) Shutdown() {
	w.scheduler.Shutdown()
	w.server.Shutdown()
}
