package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"fleetgate/platform/config"
	"fleetgate/platform/logger"
)

// ReportGenerator renders and delivers the report for a locked session.
// Implemented by the report module.
type ReportGenerator interface {
	Generate(ctx context.Context, sessionID uuid.UUID) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	generator ReportGenerator
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, generator ReportGenerator, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		generator: generator,
		log:       log,
	}

	mux.HandleFunc(TaskInspectionReport, w.handleInspectionReport)

	return w, nil
}

func (w *Worker) handleInspectionReport(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseInspectionReportPayload(task)
	if err != nil {
		return err
	}

	sessionID, err := uuid.Parse(payload.SessionID)
	if err != nil {
		return err
	}

	w.log.Info("generating inspection report", "sessionId", payload.SessionID, "kind", payload.Kind)
	return w.generator.Generate(ctx, sessionID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
