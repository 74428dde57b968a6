// Package scheduler runs the sweeps on a queue schedule via asynq. The cron
// HTTP endpoints invoke the same sweep services synchronously; this worker
// exists for deployments that prefer Redis-backed scheduling over an
// external cron caller.
package scheduler

import (
	"context"
	"fmt"

	nurturingsvc "fleetcrm_backend/internal/nurturing/service"
	remindersvc "fleetcrm_backend/internal/reminders/service"
	"fleetcrm_backend/platform/clock"
	"fleetcrm_backend/platform/config"
	"fleetcrm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	nurturing *nurturingsvc.Service
	reminders *remindersvc.Service
	clk       clock.Clock
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, nurturing *nurturingsvc.Service, reminders *remindersvc.Service, clk clock.Clock, log *logger.Logger) (*Worker, error) {
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
		nurturing: nurturing,
		reminders: reminders,
		clk:       clk,
		log:       log,
	}

	mux.HandleFunc(TaskNurturingSweep, w.handleNurturingSweep)
	mux.HandleFunc(TaskReminderSweep, w.handleReminderSweep)

	return w, nil
}

func (w *Worker) handleNurturingSweep(ctx context.Context, task *asynq.Task) error {
	if _, err := ParseNurturingSweepPayload(task); err != nil {
		return err
	}

	summary := w.nurturing.RunSweep(ctx, w.clk.Now())
	if len(summary.Errors) > 0 {
		w.log.Warn("nurturing sweep finished with errors", "errors", summary.Errors)
	}
	return nil
}

func (w *Worker) handleReminderSweep(ctx context.Context, task *asynq.Task) error {
	if _, err := ParseReminderSweepPayload(task); err != nil {
		return err
	}

	summary := w.reminders.RunSweep(ctx, w.clk.Now())
	if len(summary.Errors) > 0 {
		w.log.Warn("reminder sweep finished with errors", "errors", summary.Errors)
	}
	return nil
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
