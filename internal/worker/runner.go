package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jan-server/services/conversation-api/internal/infrastructure/metrics"
	"jan-server/services/conversation-api/internal/webhook"
)

// Runner drives the maintainer on a fixed interval.
type Runner struct {
	maintainer *Maintainer
	interval   time.Duration
	log        zerolog.Logger
	wg         sync.WaitGroup
	stopChan   chan struct{}
}

// Config contains maintenance runner configuration.
type Config struct {
	Interval  time.Duration
	Repair    bool
	BatchSize int
}

// NewRunner creates the background maintenance runner.
func NewRunner(service MaintenanceService, notifier webhook.Service, cfg Config, log zerolog.Logger) *Runner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Runner{
		maintainer: NewMaintainer(service, notifier, cfg.Repair, cfg.BatchSize, log),
		interval:   interval,
		log:        log.With().Str("component", "maintenance-runner").Logger(),
		stopChan:   make(chan struct{}),
	}
}

// Start launches the periodic sweep loop.
func (r *Runner) Start(ctx context.Context) error {
	r.log.Info().Dur("interval", r.interval).Msg("starting maintenance runner")

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				r.log.Info().Msg("maintenance runner stopped by context")
				return
			case <-r.stopChan:
				r.log.Info().Msg("maintenance runner stopped")
				return
			case <-ticker.C:
				r.runSweep(ctx)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the runner.
func (r *Runner) Stop() {
	r.log.Info().Msg("stopping maintenance runner")
	close(r.stopChan)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info().Msg("maintenance runner stopped gracefully")
	case <-time.After(30 * time.Second):
		r.log.Warn().Msg("maintenance runner shutdown timed out")
	}
}

func (r *Runner) runSweep(ctx context.Context) {
	start := time.Now()
	result, err := r.maintainer.SweepAll(ctx)
	duration := time.Since(start)

	status := "ok"
	if err != nil || result.Errors > 0 {
		status = "error"
	}
	metrics.RecordMaintenanceRun(status, duration.Seconds())

	if err != nil {
		r.log.Error().Err(err).Msg("maintenance sweep aborted")
		return
	}
	r.log.Info().
		Int("checked", result.Checked).
		Int("unhealthy", result.Unhealthy).
		Int("repaired", result.Repaired).
		Int("messages_reattached", result.Reattached).
		Dur("duration", duration).
		Msg("maintenance sweep finished")
}
