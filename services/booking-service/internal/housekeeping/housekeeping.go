// Package housekeeping prunes rows that only matter for a bounded window: relayed outbox
// events and consumed idempotency keys.
package housekeeping

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/md-rashed-zaman/bookease/services/booking-service/internal/metrics"
)

// Pruner deletes rows older than cutoff and reports how many it removed.
type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PrunerFunc adapts a plain function to Pruner.
type PrunerFunc func(ctx context.Context, cutoff time.Time) (int64, error)

func (f PrunerFunc) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return f(ctx, cutoff)
}

// Task is one table with its retention.
type Task struct {
	Table     string
	Retention time.Duration
	Pruner    Pruner
}

type Config struct {
	Schedule string
	Timeout  time.Duration
	Now      func() time.Time
}

type Job struct {
	tasks    []Task
	logger   *slog.Logger
	schedule string
	timeout  time.Duration
	now      func() time.Time
}

func New(logger *slog.Logger, cfg Config, tasks ...Task) *Job {
	if cfg.Schedule == "" {
		cfg.Schedule = "@hourly"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Job{tasks: tasks, logger: logger, schedule: cfg.Schedule, timeout: cfg.Timeout, now: cfg.Now}
}

// RunOnce runs every task and keeps going past failures; the first error is returned.
func (j *Job) RunOnce(ctx context.Context) error {
	var first error
	for _, t := range j.tasks {
		if t.Retention <= 0 {
			continue
		}
		cutoff := j.now().Add(-t.Retention)
		n, err := t.Pruner.PruneBefore(ctx, cutoff)
		if err != nil {
			j.logger.Error("housekeeping prune failed", "table", t.Table, "err", err)
			if first == nil {
				first = fmt.Errorf("prune %s: %w", t.Table, err)
			}
			continue
		}
		metrics.AddPruned(t.Table, n)
		if n > 0 {
			j.logger.Info("housekeeping pruned rows", "table", t.Table, "rows", n, "cutoff", cutoff)
		}
	}
	return first
}

// Run schedules RunOnce on the cron spec until ctx is cancelled, then waits for a running
// pass to finish.
func (j *Job) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(j.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, j.timeout)
		defer cancel()
		_ = j.RunOnce(runCtx)
	})
	if err != nil {
		return fmt.Errorf("parse housekeeping schedule %q: %w", j.schedule, err)
	}

	j.logger.Info("housekeeping scheduled", "schedule", j.schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
