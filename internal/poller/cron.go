package poller

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"TrendPress/internal/ports"
)

// CronScheduler drives the poller off a cron entry.
type CronScheduler struct {
	spec string
	cron *cron.Cron
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler from a cron spec, e.g. "@every 30s".
func NewCronScheduler(spec string) *CronScheduler {
	return &CronScheduler{spec: spec}
}

// NewIntervalScheduler builds a scheduler firing on a fixed interval.
func NewIntervalScheduler(interval time.Duration) *CronScheduler {
	return &CronScheduler{spec: "@every " + interval.String()}
}

// Start registers the job and begins ticking. Idempotent while running.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil || c.cron != nil {
		return nil
	}

	runner := cron.New()
	if _, err := runner.AddFunc(c.spec, func() { job(time.Now()) }); err != nil {
		return err
	}

	c.cron = runner
	runner.Start()
	return nil
}

// Stop halts ticking and waits for the in-flight tick to return.
func (c *CronScheduler) Stop(ctx context.Context) error {
	if c.cron == nil {
		return nil
	}

	stopCtx := c.cron.Stop()
	c.cron = nil

	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
