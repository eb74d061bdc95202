// Package scheduler runs a task on a cron schedule, one run at a time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-co-op/gocron"
)

// A Task is one run. It must return when ctx is done.
type Task func(ctx context.Context) error

// Scheduler runs a Task on a cron schedule. A run that is still in progress when the next one is due, delays it.
type Scheduler struct {
	// Cron is the schedule. If empty, the task runs once an hour at a random minute, to spread the load on the provider.
	Cron string
	// Timeout bounds the duration of each run
	Timeout time.Duration
	// RunAtStart runs the task as soon as the scheduler starts
	RunAtStart bool
	Logger     *slog.Logger
}

// Run schedules the task and blocks until ctx is done.
func (s Scheduler) Run(ctx context.Context, task Task) error {
	scheduler := gocron.NewScheduler(time.Local)
	scheduler.SingletonModeAll()

	spec := s.cron()
	scheduler.Cron(spec)
	if s.RunAtStart {
		scheduler.StartImmediately()
	}
	job, err := scheduler.Do(func() { s.run(ctx, task) })
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}

	scheduler.StartAsync()
	s.Logger.Info("scheduler started", "cron", spec, "next", job.NextRun())
	<-ctx.Done()
	scheduler.Stop()
	s.Logger.Info("scheduler stopped")
	return nil
}

func (s Scheduler) cron() string {
	if s.Cron != "" {
		return s.Cron
	}
	return fmt.Sprintf("%d * * * *", rand.IntN(60))
}

func (s Scheduler) run(ctx context.Context, task Task) {
	if ctx.Err() != nil {
		return
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if err := task(ctx); err != nil {
		s.Logger.Error("scheduled run failed", "err", err)
	}
}
