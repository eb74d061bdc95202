// Package app runs one acquisition, fetch, normalization and publication cycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/clambin/wunderground/internal/acquisition"
	"github.com/clambin/wunderground/internal/fetcher"
	"github.com/clambin/wunderground/internal/icons"
	"github.com/clambin/wunderground/internal/normalizer"
	"github.com/clambin/wunderground/internal/publisher"
	"github.com/clambin/wunderground/internal/store"
	"github.com/clambin/wunderground/internal/weather"
	"github.com/clambin/wunderground/pkg/pubsub"
	"github.com/google/uuid"
)

// Summary describes the outcome of a run.
type Summary struct {
	RunID    string        `json:"run"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	// Legacy is true if the legacy API family served the run
	Legacy  bool `json:"legacy"`
	Current bool `json:"current"`
	Days    int  `json:"days"`
	Periods int  `json:"periods"`
	Hours   int  `json:"hours"`
	Entries int  `json:"entries"`
	// GaveUp is true if the provider kept rejecting every key
	GaveUp bool   `json:"gaveUp,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Success returns true if the run completed without error.
func (s Summary) Success() bool {
	return s.Err == "" && !s.GaveUp
}

func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Duration("duration", s.Duration),
		slog.Bool("legacy", s.Legacy),
		slog.Bool("current", s.Current),
		slog.Int("days", s.Days),
		slog.Int("periods", s.Periods),
		slog.Int("hours", s.Hours),
		slog.Int("entries", s.Entries),
	)
}

// Job performs a run.
type Job struct {
	Orchestrator *fetcher.Orchestrator
	// Store holds the acquisition state
	Store       store.Store
	Plan        fetcher.Plan
	OfficialKey string
	Normalizer  normalizer.Normalizer
	Icons       icons.Resolver
	Publisher   publisher.Publisher
	// TimeZone presents the times in the published report
	TimeZone *time.Location
	// Jitter delays a run by a random duration up to Jitter, when no official key is configured
	Jitter  time.Duration
	Updates *pubsub.Publisher[Summary]
	Logger  *slog.Logger
	closers []io.Closer
}

// Run performs one run. If the provider rejects every key, the run is abandoned without error.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	s := Summary{RunID: uuid.NewString(), Start: time.Now()}
	logger := j.Logger.With("run", s.RunID)

	err := j.run(ctx, &s, logger)
	s.Duration = time.Since(s.Start)

	switch {
	case errors.Is(err, acquisition.ErrGaveUp):
		logger.Warn("provider rejected all keys. Giving up for now", "err", err)
		s.GaveUp = true
		err = nil
	case err != nil:
		logger.Error("run failed", "err", err)
		s.Err = err.Error()
	default:
		logger.Info("run completed", "summary", s)
	}

	if j.Updates != nil {
		j.Updates.Publish(s)
	}
	return s, err
}

func (j *Job) run(ctx context.Context, s *Summary, logger *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()

	if err = j.delay(ctx, logger); err != nil {
		return err
	}

	var st acquisition.State
	if !j.Orchestrator.Local() {
		if st, err = acquisition.Load(ctx, j.Store, j.Orchestrator.Location, j.Orchestrator.Station, logger); err != nil {
			return fmt.Errorf("load state: %w", err)
		}
	}
	st.OfficialKey = j.OfficialKey
	logger.Debug("state loaded", "state", st, "plan", j.Plan)

	payload, err := j.Orchestrator.Fetch(ctx, j.Plan, &st)
	s.Legacy = st.Legacy
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	report := j.Normalizer.Normalize(payload)
	j.Icons.ResolveReport(&report)
	summarize(s, report)

	entries := publisher.Flatten(report, j.TimeZone)
	s.Entries = len(entries)
	if err = j.Publisher.Publish(ctx, entries); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// delay spreads the scraping load of installations that share the web keys.
func (j *Job) delay(ctx context.Context, logger *slog.Logger) error {
	if j.OfficialKey != "" || j.Jitter <= 0 {
		return nil
	}
	d := rand.N(j.Jitter)
	logger.Debug("delaying run", "delay", d)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func summarize(s *Summary, report weather.Report) {
	s.Current = report.Current != nil
	s.Days = len(report.Days)
	s.Periods = len(report.Periods)
	s.Hours = len(report.Hours)
}

// Close releases the resources held by the job.
func (j *Job) Close() error {
	var err error
	for _, c := range j.closers {
		err = errors.Join(err, c.Close())
	}
	return err
}
