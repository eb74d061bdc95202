package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/clambin/wunderground/internal/app"
	"github.com/clambin/wunderground/internal/collector"
	"github.com/clambin/wunderground/internal/configuration"
	"github.com/clambin/wunderground/internal/health"
	"github.com/clambin/wunderground/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var scheduleCmd = cobra.Command{
	Use:   "schedule",
	Short: "Perform runs on a schedule, with /health and /metrics endpoints",
	Args:  cobra.NoArgs,
	RunE:  runScheduled,
}

func runScheduled(cmd *cobra.Command, _ []string) error {
	cfg, err := configuration.Load(viper.GetViper())
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Debug)
	logger.Info("starting", "version", cmd.Root().Version)
	defer logger.Info("stopped")

	registry := prometheus.NewRegistry()
	job, err := app.New(cfg, cmd.OutOrStdout(), registry, logger)
	if err != nil {
		return err
	}
	defer func() { _ = job.Close() }()

	c := &collector.Collector{Updates: job.Updates, Logger: logger.With("component", "collector")}
	registry.MustRegister(c)
	h := health.New(job.Updates, logger.With("component", "health"))
	router := health.Router(h, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s := scheduler.Scheduler{
		Cron:       cfg.Schedule.Cron,
		Timeout:    cfg.Schedule.Timeout,
		RunAtStart: true,
		Logger:     logger.With("component", "scheduler"),
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error { return c.Run(ctx) })
	g.Go(func() error { return h.Run(ctx) })
	g.Go(func() error {
		if err := router.Listen(cfg.Schedule.Addr); err != nil {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return router.ShutdownWithTimeout(5 * time.Second)
	})
	g.Go(func() error {
		return s.Run(ctx, func(ctx context.Context) error {
			_, err := job.Run(ctx)
			return err
		})
	})
	return g.Wait()
}
