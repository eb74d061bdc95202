package app

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/wunderground/internal/acquisition"
	"github.com/clambin/wunderground/internal/configuration"
	"github.com/clambin/wunderground/internal/fetcher"
	"github.com/clambin/wunderground/internal/icons"
	"github.com/clambin/wunderground/internal/locale"
	"github.com/clambin/wunderground/internal/normalizer"
	"github.com/clambin/wunderground/internal/notifier"
	"github.com/clambin/wunderground/internal/publisher"
	"github.com/clambin/wunderground/internal/store"
	"github.com/clambin/wunderground/internal/upstream"
	"github.com/clambin/wunderground/pkg/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/slack-go/slack"
	"gopkg.in/yaml.v3"
)

// New builds the Job for a configuration. The report is written to the configured store or, in dry-run mode,
// to out. If registry is not nil, the upstream requests are measured.
func New(cfg configuration.Configuration, out io.Writer, registry prometheus.Registerer, logger *slog.Logger) (*Job, error) {
	s, err := store.New(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	var requestMetrics metrics.RequestMetrics
	if registry != nil {
		requestMetrics = upstream.NewRequestMetrics("wunderground", "upstream", nil)
		registry.MustRegister(requestMetrics)
	}
	client := upstream.NewClient(nil, requestMetrics, logger.With("component", "upstream"))
	lc := locale.New(cfg.Language, cfg.NonMetric)
	plan := fetcher.NewPlan(cfg.Legacy, features(cfg.Features)...)

	j := Job{
		Orchestrator: &fetcher.Orchestrator{
			Client: client,
			Acquirer: &acquisition.Acquirer{
				Client:   client,
				Store:    s,
				Notifier: makeNotifier(cfg.Slack, logger),
				Logger:   logger.With("component", "acquisition"),
				Station:  cfg.Station,
				Location: cfg.Location,
				Country:  cfg.Country,
			},
			Locale:   lc,
			Logger:   logger.With("component", "fetcher"),
			Location: cfg.Location,
			Station:  cfg.Station,
		},
		Store:       s,
		Plan:        plan,
		OfficialKey: cfg.APIKey,
		Normalizer: normalizer.Normalizer{
			Locale:      lc,
			Logger:      logger.With("component", "normalizer"),
			SkipPeriods: !plan.Enabled(fetcher.FeaturePeriods),
			SkipDays:    !plan.Enabled(fetcher.FeatureDaily),
		},
		Icons:       icons.Resolver{Set: cfg.Icons.Set, CustomBaseURL: cfg.Icons.BaseURL, Format: cfg.Icons.Format},
		Publisher: publisher.Publisher{
			Sinks:  []publisher.Sink{makeSink(cfg, s, out)},
			Logger: logger.With("component", "publisher"),
		},
		TimeZone: time.Local,
		Jitter:   cfg.Schedule.Jitter,
		Updates:  pubsub.New[Summary](logger.With("component", "pubsub")),
		Logger:   logger,
	}
	if c, ok := s.(io.Closer); ok {
		j.closers = append(j.closers, c)
	}
	return &j, nil
}

func makeNotifier(cfg configuration.Slack, logger *slog.Logger) notifier.Notifier {
	n := notifier.Notifiers{notifier.SLogNotifier{Logger: logger.With("component", "notifier")}}
	if cfg.Token != "" {
		n = append(n, &notifier.SlackNotifier{
			Logger:      logger.With("component", "slack"),
			SlackSender: slack.New(cfg.Token),
			Channel:     cfg.Channel,
			Title:       "wunderground",
		})
	}
	return n
}

func makeSink(cfg configuration.Configuration, s store.Store, out io.Writer) publisher.Sink {
	if !cfg.DryRun {
		return publisher.StoreSink{Store: s}
	}
	if cfg.Output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return publisher.EncoderSink{Encoder: enc}
	}
	return publisher.EncoderSink{Encoder: yaml.NewEncoder(out)}
}

func features(f configuration.Features) []fetcher.Feature {
	var enabled []fetcher.Feature
	for feature, on := range map[fetcher.Feature]bool{
		fetcher.FeatureCurrent: f.Current,
		fetcher.FeatureDaily:   f.Daily,
		fetcher.FeaturePeriods: f.Periods,
		fetcher.FeatureHourly:  f.Hourly,
	} {
		if on {
			enabled = append(enabled, feature)
		}
	}
	return enabled
}
