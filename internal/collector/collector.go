package collector

import (
	"context"
	"log/slog"
	"sync"

	"github.com/clambin/wunderground/internal/app"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runDuration = prometheus.NewDesc(
		prometheus.BuildFQName("wunderground", "run", "duration_seconds"),
		"Duration of the last run in seconds",
		nil,
		nil,
	)
	runTimestamp = prometheus.NewDesc(
		prometheus.BuildFQName("wunderground", "run", "timestamp_seconds"),
		"Start time of the last run",
		nil,
		nil,
	)
	runSuccess = prometheus.NewDesc(
		prometheus.BuildFQName("wunderground", "run", "success"),
		"1 if the last run completed without error",
		nil,
		nil,
	)
	runAPIFamily = prometheus.NewDesc(
		prometheus.BuildFQName("wunderground", "run", "api_family"),
		"API family that served the last run. Always 1. Label family specifies the family",
		[]string{"family"},
		nil,
	)
	runRecords = prometheus.NewDesc(
		prometheus.BuildFQName("wunderground", "run", "records"),
		"Number of records produced by the last run, per section",
		[]string{"section"},
		nil,
	)
	runsTotal = prometheus.NewDesc(
		prometheus.BuildFQName("wunderground", "", "runs_total"),
		"Number of runs, per result",
		[]string{"result"},
		nil,
	)
)

// A Subscriber provides the summary of each run.
type Subscriber interface {
	Subscribe() <-chan app.Summary
	Unsubscribe(<-chan app.Summary)
}

// Collector exposes the outcome of the runs as Prometheus metrics.
type Collector struct {
	Updates Subscriber
	Logger  *slog.Logger
	lock    sync.RWMutex
	last    *app.Summary
	results map[string]int
}

func (c *Collector) Run(ctx context.Context) error {
	c.Logger.Debug("started")
	defer c.Logger.Debug("stopped")

	ch := c.Updates.Subscribe()
	defer c.Updates.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-ch:
			c.Update(s)
		}
	}
}

// Update records the summary of a run.
func (c *Collector) Update(s app.Summary) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.last = &s
	if c.results == nil {
		c.results = make(map[string]int)
	}
	c.results[result(s)]++
}

func result(s app.Summary) string {
	switch {
	case s.GaveUp:
		return "gave_up"
	case s.Err != "":
		return "failed"
	default:
		return "success"
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- runDuration
	ch <- runTimestamp
	ch <- runSuccess
	ch <- runAPIFamily
	ch <- runRecords
	ch <- runsTotal
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	if c.last == nil {
		return
	}

	ch <- prometheus.MustNewConstMetric(runDuration, prometheus.GaugeValue, c.last.Duration.Seconds())
	ch <- prometheus.MustNewConstMetric(runTimestamp, prometheus.GaugeValue, float64(c.last.Start.Unix()))

	var value float64
	if c.last.Success() {
		value = 1.0
	}
	ch <- prometheus.MustNewConstMetric(runSuccess, prometheus.GaugeValue, value)

	family := "modern"
	if c.last.Legacy {
		family = "legacy"
	}
	ch <- prometheus.MustNewConstMetric(runAPIFamily, prometheus.GaugeValue, 1, family)

	value = 0.0
	if c.last.Current {
		value = 1.0
	}
	ch <- prometheus.MustNewConstMetric(runRecords, prometheus.GaugeValue, value, "current")
	ch <- prometheus.MustNewConstMetric(runRecords, prometheus.GaugeValue, float64(c.last.Days), "daily")
	ch <- prometheus.MustNewConstMetric(runRecords, prometheus.GaugeValue, float64(c.last.Periods), "periods")
	ch <- prometheus.MustNewConstMetric(runRecords, prometheus.GaugeValue, float64(c.last.Hours), "hourly")

	for r, count := range c.results {
		ch <- prometheus.MustNewConstMetric(runsTotal, prometheus.CounterValue, float64(count), r)
	}
}
