package fetcher

import (
	"log/slog"
	"strings"

	"github.com/clambin/go-common/set"
	"github.com/clambin/wunderground/internal/normalizer"
)

// Feature is a section of the weather report.
type Feature string

const (
	FeatureCurrent Feature = "current"
	// FeatureDaily is the structured daily forecast
	FeatureDaily Feature = "daily"
	// FeaturePeriods is the text forecast per day and night period
	FeaturePeriods Feature = "periods"
	FeatureHourly  Feature = "hourly"
)

// AllFeatures lists every supported feature.
var AllFeatures = []Feature{FeatureCurrent, FeatureDaily, FeaturePeriods, FeatureHourly}

// Plan describes what a run fetches.
type Plan struct {
	Features set.Set[Feature]
	// Legacy starts the run with the legacy API family
	Legacy bool
}

// NewPlan returns a Plan for the enabled features.
func NewPlan(legacy bool, features ...Feature) Plan {
	return Plan{Features: set.New(features...), Legacy: legacy}
}

// Enabled returns true if any of the features is enabled.
func (p Plan) Enabled(features ...Feature) bool {
	for _, f := range features {
		if p.Features.Contains(f) {
			return true
		}
	}
	return false
}

// mask removes the sections of a payload that the plan doesn't need.
func (p Plan) mask(payload normalizer.Payload) normalizer.Payload {
	if !p.Enabled(FeatureCurrent) {
		payload.Current = nil
	}
	if !p.Enabled(FeatureDaily, FeaturePeriods) {
		payload.Forecast = nil
		payload.Daily = nil
		payload.Daily2 = nil
	}
	if !p.Enabled(FeatureHourly) {
		payload.Hourly = nil
	}
	return payload
}

func (p Plan) LogValue() slog.Value {
	features := make([]string, 0, len(p.Features))
	for _, f := range AllFeatures {
		if p.Features.Contains(f) {
			features = append(features, string(f))
		}
	}
	return slog.GroupValue(
		slog.String("features", strings.Join(features, ",")),
		slog.Bool("legacy", p.Legacy),
	)
}
