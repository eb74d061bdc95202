// Package normalizer converts the sections received from the provider, in any of their known layouts, into a
// weather.Report.
package normalizer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/clambin/wunderground/internal/locale"
	"github.com/clambin/wunderground/internal/weather"
)

// Normalizer converts a Payload into a weather.Report.
type Normalizer struct {
	Locale locale.Context
	Logger *slog.Logger
	// Now returns the current time. Legacy period forecasts are dated relative to it.
	Now func() time.Time
	// SkipPeriods and SkipDays leave the period or daily forecasts out of the report. Both come from the same section.
	SkipPeriods bool
	SkipDays    bool
}

// Normalize converts each section of the payload. A section that can't be converted is logged and left out
// of the report: it does not affect the other sections.
func (n Normalizer) Normalize(p Payload) weather.Report {
	var r weather.Report

	if !isEmpty(p.Current) {
		r.Current, _ = section(n.logger(), "current", p.Current, func(raw json.RawMessage, shape Shape) (*weather.Observation, error) {
			switch shape {
			case ShapeLegacyObservation:
				return normalizeLegacyObservation(raw, n.Locale)
			case ShapePWSObservation:
				return normalizePWSObservation(raw, n.Locale)
			default:
				return nil, errUnsupported(shape)
			}
		})
	}

	forecast := n.forecastSection(p)
	if !n.SkipPeriods && !isEmpty(forecast) {
		r.Periods, _ = section(n.logger(), "periods", forecast, func(raw json.RawMessage, shape Shape) ([]weather.PeriodForecast, error) {
			switch shape {
			case ShapeLegacyForecast:
				return normalizeLegacyPeriods(raw, n.Locale, n.now())
			case ShapeDailyArrays:
				return normalizeDailyArrayPeriods(raw)
			case ShapeDailyForecasts:
				return normalizeDailyForecastPeriods(raw)
			default:
				return nil, errUnsupported(shape)
			}
		})
	}
	if !n.SkipDays && !isEmpty(forecast) {
		r.Days, _ = section(n.logger(), "daily", forecast, func(raw json.RawMessage, shape Shape) ([]weather.DailyForecast, error) {
			switch shape {
			case ShapeLegacyForecast:
				return normalizeLegacyDays(raw, n.Locale)
			case ShapeDailyArrays:
				return normalizeDailyArrays(raw)
			case ShapeDailyForecasts:
				return normalizeDailyForecasts(raw)
			default:
				return nil, errUnsupported(shape)
			}
		})
	}

	if !isEmpty(p.Hourly) {
		var err error
		r.Hours, err = section(n.logger(), "hourly", p.Hourly, func(raw json.RawMessage, shape Shape) ([]weather.HourlyForecast, error) {
			switch shape {
			case ShapeHourlyArrays:
				return normalizeHourlyArrays(raw)
			case ShapeHourlyLegacy:
				return normalizeLegacyHours(raw, n.Locale)
			default:
				return nil, errUnsupported(shape)
			}
		})
		if err == nil {
			r.Rollups = Rollups(r.Hours)
		}
	}

	return r
}

// forecastSection returns the section holding the period and daily forecasts.
func (n Normalizer) forecastSection(p Payload) json.RawMessage {
	if !isEmpty(p.Forecast) {
		return p.Forecast
	}
	return p.DailySection()
}

// section converts one section of the payload. Errors are logged and returned.
func section[T any](logger *slog.Logger, name string, raw json.RawMessage, convert func(json.RawMessage, Shape) (T, error)) (T, error) {
	shape := DetectShape(raw)
	logger.Debug("normalizing section", "section", name, "shape", shape.String())
	result, err := convert(raw, shape)
	if err != nil {
		logger.Error("failed to normalize section", "section", name, "shape", shape.String(), "err", err)
		var zero T
		return zero, fmt.Errorf("%s: %w", name, err)
	}
	return result, nil
}

func errUnsupported(shape Shape) error {
	return fmt.Errorf("unsupported layout: %s", shape)
}

func (n Normalizer) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (n Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}
