package publisher

import (
	"strings"
	"testing"
	"time"

	"github.com/clambin/wunderground/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func testReport() weather.Report {
	observed := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	return weather.Report{
		Current: &weather.Observation{
			StationID:       "IBERLIN1658",
			ObservationTime: observed,
			Temperature:     ptr(18.5),
			WindDegrees:     ptr(200),
			WindDirection:   "SSW",
		},
		Days: []weather.DailyForecast{
			{Date: time.Date(2024, time.May, 2, 7, 0, 0, 0, time.UTC), TempMax: ptr(21), Icon: weather.Icon{Code: 30, Numeric: true}, State: "Teilweise wolkig", WindDirectionMax: "SW", WindDegreesMax: ptr(225)},
		},
		Periods: []weather.PeriodForecast{
			{Date: time.Date(2024, time.May, 1, 19, 0, 0, 0, time.UTC), Icon: weather.Icon{Text: "rain"}, Title: "Tonight", Text: "Rain"},
		},
		Hours: []weather.HourlyForecast{
			{Time: observed.Add(time.Hour), Temperature: ptr(17), Icon: weather.Icon{Code: 11, Numeric: true}, WindDegrees: ptr(180), Pressure: ptr(1013)},
		},
		Rollups: []weather.Rollup{{Hours: 6, Precipitation: 1.5, PrecipitationChance: 40, UV: 2}},
	}
}

func TestFlatten(t *testing.T) {
	entries := Flatten(testReport(), time.UTC)
	require.NotEmpty(t, entries)
	assert.Equal(t, "forecast.current.displayLocationFull", entries[0].Path)

	values := make(map[string]any, len(entries))
	for _, entry := range entries {
		_, duplicate := values[entry.Path]
		require.False(t, duplicate, entry.Path)
		values[entry.Path] = entry.Value
	}

	for path, want := range map[string]any{
		"forecast.current.observationLocationStationID": "IBERLIN1658",
		"forecast.current.temp":                         18.5,
		"forecast.current.windDirection":                "SSW",
		"forecast.current.windChill":                    nil,
		"forecast.current.localTimeRFC822":              nil,
		"forecast.current.observationTime":              "2024-05-01 10:00:00",
		"forecast.0d.date":                              "02.05.2024",
		"forecast.0d.icon":                              30,
		"forecast.0d.state":                             "Teilweise wolkig",
		"forecast.0d.windDirectionMax":                  "SW",
		"forecast.0d.windDegreesMax":                    225.0,
		"forecastPeriod.0p.date":                        "01.05.2024",
		"forecastPeriod.0p.icon":                        "rain",
		"forecastPeriod.0p.state":                       "Rain",
		"forecastHourly.0h.time":                        "Wed, 01 May 2024 11:00:00 +0000",
		"forecastHourly.0h.fctcode":                     11,
		"forecastHourly.0h.windDirection":               180.0,
		"forecastHourly.0h.mslp":                        1013.0,
		"forecastHourly.6h.sum.precipitation":           1.5,
		"forecastHourly.6h.sum.precipitationChance":     40.0,
		"forecastHourly.6h.sum.uv":                      2.0,
	} {
		value, ok := values[path]
		require.True(t, ok, path)
		assert.Equal(t, want, value, path)
	}

	for path := range values {
		assert.False(t, strings.HasPrefix(path, "forecast.1d."), path)
		assert.False(t, strings.HasPrefix(path, "forecastHourly.12h."), path)
	}
}

func TestFlatten_TimeZone(t *testing.T) {
	tz := time.FixedZone("CEST", 2*60*60)
	entries := Flatten(testReport(), tz)
	for _, entry := range entries {
		switch entry.Path {
		case "forecast.current.observationTime":
			assert.Equal(t, "2024-05-01 12:00:00", entry.Value)
		case "forecastHourly.0h.time":
			assert.Equal(t, "Wed, 01 May 2024 13:00:00 +0200", entry.Value)
		case "forecast.0d.date":
			assert.Equal(t, "02.05.2024", entry.Value)
		}
	}
}

func TestFlatten_Empty(t *testing.T) {
	assert.Empty(t, Flatten(weather.Report{}, nil))

	entries := Flatten(weather.Report{Hours: testReport().Hours}, time.UTC)
	for _, entry := range entries {
		assert.True(t, strings.HasPrefix(entry.Path, "forecastHourly.0h."), entry.Path)
	}
}
