package normalizer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clambin/wunderground/internal/locale"
	"github.com/clambin/wunderground/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2019, time.May, 1, 15, 0, 0, 0, time.UTC)

func newNormalizer(nonMetric bool) Normalizer {
	return Normalizer{
		Locale: locale.New("DL", nonMetric),
		Logger: slog.New(slog.DiscardHandler),
		Now:    func() time.Time { return testNow },
	}
}

func readFixture(t *testing.T, name string) json.RawMessage {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return body
}

func legacyPayload(t *testing.T) Payload {
	t.Helper()
	var p Payload
	require.NoError(t, json.Unmarshal(readFixture(t, "legacy.json"), &p))
	return p
}

func TestNormalizer_Legacy_Metric(t *testing.T) {
	r := newNormalizer(false).Normalize(legacyPayload(t))

	require.NotNil(t, r.Current)
	c := r.Current
	assert.Equal(t, ptr(18.5), c.Temperature)
	assert.Equal(t, ptr(200), c.WindDegrees)
	assert.Equal(t, "SSW", c.WindDirection)
	assert.Equal(t, "Berlin, Germany", c.DisplayLocation.Full)
	assert.Equal(t, ptr(34), c.DisplayLocation.Elevation)
	assert.Equal(t, ptr(30.48), c.ObservationLocation.Elevation)
	assert.Equal(t, "IBERLIN1658", c.StationID)
	assert.Equal(t, "Partly Cloudy", *c.Weather)
	assert.Equal(t, ptr(65), c.RelativeHumidity)
	assert.Equal(t, ptr(10), c.WindSpeed)
	assert.Equal(t, ptr(16), c.WindGust)
	assert.Equal(t, ptr(1015), c.Pressure)
	assert.Equal(t, ptr(12), c.DewPoint)
	assert.Nil(t, c.WindChill)
	assert.Equal(t, ptr(18.5), c.FeelsLike)
	assert.Equal(t, ptr(10), c.Visibility)
	assert.Nil(t, c.SolarRadiation)
	assert.Equal(t, ptr(4), c.UV)
	assert.Equal(t, ptr(0), c.PrecipitationHour)
	assert.Equal(t, ptr(3), c.PrecipitationDay)
	assert.Equal(t, weather.Icon{Text: "partlycloudy"}, c.Icon)
	assert.Equal(t, "http://icons.wxug.com/i/c/k/partlycloudy.gif", c.IconURL)
	assert.Equal(t, time.Date(2019, time.May, 1, 12, 55, 0, 0, time.UTC), c.ObservationTime.UTC())
	assert.Equal(t, time.Date(2019, time.May, 1, 13, 0, 0, 0, time.UTC), c.LocalTime.UTC())

	require.Len(t, r.Periods, 3)
	assert.Equal(t, "Wednesday Night", r.Periods[1].Title)
	assert.Equal(t, "Klar. Tiefstwert 7C.", r.Periods[1].Text)
	assert.Equal(t, testNow.Add(12*time.Hour), r.Periods[1].Date)
	assert.Equal(t, ptr(90), r.Periods[2].PrecipitationChance)

	require.Len(t, r.Days, 2)
	assert.Equal(t, ptr(18), r.Days[0].TempMax)
	assert.Equal(t, ptr(7), r.Days[0].TempMin)
	assert.Equal(t, "Teilweise wolkig", r.Days[0].State)
	assert.Equal(t, "Regen", r.Days[1].State)
	assert.Equal(t, ptr(1), r.Days[0].PrecipitationAllDay)
	assert.Nil(t, r.Days[0].PrecipitationNight)
	assert.Equal(t, ptr(19), r.Days[0].WindSpeedMax)
	assert.Equal(t, "SW", r.Days[0].WindDirectionMax)
	assert.Equal(t, ptr(225), r.Days[0].WindDegreesMax)
	assert.Equal(t, ptr(24), r.Days[1].WindSpeedMax)

	require.Len(t, r.Hours, 2)
	assert.Equal(t, ptr(18), r.Hours[0].Temperature)
	assert.Equal(t, ptr(10), r.Hours[0].WindSpeed)
	assert.Equal(t, ptr(1), r.Hours[0].Precipitation)
	assert.Equal(t, ptr(1015), r.Hours[0].Pressure)
	assert.Nil(t, r.Hours[0].HeatIndex)
	assert.Equal(t, weather.Icon{Code: 2, Numeric: true}, r.Hours[0].Icon)
	assert.Empty(t, r.Rollups)
}

func TestNormalizer_Legacy_Imperial(t *testing.T) {
	r := newNormalizer(true).Normalize(legacyPayload(t))

	require.NotNil(t, r.Current)
	c := r.Current
	assert.Equal(t, ptr(65.3), c.Temperature)
	assert.Equal(t, ptr(100), c.ObservationLocation.Elevation)
	assert.Equal(t, ptr(6.2), c.WindSpeed)
	assert.Equal(t, ptr(9.9), c.WindGust)
	assert.Equal(t, ptr(29.97), c.Pressure)
	assert.Equal(t, ptr(53), c.DewPoint)
	assert.Equal(t, ptr(6.2), c.Visibility)
	assert.Nil(t, c.PrecipitationHour)
	assert.Equal(t, ptr(0.12), c.PrecipitationDay)

	require.Len(t, r.Periods, 3)
	assert.Equal(t, "Clear. Low 45F.", r.Periods[1].Text)

	require.Len(t, r.Days, 2)
	assert.Equal(t, ptr(65), r.Days[0].TempMax)
	assert.Equal(t, ptr(0.04), r.Days[0].PrecipitationAllDay)
	assert.Equal(t, ptr(12), r.Days[0].WindSpeedMax)

	require.Len(t, r.Hours, 2)
	assert.Equal(t, ptr(64), r.Hours[0].Temperature)
	assert.Equal(t, ptr(0.04), r.Hours[0].Precipitation)
	assert.Equal(t, ptr(29.97), r.Hours[0].Pressure)
}

func TestNormalizer_ExampleScenario(t *testing.T) {
	p := Payload{Current: json.RawMessage(`{"temp_c":"18.5","temp_f":"65.3","wind_degrees":"200","feelslike_f":"65","dewpoint_f":"53"}`)}
	r := newNormalizer(false).Normalize(p)

	require.NotNil(t, r.Current)
	assert.Equal(t, ptr(18.5), r.Current.Temperature)
	assert.Equal(t, "SSW", r.Current.WindDirection)
	assert.Nil(t, r.Current.FeelsLike)
	assert.Nil(t, r.Current.DewPoint)
}

// observationValues returns every numeric value of an observation.
func observationValues(o *weather.Observation) map[string]*float64 {
	return map[string]*float64{
		"temp":              o.Temperature,
		"windSpeed":         o.WindSpeed,
		"windGust":          o.WindGust,
		"pressure":          o.Pressure,
		"dewPoint":          o.DewPoint,
		"windChill":         o.WindChill,
		"feelsLike":         o.FeelsLike,
		"visibility":        o.Visibility,
		"precipitationHour": o.PrecipitationHour,
		"precipitationDay":  o.PrecipitationDay,
	}
}

func TestNormalizer_UnitConsistency(t *testing.T) {
	// every unit-dependent field holds a distinct marker value per unit system
	const metricBase, imperialBase = 1000, 2000
	fields := [][2]string{
		{"temp_c", "temp_f"},
		{"wind_kph", "wind_mph"},
		{"wind_gust_kph", "wind_gust_mph"},
		{"pressure_mb", "pressure_in"},
		{"dewpoint_c", "dewpoint_f"},
		{"windchill_c", "windchill_f"},
		{"feelslike_c", "feelslike_f"},
		{"visibility_km", "visibility_mi"},
		{"precip_1hr_metric", "precip_1hr_in"},
		{"precip_today_metric", "precip_today_in"},
	}
	var entries []string
	for i, f := range fields {
		entries = append(entries, fmt.Sprintf(`"%s":"%d","%s":"%d"`, f[0], metricBase+i, f[1], imperialBase+i))
	}
	p := Payload{Current: json.RawMessage("{" + strings.Join(entries, ",") + "}")}

	for _, nonMetric := range []bool{false, true} {
		r := newNormalizer(nonMetric).Normalize(p)
		require.NotNil(t, r.Current)
		for name, value := range observationValues(r.Current) {
			require.NotNil(t, value, name)
			if nonMetric {
				assert.GreaterOrEqual(t, *value, float64(imperialBase), name)
			} else {
				assert.Less(t, *value, float64(imperialBase), name)
			}
		}
	}
}

func TestNormalizer_PWSObservation(t *testing.T) {
	p := Payload{Current: readFixture(t, "pws.json")}

	r := newNormalizer(false).Normalize(p)
	require.NotNil(t, r.Current)
	c := r.Current
	assert.Equal(t, "Mitte", c.DisplayLocation.Full)
	assert.Equal(t, c.DisplayLocation, c.ObservationLocation)
	assert.Equal(t, ptr(52.52), c.DisplayLocation.Latitude)
	assert.Equal(t, ptr(34), c.DisplayLocation.Elevation)
	assert.Equal(t, ptr(18.5), c.Temperature)
	assert.Equal(t, "SSW", c.WindDirection)
	assert.Equal(t, ptr(18.5), c.FeelsLike)
	assert.Equal(t, ptr(412.5), c.SolarRadiation)
	assert.Equal(t, ptr(3), c.PrecipitationDay)
	assert.Nil(t, c.Weather)
	assert.Nil(t, c.Visibility)
	assert.True(t, c.Icon.IsZero())
	assert.Equal(t, time.Date(2024, time.May, 1, 12, 55, 0, 0, time.UTC), c.ObservationTime)
	assert.Equal(t, "2024-05-01 14:55:00", c.LocalTime.Format(pwsLocalLayout))
	_, offset := c.LocalTime.Zone()
	assert.Equal(t, 7200, offset)

	// no imperial values in the response: the section is left out
	r = newNormalizer(true).Normalize(p)
	assert.Nil(t, r.Current)
}

func TestNormalizer_ForecastSelection(t *testing.T) {
	tests := []struct {
		name        string
		skipPeriods bool
		skipDays    bool
		periods     int
		days        int
	}{
		{name: "both", periods: 3, days: 2},
		{name: "periods only", skipDays: true, periods: 3},
		{name: "daily only", skipPeriods: true, days: 2},
		{name: "none", skipPeriods: true, skipDays: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			n := newNormalizer(false)
			n.SkipPeriods = tt.skipPeriods
			n.SkipDays = tt.skipDays
			r := n.Normalize(legacyPayload(t))
			assert.Len(t, r.Periods, tt.periods)
			assert.Len(t, r.Days, tt.days)
			assert.NotNil(t, r.Current)
		})
	}
}

func TestNormalizer_DailyShapes(t *testing.T) {
	n := newNormalizer(false)
	arrays := n.Normalize(Payload{Daily: readFixture(t, "daily_arrays.json")})
	forecasts := n.Normalize(Payload{Daily2: readFixture(t, "daily_forecasts.json")})

	require.Len(t, arrays.Days, 3)
	require.Len(t, forecasts.Days, 3)
	for i := range forecasts.Days {
		// the parallel-array layout doesn't report the degrees of the strongest wind. This is the only
		// difference allowed between the two layouts of the same forecast.
		assert.Nil(t, arrays.Days[i].WindDegreesMax)
		assert.NotNil(t, forecasts.Days[i].WindDegreesMax)
		forecasts.Days[i].WindDegreesMax = nil
	}
	assert.Equal(t, forecasts.Days, arrays.Days)
	assert.Equal(t, forecasts.Periods, arrays.Periods)

	// day 0: the day is over, only the night is reported
	d := arrays.Days[0]
	assert.Nil(t, d.TempMax)
	assert.Equal(t, ptr(9), d.TempMin)
	assert.Equal(t, weather.Icon{Code: 31, Numeric: true}, d.Icon)
	assert.Equal(t, "31", d.IconURL)
	assert.Equal(t, "Clear tonight.", d.State)
	assert.Equal(t, ptr(5), d.PrecipitationChance)
	assert.Nil(t, d.PrecipitationDay)
	assert.Equal(t, ptr(0), d.PrecipitationNight)
	assert.Equal(t, ptr(8), d.WindSpeedMax)
	assert.Equal(t, "WSW", d.WindDirectionMax)
	assert.Equal(t, ptr(70), d.HumidityMax)
	assert.Equal(t, ptr(70), d.HumidityMin)

	// day 2: the night is windier
	d = arrays.Days[2]
	assert.Equal(t, ptr(25), d.WindSpeedMax)
	assert.Equal(t, "WNW", d.WindDirectionMax)
	assert.Equal(t, ptr(20), d.WindSpeed)
	assert.Equal(t, "W", d.WindDirection)
	assert.Equal(t, ptr(80), d.PrecipitationChance)
	assert.Equal(t, ptr(90), d.HumidityMax)
	assert.Equal(t, ptr(80), d.HumidityMin)
	assert.Equal(t, ptr(6.2), d.PrecipitationAllDay)

	require.Len(t, arrays.Periods, 5)
	assert.Equal(t, "Tonight", arrays.Periods[0].Title)
	assert.Equal(t, "2024-05-01T19:00:00+02:00", arrays.Periods[0].Date.Format(time.RFC3339))
	assert.Equal(t, "Thursday", arrays.Periods[1].Title)
	assert.Equal(t, "2024-05-02T07:00:00+02:00", arrays.Periods[1].Date.Format(time.RFC3339))
	assert.Equal(t, "Rain.", arrays.Periods[4].Text)
}

func hourlyArraysPayload(hours int, omit string) json.RawMessage {
	arrays := map[string][]any{}
	add := func(name string, v any) { arrays[name] = append(arrays[name], v) }
	for i := range hours {
		add("validTimeUtc", 1714568400+3600*i)
		add("temperature", 18)
		add("iconCode", 30)
		add("cloudCover", 40)
		add("windSpeed", 10)
		add("windDirection", 200)
		add("uvIndex", 3)
		add("relativeHumidity", 60)
		add("temperatureHeatIndex", 18)
		add("temperatureFeelsLike", 17)
		add("qpf", 0.5)
		add("qpfSnow", 0)
		add("precipChance", 2*i)
		add("pressureMeanSeaLevel", 1015)
		add("visibility", 16.09)
	}
	delete(arrays, omit)
	body, _ := json.Marshal(arrays)
	return body
}

func TestNormalizer_HourlyArrays(t *testing.T) {
	r := newNormalizer(false).Normalize(Payload{Hourly: hourlyArraysPayload(48, "")})

	require.Len(t, r.Hours, weather.MaxHours)
	assert.Equal(t, time.Unix(1714568400, 0), r.Hours[0].Time)
	assert.Equal(t, ptr(40), r.Hours[0].Sky)
	assert.Equal(t, ptr(16.09), r.Hours[35].Visibility)
	assert.Equal(t, weather.Icon{Code: 30, Numeric: true}, r.Hours[35].Icon)

	assert.Equal(t, []weather.Rollup{
		{Hours: 6, Precipitation: 3, PrecipitationChance: 10, UV: 3},
		{Hours: 12, Precipitation: 6, PrecipitationChance: 22, UV: 3},
		{Hours: 24, Precipitation: 12, PrecipitationChance: 46, UV: 3},
	}, r.Rollups)
}

func TestNormalizer_HourlyArrays_ShortForecast(t *testing.T) {
	r := newNormalizer(false).Normalize(Payload{Hourly: hourlyArraysPayload(12, "")})
	require.Len(t, r.Hours, 12)
	require.Len(t, r.Rollups, 2)
	assert.Equal(t, 12, r.Rollups[1].Hours)
}

func TestNormalizer_PartialFailure(t *testing.T) {
	p := Payload{
		Current: legacyPayload(t).Current,
		Hourly:  hourlyArraysPayload(48, "qpf"),
	}
	r := newNormalizer(false).Normalize(p)

	require.NotNil(t, r.Current)
	assert.Equal(t, ptr(18.5), r.Current.Temperature)
	assert.Nil(t, r.Hours)
	assert.Nil(t, r.Rollups)
}

func TestNormalizer_MalformedSections(t *testing.T) {
	p := Payload{
		Current:  json.RawMessage(`{"temp_c": "warm"}`),
		Forecast: json.RawMessage(`{"something": "else"}`),
		Hourly:   json.RawMessage(`[]`),
	}
	r := newNormalizer(false).Normalize(p)
	assert.Equal(t, weather.Report{}, r)
}

func TestNormalizer_EmptyPayload(t *testing.T) {
	p := Payload{Current: json.RawMessage(`null`)}
	assert.True(t, p.IsEmpty())
	assert.Equal(t, weather.Report{}, newNormalizer(false).Normalize(p))
}
