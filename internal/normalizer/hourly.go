package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clambin/wunderground/internal/locale"
	"github.com/clambin/wunderground/internal/weather"
)

// modern API: parallel arrays, one entry per hour.

type hourlyArrays struct {
	ValidTimeUtc         numbers `json:"validTimeUtc"`
	Temperature          numbers `json:"temperature"`
	IconCode             []any   `json:"iconCode"`
	CloudCover           numbers `json:"cloudCover"`
	WindSpeed            numbers `json:"windSpeed"`
	WindDirection        numbers `json:"windDirection"`
	UVIndex              numbers `json:"uvIndex"`
	RelativeHumidity     numbers `json:"relativeHumidity"`
	TemperatureHeatIndex numbers `json:"temperatureHeatIndex"`
	TemperatureFeelsLike numbers `json:"temperatureFeelsLike"`
	Qpf                  numbers `json:"qpf"`
	QpfSnow              numbers `json:"qpfSnow"`
	PrecipChance         numbers `json:"precipChance"`
	PressureMeanSeaLevel numbers `json:"pressureMeanSeaLevel"`
	Visibility           numbers `json:"visibility"`
}

func (h hourlyArrays) validate() error {
	var err error
	for name, values := range map[string]numbers{
		"validTimeUtc": h.ValidTimeUtc,
		"qpf":          h.Qpf,
		"precipChance": h.PrecipChance,
		"uvIndex":      h.UVIndex,
	} {
		if values == nil {
			err = errors.Join(err, fmt.Errorf("missing %s", name))
		}
	}
	return err
}

func normalizeHourlyArrays(raw json.RawMessage) ([]weather.HourlyForecast, error) {
	var in hourlyArrays
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	hours := make([]weather.HourlyForecast, 0, weather.MaxHours)
	for i := range min(len(in.ValidTimeUtc), weather.MaxHours) {
		var icon weather.Icon
		if i < len(in.IconCode) {
			icon = weather.ParseIcon(in.IconCode[i])
		}
		hours = append(hours, weather.HourlyForecast{
			Time:                epoch(in.ValidTimeUtc.at(i)),
			Temperature:         in.Temperature.at(i).ptr(),
			Icon:                icon,
			Sky:                 in.CloudCover.at(i).ptr(),
			WindSpeed:           in.WindSpeed.at(i).ptr(),
			WindDegrees:         in.WindDirection.at(i).ptr(),
			UV:                  in.UVIndex.at(i).ptr(),
			Humidity:            in.RelativeHumidity.at(i).ptr(),
			HeatIndex:           in.TemperatureHeatIndex.at(i).ptr(),
			FeelsLike:           in.TemperatureFeelsLike.at(i).ptr(),
			Precipitation:       in.Qpf.at(i).ptr(),
			Snow:                in.QpfSnow.at(i).ptr(),
			PrecipitationChance: in.PrecipChance.at(i).ptr(),
			Pressure:            in.PressureMeanSeaLevel.at(i).ptr(),
			Visibility:          in.Visibility.at(i).ptr(),
		})
	}
	return hours, nil
}

// legacy API: one object per hour, with english and metric variants of each measurement.

type legacyMeasurement struct {
	English number `json:"english"`
	Metric  number `json:"metric"`
}

func (m legacyMeasurement) in(u unitSelector) *float64 {
	return u.pick(m.Metric, m.English).ptr()
}

type legacyHour struct {
	FCTTIME struct {
		Epoch number `json:"epoch"`
	} `json:"FCTTIME"`
	Temp      legacyMeasurement `json:"temp"`
	FctCode   any               `json:"fctcode"`
	Sky       number            `json:"sky"`
	WindSpeed legacyMeasurement `json:"wspd"`
	WindDir   struct {
		Degrees number `json:"degrees"`
	} `json:"wdir"`
	UV           number            `json:"uvi"`
	Humidity     number            `json:"humidity"`
	HeatIndex    legacyMeasurement `json:"heatindex"`
	FeelsLike    legacyMeasurement `json:"feelslike"`
	Qpf          legacyMeasurement `json:"qpf"`
	Snow         legacyMeasurement `json:"snow"`
	PrecipChance number            `json:"pop"`
	Pressure     legacyMeasurement `json:"mslp"`
}

func normalizeLegacyHours(raw json.RawMessage, lc locale.Context) ([]weather.HourlyForecast, error) {
	var in []legacyHour
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(in) == 0 {
		return nil, errors.New("forecast holds no hours")
	}

	u := unitsOf(lc)
	hours := make([]weather.HourlyForecast, 0, weather.MaxHours)
	for _, h := range in[:min(len(in), weather.MaxHours)] {
		hours = append(hours, weather.HourlyForecast{
			Time:                epoch(h.FCTTIME.Epoch),
			Temperature:         h.Temp.in(u),
			Icon:                weather.ParseIcon(h.FctCode),
			Sky:                 h.Sky.ptr(),
			WindSpeed:           h.WindSpeed.in(u),
			WindDegrees:         h.WindDir.Degrees.ptr(),
			UV:                  h.UV.ptr(),
			Humidity:            h.Humidity.ptr(),
			HeatIndex:           h.HeatIndex.in(u),
			FeelsLike:           h.FeelsLike.in(u),
			Precipitation:       h.Qpf.in(u),
			Snow:                h.Snow.in(u),
			PrecipitationChance: h.PrecipChance.ptr(),
			Pressure:            h.Pressure.in(u),
		})
	}
	return hours, nil
}

func epoch(n number) time.Time {
	if !n.valid {
		return time.Time{}
	}
	return time.Unix(int64(n.value), 0)
}

// Rollups summarizes the hourly forecast at each of weather.RollupHours: the total precipitation, the highest chance
// of precipitation and the mean UV index. A window is only reported if the forecast covers it.
func Rollups(hours []weather.HourlyForecast) []weather.Rollup {
	var (
		rollups       []weather.Rollup
		precipitation float64
		chance        float64
		uv            float64
		next          int
	)
	for i, h := range hours {
		if next == len(weather.RollupHours) {
			break
		}
		precipitation += valueOr(h.Precipitation, 0)
		uv += valueOr(h.UV, 0)
		chance = max(chance, valueOr(h.PrecipitationChance, 0))
		if window := weather.RollupHours[next]; i == window-1 {
			rollups = append(rollups, weather.Rollup{
				Hours:               window,
				Precipitation:       precipitation,
				PrecipitationChance: chance,
				UV:                  uv / float64(window),
			})
			next++
		}
	}
	return rollups
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
