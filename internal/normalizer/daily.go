package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clambin/wunderground/internal/locale"
	"github.com/clambin/wunderground/internal/weather"
)

var errNoDays = errors.New("forecast holds no days")

func parseLocalTime(value string) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// legacy API

type legacyForecast struct {
	TxtForecast struct {
		ForecastDay []legacyPeriod `json:"forecastday"`
	} `json:"txt_forecast"`
	SimpleForecast struct {
		ForecastDay []legacyDay `json:"forecastday"`
	} `json:"simpleforecast"`
}

type legacyPeriod struct {
	Period       number `json:"period"`
	Icon         any    `json:"icon"`
	IconURL      string `json:"icon_url"`
	Title        string `json:"title"`
	Text         string `json:"fcttext"`
	TextMetric   string `json:"fcttext_metric"`
	PrecipChance number `json:"pop"`
}

type legacyTemperature struct {
	Celsius    number `json:"celsius"`
	Fahrenheit number `json:"fahrenheit"`
}

type legacyAmount struct {
	In number `json:"in"`
	Mm number `json:"mm"`
	Cm number `json:"cm"`
}

type legacyWind struct {
	Mph       number `json:"mph"`
	Kph       number `json:"kph"`
	Direction string `json:"dir"`
	Degrees   number `json:"degrees"`
}

type legacyDay struct {
	Date struct {
		Epoch number `json:"epoch"`
	} `json:"date"`
	High         legacyTemperature `json:"high"`
	Low          legacyTemperature `json:"low"`
	Icon         any               `json:"icon"`
	IconURL      string            `json:"icon_url"`
	PrecipChance number            `json:"pop"`
	QpfAllDay    legacyAmount      `json:"qpf_allday"`
	QpfDay       legacyAmount      `json:"qpf_day"`
	QpfNight     legacyAmount      `json:"qpf_night"`
	SnowAllDay   legacyAmount      `json:"snow_allday"`
	SnowDay      legacyAmount      `json:"snow_day"`
	SnowNight    legacyAmount      `json:"snow_night"`
	MaxWind      legacyWind        `json:"maxwind"`
	AveWind      legacyWind        `json:"avewind"`
	AveHumidity  number            `json:"avehumidity"`
	MaxHumidity  number            `json:"maxhumidity"`
	MinHumidity  number            `json:"minhumidity"`
}

func decodeLegacyForecast(raw json.RawMessage) (legacyForecast, error) {
	var in legacyForecast
	if err := json.Unmarshal(raw, &in); err != nil {
		return legacyForecast{}, fmt.Errorf("decode: %w", err)
	}
	return in, nil
}

func normalizeLegacyPeriods(raw json.RawMessage, lc locale.Context, now time.Time) ([]weather.PeriodForecast, error) {
	in, err := decodeLegacyForecast(raw)
	if err != nil {
		return nil, err
	}
	if len(in.TxtForecast.ForecastDay) == 0 {
		return nil, errors.New("forecast holds no periods")
	}

	periods := make([]weather.PeriodForecast, 0, weather.MaxPeriods)
	for _, p := range in.TxtForecast.ForecastDay[:min(len(in.TxtForecast.ForecastDay), weather.MaxPeriods)] {
		text := p.Text
		if lc.Metric() {
			text = p.TextMetric
		}
		periods = append(periods, weather.PeriodForecast{
			Date:                now.Add(time.Duration(p.Period.or(0)) * 12 * time.Hour),
			Icon:                weather.ParseIcon(p.Icon),
			IconURL:             p.IconURL,
			Title:               p.Title,
			Text:                text,
			PrecipitationChance: p.PrecipChance.ptr(),
		})
	}
	return periods, nil
}

func normalizeLegacyDays(raw json.RawMessage, lc locale.Context) ([]weather.DailyForecast, error) {
	in, err := decodeLegacyForecast(raw)
	if err != nil {
		return nil, err
	}
	if len(in.SimpleForecast.ForecastDay) == 0 {
		return nil, errNoDays
	}

	u := unitsOf(lc)
	days := make([]weather.DailyForecast, 0, weather.MaxDays)
	for _, d := range in.SimpleForecast.ForecastDay[:min(len(in.SimpleForecast.ForecastDay), weather.MaxDays)] {
		icon := weather.ParseIcon(d.Icon)
		var date time.Time
		if d.Date.Epoch.valid {
			date = time.Unix(int64(d.Date.Epoch.value), 0)
		}
		days = append(days, weather.DailyForecast{
			Date:                date,
			TempMax:             u.pick(d.High.Celsius, d.High.Fahrenheit).ptr(),
			TempMin:             u.pick(d.Low.Celsius, d.Low.Fahrenheit).ptr(),
			Icon:                icon,
			IconURL:             d.IconURL,
			State:               lc.Condition(icon.String()),
			PrecipitationChance: d.PrecipChance.ptr(),
			PrecipitationAllDay: u.pick(d.QpfAllDay.Mm, d.QpfAllDay.In).ptr(),
			PrecipitationDay:    u.pick(d.QpfDay.Mm, d.QpfDay.In).ptr(),
			PrecipitationNight:  u.pick(d.QpfNight.Mm, d.QpfNight.In).ptr(),
			SnowAllDay:          u.pick(d.SnowAllDay.Cm, d.SnowAllDay.In).ptr(),
			SnowDay:             u.pick(d.SnowDay.Cm, d.SnowDay.In).ptr(),
			SnowNight:           u.pick(d.SnowNight.Cm, d.SnowNight.In).ptr(),
			WindSpeedMax:        u.pick(d.MaxWind.Kph, d.MaxWind.Mph).ptr(),
			WindDirectionMax:    d.MaxWind.Direction,
			WindDegreesMax:      d.MaxWind.Degrees.ptr(),
			WindSpeed:           u.pick(d.AveWind.Kph, d.AveWind.Mph).ptr(),
			WindDirection:       d.AveWind.Direction,
			WindDegrees:         d.AveWind.Degrees.ptr(),
			Humidity:            d.AveHumidity.ptr(),
			HumidityMax:         d.MaxHumidity.ptr(),
			HumidityMin:         d.MinHumidity.ptr(),
		})
	}
	return days, nil
}

// modern API: parallel arrays. Daypart arrays hold a day and a night entry per day, at 2*i and 2*i+1.
// The day entry is null once the day is over.

type dailyArrays struct {
	ValidTimeLocal []string  `json:"validTimeLocal"`
	TemperatureMax numbers   `json:"temperatureMax"`
	TemperatureMin numbers   `json:"temperatureMin"`
	Narrative      texts     `json:"narrative"`
	Qpf            numbers   `json:"qpf"`
	QpfSnow        numbers   `json:"qpfSnow"`
	Daypart        []daypart `json:"daypart"`
}

type daypart struct {
	DaypartName      texts   `json:"daypartName"`
	IconCode         []any   `json:"iconCode"`
	Narrative        texts   `json:"narrative"`
	PrecipChance     numbers `json:"precipChance"`
	Qpf              numbers `json:"qpf"`
	QpfSnow          numbers `json:"qpfSnow"`
	WindSpeed        numbers `json:"windSpeed"`
	WindDirection    numbers `json:"windDirection"`
	RelativeHumidity numbers `json:"relativeHumidity"`
}

func (d daypart) icon(i int) weather.Icon {
	if i < 0 || i >= len(d.IconCode) {
		return weather.Icon{}
	}
	return weather.ParseIcon(d.IconCode[i])
}

func decodeDailyArrays(raw json.RawMessage) (dailyArrays, daypart, error) {
	var in dailyArrays
	if err := json.Unmarshal(raw, &in); err != nil {
		return dailyArrays{}, daypart{}, fmt.Errorf("decode: %w", err)
	}
	if len(in.Daypart) == 0 {
		return dailyArrays{}, daypart{}, errors.New("forecast holds no dayparts")
	}
	return in, in.Daypart[0], nil
}

func normalizeDailyArrays(raw json.RawMessage) ([]weather.DailyForecast, error) {
	in, parts, err := decodeDailyArrays(raw)
	if err != nil {
		return nil, err
	}
	if len(in.ValidTimeLocal) == 0 {
		return nil, errNoDays
	}

	days := make([]weather.DailyForecast, 0, weather.MaxDays)
	for i := range min(len(in.ValidTimeLocal), weather.MaxDays) {
		day, night := 2*i, 2*i+1
		icon := parts.icon(day)
		if icon.IsZero() {
			icon = parts.icon(night)
		}
		forecast := combineDayNight(
			dayNight{
				speed:        parts.WindSpeed.at(day),
				direction:    parts.WindDirection.at(day),
				humidity:     parts.RelativeHumidity.at(day),
				precipChance: parts.PrecipChance.at(day),
			},
			dayNight{
				speed:        parts.WindSpeed.at(night),
				direction:    parts.WindDirection.at(night),
				humidity:     parts.RelativeHumidity.at(night),
				precipChance: parts.PrecipChance.at(night),
			},
		)
		// the provider doesn't report the direction of the strongest wind as degrees in this layout
		forecast.WindDegreesMax = nil
		forecast.Date = parseLocalTime(in.ValidTimeLocal[i])
		forecast.TempMax = in.TemperatureMax.at(i).ptr()
		forecast.TempMin = in.TemperatureMin.at(i).ptr()
		forecast.Icon = icon
		forecast.IconURL = icon.String()
		forecast.State = in.Narrative.at(i)
		forecast.PrecipitationAllDay = in.Qpf.at(i).ptr()
		forecast.PrecipitationDay = parts.Qpf.at(day).ptr()
		forecast.PrecipitationNight = parts.Qpf.at(night).ptr()
		forecast.SnowAllDay = in.QpfSnow.at(i).ptr()
		forecast.SnowDay = parts.QpfSnow.at(day).ptr()
		forecast.SnowNight = parts.QpfSnow.at(night).ptr()
		days = append(days, forecast)
	}
	return days, nil
}

func normalizeDailyArrayPeriods(raw json.RawMessage) ([]weather.PeriodForecast, error) {
	in, parts, err := decodeDailyArrays(raw)
	if err != nil {
		return nil, err
	}

	// skip the day period once the day is over
	start := 0
	if parts.DaypartName.null(0) {
		start = 1
	}
	periods := make([]weather.PeriodForecast, 0, weather.MaxPeriods)
	for idx := start; idx < start+weather.MaxPeriods && idx < len(parts.DaypartName); idx++ {
		var date time.Time
		if day := idx / 2; day < len(in.ValidTimeLocal) {
			date = parseLocalTime(in.ValidTimeLocal[day]).Add(time.Duration(idx%2) * 12 * time.Hour)
		}
		icon := parts.icon(idx)
		periods = append(periods, weather.PeriodForecast{
			Date:                date,
			Icon:                icon,
			IconURL:             icon.String(),
			Title:               parts.DaypartName.at(idx),
			Text:                parts.Narrative.at(idx),
			PrecipitationChance: parts.PrecipChance.at(idx).ptr(),
		})
	}
	if len(periods) == 0 {
		return nil, errors.New("forecast holds no periods")
	}
	return periods, nil
}

// modern API: one object per day, with optional day and night objects.

type dailyForecastPart struct {
	FcstValidLocal string `json:"fcst_valid_local"`
	DaypartName    string `json:"daypart_name"`
	IconCode       any    `json:"icon_code"`
	Narrative      string `json:"narrative"`
	PrecipChance   number `json:"pop"`
	Qpf            number `json:"qpf"`
	SnowQpf        number `json:"snow_qpf"`
	WindSpeed      number `json:"wspd"`
	WindDirection  number `json:"wdir"`
	Humidity       number `json:"rh"`
}

type dailyForecastDay struct {
	FcstValidLocal string             `json:"fcst_valid_local"`
	MaxTemp        number             `json:"max_temp"`
	MinTemp        number             `json:"min_temp"`
	Narrative      string             `json:"narrative"`
	Qpf            number             `json:"qpf"`
	SnowQpf        number             `json:"snow_qpf"`
	Day            *dailyForecastPart `json:"day"`
	Night          *dailyForecastPart `json:"night"`
}

func decodeDailyForecasts(raw json.RawMessage) ([]dailyForecastDay, error) {
	var wrapped struct {
		Forecasts []dailyForecastDay `json:"forecasts"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Forecasts, nil
	}
	var days []dailyForecastDay
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return days, nil
}

func (p *dailyForecastPart) values() dayNight {
	if p == nil {
		return dayNight{}
	}
	return dayNight{
		speed:        p.WindSpeed,
		direction:    p.WindDirection,
		humidity:     p.Humidity,
		precipChance: p.PrecipChance,
	}
}

func (p *dailyForecastPart) icon() weather.Icon {
	if p == nil {
		return weather.Icon{}
	}
	return weather.ParseIcon(p.IconCode)
}

func (p *dailyForecastPart) qpf() *float64 {
	if p == nil {
		return nil
	}
	return p.Qpf.ptr()
}

func (p *dailyForecastPart) snow() *float64 {
	if p == nil {
		return nil
	}
	return p.SnowQpf.ptr()
}

func normalizeDailyForecasts(raw json.RawMessage) ([]weather.DailyForecast, error) {
	in, err := decodeDailyForecasts(raw)
	if err != nil {
		return nil, err
	}
	if len(in) == 0 {
		return nil, errNoDays
	}

	days := make([]weather.DailyForecast, 0, weather.MaxDays)
	for _, d := range in[:min(len(in), weather.MaxDays)] {
		icon := d.Day.icon()
		if icon.IsZero() {
			icon = d.Night.icon()
		}
		forecast := combineDayNight(d.Day.values(), d.Night.values())
		forecast.Date = parseLocalTime(d.FcstValidLocal)
		forecast.TempMax = d.MaxTemp.ptr()
		forecast.TempMin = d.MinTemp.ptr()
		forecast.Icon = icon
		forecast.IconURL = icon.String()
		forecast.State = d.Narrative
		forecast.PrecipitationAllDay = d.Qpf.ptr()
		forecast.PrecipitationDay = d.Day.qpf()
		forecast.PrecipitationNight = d.Night.qpf()
		forecast.SnowAllDay = d.SnowQpf.ptr()
		forecast.SnowDay = d.Day.snow()
		forecast.SnowNight = d.Night.snow()
		days = append(days, forecast)
	}
	return days, nil
}

func normalizeDailyForecastPeriods(raw json.RawMessage) ([]weather.PeriodForecast, error) {
	in, err := decodeDailyForecasts(raw)
	if err != nil {
		return nil, err
	}

	periods := make([]weather.PeriodForecast, 0, weather.MaxPeriods)
	for _, d := range in {
		for _, part := range []*dailyForecastPart{d.Day, d.Night} {
			if part == nil || len(periods) == weather.MaxPeriods {
				continue
			}
			icon := part.icon()
			periods = append(periods, weather.PeriodForecast{
				Date:                parseLocalTime(part.FcstValidLocal),
				Icon:                icon,
				IconURL:             icon.String(),
				Title:               part.DaypartName,
				Text:                part.Narrative,
				PrecipitationChance: part.PrecipChance.ptr(),
			})
		}
	}
	if len(periods) == 0 {
		return nil, errors.New("forecast holds no periods")
	}
	return periods, nil
}

// dayNight holds the values of a day or night period that are aggregated into the daily forecast.
type dayNight struct {
	speed        number
	direction    number
	humidity     number
	precipChance number
}

// combineDayNight aggregates the day and night values. Averages report the day, or the night once the day is over.
// Maximums treat a missing side as 0, minimums as 100.
func combineDayNight(day, night dayNight) weather.DailyForecast {
	strongest := day.direction
	if night.speed.valid && (!day.speed.valid || night.speed.value > day.speed.value) {
		strongest = night.direction
	}
	return weather.DailyForecast{
		PrecipitationChance: maxOf(day.precipChance, night.precipChance),
		WindSpeedMax:        maxOf(day.speed, night.speed),
		WindDirectionMax:    compassOf(strongest),
		WindDegreesMax:      strongest.ptr(),
		WindSpeed:           first(day.speed, night.speed).ptr(),
		WindDirection:       compassOf(first(day.direction, night.direction)),
		WindDegrees:         first(day.direction, night.direction).ptr(),
		Humidity:            first(day.humidity, night.humidity).ptr(),
		HumidityMax:         maxOf(day.humidity, night.humidity),
		HumidityMin:         minOf(day.humidity, night.humidity),
	}
}
