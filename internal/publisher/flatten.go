package publisher

import (
	"strconv"
	"time"

	"github.com/clambin/wunderground/internal/weather"
)

// DateLayout formats the dates of the daily and period forecasts.
const DateLayout = "02.01.2006"

// Entry is one value of the state tree.
type Entry struct {
	Path  string
	Value any
}

// Flatten converts a report into the entries of the state tree, in a stable order. Times are presented in tz.
// Sections absent from the report produce no entries. Missing measurements produce a nil value.
func Flatten(report weather.Report, tz *time.Location) Entries {
	if tz == nil {
		tz = time.Local
	}
	f := flattener{tz: tz}
	if report.Current != nil {
		f.current(report.Current)
	}
	for i, day := range report.Days {
		f.day(i, day)
	}
	for i, period := range report.Periods {
		f.period(i, period)
	}
	for i, hour := range report.Hours {
		f.hour(i, hour)
	}
	for _, rollup := range report.Rollups {
		f.rollup(rollup)
	}
	return f.entries
}

type flattener struct {
	tz      *time.Location
	prefix  string
	entries Entries
}

func (f *flattener) add(name string, value any) {
	f.entries = append(f.entries, Entry{Path: f.prefix + name, Value: value})
}

func (f *flattener) current(o *weather.Observation) {
	f.prefix = "forecast.current."
	f.add("displayLocationFull", o.DisplayLocation.Full)
	f.add("displayLocationLatitude", number(o.DisplayLocation.Latitude))
	f.add("displayLocationLongitude", number(o.DisplayLocation.Longitude))
	f.add("displayLocationElevation", number(o.DisplayLocation.Elevation))
	f.add("observationLocationFull", o.ObservationLocation.Full)
	f.add("observationLocationLatitude", number(o.ObservationLocation.Latitude))
	f.add("observationLocationLongitude", number(o.ObservationLocation.Longitude))
	f.add("observationLocationElevation", number(o.ObservationLocation.Elevation))
	f.add("observationLocationStationID", o.StationID)
	f.add("localTimeRFC822", f.format(o.LocalTime, time.RFC1123Z, false))
	f.add("observationTimeRFC822", f.format(o.ObservationTime, time.RFC1123Z, false))
	f.add("observationTime", f.format(o.ObservationTime, time.DateTime, true))
	f.add("weather", text(o.Weather))
	f.add("temp", number(o.Temperature))
	f.add("relativeHumidity", number(o.RelativeHumidity))
	f.add("windDegrees", number(o.WindDegrees))
	f.add("windDirection", o.WindDirection)
	f.add("wind", number(o.WindSpeed))
	f.add("windGust", number(o.WindGust))
	f.add("pressure", number(o.Pressure))
	f.add("dewPoint", number(o.DewPoint))
	f.add("windChill", number(o.WindChill))
	f.add("feelsLike", number(o.FeelsLike))
	f.add("visibility", number(o.Visibility))
	f.add("solarRadiation", number(o.SolarRadiation))
	f.add("UV", number(o.UV))
	f.add("precipitationHour", number(o.PrecipitationHour))
	f.add("precipitationDay", number(o.PrecipitationDay))
	f.add("iconURL", o.IconURL)
	f.add("forecastURL", o.ForecastURL)
	f.add("historyURL", o.HistoryURL)
}

func (f *flattener) day(i int, d weather.DailyForecast) {
	f.prefix = "forecast." + strconv.Itoa(i) + "d."
	f.add("date", f.format(d.Date, DateLayout, false))
	f.add("tempMax", number(d.TempMax))
	f.add("tempMin", number(d.TempMin))
	f.add("icon", d.Icon.Value())
	f.add("iconURL", d.IconURL)
	f.add("state", d.State)
	f.add("precipitationChance", number(d.PrecipitationChance))
	f.add("precipitationAllDay", number(d.PrecipitationAllDay))
	f.add("precipitationDay", number(d.PrecipitationDay))
	f.add("precipitationNight", number(d.PrecipitationNight))
	f.add("snowAllDay", number(d.SnowAllDay))
	f.add("snowDay", number(d.SnowDay))
	f.add("snowNight", number(d.SnowNight))
	f.add("windSpeedMax", number(d.WindSpeedMax))
	f.add("windDirectionMax", d.WindDirectionMax)
	f.add("windDegreesMax", number(d.WindDegreesMax))
	f.add("windSpeed", number(d.WindSpeed))
	f.add("windDirection", d.WindDirection)
	f.add("windDegrees", number(d.WindDegrees))
	f.add("humidity", number(d.Humidity))
	f.add("humidityMax", number(d.HumidityMax))
	f.add("humidityMin", number(d.HumidityMin))
}

func (f *flattener) period(i int, p weather.PeriodForecast) {
	f.prefix = "forecastPeriod." + strconv.Itoa(i) + "p."
	f.add("date", f.format(p.Date, DateLayout, false))
	f.add("icon", p.Icon.Value())
	f.add("iconURL", p.IconURL)
	f.add("title", p.Title)
	f.add("state", p.Text)
	f.add("precipitationChance", number(p.PrecipitationChance))
}

func (f *flattener) hour(i int, h weather.HourlyForecast) {
	f.prefix = "forecastHourly." + strconv.Itoa(i) + "h."
	f.add("time", f.format(h.Time, time.RFC1123Z, true))
	f.add("temp", number(h.Temperature))
	f.add("fctcode", h.Icon.Value())
	f.add("sky", number(h.Sky))
	f.add("windSpeed", number(h.WindSpeed))
	f.add("windDirection", number(h.WindDegrees))
	f.add("uv", number(h.UV))
	f.add("humidity", number(h.Humidity))
	f.add("heatIndex", number(h.HeatIndex))
	f.add("feelsLike", number(h.FeelsLike))
	f.add("precipitation", number(h.Precipitation))
	f.add("snow", number(h.Snow))
	f.add("precipitationChance", number(h.PrecipitationChance))
	f.add("mslp", number(h.Pressure))
	f.add("visibility", number(h.Visibility))
}

func (f *flattener) rollup(r weather.Rollup) {
	f.prefix = "forecastHourly." + strconv.Itoa(r.Hours) + "h.sum."
	f.add("precipitation", r.Precipitation)
	f.add("precipitationChance", r.PrecipitationChance)
	f.add("uv", r.UV)
}

// format returns nil for a zero time. Dates keep their own zone unless inTZ is set.
func (f *flattener) format(t time.Time, layout string, inTZ bool) any {
	if t.IsZero() {
		return nil
	}
	if inTZ {
		t = t.In(f.tz)
	}
	return t.Format(layout)
}

func number(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func text(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
