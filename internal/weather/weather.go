// Package weather contains the canonical records that every upstream response shape is normalized into.
package weather

import (
	"strconv"
	"strings"
	"time"
)

const (
	MaxDays    = 4
	MaxPeriods = 8
	MaxHours   = 36
)

// RollupHours are the hours at which the hourly forecast is rolled up.
var RollupHours = []int{6, 12, 24}

// Report is the result of one run. Sections that could not be produced are nil.
type Report struct {
	Current *Observation
	Periods []PeriodForecast
	Days    []DailyForecast
	Hours   []HourlyForecast
	Rollups []Rollup
}

// Location describes where an observation was made.
type Location struct {
	Full      string
	Latitude  *float64
	Longitude *float64
	Elevation *float64
}

// Observation holds the current conditions.
type Observation struct {
	DisplayLocation     Location
	ObservationLocation Location
	StationID           string
	LocalTime           time.Time
	ObservationTime     time.Time
	Weather             *string
	Temperature         *float64
	RelativeHumidity    *float64
	WindDegrees         *float64
	WindDirection       string
	WindSpeed           *float64
	WindGust            *float64
	Pressure            *float64
	DewPoint            *float64
	WindChill           *float64
	FeelsLike           *float64
	Visibility          *float64
	SolarRadiation      *float64
	UV                  *float64
	PrecipitationHour   *float64
	PrecipitationDay    *float64
	Icon                Icon
	IconURL             string
	ForecastURL         string
	HistoryURL          string
}

// DailyForecast holds the forecast for one day.
type DailyForecast struct {
	Date                time.Time
	TempMax             *float64
	TempMin             *float64
	Icon                Icon
	IconURL             string
	State               string
	PrecipitationChance *float64
	PrecipitationAllDay *float64
	PrecipitationDay    *float64
	PrecipitationNight  *float64
	SnowAllDay          *float64
	SnowDay             *float64
	SnowNight           *float64
	WindSpeedMax        *float64
	WindDirectionMax    string
	WindDegreesMax      *float64
	WindSpeed           *float64
	WindDirection       string
	WindDegrees         *float64
	Humidity            *float64
	HumidityMax         *float64
	HumidityMin         *float64
}

// PeriodForecast holds the forecast for a day or night period.
type PeriodForecast struct {
	Date                time.Time
	Icon                Icon
	IconURL             string
	Title               string
	Text                string
	PrecipitationChance *float64
}

// HourlyForecast holds the forecast for one hour.
type HourlyForecast struct {
	Time                time.Time
	Temperature         *float64
	Icon                Icon
	Sky                 *float64
	WindSpeed           *float64
	WindDegrees         *float64
	UV                  *float64
	Humidity            *float64
	HeatIndex           *float64
	FeelsLike           *float64
	Precipitation       *float64
	Snow                *float64
	PrecipitationChance *float64
	Pressure            *float64
	Visibility          *float64
}

// Rollup summarizes the first Hours of the hourly forecast.
type Rollup struct {
	Hours               int
	Precipitation       float64
	PrecipitationChance float64
	UV                  float64
}

// Icon is a provider icon reference. Numeric icon codes are kept as a number, anything else as the original text.
type Icon struct {
	Code    int
	Text    string
	Numeric bool
}

// ParseIcon converts a provider icon reference.
func ParseIcon(v any) Icon {
	switch val := v.(type) {
	case nil:
		return Icon{}
	case int:
		return Icon{Code: val, Numeric: true}
	case float64:
		if val == float64(int(val)) {
			return Icon{Code: int(val), Numeric: true}
		}
		return Icon{Text: strconv.FormatFloat(val, 'f', -1, 64)}
	case string:
		s := strings.TrimSpace(val)
		if code, err := strconv.Atoi(s); err == nil {
			return Icon{Code: code, Numeric: true}
		}
		return Icon{Text: val}
	default:
		return Icon{}
	}
}

// IsZero returns true if no icon was provided.
func (i Icon) IsZero() bool {
	return !i.Numeric && i.Text == ""
}

// Value returns the icon as an int or a string. Returns nil if there is no icon.
func (i Icon) Value() any {
	switch {
	case i.Numeric:
		return i.Code
	case i.Text != "":
		return i.Text
	default:
		return nil
	}
}

func (i Icon) String() string {
	if i.Numeric {
		return strconv.Itoa(i.Code)
	}
	return i.Text
}
