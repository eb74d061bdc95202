package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/clambin/wunderground/internal/locale"
	"github.com/clambin/wunderground/internal/weather"
)

type legacyLocation struct {
	Full      string `json:"full"`
	Latitude  number `json:"latitude"`
	Longitude number `json:"longitude"`
	Elevation number `json:"elevation"`
}

type legacyObservation struct {
	DisplayLocation       legacyLocation `json:"display_location"`
	ObservationLocation   legacyLocation `json:"observation_location"`
	StationID             string         `json:"station_id"`
	LocalTimeRFC822       string         `json:"local_time_rfc822"`
	ObservationTimeRFC822 string         `json:"observation_time_rfc822"`
	LocalEpoch            number         `json:"local_epoch"`
	Weather               *string        `json:"weather"`
	TempC                 number         `json:"temp_c"`
	TempF                 number         `json:"temp_f"`
	RelativeHumidity      number         `json:"relative_humidity"`
	WindDegrees           number         `json:"wind_degrees"`
	WindKph               number         `json:"wind_kph"`
	WindMph               number         `json:"wind_mph"`
	WindGustKph           number         `json:"wind_gust_kph"`
	WindGustMph           number         `json:"wind_gust_mph"`
	PressureMb            number         `json:"pressure_mb"`
	PressureIn            number         `json:"pressure_in"`
	DewpointC             number         `json:"dewpoint_c"`
	DewpointF             number         `json:"dewpoint_f"`
	WindchillC            number         `json:"windchill_c"`
	WindchillF            number         `json:"windchill_f"`
	FeelslikeC            number         `json:"feelslike_c"`
	FeelslikeF            number         `json:"feelslike_f"`
	VisibilityKm          number         `json:"visibility_km"`
	VisibilityMi          number         `json:"visibility_mi"`
	SolarRadiation        number         `json:"solarradiation"`
	UV                    number         `json:"UV"`
	Precip1hrMetric       number         `json:"precip_1hr_metric"`
	Precip1hrIn           number         `json:"precip_1hr_in"`
	PrecipTodayMetric     number         `json:"precip_today_metric"`
	PrecipTodayIn         number         `json:"precip_today_in"`
	Icon                  any            `json:"icon"`
	IconURL               string         `json:"icon_url"`
	ForecastURL           string         `json:"forecast_url"`
	HistoryURL            string         `json:"history_url"`
}

const feetToMeters = 0.3048

func normalizeLegacyObservation(raw json.RawMessage, lc locale.Context) (*weather.Observation, error) {
	var in legacyObservation
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	u := unitsOf(lc)
	obsLocation := location(in.ObservationLocation)
	// the observation location's elevation is reported in feet
	if lc.Metric() && obsLocation.Elevation != nil {
		elevation := math.Round(*obsLocation.Elevation*feetToMeters*100) / 100
		obsLocation.Elevation = &elevation
	}

	out := weather.Observation{
		DisplayLocation:     location(in.DisplayLocation),
		ObservationLocation: obsLocation,
		StationID:           in.StationID,
		LocalTime:           parseRFC822(in.LocalTimeRFC822),
		ObservationTime:     parseRFC822(in.ObservationTimeRFC822),
		Weather:             in.Weather,
		Temperature:         u.pick(in.TempC, in.TempF).ptr(),
		RelativeHumidity:    in.RelativeHumidity.ptr(),
		WindDegrees:         in.WindDegrees.ptr(),
		WindDirection:       compassOf(in.WindDegrees),
		WindSpeed:           u.pick(in.WindKph, in.WindMph).ptr(),
		WindGust:            u.pick(in.WindGustKph, in.WindGustMph).ptr(),
		Pressure:            u.pick(in.PressureMb, in.PressureIn).ptr(),
		DewPoint:            u.pick(in.DewpointC, in.DewpointF).ptr(),
		WindChill:           u.pick(in.WindchillC, in.WindchillF).ptr(),
		FeelsLike:           u.pick(in.FeelslikeC, in.FeelslikeF).ptr(),
		Visibility:          u.pick(in.VisibilityKm, in.VisibilityMi).ptr(),
		SolarRadiation:      in.SolarRadiation.ptr(),
		UV:                  in.UV.ptr(),
		PrecipitationHour:   u.pick(in.Precip1hrMetric, in.Precip1hrIn).ptr(),
		PrecipitationDay:    u.pick(in.PrecipTodayMetric, in.PrecipTodayIn).ptr(),
		Icon:                weather.ParseIcon(in.Icon),
		IconURL:             in.IconURL,
		ForecastURL:         in.ForecastURL,
		HistoryURL:          in.HistoryURL,
	}
	if out.ObservationTime.IsZero() && in.LocalEpoch.valid {
		out.ObservationTime = time.Unix(int64(in.LocalEpoch.value), 0)
	}
	return &out, nil
}

func location(in legacyLocation) weather.Location {
	return weather.Location{
		Full:      in.Full,
		Latitude:  in.Latitude.ptr(),
		Longitude: in.Longitude.ptr(),
		Elevation: in.Elevation.ptr(),
	}
}

func parseRFC822(value string) time.Time {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z} {
		if t, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return t
		}
	}
	return time.Time{}
}

type pwsValues struct {
	Temp        number `json:"temp"`
	HeatIndex   number `json:"heatIndex"`
	DewPoint    number `json:"dewpt"`
	WindChill   number `json:"windChill"`
	WindSpeed   number `json:"windSpeed"`
	WindGust    number `json:"windGust"`
	Pressure    number `json:"pressure"`
	PrecipRate  number `json:"precipRate"`
	PrecipTotal number `json:"precipTotal"`
	Elevation   number `json:"elev"`
}

type pwsObservation struct {
	StationID      string     `json:"stationID"`
	ObsTimeUtc     string     `json:"obsTimeUtc"`
	ObsTimeLocal   string     `json:"obsTimeLocal"`
	Neighborhood   string     `json:"neighborhood"`
	Latitude       number     `json:"lat"`
	Longitude      number     `json:"lon"`
	SolarRadiation number     `json:"solarRadiation"`
	UV             number     `json:"uv"`
	WindDirection  number     `json:"winddir"`
	Humidity       number     `json:"humidity"`
	Metric         *pwsValues `json:"metric"`
	Imperial       *pwsValues `json:"imperial"`
}

type pwsResponse struct {
	Observations []json.RawMessage `json:"observations"`
}

var errNoObservations = errors.New("no observations")

func normalizePWSObservation(raw json.RawMessage, lc locale.Context) (*weather.Observation, error) {
	var wrapped pwsResponse
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Observations != nil {
		if len(wrapped.Observations) == 0 {
			return nil, errNoObservations
		}
		raw = wrapped.Observations[0]
	}

	var in pwsObservation
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	values := in.Metric
	if !lc.Metric() {
		values = in.Imperial
	}
	if values == nil {
		return nil, fmt.Errorf("observation has no %s values", lc.Units)
	}

	loc := weather.Location{
		Full:      in.Neighborhood,
		Latitude:  in.Latitude.ptr(),
		Longitude: in.Longitude.ptr(),
		Elevation: values.Elevation.ptr(),
	}
	obsTime, localTime := parsePWSTimes(in.ObsTimeUtc, in.ObsTimeLocal)
	out := weather.Observation{
		DisplayLocation:     loc,
		ObservationLocation: loc,
		StationID:           in.StationID,
		LocalTime:           localTime,
		ObservationTime:     obsTime,
		Temperature:         values.Temp.ptr(),
		RelativeHumidity:    in.Humidity.ptr(),
		WindDegrees:         in.WindDirection.ptr(),
		WindDirection:       compassOf(in.WindDirection),
		WindSpeed:           values.WindSpeed.ptr(),
		WindGust:            values.WindGust.ptr(),
		Pressure:            values.Pressure.ptr(),
		DewPoint:            values.DewPoint.ptr(),
		WindChill:           values.WindChill.ptr(),
		FeelsLike:           values.HeatIndex.ptr(),
		SolarRadiation:      in.SolarRadiation.ptr(),
		UV:                  in.UV.ptr(),
		PrecipitationHour:   values.PrecipRate.ptr(),
		PrecipitationDay:    values.PrecipTotal.ptr(),
	}
	return &out, nil
}

const pwsLocalLayout = "2006-01-02 15:04:05"

// parsePWSTimes returns the observation time and the same instant in the station's time zone. The zone is derived
// from the difference between the local and UTC timestamps.
func parsePWSTimes(utc, local string) (time.Time, time.Time) {
	obsTime, err := time.Parse(time.RFC3339, utc)
	if err != nil {
		return time.Time{}, time.Time{}
	}
	wallClock, err := time.Parse(pwsLocalLayout, local)
	if err != nil {
		return obsTime, obsTime
	}
	offset := wallClock.Sub(obsTime.UTC().Truncate(time.Second))
	// offsets are whole minutes
	offset = offset.Round(time.Minute)
	return obsTime, obsTime.In(time.FixedZone("", int(offset.Seconds())))
}

// unitSelector selects the variant of a value matching the configured unit system.
type unitSelector struct {
	metric bool
}

func unitsOf(lc locale.Context) unitSelector {
	return unitSelector{metric: lc.Metric()}
}

func (u unitSelector) pick(metric, imperial number) number {
	if u.metric {
		return metric
	}
	return imperial
}
