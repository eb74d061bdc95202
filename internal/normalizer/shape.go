package normalizer

import (
	"bytes"
	"encoding/json"
)

// Shape identifies the layout of a section received from the provider.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeLegacyObservation is the current_observation object of the legacy API
	ShapeLegacyObservation
	// ShapePWSObservation is an observation of the modern personal weather station API
	ShapePWSObservation
	// ShapeLegacyForecast is the forecast object of the legacy API, holding txt_forecast and simpleforecast
	ShapeLegacyForecast
	// ShapeDailyArrays is the modern daily forecast as parallel arrays, with day/night pairs flattened into daypart arrays
	ShapeDailyArrays
	// ShapeDailyForecasts is the modern daily forecast as an array of per-day objects with optional day/night objects
	ShapeDailyForecasts
	// ShapeHourlyArrays is the modern hourly forecast as parallel arrays
	ShapeHourlyArrays
	// ShapeHourlyLegacy is the legacy hourly forecast: an array of per-hour objects
	ShapeHourlyLegacy
)

var shapeNames = map[Shape]string{
	ShapeUnknown:           "unknown",
	ShapeLegacyObservation: "legacyObservation",
	ShapePWSObservation:    "pwsObservation",
	ShapeLegacyForecast:    "legacyForecast",
	ShapeDailyArrays:       "dailyArrays",
	ShapeDailyForecasts:    "dailyForecasts",
	ShapeHourlyArrays:      "hourlyArrays",
	ShapeHourlyLegacy:      "hourlyLegacy",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return shapeNames[ShapeUnknown]
}

// DetectShape classifies a section by the keys that discriminate the provider's layouts.
func DetectShape(raw json.RawMessage) Shape {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ShapeUnknown
	}
	switch raw[0] {
	case '{':
		var keys map[string]json.RawMessage
		if json.Unmarshal(raw, &keys) != nil {
			return ShapeUnknown
		}
		return detectObject(keys)
	case '[':
		var items []map[string]json.RawMessage
		if json.Unmarshal(raw, &items) != nil || len(items) == 0 {
			return ShapeUnknown
		}
		return detectArray(items[0])
	default:
		return ShapeUnknown
	}
}

func detectObject(keys map[string]json.RawMessage) Shape {
	has := func(key string) bool {
		_, ok := keys[key]
		return ok
	}
	switch {
	case has("display_location") || has("temp_c") || has("temp_f"):
		return ShapeLegacyObservation
	case has("stationID") || has("obsTimeUtc"):
		return ShapePWSObservation
	case has("observations"):
		var observations []map[string]json.RawMessage
		if json.Unmarshal(keys["observations"], &observations) == nil && len(observations) > 0 {
			return detectObject(observations[0])
		}
	case has("txt_forecast") || has("simpleforecast"):
		return ShapeLegacyForecast
	case has("dayOfWeek"):
		return ShapeDailyArrays
	case has("forecasts"):
		return ShapeDailyForecasts
	case has("validTimeUtc"):
		return ShapeHourlyArrays
	}
	return ShapeUnknown
}

func detectArray(item map[string]json.RawMessage) Shape {
	if _, ok := item["FCTTIME"]; ok {
		return ShapeHourlyLegacy
	}
	if _, ok := item["fcst_valid_local"]; ok {
		return ShapeDailyForecasts
	}
	return ShapeUnknown
}
