package normalizer

import (
	"bytes"
	"encoding/json"
)

// Payload holds the raw sections received from the provider. The legacy API returns all sections in one document,
// which decodes directly into a Payload. The modern API returns one document per section.
type Payload struct {
	Current json.RawMessage `json:"current_observation,omitempty"`
	// Forecast is the legacy text and structured forecast
	Forecast json.RawMessage `json:"forecast,omitempty"`
	// Daily is the modern daily forecast, in any of its shapes
	Daily json.RawMessage `json:"daily_forecast,omitempty"`
	// Daily2 is an alternate location of the per-day daily forecast, used by recorded payloads
	Daily2 json.RawMessage `json:"daily_forecast2,omitempty"`
	Hourly json.RawMessage `json:"hourly_forecast,omitempty"`
}

// DailySection returns the daily forecast section, wherever it is stored.
func (p Payload) DailySection() json.RawMessage {
	if !isEmpty(p.Daily) {
		return p.Daily
	}
	return p.Daily2
}

// IsEmpty returns true if the payload holds no sections.
func (p Payload) IsEmpty() bool {
	return isEmpty(p.Current) && isEmpty(p.Forecast) && isEmpty(p.DailySection()) && isEmpty(p.Hourly)
}

func isEmpty(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
