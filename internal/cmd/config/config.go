// Package config shows the acquisition state persisted by earlier runs.
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/clambin/wunderground/internal/acquisition"
	"github.com/clambin/wunderground/internal/store"
	"github.com/clambin/wunderground/internal/upstream"
)

type Encoder interface {
	Encode(any) error
}

type report struct {
	StationKey     string `json:"stationKey" yaml:"stationKey"`
	WebKey         string `json:"webKey" yaml:"webKey"`
	ObservationURL string `json:"observationURL" yaml:"observationURL"`
	DailyURL       string `json:"dailyURL" yaml:"dailyURL"`
	HourlyURL      string `json:"hourlyURL" yaml:"hourlyURL"`
	// CurrentLocation is true if the URLs were acquired for the configured location and station
	CurrentLocation bool `json:"currentLocation" yaml:"currentLocation"`
}

// ShowCredentials writes the persisted acquisition state, with the keys masked. It does not modify the store.
func ShowCredentials(ctx context.Context, s store.Store, location, station string, e Encoder) error {
	values := make(map[string]string)
	for _, key := range []string{
		acquisition.KeyStationKey,
		acquisition.KeyWebKey,
		acquisition.KeyObservationURL,
		acquisition.KeyDailyURL,
		acquisition.KeyHourlyURL,
		acquisition.KeyFingerprint,
	} {
		value, err := store.GetString(ctx, s, key)
		if err != nil {
			return fmt.Errorf("store: %s: %w", key, err)
		}
		values[key] = value
	}

	return e.Encode(report{
		StationKey:      mask(values[acquisition.KeyStationKey]),
		WebKey:          mask(values[acquisition.KeyWebKey]),
		ObservationURL:  upstream.Redact(values[acquisition.KeyObservationURL]),
		DailyURL:        upstream.Redact(values[acquisition.KeyDailyURL]),
		HourlyURL:       upstream.Redact(values[acquisition.KeyHourlyURL]),
		CurrentLocation: values[acquisition.KeyFingerprint] == acquisition.Fingerprint(location, station),
	})
}

// mask only shows the first characters of a key.
func mask(key string) string {
	const visible = 4
	if len(key) <= visible {
		return key
	}
	return key[:visible] + strings.Repeat("*", len(key)-visible)
}
