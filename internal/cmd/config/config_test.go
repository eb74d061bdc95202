package config_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/clambin/wunderground/internal/acquisition"
	"github.com/clambin/wunderground/internal/cmd/config"
	"github.com/clambin/wunderground/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestShowCredentials(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.Set(ctx, acquisition.KeyStationKey, "606f3f6977348613"))
	require.NoError(t, s.Set(ctx, acquisition.KeyHourlyURL, "https://api.weather.com/v3/wx/forecast/hourly/15day?apiKey=6532d6454b8aa370768e63d6ba5a832e&units=e"))
	require.NoError(t, s.Set(ctx, acquisition.KeyFingerprint, acquisition.Fingerprint("Berlin", "IBERLIN1658")))
	before := s.Values()

	var out bytes.Buffer
	e1 := yaml.NewEncoder(&out)
	err := config.ShowCredentials(ctx, s, "Berlin", "IBERLIN1658", e1)
	require.NoError(t, err)
	assert.Equal(t, `stationKey: 606f************
webKey: ""
observationURL: ""
dailyURL: ""
hourlyURL: https://api.weather.com/v3/wx/forecast/hourly/15day?apiKey=xxx&units=e
currentLocation: true
`, out.String())

	out.Reset()
	e2 := json.NewEncoder(&out)
	err = config.ShowCredentials(ctx, s, "Hamburg", "", e2)
	require.NoError(t, err)
	assert.Equal(t, `{"stationKey":"606f************","webKey":"","observationURL":"","dailyURL":"","hourlyURL":"https://api.weather.com/v3/wx/forecast/hourly/15day?apiKey=xxx\u0026units=e","currentLocation":false}
`, out.String())

	assert.Equal(t, before, s.Values())
}
