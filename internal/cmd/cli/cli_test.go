package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer
	l := newLogger(&out, false)
	l.Debug("hidden")
	l.Info("shown", "component", "test")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "test", entry["component"])

	out.Reset()
	newLogger(&out, true).Debug("debug")
	assert.Contains(t, out.String(), `"level":"DEBUG"`)
}

func TestEncoder(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, encoder(&out, "json").Encode(map[string]string{"a": "b"}))
	assert.Equal(t, "{\n  \"a\": \"b\"\n}\n", out.String())

	out.Reset()
	require.NoError(t, encoder(&out, "yaml").Encode(map[string]string{"a": "b"}))
	assert.Equal(t, "a: b\n", out.String())
}

func TestRootCmd(t *testing.T) {
	assert.NotNil(t, RootCmd.PersistentFlags().Lookup("location"))
	assert.NotNil(t, RootCmd.PersistentFlags().Lookup("store.driver"))
	names := make([]string, 0, len(RootCmd.Commands()))
	for _, c := range RootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"schedule", "credentials"})
}
