package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		nonMetric bool
		language  string
		lang      string
		locale    string
		units     string
	}{
		{name: "default", code: "", language: "DL", lang: "de", locale: "de-DE", units: "m"},
		{name: "english", code: "EN", language: "EN", lang: "en", locale: "en-GB", units: "m"},
		{name: "lower case", code: "nl", language: "NL", lang: "nl", locale: "nl-NL", units: "m"},
		{name: "russian imperial", code: "RU", nonMetric: true, language: "RU", lang: "ru", locale: "ru-RU", units: "e"},
		{name: "unknown", code: "XX", language: "DL", lang: "de", locale: "de-DE", units: "m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := New(tt.code, tt.nonMetric)
			assert.Equal(t, tt.language, c.Language)
			assert.Equal(t, tt.lang, c.Lang())
			assert.Equal(t, tt.locale, c.Locale())
			assert.Equal(t, tt.units, c.Units.Code())
			assert.Equal(t, !tt.nonMetric, c.Metric())
		})
	}
}

func TestContext_Condition(t *testing.T) {
	assert.Equal(t, "Teilweise wolkig", New("DL", false).Condition("partlycloudy"))
	assert.Equal(t, "Partly cloudy", New("EN", false).Condition("partlycloudy"))
	assert.Equal(t, "Regen", New("NL", false).Condition("rain"))
	assert.Equal(t, "Sunny", New("EN", false).Condition("SUNNY"))
	assert.Equal(t, "nt_unknown", New("EN", false).Condition("nt_unknown"))
}
