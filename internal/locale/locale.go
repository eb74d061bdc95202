// Package locale holds the unit system and language used for a run.
package locale

import (
	_ "embed"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Units selects the measurement system of requested and published values.
type Units int

const (
	Metric Units = iota
	Imperial
)

// Code returns the units code used by the provider's APIs.
func (u Units) Code() string {
	if u == Imperial {
		return "e"
	}
	return "m"
}

func (u Units) String() string {
	if u == Imperial {
		return "imperial"
	}
	return "metric"
}

// DefaultLanguage is the provider's language code used when none is configured.
const DefaultLanguage = "DL"

// languages maps the provider's legacy language codes to a BCP 47 locale.
var languages = map[string]string{
	"DL": "de-DE",
	"EN": "en-GB",
	"RU": "ru-RU",
	"NL": "nl-NL",
}

// Context is the unit/locale context of a run.
type Context struct {
	Units Units
	// Language is the provider's legacy language code (e.g. DL)
	Language string
	Tag      language.Tag
}

// New returns a Context for the provider language code and unit system. Unknown codes fall back to DefaultLanguage.
func New(code string, nonMetric bool) Context {
	code = strings.ToUpper(strings.TrimSpace(code))
	locale, ok := languages[code]
	if !ok {
		code = DefaultLanguage
		locale = languages[code]
	}
	c := Context{Language: code, Tag: language.MustParse(locale)}
	if nonMetric {
		c.Units = Imperial
	}
	return c
}

// Metric returns true if the context uses metric units.
func (c Context) Metric() bool {
	return c.Units == Metric
}

// Lang returns the two-letter language, e.g. "de".
func (c Context) Lang() string {
	base, _ := c.Tag.Base()
	return base.String()
}

// Locale returns the full locale, e.g. "de-DE".
func (c Context) Locale() string {
	return c.Tag.String()
}

// Condition returns the localized name of a legacy condition icon (e.g. "partlycloudy").
// Unknown conditions are returned unchanged.
func (c Context) Condition(icon string) string {
	names, ok := conditions[strings.ToLower(icon)]
	if !ok {
		return icon
	}
	if name, ok := names[c.Lang()]; ok {
		return name
	}
	if name, ok := names["en"]; ok {
		return name
	}
	return icon
}

func (c Context) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("units", c.Units.String()),
		slog.String("language", c.Language),
		slog.String("locale", c.Locale()),
	)
}

//go:embed conditions.yaml
var conditionsTable []byte

var conditions = mustLoadConditions(conditionsTable)

func mustLoadConditions(b []byte) map[string]map[string]string {
	var table map[string]map[string]string
	if err := yaml.Unmarshal(b, &table); err != nil {
		panic(fmt.Sprintf("conditions: %v", err))
	}
	return table
}
