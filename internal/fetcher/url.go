package fetcher

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/clambin/wunderground/internal/locale"
)

var (
	dailyRange  = regexp.MustCompile(`/[0-9]+day`)
	hourlyRange = regexp.MustCompile(`/[0-9]+hour`)
)

// RewriteURL adapts a URL scraped from the provider's website to the configured units and language.
// Units are always set. The language is only replaced if the URL carries one. v2 URLs request decimal values.
// Rewriting a rewritten URL returns it unchanged.
func RewriteURL(target string, lc locale.Context) string {
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil || target == "" {
		return target
	}
	q := u.Query()
	q.Set("units", lc.Units.Code())
	if q.Has("language") {
		q.Set("language", lc.Locale())
	}
	if strings.Contains(u.Path, "/v2/") && !q.Has("numericPrecision") {
		q.Set("numericPrecision", "decimal")
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// withDailyRange requests a 5-day daily forecast.
func withDailyRange(target string) string {
	return dailyRange.ReplaceAllString(target, "/5day")
}

// withHourlyRange requests a 48-hour hourly forecast.
func withHourlyRange(target string) string {
	return hourlyRange.ReplaceAllString(target, "/48hour")
}
