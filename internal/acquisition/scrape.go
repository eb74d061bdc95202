package acquisition

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
)

// All patterns used to extract credentials from the provider's web pages. When the provider changes its web client,
// this is the only place that should need to change.
var (
	// station dashboard page: legacy key embedded in the page state
	stationKeyPattern = regexp.MustCompile(`WU_LEGACY_API_KEY&q;:&q;([^&]+)&q`)
	// station dashboard page: script that embeds the legacy key
	dashboardScriptDir  = "/wui-pwsdashboard/"
	dashboardScriptName = "wui.pwsdashboard.min.js"
	// dashboard script: legacy key in the conditions URL
	scriptKeyPattern = regexp.MustCompile(`https://api\.wunderground\.com/api/([^/]+)/conditions/`)
	// hourly forecast page (unescaped): web key and API URLs
	webKeyPattern         = regexp.MustCompile(`api\.weather\.com/.*apiKey=([0-9a-zA-Z]{32})`)
	observationURLPattern = regexp.MustCompile(`"(https://api\.weather\.com/[^"]+/observations/current[^"]+)"`)
	dailyURLPattern       = regexp.MustCompile(`"(https://api\.weather\.com/[^"]+/forecast/daily/[^"]+)"`)
	hourlyURLPattern      = regexp.MustCompile(`"(https://api\.weather\.com/[^"]+/forecast/hourly/[^"]+)"`)

	pageEscapes = strings.NewReplacer("&q;", `"`, "&a;", "&")
)

// PartialCredentials holds whatever could be extracted from a page. Empty fields were not found.
type PartialCredentials struct {
	StationKey     string
	ScriptURL      string
	WebKey         string
	ObservationURL string
	DailyURL       string
	HourlyURL      string
}

// ExtractStationCredentials scans a station dashboard page. If the page references the dashboard script,
// ScriptURL is set and the key should be extracted from the script with ExtractStationKeyFromScript.
// Otherwise, StationKey holds the key embedded in the page, if any.
func ExtractStationCredentials(page []byte) PartialCredentials {
	var creds PartialCredentials
	if src := findDashboardScript(page); src != "" {
		if strings.HasPrefix(src, "//") {
			src = "https:" + src
		}
		creds.ScriptURL = src
		return creds
	}
	if m := stationKeyPattern.FindSubmatch(page); m != nil {
		creds.StationKey = string(m[1])
	}
	return creds
}

func findDashboardScript(page []byte) string {
	doc, err := htmlquery.Parse(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	for _, script := range htmlquery.Find(doc, "//script[@src]") {
		src := htmlquery.SelectAttr(script, "src")
		if strings.Contains(src, dashboardScriptDir) && strings.HasSuffix(src, dashboardScriptName) {
			return src
		}
	}
	return ""
}

// ExtractStationKeyFromScript returns the legacy key embedded in the dashboard script, or an empty string.
func ExtractStationKeyFromScript(script []byte) string {
	if m := scriptKeyPattern.FindSubmatch(script); m != nil {
		return string(m[1])
	}
	return ""
}

// ExtractWebCredentials scans an hourly forecast page for the web key and the three API URLs.
// Each value is extracted independently.
func ExtractWebCredentials(page []byte) PartialCredentials {
	body := pageEscapes.Replace(string(page))
	return PartialCredentials{
		WebKey:         firstMatch(webKeyPattern, body),
		ObservationURL: firstMatch(observationURLPattern, body),
		DailyURL:       firstMatch(dailyURLPattern, body),
		HourlyURL:      firstMatch(hourlyURLPattern, body),
	}
}

func firstMatch(re *regexp.Regexp, body string) string {
	if m := re.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}
