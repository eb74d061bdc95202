// Package icons maps the provider's icon references to the URL of the icon to display.
package icons

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/clambin/wunderground/internal/weather"
)

const (
	// BaseURL is where the provider hosts its icon sets.
	BaseURL = "https://icons.wxug.com/i/c/"
	// DefaultFormat is the file format of icons served from a custom base URL.
	DefaultFormat = "gif"
	// NumericSet is the provider's default icon set. Numeric icon codes always use the v4 set instead.
	NumericSet = "i"
)

// Resolver resolves icon references. The zero value returns references unchanged.
type Resolver struct {
	// Set selects one of the provider's icon sets (e.g. "k")
	Set string
	// CustomBaseURL serves icons from a custom location. Ignored if Set is configured.
	CustomBaseURL string
	// Format is the file extension of icons under CustomBaseURL. Defaults to DefaultFormat
	Format string
}

var (
	numericCode = regexp.MustCompile(`^[0-9]{1,4}$`)
	extension   = regexp.MustCompile(`\.\w+$`)
)

// Resolve returns the URL of the icon for a provider reference: either an icon URL or a numeric icon code.
func (r Resolver) Resolve(reference string) string {
	if reference == "" {
		return ""
	}
	set := strings.TrimSpace(r.Set)
	if numericCode.MatchString(reference) {
		reference = BaseURL + "v4/" + reference + ".svg"
		if set == NumericSet {
			set = ""
		}
	}
	switch {
	case set != "":
		return BaseURL + url.PathEscape(set) + "/" + path.Base(reference)
	case r.customBaseURL() != "":
		format := r.format()
		if !strings.HasSuffix(reference, "."+format) {
			reference = extension.ReplaceAllString(reference, "."+format)
		}
		return r.customBaseURL() + path.Base(reference)
	default:
		return reference
	}
}

func (r Resolver) customBaseURL() string {
	base := strings.TrimSpace(r.CustomBaseURL)
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (r Resolver) format() string {
	if format := strings.TrimPrefix(strings.TrimSpace(r.Format), "."); format != "" {
		return format
	}
	return DefaultFormat
}

// ResolveReport resolves every icon URL of the report.
func (r Resolver) ResolveReport(report *weather.Report) {
	if report.Current != nil {
		report.Current.IconURL = r.Resolve(report.Current.IconURL)
	}
	for i := range report.Days {
		report.Days[i].IconURL = r.Resolve(report.Days[i].IconURL)
	}
	for i := range report.Periods {
		report.Periods[i].IconURL = r.Resolve(report.Periods[i].IconURL)
	}
}
