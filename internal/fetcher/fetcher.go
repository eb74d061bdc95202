// Package fetcher retrieves the weather data from the provider. It selects the API family, drives the acquisition of
// credentials and retries with fresh credentials when the provider rejects them.
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/clambin/wunderground/internal/acquisition"
	"github.com/clambin/wunderground/internal/locale"
	"github.com/clambin/wunderground/internal/normalizer"
	"github.com/clambin/wunderground/internal/upstream"
)

const (
	DefaultLegacyURL = "http://api.wunderground.com"
	DefaultModernURL = "https://api.weather.com"
	// FileScheme marks a location as a local file holding a recorded response.
	FileScheme = "file:"
)

// Orchestrator fetches the sections of a Plan.
type Orchestrator struct {
	Client   acquisition.Getter
	Acquirer *acquisition.Acquirer
	Locale   locale.Context
	Logger   *slog.Logger
	// Location is the configured location. A location starting with FileScheme is read from disk.
	Location string
	Station  string
	// LegacyURL and ModernURL are the base URLs of the two API families
	LegacyURL string
	ModernURL string
}

// rejectedError is returned when the provider rejects the key used for a request.
type rejectedError struct {
	official bool
	err      error
}

func (e *rejectedError) Error() string {
	return "key rejected: " + e.err.Error()
}

func (e *rejectedError) Unwrap() error {
	return e.err
}

var errLegacyResponse = errors.New("legacy API reported an error")

// Fetch returns the raw sections for the plan. Each time the provider rejects a key, the key is invalidated and
// the fetch is restarted with newly acquired credentials. When the legacy API keeps rejecting keys, the modern API
// is used instead. Fetch gives up with acquisition.ErrGaveUp when the modern API keeps rejecting keys too.
//
// Fetch only returns an error if it gives up or if ctx is canceled. Failing to fetch a section is logged and
// leaves that section empty.
func (o *Orchestrator) Fetch(ctx context.Context, plan Plan, st *acquisition.State) (normalizer.Payload, error) {
	if o.Local() {
		return o.readFile(strings.TrimPrefix(o.Location, FileScheme), plan)
	}

	st.Legacy = plan.Legacy
	for {
		if err := st.Downgrade(); err != nil {
			return normalizer.Payload{}, err
		}
		if err := o.Acquirer.Acquire(ctx, st); err != nil {
			return normalizer.Payload{}, err
		}

		var payload normalizer.Payload
		var err error
		if st.Legacy {
			payload, err = o.fetchLegacy(ctx, plan, st)
		} else {
			payload, err = o.fetchModern(ctx, plan, st)
		}

		var rejected *rejectedError
		if errors.As(err, &rejected) {
			o.Logger.Warn("provider rejected key", "legacy", st.Legacy, "official", rejected.official, "err", rejected.err)
			o.Acquirer.Invalidate(ctx, st, st.Legacy, rejected.official)
			continue
		}
		if err != nil {
			return normalizer.Payload{}, err
		}
		return plan.mask(payload), nil
	}
}

// Local returns true if the location is a recorded response on disk. Local locations need no credentials.
func (o *Orchestrator) Local() bool {
	return strings.HasPrefix(o.Location, FileScheme)
}

// readFile reads a recorded response, in the layout of the legacy API or a combination of modern API sections.
func (o *Orchestrator) readFile(path string, plan Plan) (normalizer.Payload, error) {
	// file://path and file:path are both accepted
	path = strings.TrimPrefix(path, "//")
	o.Logger.Debug("reading local response", "path", path)
	body, err := os.ReadFile(path)
	if err != nil {
		o.Logger.Error("unable to read local response", "err", err)
		return normalizer.Payload{}, nil
	}
	var payload normalizer.Payload
	if err = json.Unmarshal(body, &payload); err != nil {
		o.Logger.Error("invalid local response", "err", err)
		return normalizer.Payload{}, nil
	}
	return plan.mask(payload), nil
}

func (o *Orchestrator) get(ctx context.Context, target string, official bool) ([]byte, error) {
	body, err := o.Client.Get(ctx, target)
	if err == nil {
		// no further requests once interrupted
		err = ctx.Err()
	}
	if upstream.IsUnauthorized(err) {
		return nil, &rejectedError{official: official, err: err}
	}
	return body, err
}

// legacy API

func (o *Orchestrator) legacyURL(plan Plan, key string) string {
	base := o.LegacyURL
	if base == "" {
		base = DefaultLegacyURL
	}
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(base, "/") + "/api/" + url.PathEscape(key))
	if plan.Enabled(FeatureDaily, FeaturePeriods) {
		b.WriteString("/forecast")
	}
	if plan.Enabled(FeatureHourly) {
		b.WriteString("/hourly")
	}
	if plan.Enabled(FeatureCurrent) {
		b.WriteString("/conditions")
	}
	b.WriteString("/units:" + o.Locale.Units.Code())
	b.WriteString("/lang:" + url.PathEscape(o.Locale.Language))
	if station := acquisition.StationID(o.Station); len(station) > 2 {
		b.WriteString("/q/pws:" + url.PathEscape(station))
	} else {
		b.WriteString("/q/" + url.PathEscape(o.Location))
	}
	b.WriteString(".json")
	return b.String()
}

type legacyResponse struct {
	Response struct {
		Error json.RawMessage `json:"error"`
	} `json:"response"`
}

func (o *Orchestrator) fetchLegacy(ctx context.Context, plan Plan, st *acquisition.State) (normalizer.Payload, error) {
	body, err := o.get(ctx, o.legacyURL(plan, st.StationKey), false)
	if err != nil {
		return normalizer.Payload{}, o.sectionError(ctx, "legacy", err)
	}

	var status legacyResponse
	if err = json.Unmarshal(body, &status); err != nil {
		o.Logger.Error("invalid legacy response", "err", err)
		return normalizer.Payload{}, nil
	}
	if e := bytes.TrimSpace(status.Response.Error); len(e) > 0 && !bytes.Equal(e, []byte("null")) {
		return normalizer.Payload{}, &rejectedError{err: fmt.Errorf("%w: %s", errLegacyResponse, describeLegacyError(e))}
	}

	var payload normalizer.Payload
	if err = json.Unmarshal(body, &payload); err != nil {
		o.Logger.Error("invalid legacy response", "err", err)
		return normalizer.Payload{}, nil
	}
	return payload, nil
}

func describeLegacyError(raw json.RawMessage) string {
	var details struct {
		Description string `json:"description"`
	}
	if json.Unmarshal(raw, &details) == nil && details.Description != "" {
		return details.Description
	}
	return string(raw)
}

// modern API

func (o *Orchestrator) modernURL(path string, query url.Values) string {
	base := o.ModernURL
	if base == "" {
		base = DefaultModernURL
	}
	return strings.TrimSuffix(base, "/") + path + "?" + query.Encode()
}

func (o *Orchestrator) fetchModern(ctx context.Context, plan Plan, st *acquisition.State) (normalizer.Payload, error) {
	var payload normalizer.Payload

	// the observation is always fetched: it holds the station's coordinates
	current, coordinates, err := o.fetchObservation(ctx, plan, st)
	if err != nil {
		return normalizer.Payload{}, err
	}
	payload.Current = current

	if plan.Enabled(FeatureDaily, FeaturePeriods) {
		if payload.Daily, err = o.fetchDaily(ctx, st, coordinates); err != nil {
			return normalizer.Payload{}, err
		}
	}
	if plan.Enabled(FeatureHourly) {
		if payload.Hourly, err = o.fetchHourly(ctx, st); err != nil {
			return normalizer.Payload{}, err
		}
	}
	return payload, nil
}

// sectionError handles a failed section: rejected keys and interruptions abort the fetch, anything else is logged.
func (o *Orchestrator) sectionError(ctx context.Context, section string, err error) error {
	var rejected *rejectedError
	if errors.As(err, &rejected) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	o.Logger.Error("unable to get section", "section", section, "err", err)
	return nil
}

type coordinates struct {
	Latitude  *float64 `json:"lat"`
	Longitude *float64 `json:"lon"`
}

func (o *Orchestrator) fetchObservation(ctx context.Context, plan Plan, st *acquisition.State) (json.RawMessage, coordinates, error) {
	var target string
	var official bool
	if station := acquisition.StationID(o.Station); station != "" {
		var key string
		key, official = st.ModernKey(plan.Enabled(FeatureCurrent))
		target = o.modernURL("/v2/pws/observations/current", url.Values{
			"stationId":        {station},
			"format":           {"json"},
			"units":            {o.Locale.Units.Code()},
			"numericPrecision": {"decimal"},
			"apiKey":           {key},
		})
	} else if st.ObservationURL != "" {
		target = RewriteURL(st.ObservationURL, o.Locale)
	} else {
		o.Logger.Warn("no observation URL available")
		return nil, coordinates{}, nil
	}

	body, err := o.get(ctx, target, official)
	if err != nil {
		return nil, coordinates{}, o.sectionError(ctx, "current", err)
	}
	var response struct {
		Observations []json.RawMessage `json:"observations"`
	}
	if err = json.Unmarshal(body, &response); err != nil || len(response.Observations) == 0 {
		o.Logger.Error("no observations in response", "url", upstream.Redact(target))
		return nil, coordinates{}, nil
	}
	var c coordinates
	_ = json.Unmarshal(response.Observations[0], &c)
	return response.Observations[0], c, nil
}

func (o *Orchestrator) fetchDaily(ctx context.Context, st *acquisition.State, c coordinates) (json.RawMessage, error) {
	var target string
	var official bool
	switch {
	case acquisition.StationID(o.Station) != "" && st.OfficialKey != "" && c.Latitude != nil && c.Longitude != nil:
		if *c.Latitude == 0 && *c.Longitude == 0 {
			o.Logger.Info("location seems invalid (0,0). Please check the configured station or location")
		}
		official = true
		target = o.modernURL("/v3/wx/forecast/daily/5day", url.Values{
			"geocode":  {strconv.FormatFloat(*c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(*c.Longitude, 'f', -1, 64)},
			"language": {o.Locale.Locale()},
			"format":   {"json"},
			"units":    {o.Locale.Units.Code()},
			"apiKey":   {st.OfficialKey},
		})
	case st.DailyURL != "":
		target = withDailyRange(RewriteURL(st.DailyURL, o.Locale))
	default:
		o.Logger.Warn("no daily forecast URL available")
		return nil, nil
	}

	body, err := o.get(ctx, target, official)
	if err != nil {
		return nil, o.sectionError(ctx, "daily", err)
	}
	switch normalizer.DetectShape(body) {
	case normalizer.ShapeDailyArrays, normalizer.ShapeDailyForecasts:
		return body, nil
	default:
		o.Logger.Error("no daily forecast in response", "url", upstream.Redact(target))
		return nil, nil
	}
}

func (o *Orchestrator) fetchHourly(ctx context.Context, st *acquisition.State) (json.RawMessage, error) {
	if st.HourlyURL == "" {
		o.Logger.Warn("no hourly forecast URL available")
		return nil, nil
	}
	target := withHourlyRange(RewriteURL(st.HourlyURL, o.Locale))
	body, err := o.get(ctx, target, false)
	if err != nil {
		return nil, o.sectionError(ctx, "hourly", err)
	}
	return body, nil
}
