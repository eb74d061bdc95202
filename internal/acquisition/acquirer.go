// Package acquisition obtains the keys and URLs needed to call the provider, by scraping its web pages when
// no usable credentials are cached.
package acquisition

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/clambin/wunderground/internal/notifier"
	"github.com/clambin/wunderground/internal/store"
	"github.com/clambin/wunderground/internal/upstream"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultWebURL = "https://www.wunderground.com"
	// FallbackStation is used to obtain a station key when no station is configured.
	FallbackStation = "IBERLIN1658"
)

// A Getter returns the body of a URL.
type Getter interface {
	Get(ctx context.Context, target string) ([]byte, error)
}

// Step is a state of the acquisition state machine.
type Step int

const (
	StepValidateKey Step = iota
	StepStationKey
	StepWebKey
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepValidateKey:
		return "validateKey"
	case StepStationKey:
		return "stationKey"
	case StepWebKey:
		return "webKey"
	case StepDone:
		return "done"
	default:
		return "unknown"
	}
}

// Acquirer runs the acquisition state machine.
type Acquirer struct {
	Client   Getter
	Store    store.Store
	Notifier notifier.Notifier
	Logger   *slog.Logger
	// WebURL is the base URL of the provider's website
	WebURL   string
	Station  string
	Location string
	Country  string
}

// Acquire completes the credentials in st. Failing to find a value is not an error: the state is left incomplete
// and the caller continues with what it has. Each value is persisted as soon as it is found.
// Acquire only returns an error if ctx is canceled.
func (a *Acquirer) Acquire(ctx context.Context, st *State) error {
	for step := StepValidateKey; step != StepDone; {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.Logger.Debug("acquisition step", "step", step)
		step = a.step(ctx, st, step)
	}
	return ctx.Err()
}

func (a *Acquirer) step(ctx context.Context, st *State, step Step) Step {
	switch step {
	case StepValidateKey:
		a.validateOfficialKey(st)
		return StepStationKey
	case StepStationKey:
		if st.StationKey == "" {
			a.acquireStationKey(ctx, st)
		}
		return StepWebKey
	case StepWebKey:
		if !st.Complete() {
			a.acquireWebCredentials(ctx, st, false)
		}
		return StepDone
	default:
		return StepDone
	}
}

var validate = validator.New()

func (a *Acquirer) validateOfficialKey(st *State) {
	if st.OfficialKey == "" {
		return
	}
	if err := validate.Var(st.OfficialKey, "len=32"); err != nil {
		st.OfficialKey = ""
		a.notify("The configured API key is invalid: it should be 32 characters long. Ignoring it")
	}
}

var stationIDPattern = regexp.MustCompile(`[^A-Z0-9]`)

// StationID returns the station identifier without its optional "pws:" prefix.
func StationID(station string) string {
	station = strings.TrimSpace(station)
	if strings.HasPrefix(station, "pws:") {
		station = strings.TrimSpace(station[4:])
	}
	return station
}

func (a *Acquirer) acquireStationKey(ctx context.Context, st *State) {
	station := StationID(a.Station)
	if station == "" {
		a.Logger.Info("no station configured. Using fallback station to get a key")
		station = FallbackStation
	} else if stationIDPattern.MatchString(station) {
		a.Logger.Info("station id should only contain capital letters and numbers. Please check the configured station", "station", station)
	}

	page, err := a.Client.Get(ctx, a.webURL()+"/dashboard/pws/"+url.PathEscape(station))
	if err != nil {
		a.Logger.Error("unable to get station dashboard", "err", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	creds := ExtractStationCredentials(page)
	if creds.ScriptURL != "" {
		script, err := a.Client.Get(ctx, creds.ScriptURL)
		if err != nil {
			a.Logger.Error("unable to get dashboard script", "err", err)
			return
		}
		if ctx.Err() != nil {
			return
		}
		creds.StationKey = ExtractStationKeyFromScript(script)
	}
	if creds.StationKey == "" {
		a.Logger.Warn("no station key found on dashboard")
		return
	}
	a.Logger.Debug("found station key")
	a.save(ctx, st, KeyStationKey, &st.StationKey, creds.StationKey)
}

var (
	airportPattern = regexp.MustCompile(`^[A-Z]+[0-9]{1,4}$`)
	geocodePattern = regexp.MustCompile(`^-?[0-9]+\.[0-9]+ *, *-?[0-9]+\.[0-9]+$`)
)

// forecastPageURL returns the URL of the hourly forecast page for the configured location. Locations that identify
// a place by themselves (a station, an airport code or a geocode) don't need a country.
func (a *Acquirer) forecastPageURL(tryQ bool) string {
	target := a.webURL() + "/hourly/"
	if !(strings.HasPrefix(a.Location, "pws:") || airportPattern.MatchString(a.Location) || geocodePattern.MatchString(a.Location)) {
		target += url.PathEscape(a.Country) + "/"
	}
	if tryQ {
		target += "q/"
	}
	return target + url.PathEscape(a.Location)
}

func (a *Acquirer) acquireWebCredentials(ctx context.Context, st *State, tryQ bool) {
	page, err := a.Client.Get(ctx, a.forecastPageURL(tryQ))
	if err != nil {
		switch {
		case upstream.IsNotFound(err) && !tryQ:
			a.Logger.Debug("forecast page not found. Retrying with alternate URL")
			a.acquireWebCredentials(ctx, st, true)
		case upstream.IsNotFound(err):
			a.notify("The configured location can not be found. Please check on https://wunderground.com or try geo coordinates (lat,lon) or nearby cities")
		default:
			a.Logger.Error("unable to get forecast page", "err", err)
		}
		return
	}
	if ctx.Err() != nil {
		return
	}

	creds := ExtractWebCredentials(page)
	for key, value := range map[string]struct {
		target *string
		value  string
	}{
		KeyWebKey:         {&st.WebKey, creds.WebKey},
		KeyObservationURL: {&st.ObservationURL, creds.ObservationURL},
		KeyDailyURL:       {&st.DailyURL, creds.DailyURL},
		KeyHourlyURL:      {&st.HourlyURL, creds.HourlyURL},
	} {
		if value.value == "" {
			a.Logger.Debug("value not found on forecast page", "key", key)
			continue
		}
		a.save(ctx, st, key, value.target, value.value)
	}
}

// Invalidate drops the key rejected by the provider and counts the rejection. For the modern API family,
// usedOfficial indicates whether the rejected call used the official key.
func (a *Acquirer) Invalidate(ctx context.Context, st *State, legacy bool, usedOfficial bool) {
	st.Errors++
	switch {
	case legacy:
		a.Logger.Info("station key rejected. Resetting it and trying again")
		a.save(ctx, st, KeyStationKey, &st.StationKey, "")
	case usedOfficial:
		st.OfficialKey = ""
		a.notify("The provider rejected the configured API key. Please check your PWS owner key. Using a key from the provider's website for now")
	default:
		a.Logger.Info("web key rejected. Resetting it and trying again")
		a.save(ctx, st, KeyWebKey, &st.WebKey, "")
	}
}

func (a *Acquirer) save(ctx context.Context, st *State, key string, target *string, value string) {
	// persisted even if ctx is canceled
	err := st.set(context.WithoutCancel(ctx), a.Store, key, target, value)
	if err != nil {
		a.Logger.Error("failed to persist acquisition state", "key", key, "err", err)
	}
}

func (a *Acquirer) notify(msg string) {
	if a.Notifier != nil {
		a.Notifier.Notify(msg)
		return
	}
	a.Logger.Warn(msg)
}

func (a *Acquirer) webURL() string {
	if a.WebURL != "" {
		return strings.TrimSuffix(a.WebURL, "/")
	}
	return DefaultWebURL
}
