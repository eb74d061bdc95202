package acquisition

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clambin/wunderground/internal/store"
)

// Identifiers of the persisted acquisition state.
const (
	KeyStationKey     = "currentStationKey"
	KeyWebKey         = "currentWebKey"
	KeyObservationURL = "currentObservationUrl"
	KeyDailyURL       = "forecastDailyUrl"
	KeyHourlyURL      = "forecastHourlyUrl"
	KeyFingerprint    = "locationChecksum"
)

// MaxErrors is the number of rejected keys tolerated per API family.
const MaxErrors = 2

// ErrGaveUp is returned when the provider keeps rejecting our keys in the modern API family.
var ErrGaveUp = errors.New("provider keeps rejecting keys: giving up")

// State holds the credentials and URLs needed to call the provider, along with the retry bookkeeping of a run.
type State struct {
	StationKey     string
	WebKey         string
	OfficialKey    string
	ObservationURL string
	DailyURL       string
	HourlyURL      string
	Fingerprint    string
	// Legacy selects the legacy API family
	Legacy bool
	// Errors counts the keys rejected by the provider in the current API family
	Errors int
}

// Fingerprint identifies a (location, station) pair. Cached URLs are only valid for the fingerprint they were
// scraped for.
func Fingerprint(location, station string) string {
	sum := md5.Sum([]byte(location + station))
	return hex.EncodeToString(sum[:])
}

// Load reads the persisted state. Cached URLs are dropped if they belong to another location/station
// or use an API version that is no longer supported.
func Load(ctx context.Context, s store.Store, location, station string, logger *slog.Logger) (State, error) {
	var st State
	for key, target := range st.persisted() {
		value, err := store.GetString(ctx, s, key)
		if err != nil {
			return State{}, fmt.Errorf("load %s: %w", key, err)
		}
		*target = value
	}

	var err error
	for key, target := range map[string]*string{KeyDailyURL: &st.DailyURL, KeyHourlyURL: &st.HourlyURL} {
		if strings.Contains(*target, "/v1/") {
			logger.Info("cached URL uses an unsupported API version. Refetching", "key", key)
			err = errors.Join(err, st.set(ctx, s, key, target, ""))
		}
	}

	if fingerprint := Fingerprint(location, station); fingerprint != st.Fingerprint {
		logger.Debug("location changed. Clearing cached URLs")
		err = errors.Join(err,
			st.set(ctx, s, KeyObservationURL, &st.ObservationURL, ""),
			st.set(ctx, s, KeyDailyURL, &st.DailyURL, ""),
			st.set(ctx, s, KeyHourlyURL, &st.HourlyURL, ""),
			st.set(ctx, s, KeyFingerprint, &st.Fingerprint, fingerprint),
		)
	}
	return st, err
}

func (st *State) persisted() map[string]*string {
	return map[string]*string{
		KeyStationKey:     &st.StationKey,
		KeyWebKey:         &st.WebKey,
		KeyObservationURL: &st.ObservationURL,
		KeyDailyURL:       &st.DailyURL,
		KeyHourlyURL:      &st.HourlyURL,
		KeyFingerprint:    &st.Fingerprint,
	}
}

// set updates a field and persists it, if it changed.
func (st *State) set(ctx context.Context, s store.Store, key string, target *string, value string) error {
	if *target == value {
		return nil
	}
	*target = value
	if err := s.Set(ctx, key, value); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Complete returns true if the state holds everything the modern API family needs.
func (st *State) Complete() bool {
	return st.WebKey != "" && st.ObservationURL != "" && st.DailyURL != "" && st.HourlyURL != ""
}

// Downgrade bounds the number of rejected keys. Once more than MaxErrors keys were rejected, the legacy API family
// is abandoned for the modern one, with a fresh error budget. When the modern family is exhausted, it returns ErrGaveUp.
func (st *State) Downgrade() error {
	if st.Errors <= MaxErrors {
		return nil
	}
	if !st.Legacy {
		return ErrGaveUp
	}
	st.Legacy = false
	st.Errors = 0
	return nil
}

// ModernKey returns the key to use for modern API calls: the official key if preferred and available, otherwise the
// web key. The boolean indicates whether the official key was selected.
func (st *State) ModernKey(preferOfficial bool) (string, bool) {
	if preferOfficial && st.OfficialKey != "" {
		return st.OfficialKey, true
	}
	return st.WebKey, false
}

func (st State) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("stationKey", st.StationKey != ""),
		slog.Bool("webKey", st.WebKey != ""),
		slog.Bool("officialKey", st.OfficialKey != ""),
		slog.Bool("observationURL", st.ObservationURL != ""),
		slog.Bool("dailyURL", st.DailyURL != ""),
		slog.Bool("hourlyURL", st.HourlyURL != ""),
		slog.Bool("legacy", st.Legacy),
		slog.Int("errors", st.Errors),
	)
}
