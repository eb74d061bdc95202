package acquisition

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"testing"

	"github.com/clambin/wunderground/internal/store"
	"github.com/clambin/wunderground/internal/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testWebURL     = "https://wu.example.com"
	testStationKey = "606f3f6977348613"
	testOfficial   = "0123456789abcdef0123456789abcdef"
)

func newTestAcquirer(pages map[string]string) (*Acquirer, *fakeGetter, *store.Memory, *fakeNotifier) {
	g := &fakeGetter{pages: pages}
	s := store.NewMemory()
	n := &fakeNotifier{}
	return &Acquirer{
		Client:   g,
		Store:    s,
		Notifier: n,
		Logger:   slog.New(slog.DiscardHandler),
		WebURL:   testWebURL,
		Station:  "pws:IBERLIN1658",
		Location: "Berlin",
		Country:  "DE",
	}, g, s, n
}

func defaultPages() map[string]string {
	const script = testWebURL + "/static/wui-pwsdashboard/1.0/wui.pwsdashboard.min.js"
	return map[string]string{
		testWebURL + "/dashboard/pws/IBERLIN1658": `<html><head><script src="` + script + `"></script></head></html>`,
		script:                           `x="https://api.wunderground.com/api/` + testStationKey + `/conditions/q.json"`,
		testWebURL + "/hourly/DE/Berlin": forecastPage(webKey),
	}
}

func TestAcquirer_Acquire(t *testing.T) {
	ctx := context.Background()
	a, g, s, _ := newTestAcquirer(defaultPages())

	st, err := Load(ctx, s, a.Location, a.Station, a.Logger)
	require.NoError(t, err)
	require.NoError(t, a.Acquire(ctx, &st))

	assert.Equal(t, testStationKey, st.StationKey)
	assert.Equal(t, webKey, st.WebKey)
	assert.True(t, st.Complete())
	assert.Len(t, g.calls(), 3)

	values := s.Values()
	assert.Equal(t, testStationKey, values[KeyStationKey])
	assert.Equal(t, webKey, values[KeyWebKey])
	assert.Equal(t, st.ObservationURL, values[KeyObservationURL])
	assert.Equal(t, st.DailyURL, values[KeyDailyURL])
	assert.Equal(t, st.HourlyURL, values[KeyHourlyURL])
	assert.Equal(t, Fingerprint("Berlin", "pws:IBERLIN1658"), values[KeyFingerprint])

	// second run: everything is cached
	g.reset()
	st, err = Load(ctx, s, a.Location, a.Station, a.Logger)
	require.NoError(t, err)
	require.NoError(t, a.Acquire(ctx, &st))
	assert.Empty(t, g.calls())
	assert.Equal(t, testStationKey, st.StationKey)
	assert.True(t, st.Complete())
}

func TestAcquirer_Acquire_PartialExtraction(t *testing.T) {
	ctx := context.Background()
	pages := defaultPages()
	// the dashboard embeds the key directly
	pages[testWebURL+"/dashboard/pws/IBERLIN1658"] = `<html><body>{&q;WU_LEGACY_API_KEY&q;:&q;` + testStationKey + `&q;}</body></html>`
	// the forecast page only holds the hourly URL
	pages[testWebURL+"/hourly/DE/Berlin"] = `<script>{&q;https://api.weather.com/v3/wx/forecast/hourly/15day?geocode=1.0,2.0&a;units=e&q;:{}}</script>`
	a, g, s, _ := newTestAcquirer(pages)

	var st State
	require.NoError(t, a.Acquire(ctx, &st))
	assert.Equal(t, testStationKey, st.StationKey)
	assert.Empty(t, st.WebKey)
	assert.Empty(t, st.DailyURL)
	assert.Equal(t, "https://api.weather.com/v3/wx/forecast/hourly/15day?geocode=1.0,2.0&units=e", st.HourlyURL)
	assert.Len(t, g.calls(), 2)

	values := s.Values()
	assert.Equal(t, st.HourlyURL, values[KeyHourlyURL])
	_, ok := values[KeyWebKey]
	assert.False(t, ok)
}

func TestAcquirer_Acquire_NotFound(t *testing.T) {
	ctx := context.Background()

	t.Run("retry with q", func(t *testing.T) {
		pages := defaultPages()
		pages[testWebURL+"/hourly/DE/q/Berlin"] = pages[testWebURL+"/hourly/DE/Berlin"]
		delete(pages, testWebURL+"/hourly/DE/Berlin")
		a, g, _, n := newTestAcquirer(pages)

		var st State
		require.NoError(t, a.Acquire(ctx, &st))
		assert.Equal(t, webKey, st.WebKey)
		assert.Equal(t, []string{
			testWebURL + "/dashboard/pws/IBERLIN1658",
			testWebURL + "/static/wui-pwsdashboard/1.0/wui.pwsdashboard.min.js",
			testWebURL + "/hourly/DE/Berlin",
			testWebURL + "/hourly/DE/q/Berlin",
		}, g.calls())
		assert.Empty(t, n.messages())
	})

	t.Run("location not found", func(t *testing.T) {
		pages := defaultPages()
		delete(pages, testWebURL+"/hourly/DE/Berlin")
		a, g, _, n := newTestAcquirer(pages)

		st := State{WebKey: "cached"}
		require.NoError(t, a.Acquire(ctx, &st))
		assert.Equal(t, "cached", st.WebKey)
		assert.Len(t, g.calls(), 4)
		require.Len(t, n.messages(), 1)
		assert.Contains(t, n.messages()[0], "location can not be found")
	})
}

func TestAcquirer_Acquire_FallbackStation(t *testing.T) {
	a, g, _, _ := newTestAcquirer(defaultPages())
	a.Station = ""
	var st State
	require.NoError(t, a.Acquire(context.Background(), &st))
	assert.Equal(t, testStationKey, st.StationKey)
	assert.Equal(t, testWebURL+"/dashboard/pws/"+FallbackStation, g.calls()[0])
}

func TestAcquirer_Acquire_ValidateOfficialKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		want     string
		warnings int
	}{
		{name: "valid", key: testOfficial, want: testOfficial},
		{name: "too short", key: "abc", want: "", warnings: 1},
		{name: "too long", key: testOfficial + "0", want: "", warnings: 1},
		{name: "none", key: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, _, _, n := newTestAcquirer(defaultPages())
			st := State{OfficialKey: tt.key}
			require.NoError(t, a.Acquire(context.Background(), &st))
			assert.Equal(t, tt.want, st.OfficialKey)
			assert.Len(t, n.messages(), tt.warnings)
		})
	}
}

func TestAcquirer_Acquire_Canceled(t *testing.T) {
	a, g, _, _ := newTestAcquirer(defaultPages())
	ctx, cancel := context.WithCancel(context.Background())
	g.onGet = func(string) { cancel() }

	var st State
	assert.ErrorIs(t, a.Acquire(ctx, &st), context.Canceled)
	assert.Len(t, g.calls(), 1)
	assert.Empty(t, st.StationKey)
}

func TestAcquirer_ForecastPageURL(t *testing.T) {
	tests := []struct {
		location string
		tryQ     bool
		want     string
	}{
		{location: "Berlin", want: testWebURL + "/hourly/DE/Berlin"},
		{location: "Berlin", tryQ: true, want: testWebURL + "/hourly/DE/q/Berlin"},
		{location: "EDDT", want: testWebURL + "/hourly/DE/EDDT"},
		{location: "KJFK1", want: testWebURL + "/hourly/KJFK1"},
		{location: "pws:IBERLIN1658", want: testWebURL + "/hourly/pws:IBERLIN1658"},
		{location: "52.52,13.41", want: testWebURL + "/hourly/52.52%2C13.41"},
		{location: "-33.86, 151.21", tryQ: true, want: testWebURL + "/hourly/q/-33.86%2C%20151.21"},
		{location: "Bad Homburg", want: testWebURL + "/hourly/DE/Bad%20Homburg"},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			t.Parallel()
			a, _, _, _ := newTestAcquirer(nil)
			a.Location = tt.location
			assert.Equal(t, tt.want, a.forecastPageURL(tt.tryQ))
		})
	}
}

func TestAcquirer_Invalidate(t *testing.T) {
	ctx := context.Background()
	a, _, s, n := newTestAcquirer(nil)
	st := State{StationKey: "station", WebKey: "web", OfficialKey: testOfficial}

	a.Invalidate(ctx, &st, true, false)
	assert.Empty(t, st.StationKey)
	assert.Equal(t, 1, st.Errors)

	a.Invalidate(ctx, &st, false, true)
	assert.Empty(t, st.OfficialKey)
	assert.Equal(t, "web", st.WebKey)
	assert.Equal(t, 2, st.Errors)
	assert.Len(t, n.messages(), 1)

	a.Invalidate(ctx, &st, false, false)
	assert.Empty(t, st.WebKey)
	assert.Equal(t, 3, st.Errors)

	values := s.Values()
	assert.Equal(t, "", values[KeyStationKey])
	assert.Equal(t, "", values[KeyWebKey])
}

type fakeGetter struct {
	pages   map[string]string
	onGet   func(string)
	history []string
	lock    sync.Mutex
}

func (f *fakeGetter) Get(_ context.Context, target string) ([]byte, error) {
	f.lock.Lock()
	f.history = append(f.history, target)
	onGet := f.onGet
	f.lock.Unlock()
	if onGet != nil {
		onGet(target)
	}
	page, ok := f.pages[target]
	if !ok {
		return nil, &upstream.StatusError{StatusCode: http.StatusNotFound}
	}
	return []byte(page), nil
}

func (f *fakeGetter) calls() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.history...)
}

func (f *fakeGetter) reset() {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.history = nil
}

type fakeNotifier struct {
	msgs []string
	lock sync.Mutex
}

func (f *fakeNotifier) Notify(msg string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeNotifier) messages() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.msgs...)
}
