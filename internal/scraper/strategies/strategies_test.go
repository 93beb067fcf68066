package strategies

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/artifacts"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/parserutil"
)

const listingHTML = `<html><head><title>Football</title></head><body>
  <a href="/event/1"><span class="team-name">Arsenal</span><span class="team-name">Chelsea</span></a>
  <a href="/event/2"><span class="team-name">Milan</span><span class="team-name">Inter</span></a>
</body></html>`

type fakeBrowser struct {
	mu          sync.Mutex
	html        string
	navErr      error
	requests    []models.CapturedRequest
	listener    func(models.CapturedRequest)
	screenshots []string
	scrolls     int
	closed      bool
	cookies     int
}

func (b *fakeBrowser) Title(context.Context) (string, error) { return "Football", nil }
func (b *fakeBrowser) HTML(context.Context) (string, error) { return b.html, nil }
func (b *fakeBrowser) Location(context.Context) (string, error) {
	return "https://www.sofascore.com/football", nil
}

func (b *fakeBrowser) Screenshot(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.screenshots = append(b.screenshots, name)
	return nil
}

func (b *fakeBrowser) ScrollBy(context.Context, int) error {
	b.scrolls++
	return nil
}
func (b *fakeBrowser) ScrollTo(context.Context, int) error { return nil }
func (b *fakeBrowser) MoveMouse(context.Context, int, int) error { return nil }
func (b *fakeBrowser) Click(context.Context, int, int) error { return nil }
func (b *fakeBrowser) IsLinkAt(context.Context, int, int) (bool, error) { return false, nil }
func (b *fakeBrowser) Count(context.Context, string) (int, error) { return 0, nil }
func (b *fakeBrowser) Navigates(context.Context, string, int) (bool, error) { return false, nil }
func (b *fakeBrowser) ClickNth(context.Context, string, int) error { return nil }
func (b *fakeBrowser) Viewport() (int, int) { return 1280, 800 }

func (b *fakeBrowser) ListenRequests(_ context.Context, fn func(models.CapturedRequest)) error {
	b.listener = fn
	return nil
}

func (b *fakeBrowser) Navigate(context.Context, string) error {
	if b.navErr != nil {
		return b.navErr
	}
	for _, r := range b.requests {
		if b.listener != nil {
			b.listener(r)
		}
	}
	return nil
}

func (b *fakeBrowser) SaveCookies(context.Context) error {
	b.cookies++
	return nil
}

func (b *fakeBrowser) Close() { b.closed = true }

// steadyRand never triggers the optional scroll-back or click branches.
type steadyRand struct{}

func (steadyRand) Float64() float64 { return 0.9 }
func (steadyRand) IntN(int) int { return 0 }

func testDeps(t *testing.T, b *fakeBrowser) (Deps, *[]Phase) {
	t.Helper()
	cfg := config.Default()
	dir := t.TempDir()
	cfg.Paths = config.PathsConfig{
		DataDir:        dir,
		CookiesFile:    filepath.Join(dir, "cookies", "c.json"),
		RequestsFile:   filepath.Join(dir, "api_requests", "r.json"),
		MatchesDir:     filepath.Join(dir, "matches"),
		ScreenshotsDir: filepath.Join(dir, "screenshots"),
	}
	cfg.Browser.InteractionEnabled = false
	cfg.Captcha.WaitTimeout = 20 * time.Millisecond
	cfg.Captcha.MaxAttempts = 1

	var phases []Phase
	d := Deps{
		Config: cfg,
		Store:  artifacts.New(cfg.Paths),
		Prompt: io.Discard,
		Sleep:  parserutil.NoSleep,
		Rand:   steadyRand{},
		Launch: func(context.Context, config.BrowserConfig, bool, *artifacts.Store) (Browser, error) {
			return b, nil
		},
		OnPhase: func(p Phase) { phases = append(phases, p) },
	}
	return d, &phases
}

func collect(stopAfter int) (models.EmitFunc, *[]models.RawEvent) {
	var got []models.RawEvent
	return func(ev models.RawEvent) bool {
		got = append(got, ev)
		return stopAfter <= 0 || len(got) < stopAfter
	}, &got
}

func TestRegistry_BuiltinsRegistered(t *testing.T) {
	names := AvailableNames()
	for _, want := range []string{"api", "auto", "browser", "network"} {
		assert.Contains(t, names, want)
	}
	assert.IsIncreasing(t, names)

	st, err := Build(" API ", Deps{})
	require.NoError(t, err)
	assert.Equal(t, "api", st.Name())

	_, err = Build("carrier-pigeon", Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available: api, auto, browser, network")
}

func TestRegister_Panics(t *testing.T) {
	f := func(Deps) Strategy { return nil }
	assert.Panics(t, func() { Register("", f) })
	assert.Panics(t, func() { Register("nil-factory", nil) })
	assert.Panics(t, func() { Register("browser", f) })
}

func TestBrowserStrategy_ExtractsAfterScrolling(t *testing.T) {
	b := &fakeBrowser{html: listingHTML}
	d, phases := testDeps(t, b)
	st, err := Build("browser", d)
	require.NoError(t, err)

	emit, got := collect(0)
	_, err = st.Acquire(context.Background(), 5, emit)
	require.NoError(t, err)

	require.Len(t, *got, 2)
	assert.Equal(t, "https://www.sofascore.com/event/1", (*got)[0].DOM.URL)
	assert.Equal(t, "Inter", (*got)[1].DOM.AwayTeam)
	assert.Equal(t, d.Config.Browser.Scroll.Count, b.scrolls)
	assert.Equal(t, []string{"page_loaded.png"}, b.screenshots)
	assert.True(t, b.closed)
	assert.Equal(t, []Phase{PhaseProbing}, *phases, "no challenge, no captcha wait")
}

func TestBrowserStrategy_StopsWhenConsumerIsFull(t *testing.T) {
	b := &fakeBrowser{html: listingHTML}
	d, _ := testDeps(t, b)
	st, err := Build("browser", d)
	require.NoError(t, err)

	emit, got := collect(1)
	_, err = st.Acquire(context.Background(), 1, emit)
	require.NoError(t, err)
	assert.Len(t, *got, 1)
}

func TestBrowserStrategy_NoMatchesTakesScreenshot(t *testing.T) {
	b := &fakeBrowser{html: "<html><body><p>nothing today</p></body></html>"}
	d, _ := testDeps(t, b)
	st, err := Build("browser", d)
	require.NoError(t, err)

	emit, got := collect(0)
	_, err = st.Acquire(context.Background(), 5, emit)
	require.NoError(t, err)
	assert.Empty(t, *got)
	assert.Contains(t, b.screenshots, "no_matches_found.png")
}

func TestBrowserStrategy_ChallengeTimeout(t *testing.T) {
	b := &fakeBrowser{html: `<html><body><div id="captcha"></div>` + listingHTML + `</body></html>`}
	d, phases := testDeps(t, b)
	st, err := Build("browser", d)
	require.NoError(t, err)

	emit, got := collect(0)
	_, err = st.Acquire(context.Background(), 5, emit)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrChallengeTimeout))
	assert.Empty(t, *got)
	assert.Contains(t, b.screenshots, "captcha.png")
	assert.Contains(t, b.screenshots, "error_state.png")
	assert.Equal(t, []Phase{PhaseProbing, PhaseCaptchaWait, PhaseProbing}, *phases)
	assert.True(t, b.closed)
}

func TestBrowserStrategy_LaunchFailure(t *testing.T) {
	d, _ := testDeps(t, nil)
	d.Launch = func(context.Context, config.BrowserConfig, bool, *artifacts.Store) (Browser, error) {
		return nil, errors.New("chrome not found")
	}
	st, err := Build("browser", d)
	require.NoError(t, err)

	emit, _ := collect(0)
	_, err = st.Acquire(context.Background(), 5, emit)
	assert.True(t, errors.Is(err, models.ErrSourceUnavailable))
}

func TestNetworkStrategy_CapturesAndExtracts(t *testing.T) {
	ts := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	b := &fakeBrowser{
		html: listingHTML,
		requests: []models.CapturedRequest{
			{URL: "https://api.sofascore.com/api/v1/sport/football/events/live", Method: "GET", Timestamp: ts.Format(time.RFC3339Nano)},
			{URL: "https://www.sofascore.com/static/app.js", Method: "GET", Timestamp: ts.Format(time.RFC3339Nano)},
			{URL: "https://api.sofascore.com/api/v1/sport/football/categories", Method: "GET", Timestamp: ts.Add(2 * time.Second).Format(time.RFC3339Nano)},
		},
	}
	d, _ := testDeps(t, b)
	st, err := Build("network", d)
	require.NoError(t, err)

	emit, got := collect(0)
	out, err := st.Acquire(context.Background(), 5, emit)
	require.NoError(t, err)

	assert.Len(t, *got, 2)
	require.Len(t, out.Captured, 2)
	require.NotNil(t, out.Analysis)
	assert.Equal(t, 2, out.Analysis.Total)
	assert.Equal(t, 1, b.cookies)
	assert.FileExists(t, d.Store.RequestsPath())
	assert.FileExists(t, d.Store.AnalysisPath())
}

func TestNetworkStrategy_NavigationFailure(t *testing.T) {
	b := &fakeBrowser{navErr: models.ErrSourceUnavailable}
	d, _ := testDeps(t, b)
	st, err := Build("network", d)
	require.NoError(t, err)

	emit, _ := collect(0)
	_, err = st.Acquire(context.Background(), 5, emit)
	assert.True(t, errors.Is(err, models.ErrSourceUnavailable))
	assert.Contains(t, b.screenshots, "error_state.png")
}

func TestNetworkStrategy_ChallengeTimeoutKeepsCapture(t *testing.T) {
	b := &fakeBrowser{
		html: `<html><body><div id="captcha"></div></body></html>`,
		requests: []models.CapturedRequest{
			{URL: "https://api.sofascore.com/api/v1/sport/football/events/live", Method: "GET", Timestamp: "2024-03-09T12:00:00Z"},
		},
	}
	d, _ := testDeps(t, b)
	st, err := Build("network", d)
	require.NoError(t, err)

	emit, got := collect(0)
	out, err := st.Acquire(context.Background(), 5, emit)
	assert.True(t, errors.Is(err, models.ErrChallengeTimeout))
	assert.Empty(t, *got)
	require.Len(t, out.Captured, 1)
	require.NotNil(t, out.Analysis)
	assert.Equal(t, 1, out.Analysis.Total)
	assert.FileExists(t, d.Store.RequestsPath())
	assert.Equal(t, 1, b.cookies)
}

func TestAPIStrategy_FetchesFromEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/events" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"events":[{"id":1},{"id":2},{"id":3}]}`)
			return
		}
		_, _ = io.WriteString(w, "<html></html>")
	}))
	defer srv.Close()

	d, _ := testDeps(t, nil)
	d.Config.API.BaseURL = srv.URL
	d.Config.API.LandingURL = srv.URL + "/football"
	d.Config.API.Endpoints = []string{"{base_url}/events"}
	st, err := Build("api", d)
	require.NoError(t, err)

	emit, got := collect(0)
	_, err = st.Acquire(context.Background(), 2, emit)
	require.NoError(t, err)
	require.Len(t, *got, 2)
	assert.Equal(t, "1", (*got)[0].IdentityKey())
}

type scriptedStrategy struct {
	name   string
	events []models.RawEvent
	err    error
	calls  *[]string
}

func (s *scriptedStrategy) Name() string { return s.name }

func (s *scriptedStrategy) Acquire(_ context.Context, _ int, emit models.EmitFunc) (Outcome, error) {
	*s.calls = append(*s.calls, s.name)
	for _, ev := range s.events {
		if !emit(ev) {
			break
		}
	}
	return Outcome{Captured: []models.CapturedRequest{{URL: s.name}}}, s.err
}

var registerScripted sync.Once

func scriptedOrder(calls *[]string) []string {
	registerScripted.Do(func() {
		mk := func(name string, err error, ids ...string) {
			Register(name, func(Deps) Strategy {
				evs := make([]models.RawEvent, 0, len(ids))
				for _, id := range ids {
					evs = append(evs, models.NewAPIEvent(models.APIEvent{"id": id}))
				}
				return &scriptedStrategy{name: name, events: evs, err: err, calls: scriptedCalls}
			})
		}
		mk("test-first", nil, "1", "2")
		mk("test-broken", models.ErrChallengeTimeout)
		mk("test-third", nil, "3", "4", "5")
	})
	scriptedCalls = calls
	return []string{"test-first", "test-broken", "test-third"}
}

var scriptedCalls *[]string

func TestAutoStrategy_FallsThroughUntilFull(t *testing.T) {
	var calls []string
	auto := &autoStrategy{order: scriptedOrder(&calls)}

	emit, got := collect(3)
	out, err := auto.Acquire(context.Background(), 3, emit)
	require.NoError(t, err)

	assert.Equal(t, []string{"test-first", "test-broken", "test-third"}, calls)
	assert.Len(t, *got, 3)
	assert.Len(t, out.Captured, 3)
}

func TestAutoStrategy_StopsAtFirstThatFills(t *testing.T) {
	var calls []string
	auto := &autoStrategy{order: scriptedOrder(&calls)}

	emit, got := collect(2)
	_, err := auto.Acquire(context.Background(), 2, emit)
	require.NoError(t, err)
	assert.Equal(t, []string{"test-first"}, calls)
	assert.Len(t, *got, 2)
}

func TestAutoStrategy_ReportsFailuresWhenNotFilled(t *testing.T) {
	var calls []string
	auto := &autoStrategy{order: scriptedOrder(&calls)}

	emit, got := collect(0)
	_, err := auto.Acquire(context.Background(), 10, emit)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrChallengeTimeout))
	assert.Len(t, *got, 5)
}
