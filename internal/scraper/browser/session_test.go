package browser

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/artifacts"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/captcha"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/interact"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/probes/dom"
)

var (
	_ captcha.Page   = (*Session)(nil)
	_ dom.Page       = (*Session)(nil)
	_ interact.Actor = (*Session)(nil)
)

func TestJSHelpersQuoteSelectors(t *testing.T) {
	sel := `nav a[href='#']`
	assert.Equal(t, `"nav a[href='#']"`, jsString(sel))
	assert.Contains(t, navigatesJS(sel, 1), `document.querySelectorAll("nav a[href='#']")[1]`)
	assert.Contains(t, clickNthJS(`a[data-x="y"]`, 0), `document.querySelectorAll("a[data-x=\"y\"]")[0]`)
	assert.Contains(t, linkAtJS(10, 20), "document.elementFromPoint(10, 20)")
}

func TestCapturedFrom(t *testing.T) {
	wall := cdp.TimeSinceEpoch(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	ev := &network.EventRequestWillBeSent{
		Request: &network.Request{
			URL:     "https://api.sofascore.com/api/v1/sport/football/events/live",
			Method:  "GET",
			Headers: network.Headers{"Accept": "application/json", "X-Num": 1},
		},
		WallTime: &wall,
	}

	got := capturedFrom(ev)
	assert.Equal(t, "GET", got.Method)
	assert.Equal(t, "application/json", got.Headers["Accept"])
	assert.Equal(t, "1", got.Headers["X-Num"])
	assert.Equal(t, "2024-01-02T03:04:05Z", got.Timestamp)
}

func TestAllocatorOptions(t *testing.T) {
	cfg := config.Default().Browser
	base := len(allocatorOptions(cfg, true))
	cfg.ChromePath = "/usr/bin/chromium"
	assert.Equal(t, base+1, len(allocatorOptions(cfg, true)))
}

// Needs a local Chrome; enable with SCRAPER_CHROME_TESTS=1.
func TestSession_LocalPage(t *testing.T) {
	if os.Getenv("SCRAPER_CHROME_TESTS") != "1" {
		t.Skip("SCRAPER_CHROME_TESTS not set")
	}

	root := t.TempDir()
	paths := config.Default().Paths
	paths.ScreenshotsDir = root
	store := artifacts.New(paths)

	cfg := config.Default().Browser
	s, err := Launch(context.Background(), cfg, true, store)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Navigate(ctx, `data:text/html,<title>Football</title><a href="/event/1">x</a><div class="tabs"><button>t</button></div>`))

	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Football", title)

	html, err := s.HTML(ctx)
	require.NoError(t, err)
	assert.True(t, strings.Contains(html, "/event/1"))

	n, err := s.Count(ctx, ".tabs button")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Screenshot(ctx, "page.png"))
}
