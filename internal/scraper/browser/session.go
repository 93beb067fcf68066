package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/artifacts"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/logging"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// Session is one Chrome instance with a single tab.
type Session struct {
	cfg    config.BrowserConfig
	store  *artifacts.Store
	ctx    context.Context
	cancel context.CancelFunc
}

// allocatorOptions builds the Chrome flags for a run.
func allocatorOptions(cfg config.BrowserConfig, headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	return opts
}

// Launch starts Chrome and opens a blank tab with the configured viewport.
func Launch(ctx context.Context, cfg config.BrowserConfig, headless bool, store *artifacts.Store) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg, headless)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logging.Printf(slog.LevelDebug, "chromedp: ")),
		chromedp.WithErrorf(logging.Printf(slog.LevelDebug, "chromedp error: ")),
	)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight))); err != nil {
		cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	slog.Info("Browser: launched", "headless", headless, "viewport", fmt.Sprintf("%dx%d", cfg.ViewportWidth, cfg.ViewportHeight))

	return &Session{cfg: cfg, store: store, ctx: tabCtx, cancel: cancel}, nil
}

func (s *Session) Close() {
	s.cancel()
	slog.Info("Browser: closed")
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runCtx, cancel := s.ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(s.ctx, timeout)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %v: %w", url, err, models.ErrSourceUnavailable)
	}
	if err := s.run(ctx, s.cfg.ElementTimeout, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for body: %v: %w", err, models.ErrSourceUnavailable)
	}
	return nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, s.cfg.ElementTimeout, chromedp.Title(&title))
	return title, err
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, s.cfg.ElementTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, s.cfg.ElementTimeout, chromedp.Location(&loc))
	return loc, err
}

// Screenshot saves a viewport PNG under the screenshots directory.
func (s *Session) Screenshot(ctx context.Context, name string) error {
	var buf []byte
	if err := s.run(ctx, s.cfg.ElementTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	path := s.store.ScreenshotPath(name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	slog.Info("Browser: screenshot saved", "path", path)
	return nil
}

func (s *Session) Viewport() (int, int) {
	return s.cfg.ViewportWidth, s.cfg.ViewportHeight
}

func (s *Session) ScrollBy(ctx context.Context, dy int) error {
	return s.run(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", dy), nil))
}

func (s *Session) ScrollTo(ctx context.Context, y int) error {
	return s.run(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(fmt.Sprintf("window.scrollTo(0, %d)", y), nil))
}

func (s *Session) MoveMouse(ctx context.Context, x, y int) error {
	return s.run(ctx, s.cfg.ElementTimeout, chromedp.MouseEvent(input.MouseMoved, float64(x), float64(y)))
}

func (s *Session) Click(ctx context.Context, x, y int) error {
	return s.run(ctx, s.cfg.ElementTimeout, chromedp.MouseClickXY(float64(x), float64(y)))
}

func (s *Session) IsLinkAt(ctx context.Context, x, y int) (bool, error) {
	var link bool
	err := s.run(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(linkAtJS(x, y), &link))
	return link, err
}

func (s *Session) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := s.run(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(fmt.Sprintf("document.querySelectorAll(%s).length", jsString(selector)), &n))
	return n, err
}

func (s *Session) Navigates(ctx context.Context, selector string, idx int) (bool, error) {
	var nav bool
	err := s.run(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(navigatesJS(selector, idx), &nav))
	return nav, err
}

func (s *Session) ClickNth(ctx context.Context, selector string, idx int) error {
	var ok bool
	if err := s.run(ctx, s.cfg.ElementTimeout, chromedp.Evaluate(clickNthJS(selector, idx), &ok)); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s[%d] not found", selector, idx)
	}
	return nil
}

// ListenRequests calls fn for every outgoing request until the session closes.
func (s *Session) ListenRequests(ctx context.Context, fn func(models.CapturedRequest)) error {
	chromedp.ListenTarget(s.ctx, func(ev any) {
		e, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || e.Request == nil {
			return
		}
		fn(capturedFrom(e))
	})
	if err := s.run(ctx, s.cfg.ElementTimeout, network.Enable()); err != nil {
		return fmt.Errorf("enable network events: %w", err)
	}
	return nil
}

func capturedFrom(e *network.EventRequestWillBeSent) models.CapturedRequest {
	headers := make(map[string]string, len(e.Request.Headers))
	for k, v := range e.Request.Headers {
		headers[k] = fmt.Sprint(v)
	}
	ts := time.Now()
	if e.WallTime != nil {
		ts = e.WallTime.Time()
	}
	return models.CapturedRequest{
		URL:       e.Request.URL,
		Method:    e.Request.Method,
		Headers:   headers,
		Timestamp: ts.Format(time.RFC3339Nano),
	}
}

// Cookies returns every cookie of the browser context.
func (s *Session) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, s.cfg.ElementTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// SaveCookies writes the cookie jar to the configured cookies file.
func (s *Session) SaveCookies(ctx context.Context) error {
	cookies, err := s.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}
	if err := artifacts.SaveJSON(s.store.CookiesPath(), cookies); err != nil {
		return err
	}
	slog.Info("Browser: cookies saved", "path", s.store.CookiesPath(), "count", len(cookies))
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func linkAtJS(x, y int) string {
	return fmt.Sprintf(`(() => {
  const el = document.elementFromPoint(%d, %d);
  return !!el && (el.tagName === 'A' || el.closest('a') !== null);
})()`, x, y)
}

func navigatesJS(selector string, idx int) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelectorAll(%s)[%d];
  return !!el && el.tagName === 'A' && !!el.href && !el.href.includes('#') && !el.target;
})()`, jsString(selector), idx)
}

func clickNthJS(selector string, idx int) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelectorAll(%s)[%d];
  if (!el) return false;
  el.scrollIntoView({block: 'center'});
  el.click();
  return true;
})()`, jsString(selector), idx)
}
