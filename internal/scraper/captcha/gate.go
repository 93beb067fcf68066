package captcha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/domutil"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/metrics"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/parserutil"
)

// Page is the part of a browser page the gate needs.
type Page interface {
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, name string) error
}

// Snapshot is what detection looks at.
type Snapshot struct {
	Title string
	HTML  string
}

// Detection lists which signals fired. Empty fields mean the signal was negative.
type Detection struct {
	Marker      string
	TitleTerm   string
	ContentTerm string
}

func (d Detection) Detected() bool {
	return d.Marker != "" || d.TitleTerm != "" || d.ContentTerm != ""
}

// Outcome of waiting for the operator.
type Outcome int

const (
	TimedOut Outcome = iota
	Solved
)

func (o Outcome) String() string {
	if o == Solved {
		return "solved"
	}
	return "timed_out"
}

// Gate detects anti-bot challenges and blocks until an operator resolves them.
type Gate struct {
	cfg     config.CaptchaConfig
	signal  <-chan struct{}
	prompt  io.Writer
	sleep   parserutil.SleepFunc
	now     func() time.Time
	metrics *metrics.Recorder
	onWait  func(waiting bool)
}

type Option func(*Gate)

// WithSignal sets the channel the operator uses to report a solved challenge.
func WithSignal(ch <-chan struct{}) Option { return func(g *Gate) { g.signal = ch } }

func WithPrompt(w io.Writer) Option { return func(g *Gate) { g.prompt = w } }

func WithSleep(sleep parserutil.SleepFunc) Option {
	return func(g *Gate) { g.sleep = sleep }
}

func WithClock(now func() time.Time) Option { return func(g *Gate) { g.now = now } }

func WithMetrics(m *metrics.Recorder) Option { return func(g *Gate) { g.metrics = m } }

// WithWaitHook is told when Handle starts and stops waiting for the operator.
func WithWaitHook(fn func(waiting bool)) Option { return func(g *Gate) { g.onWait = fn } }

func New(cfg config.CaptchaConfig, opts ...Option) *Gate {
	g := &Gate{
		cfg:    cfg,
		prompt: os.Stdout,
		sleep:  parserutil.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Inspect evaluates the three signals independently against a snapshot. The
// content signal reads the document text, so markup alone never triggers it.
func (g *Gate) Inspect(s Snapshot) Detection {
	var d Detection
	text := s.HTML
	if s.HTML != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.HTML)); err == nil {
			d.Marker, _ = domutil.AnyMatch(doc.Selection, g.cfg.Selectors)
			text = doc.Text()
		}
	}
	d.TitleTerm, _ = domutil.ContainsAny(s.Title, g.cfg.TitleTerms)
	d.ContentTerm, _ = domutil.ContainsAny(text, g.cfg.ContentTerms)
	return d
}

// Detect reads the page and runs Inspect. A page that cannot be read counts as
// no challenge; the error is returned for logging.
func (g *Gate) Detect(ctx context.Context, page Page) (bool, error) {
	title, err := page.Title(ctx)
	if err != nil {
		return false, fmt.Errorf("read title: %w", err)
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return false, fmt.Errorf("read content: %w", err)
	}
	d := g.Inspect(Snapshot{Title: title, HTML: html})
	if d.Detected() {
		slog.Warn("Captcha: challenge detected", "marker", d.Marker, "title_term", d.TitleTerm, "content_term", d.ContentTerm)
	}
	return d.Detected(), nil
}

// AwaitResolution takes a screenshot, prompts the operator and blocks until the
// operator signals or timeout elapses. A claimed solve that leaves the challenge
// on the page keeps waiting, but against the same deadline.
func (g *Gate) AwaitResolution(ctx context.Context, page Page, timeout time.Duration) Outcome {
	deadline := g.now().Add(timeout)

	if err := page.Screenshot(ctx, "captcha.png"); err != nil {
		slog.Warn("Captcha: failed to take screenshot", "error", err)
	}
	fmt.Fprintf(g.prompt, "\nCAPTCHA detected. Solve it in the browser window, then press Enter (waiting up to %s)...\n", timeout)

	signal := g.signal
	for {
		remaining := deadline.Sub(g.now())
		if remaining <= 0 {
			return g.finish(TimedOut)
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return g.finish(TimedOut)
		case <-timer.C:
			return g.finish(TimedOut)
		case _, ok := <-signal:
			timer.Stop()
			if !ok {
				// Operator input is gone; only the deadline can end the wait now.
				signal = nil
				continue
			}
		}

		if err := g.sleep(ctx, g.cfg.Settle); err != nil {
			return g.finish(TimedOut)
		}
		detected, err := g.Detect(ctx, page)
		if err != nil {
			slog.Warn("Captcha: re-check failed", "error", err)
		}
		if !detected {
			return g.finish(Solved)
		}
		slog.Info("Captcha: still present after operator signal, waiting", "remaining", deadline.Sub(g.now()).Round(time.Second))
		fmt.Fprintln(g.prompt, "CAPTCHA still present. Solve it and press Enter again.")
	}
}

func (g *Gate) finish(o Outcome) Outcome {
	g.metrics.Captcha(o.String())
	if o == TimedOut {
		slog.Warn("Captcha: wait timed out")
	} else {
		slog.Info("Captcha: solved")
	}
	return o
}

// Handle runs up to MaxAttempts detect/wait rounds. It returns nil once the page
// is clear and models.ErrChallengeTimeout when the attempt budget is spent.
// Cancelling ctx ends the wait with ctx's error, never with a pass.
func (g *Gate) Handle(ctx context.Context, page Page) error {
	attempts := g.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("captcha wait interrupted: %w", err)
		}
		detected, err := g.Detect(ctx, page)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return fmt.Errorf("captcha wait interrupted: %w", cerr)
			}
			slog.Warn("Captcha: detection failed", "attempt", attempt, "error", err)
		}
		if !detected {
			return nil
		}
		g.metrics.Captcha("detected")
		slog.Info("Captcha: waiting for operator", "attempt", attempt, "max_attempts", attempts)

		g.waiting(true)
		outcome := g.AwaitResolution(ctx, page, g.cfg.WaitTimeout)
		g.waiting(false)
		if outcome != Solved {
			continue
		}

		if err := page.Screenshot(ctx, fmt.Sprintf("after_captcha_%d.png", attempt)); err != nil {
			slog.Warn("Captcha: failed to take screenshot", "error", err)
		}
		if err := g.sleep(ctx, g.cfg.RecheckDelay); err != nil {
			break
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("captcha wait interrupted: %w", err)
		}
		if detected, _ := g.Detect(ctx, page); !detected {
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("captcha wait interrupted: %w", err)
	}

	return fmt.Errorf("captcha unresolved after %d attempts: %w", attempts, models.ErrChallengeTimeout)
}

func (g *Gate) waiting(on bool) {
	if g.onWait != nil {
		g.onWait(on)
	}
}
