// Package strategies holds the acquisition strategies the pipeline can run:
// api, browser, network and auto (all three in order).
package strategies

import (
	"context"
	"io"
	"os"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/artifacts"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/metrics"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/parserutil"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/browser"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/captcha"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/interact"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/probes/dom"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/probes/network"
)

// Strategy acquires raw events from one channel and streams them to emit.
// It stops early when emit returns false. A returned error marks the
// strategy as failed; events already emitted stay valid.
type Strategy interface {
	Name() string
	Acquire(ctx context.Context, limit int, emit models.EmitFunc) (Outcome, error)
}

// Outcome carries the side observations of a strategy.
type Outcome struct {
	Captured []models.CapturedRequest
	Analysis *network.Analysis
}

// Browser is everything the browser-based strategies need from a session.
type Browser interface {
	captcha.Page
	dom.Page
	interact.Actor
	network.RequestSource
	Navigate(ctx context.Context, url string) error
	SaveCookies(ctx context.Context) error
	Close()
}

var _ Browser = (*browser.Session)(nil)

// Launcher opens a browser session.
type Launcher func(ctx context.Context, cfg config.BrowserConfig, headless bool, store *artifacts.Store) (Browser, error)

// ChromeLauncher starts a real Chrome through chromedp.
func ChromeLauncher(ctx context.Context, cfg config.BrowserConfig, headless bool, store *artifacts.Store) (Browser, error) {
	s, err := browser.Launch(ctx, cfg, headless, store)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Phase is a step of a strategy that the pipeline reports as its state.
type Phase string

const (
	PhaseProbing     Phase = "probing_source"
	PhaseCaptchaWait Phase = "captcha_wait"
)

// Deps are shared by every strategy of a run.
type Deps struct {
	Config   *config.Config
	Headless bool
	Store    *artifacts.Store
	Metrics  *metrics.Recorder
	// Signal delivers the operator's "challenge solved" confirmations.
	Signal <-chan struct{}
	Prompt io.Writer
	Launch Launcher
	Sleep  parserutil.SleepFunc
	Rand   interact.Rand
	// OnPhase, when set, is told about phase changes.
	OnPhase func(Phase)
}

// withDefaults fills unset collaborators with the production ones.
func (d Deps) withDefaults() Deps {
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.Store == nil {
		d.Store = artifacts.New(d.Config.Paths)
	}
	if d.Prompt == nil {
		d.Prompt = os.Stdout
	}
	if d.Launch == nil {
		d.Launch = ChromeLauncher
	}
	if d.Sleep == nil {
		d.Sleep = parserutil.Sleep
	}
	return d
}

func (d Deps) phase(p Phase) {
	if d.OnPhase != nil {
		d.OnPhase(p)
	}
}

func (d Deps) gate() *captcha.Gate {
	return captcha.New(d.Config.Captcha,
		captcha.WithSignal(d.Signal),
		captcha.WithPrompt(d.Prompt),
		captcha.WithSleep(d.Sleep),
		captcha.WithMetrics(d.Metrics),
		captcha.WithWaitHook(func(waiting bool) {
			if waiting {
				d.phase(PhaseCaptchaWait)
			} else {
				d.phase(PhaseProbing)
			}
		}),
	)
}

func (d Deps) human(actor interact.Actor) *interact.Human {
	opts := []interact.Option{interact.WithSleep(d.Sleep), interact.WithScreenshots(true)}
	if d.Rand != nil {
		opts = append(opts, interact.WithRand(d.Rand))
	}
	return interact.New(d.Config.Browser.Scroll, d.Config.Selectors.Tabs, actor, opts...)
}
