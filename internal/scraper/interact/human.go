// Package interact drives a page the way a person would: uneven scrolling,
// idle mouse movement, the odd click on something that does not navigate.
package interact

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/parserutil"
)

// Actor is the page surface the helper needs. Coordinates are viewport pixels.
type Actor interface {
	ScrollBy(ctx context.Context, dy int) error
	ScrollTo(ctx context.Context, y int) error
	MoveMouse(ctx context.Context, x, y int) error
	Click(ctx context.Context, x, y int) error
	// IsLinkAt reports whether the element under (x, y) is a link or inside one.
	IsLinkAt(ctx context.Context, x, y int) (bool, error)
	Count(ctx context.Context, selector string) (int, error)
	// Navigates reports whether clicking the idx-th match of selector would leave the page.
	Navigates(ctx context.Context, selector string, idx int) (bool, error)
	ClickNth(ctx context.Context, selector string, idx int) error
	Screenshot(ctx context.Context, name string) error
	Viewport() (width, height int)
}

// Rand is the randomness source. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

const (
	minMouseMoves   = 3
	maxMouseMoves   = 8
	safeClickTries  = 5
	tabsPerSelector = 2
)

type Human struct {
	cfg         config.ScrollConfig
	tabs        []string
	actor       Actor
	rand        Rand
	sleep       parserutil.SleepFunc
	screenshots bool
}

type Option func(*Human)

func WithRand(r Rand) Option { return func(h *Human) { h.rand = r } }

func WithSleep(sleep parserutil.SleepFunc) Option {
	return func(h *Human) { h.sleep = sleep }
}

// WithScreenshots enables the before/after interaction screenshots.
func WithScreenshots(on bool) Option { return func(h *Human) { h.screenshots = on } }

func New(cfg config.ScrollConfig, tabs []string, actor Actor, opts ...Option) *Human {
	h := &Human{
		cfg:   cfg,
		tabs:  tabs,
		actor: actor,
		rand:  globalRand{},
		sleep: parserutil.Sleep,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Scroll performs n downward scrolls of base±variance pixels (never below the
// minimum), pausing base+rand*variance between them, and sometimes scrolls back up.
func (h *Human) Scroll(ctx context.Context, n int) error {
	slog.Info("Interact: scrolling page", "iterations", n)
	for i := 0; i < n; i++ {
		dist := h.cfg.Distance + h.randInt(-h.cfg.Variance, h.cfg.Variance)
		if dist < h.cfg.MinDistance {
			dist = h.cfg.MinDistance
		}
		if err := h.actor.ScrollBy(ctx, dist); err != nil {
			slog.Warn("Interact: scroll failed", "error", err)
		}
		if err := h.sleep(ctx, h.cfg.Delay+h.jitter(h.cfg.DelayVariance)); err != nil {
			return err
		}
	}

	if h.rand.Float64() < h.cfg.ScrollBackP {
		up := h.randInt(100, 300)
		if err := h.actor.ScrollBy(ctx, -up); err != nil {
			slog.Warn("Interact: scroll back failed", "error", err)
		}
		return h.sleep(ctx, h.cfg.Delay)
	}
	return nil
}

// MouseMoves moves the pointer 3-8 times inside the viewport and occasionally
// clicks somewhere safe.
func (h *Human) MouseMoves(ctx context.Context) error {
	w, ht := h.actor.Viewport()
	moves := h.randInt(minMouseMoves, maxMouseMoves)
	for i := 0; i < moves; i++ {
		x := h.randInt(10, w-10)
		y := h.randInt(10, ht-10)
		if err := h.actor.MoveMouse(ctx, x, y); err != nil {
			slog.Debug("Interact: mouse move failed", "error", err)
		}
		if err := h.sleep(ctx, 100*time.Millisecond+h.jitter(300*time.Millisecond)); err != nil {
			return err
		}
	}

	if h.rand.Float64() < h.cfg.ClickP {
		return h.SafeClick(ctx)
	}
	return nil
}

// SafeClick clicks a random point that is not on a link, falling back to the
// viewport centre after a few tries.
func (h *Human) SafeClick(ctx context.Context) error {
	w, ht := h.actor.Viewport()
	for i := 0; i < safeClickTries; i++ {
		x := h.randInt(50, w-50)
		y := h.randInt(50, ht-50)
		link, err := h.actor.IsLinkAt(ctx, x, y)
		if err != nil || link {
			continue
		}
		return h.actor.Click(ctx, x, y)
	}
	return h.actor.Click(ctx, w/2, ht/2)
}

// ClickTabs clicks up to MaxTabClicks non-navigating tab/filter elements,
// at most two per selector. It returns the number of clicks made.
func (h *Human) ClickTabs(ctx context.Context) (int, error) {
	clicks := 0
	for _, sel := range h.tabs {
		n, err := h.actor.Count(ctx, sel)
		if err != nil {
			slog.Debug("Interact: selector query failed", "selector", sel, "error", err)
			continue
		}
		for idx := 0; idx < min(n, tabsPerSelector); idx++ {
			if clicks >= h.cfg.MaxTabClicks {
				return clicks, nil
			}
			nav, err := h.actor.Navigates(ctx, sel, idx)
			if err != nil || nav {
				continue
			}
			slog.Info("Interact: clicking element", "selector", sel, "index", idx)
			if err := h.actor.ClickNth(ctx, sel, idx); err != nil {
				slog.Warn("Interact: click failed", "selector", sel, "index", idx, "error", err)
				continue
			}
			if err := h.sleep(ctx, time.Second+h.jitter(2*time.Second)); err != nil {
				return clicks, err
			}
			h.screenshot(ctx, fmt.Sprintf("after_click_%d.png", clicks))
			clicks++
		}
	}
	return clicks, nil
}

// Interact runs the full sequence used before extracting from a live page.
func (h *Human) Interact(ctx context.Context) error {
	slog.Info("Interact: interacting with page")
	if err := h.sleep(ctx, time.Second+h.jitter(2*time.Second)); err != nil {
		return err
	}
	h.screenshot(ctx, "before_interaction.png")

	if err := h.Scroll(ctx, h.cfg.Count); err != nil {
		return err
	}
	if _, err := h.ClickTabs(ctx); err != nil {
		return err
	}
	if err := h.MouseMoves(ctx); err != nil {
		return err
	}

	if h.rand.Float64() < 0.5 {
		if err := h.actor.ScrollTo(ctx, 0); err != nil {
			slog.Warn("Interact: scroll to top failed", "error", err)
		}
		if err := h.sleep(ctx, time.Second); err != nil {
			return err
		}
	}
	if err := h.Scroll(ctx, 2); err != nil {
		return err
	}

	h.screenshot(ctx, "after_interaction.png")
	return h.sleep(ctx, 3*time.Second+h.jitter(2*time.Second))
}

func (h *Human) screenshot(ctx context.Context, name string) {
	if !h.screenshots {
		return
	}
	if err := h.actor.Screenshot(ctx, name); err != nil {
		slog.Warn("Interact: screenshot failed", "name", name, "error", err)
	}
}

// randInt returns a value in [lo, hi]; hi < lo yields lo.
func (h *Human) randInt(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + h.rand.IntN(hi-lo+1)
}

func (h *Human) jitter(max time.Duration) time.Duration {
	return parserutil.Jitter(0, max, h.rand.Float64())
}
