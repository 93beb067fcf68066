package strategies

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/probes/dom"
)

func init() {
	Register("browser", func(d Deps) Strategy { return &browserStrategy{deps: d.withDefaults()} })
}

// browserStrategy loads the listing page, waits out any challenge, scrolls
// like a person and extracts matches from the rendered DOM.
type browserStrategy struct {
	deps Deps
}

func (s *browserStrategy) Name() string { return "browser" }

func (s *browserStrategy) Acquire(ctx context.Context, limit int, emit models.EmitFunc) (Outcome, error) {
	cfg := s.deps.Config
	s.deps.phase(PhaseProbing)

	b, err := s.deps.Launch(ctx, cfg.Browser, s.deps.Headless, s.deps.Store)
	if err != nil {
		return Outcome{}, fmt.Errorf("launch browser: %v: %w", err, models.ErrSourceUnavailable)
	}
	defer b.Close()

	if err := s.scrape(ctx, b, emit); err != nil {
		shot(ctx, b, "error_state.png")
		return Outcome{}, err
	}
	return Outcome{}, nil
}

func (s *browserStrategy) scrape(ctx context.Context, b Browser, emit models.EmitFunc) error {
	cfg := s.deps.Config

	slog.Info("Browser: navigating", "url", cfg.Browser.URL)
	if err := b.Navigate(ctx, cfg.Browser.URL); err != nil {
		return err
	}
	if err := s.deps.Sleep(ctx, cfg.Browser.PostLoadDelay); err != nil {
		return err
	}
	shot(ctx, b, "page_loaded.png")

	if err := passChallenge(ctx, s.deps, b); err != nil {
		return err
	}

	human := s.deps.human(b)
	if cfg.Browser.InteractionEnabled {
		if err := human.Interact(ctx); err != nil {
			return err
		}
	} else if err := human.Scroll(ctx, cfg.Browser.Scroll.Count); err != nil {
		return err
	}
	if err := s.deps.Sleep(ctx, cfg.Browser.PostInteractDelay); err != nil {
		return err
	}

	events, err := dom.New(cfg.Selectors).ExtractPage(ctx, b)
	if err != nil {
		return fmt.Errorf("%v: %w", err, models.ErrSourceUnavailable)
	}
	if len(events) == 0 {
		slog.Warn("Browser: no matches found on page")
		shot(ctx, b, "no_matches_found.png")
		return nil
	}

	slog.Info("Browser: extracted events", "count", len(events))
	emitAll(events, emit)
	return nil
}

func passChallenge(ctx context.Context, d Deps, b Browser) error {
	return d.gate().Handle(ctx, b)
}

func emitAll(events []models.RawEvent, emit models.EmitFunc) {
	for _, ev := range events {
		if !emit(ev) {
			return
		}
	}
}

func shot(ctx context.Context, b Browser, name string) {
	if err := b.Screenshot(ctx, name); err != nil {
		slog.Warn("Browser: failed to take screenshot", "name", name, "error", err)
	}
}
