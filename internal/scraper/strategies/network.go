package strategies

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/probes/dom"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/probes/network"
)

func init() {
	Register("network", func(d Deps) Strategy { return &networkStrategy{deps: d.withDefaults()} })
}

// networkStrategy records the API calls the page makes while it is being
// used, and extracts matches from the DOM at the end.
type networkStrategy struct {
	deps Deps
}

func (s *networkStrategy) Name() string { return "network" }

func (s *networkStrategy) Acquire(ctx context.Context, limit int, emit models.EmitFunc) (Outcome, error) {
	cfg := s.deps.Config
	s.deps.phase(PhaseProbing)

	b, err := s.deps.Launch(ctx, cfg.Browser, s.deps.Headless, s.deps.Store)
	if err != nil {
		return Outcome{}, fmt.Errorf("launch browser: %v: %w", err, models.ErrSourceUnavailable)
	}
	defer b.Close()

	probe := network.NewProbe(
		network.NewRecorder(cfg.Capture),
		s.deps.human(b),
		dom.New(cfg.Selectors),
		s.deps.Store,
	)
	if err := probe.Attach(ctx, b); err != nil {
		return Outcome{}, fmt.Errorf("attach request listener: %v: %w", err, models.ErrSourceUnavailable)
	}

	slog.Info("Network: navigating", "url", cfg.Browser.URL)
	if err := b.Navigate(ctx, cfg.Browser.URL); err != nil {
		shot(ctx, b, "error_state.png")
		return salvage(ctx, probe, b, err)
	}
	if err := s.deps.Sleep(ctx, cfg.Browser.PostLoadDelay); err != nil {
		return salvage(ctx, probe, b, err)
	}
	if err := passChallenge(ctx, s.deps, b); err != nil {
		shot(ctx, b, "error_state.png")
		return salvage(ctx, probe, b, err)
	}

	res, err := probe.Run(ctx, b, emit)
	out := Outcome{Captured: res.Captured, Analysis: &res.Analysis}
	for i, ep := range res.Analysis.TopEndpoints() {
		if i == 5 {
			break
		}
		slog.Info("Network: top endpoint", "rank", i+1, "endpoint", ep.Endpoint, "count", ep.Count)
	}
	return out, err
}

// salvage persists the traffic recorded before a failure and returns it
// alongside the original error.
func salvage(ctx context.Context, probe *network.Probe, b Browser, cause error) (Outcome, error) {
	res, perr := probe.Finish(context.WithoutCancel(ctx), b)
	if perr != nil {
		slog.Warn("Network: failed to keep partial capture", "error", perr)
	}
	return Outcome{Captured: res.Captured, Analysis: &res.Analysis}, cause
}
