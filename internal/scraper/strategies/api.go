package strategies

import (
	"context"
	"log/slog"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/probes/api"
)

func init() {
	Register("api", func(d Deps) Strategy { return &apiStrategy{deps: d.withDefaults()} })
}

type apiStrategy struct {
	deps Deps
}

func (s *apiStrategy) Name() string { return "api" }

func (s *apiStrategy) Acquire(ctx context.Context, limit int, emit models.EmitFunc) (Outcome, error) {
	s.deps.phase(PhaseProbing)
	probe, err := api.New(s.deps.Config.API, api.WithSleep(s.deps.Sleep), api.WithMetrics(s.deps.Metrics))
	if err != nil {
		return Outcome{}, err
	}
	n := probe.Fetch(ctx, limit, emit)
	slog.Info("API: strategy finished", "emitted", n)
	return Outcome{}, nil
}
