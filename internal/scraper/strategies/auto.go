package strategies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// autoOrder is the fallback chain: cheapest channel first.
var autoOrder = []string{"api", "browser", "network"}

func init() {
	Register("auto", func(d Deps) Strategy { return &autoStrategy{deps: d, order: autoOrder} })
}

// autoStrategy runs the strategies in order until the consumer stops
// accepting events. The consumer's dedup set is shared by all of them.
type autoStrategy struct {
	deps  Deps
	order []string
}

func (s *autoStrategy) Name() string { return "auto" }

func (s *autoStrategy) Acquire(ctx context.Context, limit int, emit models.EmitFunc) (Outcome, error) {
	var (
		out     Outcome
		errs    []error
		stopped bool
	)
	tracked := func(ev models.RawEvent) bool {
		if !emit(ev) {
			stopped = true
			return false
		}
		return true
	}

	for _, name := range s.order {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		st, err := Build(name, s.deps)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		slog.Info("Auto: trying strategy", "strategy", name)
		o, err := st.Acquire(ctx, limit, tracked)
		if err != nil {
			slog.Warn("Auto: strategy failed", "strategy", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		out.Captured = append(out.Captured, o.Captured...)
		if o.Analysis != nil {
			out.Analysis = o.Analysis
		}
		if stopped {
			slog.Info("Auto: limit reached", "strategy", name)
			return out, nil
		}
	}
	return out, errors.Join(errs...)
}
