// Package pipeline runs one acquisition strategy and turns its raw events
// into at most limit unique matches.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/dedup"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/metrics"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/normalize"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/probes/network"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/strategies"
)

type State string

const (
	Idle          State = "idle"
	ProbingSource State = "probing_source"
	CaptchaWait   State = "captcha_wait"
	Normalizing   State = "normalizing"
	Deduplicating State = "deduplicating"
	Done          State = "done"
	Failed        State = "failed"
)

// Result of one run. Matches is never nil. Err holds the strategy failure,
// if any; matches collected before it are kept.
type Result struct {
	Method   string
	Matches  []models.Match
	Captured []models.CapturedRequest
	Analysis *network.Analysis
	State    State
	Err      error
	Started  time.Time
	Took     time.Duration
}

type Pipeline struct {
	deps       strategies.Deps
	normalizer *normalize.Normalizer
	metrics    *metrics.Recorder
	now        func() time.Time
	onState    func(State)
	state      State
}

type Option func(*Pipeline)

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithStateHook observes every state change.
func WithStateHook(fn func(State)) Option { return func(p *Pipeline) { p.onState = fn } }

// New builds a pipeline over deps. deps.Config must be set.
func New(deps strategies.Deps, opts ...Option) (*Pipeline, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("pipeline: config is required")
	}
	loc, err := deps.Config.Location()
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		deps:       deps,
		normalizer: normalize.New(deps.Config.API.SiteURL, loc),
		metrics:    deps.Metrics,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes method and never returns an error: failures end up in Result.Err.
func (p *Pipeline) Run(ctx context.Context, method string, limit int) (res Result) {
	p.state = ""
	p.transition(Idle)
	res = Result{Method: method, Matches: []models.Match{}, Started: p.now()}
	defer func() {
		res.Took = p.now().Sub(res.Started)
		p.metrics.RunFinished(method, len(res.Matches), res.Took, res.Started)
	}()

	if limit <= 0 {
		slog.Info("Pipeline: limit is not positive, nothing to do", "limit", limit)
		res.State = p.transition(Done)
		return res
	}

	deps := p.deps
	deps.OnPhase = func(ph strategies.Phase) {
		if ph == strategies.PhaseCaptchaWait {
			p.transition(CaptchaWait)
		} else {
			p.transition(ProbingSource)
		}
	}
	st, err := strategies.Build(method, deps)
	if err != nil {
		slog.Error("Pipeline: cannot build strategy", "method", method, "error", err)
		res.Err = err
		res.State = p.transition(Failed)
		return res
	}

	seen := dedup.New(limit)
	emit := func(raw models.RawEvent) bool {
		if seen.Full() {
			return false
		}
		if key := raw.IdentityKey(); key != "" && seen.Seen(key) {
			p.metrics.Event(string(raw.Source), dedup.Duplicate.String())
			slog.Debug("Pipeline: duplicate skipped before normalization", "key", key)
			return true
		}
		p.transition(Normalizing)
		m := p.normalizer.Normalize(raw)

		p.transition(Deduplicating)
		verdict := seen.Add(raw.IdentityKey(), m)
		p.metrics.Event(string(raw.Source), verdict.String())
		switch verdict {
		case dedup.Accepted:
			slog.Debug("Pipeline: match accepted", "title", m.Title(), "url", m.URL)
		case dedup.Duplicate:
			slog.Debug("Pipeline: duplicate skipped", "url", m.URL)
		case dedup.Unidentified:
			slog.Debug("Pipeline: event without identity skipped", "source", raw.Source)
		}

		p.transition(ProbingSource)
		return !seen.Full()
	}

	slog.Info("Pipeline: starting", "method", st.Name(), "limit", limit)
	p.transition(ProbingSource)
	out, err := st.Acquire(ctx, limit, emit)

	res.Matches = seen.Matches()
	res.Captured = out.Captured
	res.Analysis = out.Analysis
	if err != nil {
		slog.Warn("Pipeline: strategy failed", "method", method, "matches", seen.Len(), "short_by", seen.Remaining(), "error", err)
		res.Err = err
		res.State = p.transition(Failed)
		return res
	}

	slog.Info("Pipeline: finished", "method", method, "matches", seen.Len(), "limit", limit, "short_by", seen.Remaining())
	res.State = p.transition(Done)
	return res
}

func (p *Pipeline) transition(s State) State {
	if p.state == s {
		return s
	}
	slog.Debug("Pipeline: state", "from", p.state, "to", s)
	p.state = s
	if p.onState != nil {
		p.onState(s)
	}
	return s
}
