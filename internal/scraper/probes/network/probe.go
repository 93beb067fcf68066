package network

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/artifacts"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
	"github.com/Vodeneev/sofascore-scraper/internal/scraper/probes/dom"
)

// RequestSource streams outgoing browser requests.
type RequestSource interface {
	ListenRequests(ctx context.Context, fn func(models.CapturedRequest)) error
}

// Page is what Run needs from the browser after navigation.
type Page interface {
	dom.Page
	SaveCookies(ctx context.Context) error
}

// Interactor provokes the page into issuing API calls.
type Interactor interface {
	Interact(ctx context.Context) error
}

// Result of a capture run. Captured never feeds the match stream.
type Result struct {
	Emitted  int
	Captured []models.CapturedRequest
	Analysis Analysis
}

type Probe struct {
	recorder  *Recorder
	human     Interactor
	extractor *dom.Extractor
	store     *artifacts.Store
}

func NewProbe(recorder *Recorder, human Interactor, extractor *dom.Extractor, store *artifacts.Store) *Probe {
	return &Probe{recorder: recorder, human: human, extractor: extractor, store: store}
}

// Attach subscribes the recorder. Call it before navigating so early requests are seen.
func (p *Probe) Attach(ctx context.Context, src RequestSource) error {
	return src.ListenRequests(ctx, func(req models.CapturedRequest) {
		if p.recorder.Observe(req) {
			slog.Debug("Network: captured API request", "url", req.URL)
		}
	})
}

// Run interacts with the page, extracts matches from the resulting DOM and
// persists the request log, its analysis and the cookie jar.
func (p *Probe) Run(ctx context.Context, page Page, emit models.EmitFunc) (Result, error) {
	var res Result

	if p.human != nil {
		if err := p.human.Interact(ctx); err != nil {
			slog.Warn("Network: interaction interrupted", "error", err)
		}
	}

	events, err := p.extractor.ExtractPage(ctx, page)
	if err != nil {
		slog.Warn("Network: extraction failed", "error", err)
	}
	for _, ev := range events {
		res.Emitted++
		if !emit(ev) {
			break
		}
	}

	fin, perr := p.Finish(ctx, page)
	fin.Emitted = res.Emitted
	if perr != nil {
		return fin, perr
	}
	return fin, err
}

// Finish snapshots whatever the recorder holds and persists it. Strategies
// call it directly when navigation or the challenge fails so the traffic
// seen so far is not lost.
func (p *Probe) Finish(ctx context.Context, page Page) (Result, error) {
	var res Result
	res.Captured = p.recorder.Requests()
	res.Analysis = Analyze(res.Captured)
	slog.Info("Network: capture finished", "requests", len(res.Captured), "endpoints", len(res.Analysis.Endpoints), "rate", res.Analysis.RequestRate)
	return res, p.persist(ctx, page, res)
}

func (p *Probe) persist(ctx context.Context, page Page, res Result) error {
	if p.store == nil {
		return nil
	}
	var firstErr error
	keep := func(err error) {
		if err != nil {
			slog.Warn("Network: failed to save artifact", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%v: %w", err, models.ErrPersistenceFailure)
			}
		}
	}

	captured := res.Captured
	if captured == nil {
		captured = []models.CapturedRequest{}
	}
	keep(artifacts.SaveJSON(p.store.RequestsPath(), captured))
	keep(artifacts.SaveJSON(p.store.AnalysisPath(), res.Analysis))
	keep(page.SaveCookies(ctx))
	if firstErr == nil {
		slog.Info("Network: artifacts saved", "requests", p.store.RequestsPath(), "cookies", p.store.CookiesPath())
	}
	return firstErr
}
