package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/metrics"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/parserutil"
)

// Probe polls a list of candidate JSON endpoints for football events.
type Probe struct {
	cfg     config.APIConfig
	http    *resty.Client
	sleep   parserutil.SleepFunc
	rand    func() float64
	now     func() time.Time
	metrics *metrics.Recorder
}

type Option func(*Probe)

func WithSleep(sleep parserutil.SleepFunc) Option {
	return func(p *Probe) { p.sleep = sleep }
}

func WithRand(f func() float64) Option { return func(p *Probe) { p.rand = f } }

func WithClock(now func() time.Time) Option { return func(p *Probe) { p.now = now } }

func WithMetrics(m *metrics.Recorder) Option { return func(p *Probe) { p.metrics = m } }

func New(cfg config.APIConfig, opts ...Option) (*Probe, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	client.SetCookieJar(jar)
	if cfg.Cloudflare {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept-Encoding", "gzip, br, zstd")
	client.SetHeaders(cfg.Headers)

	p := &Probe{
		cfg:   cfg,
		http:  client,
		sleep: parserutil.Sleep,
		rand:  rand.Float64,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Fetch tries endpoints in order and emits events with a new, non-empty id.
// It stops as soon as limit events were emitted or emit returns false, and
// never fails: every endpoint error is logged and skipped.
func (p *Probe) Fetch(ctx context.Context, limit int, emit models.EmitFunc) int {
	if limit <= 0 {
		return 0
	}

	p.visitLanding(ctx)

	seen := make(map[string]struct{})
	accepted := 0
	for i, tmpl := range p.cfg.Endpoints {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := p.sleep(ctx, p.delay()); err != nil {
				break
			}
		}

		endpoint := p.expand(tmpl)
		slog.Info("API: trying endpoint", "endpoint", endpoint)

		events, err := p.fetchEndpoint(ctx, endpoint)
		if err != nil {
			slog.Warn("API: endpoint failed", "endpoint", endpoint, "error", err)
			p.metrics.EndpointRequest(tmpl, outcomeOf(err))
			continue
		}
		p.metrics.EndpointRequest(tmpl, "ok")
		slog.Info("API: endpoint returned events", "endpoint", endpoint, "events", len(events))

		for _, ev := range events {
			id := ev.ID()
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			accepted++

			if !emit(models.NewAPIEvent(ev)) || accepted >= limit {
				slog.Info("API: limit reached", "accepted", accepted)
				return accepted
			}
		}
	}

	if accepted == 0 {
		slog.Warn("API: no events from any endpoint")
	}
	return accepted
}

// visitLanding loads the public site once so the jar picks up session cookies.
func (p *Probe) visitLanding(ctx context.Context) {
	if p.cfg.LandingURL == "" {
		return
	}
	resp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetDoNotParseResponse(true).
		Get(p.cfg.LandingURL)
	if err != nil {
		slog.Warn("API: landing page visit failed", "url", p.cfg.LandingURL, "error", err)
		return
	}
	if body := resp.RawBody(); body != nil {
		body.Close()
	}
	slog.Info("API: landing page visited", "url", p.cfg.LandingURL, "status", resp.StatusCode())
}

func (p *Probe) fetchEndpoint(ctx context.Context, endpoint string) ([]models.APIEvent, error) {
	resp, err := p.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v: %w", err, models.ErrSourceUnavailable)
	}
	raw := resp.RawResponse
	defer raw.Body.Close()

	if raw.StatusCode < 200 || raw.StatusCode >= 300 {
		return nil, &StatusError{Code: raw.StatusCode}
	}

	body, err := readBodyDecode(raw)
	if err != nil {
		return nil, fmt.Errorf("read body: %v: %w", err, models.ErrSourceUnavailable)
	}
	return parseEvents(body)
}

// parseEvents accepts {"events":[...]} and falls back to
// {"sportItem":{"tournaments":[{"events":[...]}]}} when the first shape is empty.
func parseEvents(body []byte) ([]models.APIEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %v: %w", err, models.ErrParseAnomaly)
	}

	if events := eventList(doc["events"]); len(events) > 0 {
		return events, nil
	}

	var events []models.APIEvent
	if sportItem, ok := doc["sportItem"].(map[string]any); ok {
		tournaments, _ := sportItem["tournaments"].([]any)
		for _, t := range tournaments {
			if tm, ok := t.(map[string]any); ok {
				events = append(events, eventList(tm["events"])...)
			}
		}
	}
	return events, nil
}

func eventList(v any) []models.APIEvent {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]models.APIEvent, 0, len(items))
	for _, it := range items {
		if ev, ok := it.(map[string]any); ok {
			out = append(out, models.APIEvent(ev))
		}
	}
	return out
}

func (p *Probe) expand(tmpl string) string {
	now := p.now()
	return strings.NewReplacer(
		"{base_url}", strings.TrimRight(p.cfg.BaseURL, "/"),
		"{site_url}", strings.TrimRight(p.cfg.SiteURL, "/"),
		"{now_ms}", strconv.FormatInt(now.UnixMilli(), 10),
		"{date}", now.Format("2006-01-02"),
	).Replace(tmpl)
}

func (p *Probe) delay() time.Duration {
	return parserutil.Jitter(p.cfg.DelayMin, p.cfg.DelayMax-p.cfg.DelayMin, p.rand())
}

// StatusError is a non-2xx answer from an endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status %d", e.Code) }

func (e *StatusError) Unwrap() error { return models.ErrSourceUnavailable }

func outcomeOf(err error) string {
	var se *StatusError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &se):
		return "http_" + strconv.Itoa(se.Code)
	case errors.Is(err, models.ErrParseAnomaly):
		return "parse_error"
	default:
		return "transport_error"
	}
}
