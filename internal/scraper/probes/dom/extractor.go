package dom

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/domutil"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// Page is the part of a browser page the extractor reads.
type Page interface {
	HTML(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
}

// Extractor finds match containers in rendered HTML.
type Extractor struct {
	sel config.SelectorsConfig
}

func New(sel config.SelectorsConfig) *Extractor {
	if sel.EventPath == "" {
		sel.EventPath = "/event/"
	}
	return &Extractor{sel: sel}
}

// ExtractPage reads the current page and extracts from it.
func (e *Extractor) ExtractPage(ctx context.Context, page Page) ([]models.RawEvent, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	base, err := page.Location(ctx)
	if err != nil {
		slog.Debug("DOM: location unavailable, relative links kept as is", "error", err)
	}
	return e.Extract(html, base), nil
}

// Extract pools the matches of every container selector and returns one DOM
// event per container with a new detail URL. base resolves relative links.
func (e *Extractor) Extract(html, base string) []models.RawEvent {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		slog.Warn("DOM: failed to parse html", "error", err)
		return nil
	}
	baseURL, _ := url.Parse(base)

	var containers []*goquery.Selection
	for _, s := range e.sel.Containers {
		found := doc.Find(s)
		slog.Debug("DOM: container selector", "selector", s, "count", found.Length())
		found.Each(func(_ int, c *goquery.Selection) {
			containers = append(containers, c)
		})
	}

	seen := make(map[string]struct{})
	var out []models.RawEvent
	for i, c := range containers {
		ev, ok := e.extractContainer(i, c, baseURL)
		if !ok {
			continue
		}
		if _, dup := seen[ev.URL]; dup {
			continue
		}
		seen[ev.URL] = struct{}{}
		out = append(out, models.NewDOMEvent(ev))
	}

	slog.Info("DOM: extraction finished", "containers", len(containers), "events", len(out))
	return out
}

// extractContainer isolates failures of a single container.
func (e *Extractor) extractContainer(i int, c *goquery.Selection, base *url.URL) (ev models.DOMEvent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("DOM: container skipped", "index", i, "error", fmt.Errorf("%v: %w", r, models.ErrParseAnomaly))
			ok = false
		}
	}()

	link := e.detailURL(c, base)
	if link == "" {
		return models.DOMEvent{}, false
	}

	ev = models.DOMEvent{URL: link}
	if names, found := domutil.FirstSelection(c, e.sel.TeamNames); found && names.Length() >= 2 {
		ev.HomeTeam = domutil.CleanText(names.Eq(0).Text())
		ev.AwayTeam = domutil.CleanText(names.Eq(1).Text())
	}
	ev.Tournament = domutil.FirstText(c, e.sel.Tournament)
	ev.StartTime = domutil.FirstText(c, e.sel.StartTime)
	ev.Status = domutil.FirstText(c, e.sel.Status)
	return ev, true
}

// detailURL uses the container's own href when it is a detail anchor,
// otherwise the first detail anchor inside it.
func (e *Extractor) detailURL(c *goquery.Selection, base *url.URL) string {
	var href string
	if goquery.NodeName(c) == "a" {
		if h, ok := c.Attr("href"); ok && strings.Contains(h, e.sel.EventPath) {
			href = h
		}
	}
	if href == "" {
		if h, ok := c.Find(e.sel.EventLink).First().Attr("href"); ok {
			href = h
		}
	}
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	return resolve(base, href)
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil || base == nil || base.Scheme == "" || ref.IsAbs() {
		return href
	}
	return base.ResolveReference(ref).String()
}
