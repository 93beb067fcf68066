package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// Normalizer turns raw events of any source into Match records.
type Normalizer struct {
	siteURL string
	loc     *time.Location
}

// New creates a Normalizer. siteURL is the public site root used to build
// detail URLs, loc is where start times are rendered (nil means time.Local).
func New(siteURL string, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{siteURL: strings.TrimRight(siteURL, "/"), loc: loc}
}

// Normalize never fails: anything missing or malformed becomes a sentinel.
func (n *Normalizer) Normalize(raw models.RawEvent) models.Match {
	switch raw.Source {
	case models.SourceAPI:
		return n.fromAPI(raw.API)
	case models.SourceDOM:
		if raw.DOM == nil {
			return fill(models.Match{})
		}
		return fromDOM(*raw.DOM)
	default:
		return fill(models.Match{})
	}
}

func (n *Normalizer) fromAPI(ev models.APIEvent) models.Match {
	m := models.Match{
		HomeTeam:   nestedString(ev, "homeTeam", "name"),
		AwayTeam:   nestedString(ev, "awayTeam", "name"),
		Tournament: nestedString(ev, "tournament", "name"),
		Status:     nestedString(ev, "status", "description"),
	}
	if id := ev.ID(); id != "" {
		m.URL = n.siteURL + "/event/" + id
	}
	if ts, ok := epochSeconds(ev["startTimestamp"]); ok {
		m.StartTime = time.Unix(ts, 0).In(n.loc).Format(models.StartTimeLayout)
	}
	return fill(m)
}

func fromDOM(ev models.DOMEvent) models.Match {
	return fill(models.Match{
		URL:        strings.TrimSpace(ev.URL),
		HomeTeam:   strings.TrimSpace(ev.HomeTeam),
		AwayTeam:   strings.TrimSpace(ev.AwayTeam),
		Tournament: strings.TrimSpace(ev.Tournament),
		StartTime:  strings.TrimSpace(ev.StartTime),
		Status:     strings.TrimSpace(ev.Status),
	})
}

// fill replaces every empty field with its sentinel.
func fill(m models.Match) models.Match {
	for _, f := range []*string{&m.URL, &m.HomeTeam, &m.AwayTeam, &m.Tournament, &m.StartTime} {
		if *f == "" {
			*f = models.UnknownValue
		}
	}
	if m.Status == "" {
		m.Status = models.DefaultStatus
	}
	return m
}

// nestedString walks maps by keys and returns a trimmed string leaf, or "".
func nestedString(ev map[string]any, keys ...string) string {
	var cur any = ev
	for _, k := range keys {
		obj, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = obj[k]
	}
	s, ok := cur.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// epochSeconds accepts only numeric JSON values; numeric strings are not timestamps.
func epochSeconds(v any) (int64, bool) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, true
		}
		parsed, err := strconv.ParseFloat(x.String(), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = x
	case int:
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
