package dedup

import (
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// Verdict is the result of offering a match to the Deduplicator.
type Verdict int

const (
	Accepted Verdict = iota
	Duplicate
	Unidentified
	LimitReached
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Unidentified:
		return "unidentified"
	case LimitReached:
		return "limit_reached"
	default:
		return "unknown"
	}
}

// Deduplicator keeps first-seen matches by identity key until limit is reached.
// It lives for one pipeline run and is not safe for concurrent use.
type Deduplicator struct {
	limit   int
	seen    map[string]struct{}
	matches []models.Match
}

// New creates a Deduplicator. limit <= 0 means it is full from the start.
func New(limit int) *Deduplicator {
	if limit < 0 {
		limit = 0
	}
	return &Deduplicator{
		limit:   limit,
		seen:    make(map[string]struct{}, limit),
		matches: make([]models.Match, 0, limit),
	}
}

// Add records m under key. Matches with an empty key are dropped.
func (d *Deduplicator) Add(key string, m models.Match) Verdict {
	if d.Full() {
		return LimitReached
	}
	if key == "" {
		return Unidentified
	}
	if _, ok := d.seen[key]; ok {
		return Duplicate
	}
	d.seen[key] = struct{}{}
	d.matches = append(d.matches, m)
	return Accepted
}

// Seen reports whether key was already accepted. Callers use it to skip
// work on events that would be dropped anyway.
func (d *Deduplicator) Seen(key string) bool {
	_, ok := d.seen[key]
	return ok
}

// Full reports whether the limit has been reached.
func (d *Deduplicator) Full() bool {
	return len(d.matches) >= d.limit
}

func (d *Deduplicator) Len() int { return len(d.matches) }

// Remaining is how many more matches can be accepted.
func (d *Deduplicator) Remaining() int {
	return d.limit - len(d.matches)
}

// Matches returns a copy of the accepted matches in first-seen order.
func (d *Deduplicator) Matches() []models.Match {
	out := make([]models.Match, len(d.matches))
	copy(out, d.matches)
	return out
}
