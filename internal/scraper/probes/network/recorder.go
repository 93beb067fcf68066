package network

import (
	"strings"
	"sync"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// Recorder keeps outgoing requests aimed at the data API. Observe is called from
// the browser event goroutine, so access is synchronized.
type Recorder struct {
	host string
	path string

	mu   sync.Mutex
	reqs []models.CapturedRequest
}

func NewRecorder(cfg config.CaptureConfig) *Recorder {
	return &Recorder{host: cfg.Host, path: cfg.Path}
}

// Matches reports whether url is a data API request worth recording.
func (r *Recorder) Matches(url string) bool {
	return strings.Contains(url, r.host) && strings.Contains(url, r.path)
}

// Observe records req if it matches and reports whether it did.
func (r *Recorder) Observe(req models.CapturedRequest) bool {
	if !r.Matches(req.URL) {
		return false
	}
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	return true
}

// Requests returns a snapshot in capture order.
func (r *Recorder) Requests() []models.CapturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.CapturedRequest, len(r.reqs))
	copy(out, r.reqs)
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}
