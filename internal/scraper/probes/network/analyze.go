package network

import (
	"sort"
	"strings"
	"time"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// Analysis summarizes captured API traffic.
type Analysis struct {
	Total         int               `json:"total"`
	Endpoints     map[string]int    `json:"endpoints"`
	CommonHeaders map[string]string `json:"common_headers"`
	// RequestRate is requests per second between the first and last capture, 0 if unknown.
	RequestRate float64 `json:"request_rate"`
}

// EndpointCount is one histogram bucket.
type EndpointCount struct {
	Endpoint string
	Count    int
}

// Analyze builds the endpoint histogram, the headers shared by every request
// and the request rate.
func Analyze(reqs []models.CapturedRequest) Analysis {
	a := Analysis{
		Total:         len(reqs),
		Endpoints:     map[string]int{},
		CommonHeaders: map[string]string{},
	}
	if len(reqs) == 0 {
		return a
	}

	for _, r := range reqs {
		if ep, ok := endpointOf(r.URL); ok {
			a.Endpoints[ep]++
		}
	}

	for k, v := range reqs[0].Headers {
		a.CommonHeaders[k] = v
	}
	for _, r := range reqs[1:] {
		for k, v := range a.CommonHeaders {
			if got, ok := r.Headers[k]; !ok || got != v {
				delete(a.CommonHeaders, k)
			}
		}
	}

	if len(reqs) > 1 {
		first, err1 := time.Parse(time.RFC3339Nano, reqs[0].Timestamp)
		last, err2 := time.Parse(time.RFC3339Nano, reqs[len(reqs)-1].Timestamp)
		if err1 == nil && err2 == nil {
			if d := last.Sub(first).Seconds(); d > 0 {
				a.RequestRate = float64(len(reqs)) / d
			}
		}
	}
	return a
}

// TopEndpoints returns the histogram sorted by count, then by name.
func (a Analysis) TopEndpoints() []EndpointCount {
	out := make([]EndpointCount, 0, len(a.Endpoints))
	for ep, n := range a.Endpoints {
		out = append(out, EndpointCount{Endpoint: ep, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Endpoint < out[j].Endpoint
	})
	return out
}

// endpointOf returns "/api/..." without the query string.
func endpointOf(url string) (string, bool) {
	_, rest, ok := strings.Cut(url, "/api/")
	if !ok {
		return "", false
	}
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	return "/api/" + rest, true
}
