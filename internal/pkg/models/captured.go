package models

// CapturedRequest is an outgoing browser request to the data API, recorded for
// endpoint-pattern analysis. It never becomes a Match.
type CapturedRequest struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Timestamp string            `json:"timestamp"`
}
