package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Source identifies the shape of a RawEvent.
type Source string

const (
	SourceAPI Source = "api"
	SourceDOM Source = "dom"
)

// APIEvent is one event object as returned by the SofaScore JSON API.
// Kept as a generic map: the API is undocumented and field types drift.
// Numbers are decoded as json.Number.
type APIEvent map[string]any

// ID returns the provider event id as a string, or "" when it is missing,
// empty or zero.
func (e APIEvent) ID() string {
	switch v := e["id"].(type) {
	case json.Number:
		s := v.String()
		if f, err := v.Float64(); err == nil && f == 0 {
			return ""
		}
		return s
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		if v == 0 {
			return ""
		}
		return strconv.Itoa(v)
	case int64:
		if v == 0 {
			return ""
		}
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// DOMEvent holds the fields resolved from one match container on the page.
// Empty strings mean the field was not found.
type DOMEvent struct {
	URL        string `json:"url"`
	HomeTeam   string `json:"home_team"`
	AwayTeam   string `json:"away_team"`
	Tournament string `json:"tournament"`
	StartTime  string `json:"start_time"`
	Status     string `json:"status"`
}

// RawEvent is a source-specific record before normalization.
type RawEvent struct {
	Source Source
	API    APIEvent
	DOM    *DOMEvent
}

// NewAPIEvent wraps an API event object.
func NewAPIEvent(ev APIEvent) RawEvent {
	return RawEvent{Source: SourceAPI, API: ev}
}

// NewDOMEvent wraps a DOM-extracted container.
func NewDOMEvent(ev DOMEvent) RawEvent {
	return RawEvent{Source: SourceDOM, DOM: &ev}
}

// IdentityKey returns the dedup key: provider id for API events, detail URL for DOM events.
// An empty key means the event cannot be identified and must be skipped.
func (r RawEvent) IdentityKey() string {
	switch r.Source {
	case SourceAPI:
		if r.API == nil {
			return ""
		}
		return r.API.ID()
	case SourceDOM:
		if r.DOM == nil {
			return ""
		}
		return strings.TrimSpace(r.DOM.URL)
	default:
		return ""
	}
}

// EmitFunc receives raw events as a probe produces them.
// Returning false tells the probe to stop immediately.
type EmitFunc func(RawEvent) bool
