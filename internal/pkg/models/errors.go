package models

import "errors"

var (
	// ErrSourceUnavailable: an endpoint or page could not be reached or answered non-2xx.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrChallengeTimeout: the anti-bot challenge was not solved within the attempt budget.
	ErrChallengeTimeout = errors.New("challenge not resolved in time")
	// ErrParseAnomaly: a response or DOM fragment had an unexpected shape.
	ErrParseAnomaly = errors.New("unexpected data shape")
	// ErrPersistenceFailure: results could not be written to a sink.
	ErrPersistenceFailure = errors.New("persistence failure")
)
