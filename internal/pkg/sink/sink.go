// Package sink delivers the matches of a run to their destinations: console,
// JSON file, SQL table, Redis snapshot and Telegram.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// RunInfo describes the run that produced a batch of matches.
type RunInfo struct {
	ID     string
	Method string
	At     time.Time
	Took   time.Duration
	Err    error
}

func NewRunInfo(method string, at time.Time, took time.Duration, err error) RunInfo {
	return RunInfo{ID: uuid.NewString(), Method: method, At: at, Took: took, Err: err}
}

type Sink interface {
	Name() string
	Write(ctx context.Context, run RunInfo, matches []models.Match) error
}

// Multi writes to every sink in order. One failing sink does not stop the rest.
type Multi []Sink

func (m Multi) Name() string { return "multi" }

// Write returns the joined failures, each wrapped as models.ErrPersistenceFailure.
func (m Multi) Write(ctx context.Context, run RunInfo, matches []models.Match) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, run, matches); err != nil {
			slog.Error("Sink: write failed", "sink", s.Name(), "run_id", run.ID, "error", err)
			if !errors.Is(err, models.ErrPersistenceFailure) {
				err = fmt.Errorf("%s: %v: %w", s.Name(), err, models.ErrPersistenceFailure)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink that holds a connection.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
