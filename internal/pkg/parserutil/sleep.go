package parserutil

import (
	"context"
	"time"
)

// SleepFunc pauses for d unless ctx ends first. Components take one so tests
// can replace real waiting.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoSleep returns immediately unless ctx is already done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Jitter returns base plus a random fraction r in [0,1) of variance.
func Jitter(base, variance time.Duration, r float64) time.Duration {
	if variance <= 0 {
		return base
	}
	return base + time.Duration(r*float64(variance))
}
