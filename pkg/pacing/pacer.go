// Package pacing paces the producer and consumer loops between iterations.
package pacing

import (
	"context"
	"time"
)

// Pacer suspends a loop between iterations.
type Pacer interface {
	Pause(ctx context.Context) error
}

// Fixed pauses for the same interval after every iteration, whatever its outcome.
type Fixed struct {
	Interval time.Duration
}

func NewFixed(interval time.Duration) *Fixed {
	return &Fixed{Interval: interval}
}

// Pause returns ctx.Err() when ctx ends before the interval elapses.
func (f *Fixed) Pause(ctx context.Context) error {
	if f.Interval <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(f.Interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PacerFunc adapts a function to Pacer.
type PacerFunc func(ctx context.Context) error

func (f PacerFunc) Pause(ctx context.Context) error {
	return f(ctx)
}
