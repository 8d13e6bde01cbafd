package timing

import (
	"context"
	"time"
)

// Pacer paces a Run loop to a fixed tick interval without ever running
// ahead of wall-clock time. When the caller falls behind, Wait returns
// immediately (no sleep) for as many calls as it takes to catch back up
// to the schedule — ticks are accumulated and drained, never skipped.
type Pacer interface {
	Wait(ctx context.Context) bool
}

// FixedPacer is a Pacer driven by the real wall clock. It is the only
// type in this package that reads it: every other type here is a pure
// logical timer advanced by the caller one tick at a time.
//
// A time.Ticker was considered and rejected: a Ticker drops ticks when
// the consumer falls behind, which directly contradicts the
// never-skip-a-tick requirement this type exists to satisfy.
type FixedPacer struct {
	interval time.Duration
	next     time.Time
}

// NewFixedPacer creates a FixedPacer for the given tick size in seconds.
func NewFixedPacer(tickSize float64) *FixedPacer {
	return &FixedPacer{interval: time.Duration(tickSize * float64(time.Second))}
}

// Wait blocks until the next tick is due, or ctx is canceled first. It
// reports whether the caller should proceed with a tick.
func (p *FixedPacer) Wait(ctx context.Context) bool {
	if p.next.IsZero() {
		p.next = time.Now()
	}
	if d := time.Until(p.next); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}
	}
	p.next = p.next.Add(p.interval)
	return true
}
