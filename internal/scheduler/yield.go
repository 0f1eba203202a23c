package scheduler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultFrameInterval approximates one 60Hz frame.
const DefaultFrameInterval = 16 * time.Millisecond

// Yielder hands control back to the host between chunks.
type Yielder interface {
	Yield(ctx context.Context) error
}

// YieldFunc adapts a function to Yielder.
type YieldFunc func(ctx context.Context) error

// Yield implements Yielder.
func (f YieldFunc) Yield(ctx context.Context) error { return f(ctx) }

// NoYield returns immediately. Useful in tests and batch jobs.
var NoYield Yielder = YieldFunc(func(ctx context.Context) error { return ctx.Err() })

// FrameYielder waits one frame interval.
type FrameYielder struct {
	Interval time.Duration
}

// Yield implements Yielder.
func (y FrameYielder) Yield(ctx context.Context) error {
	d := y.Interval
	if d <= 0 {
		d = DefaultFrameInterval
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

// RateYielder paces chunks to at most N per second.
type RateYielder struct {
	limiter *rate.Limiter
}

// NewRateYielder returns a yielder allowing chunksPerSecond chunks per
// second. A non-positive rate never waits.
func NewRateYielder(chunksPerSecond float64) *RateYielder {
	limit := rate.Inf
	if chunksPerSecond > 0 {
		limit = rate.Limit(chunksPerSecond)
	}
	return &RateYielder{limiter: rate.NewLimiter(limit, 1)}
}

// Yield implements Yielder.
func (y *RateYielder) Yield(ctx context.Context) error {
	return y.limiter.Wait(ctx)
}
