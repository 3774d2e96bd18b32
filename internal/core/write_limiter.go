package core

// write_limiter.go bounds how many write loops run at once.
//
// A write loop holds a slot from the moment its run is marked Writing until
// the last upsert returns. Callers that cannot get a slot within maxWait get
// ErrTooManyWrites. Shutdown waits on Drain so no loop is cut off half way.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyWrites is returned when every write slot stays busy past the
// wait limit.
var ErrTooManyWrites = errors.New("too many writes in progress")

const (
	DefaultMaxConcurrentWrites = 4
	DefaultMaxWriteWait        = 30 * time.Second
)

// WriteLimiter is a counting semaphore over write loops.
type WriteLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

func NewWriteLimiter(maxConcurrent int, maxWait time.Duration) *WriteLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentWrites
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWriteWait
	}
	return &WriteLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait. Every successful Acquire
// must be paired with one Release.
func (l *WriteLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrTooManyWrites
	}
}

// TryAcquire takes a slot only if one is free now.
func (l *WriteLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return true
	default:
		return false
	}
}

func (l *WriteLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// Active returns the number of write loops holding a slot.
func (l *WriteLimiter) Active() int {
	return int(l.active.Load())
}

// Drain blocks until no write loop is running or ctx ends.
func (l *WriteLimiter) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for l.Active() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// WriteLimiterStatus is a point-in-time view of the limiter.
type WriteLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *WriteLimiter) Status() WriteLimiterStatus {
	return WriteLimiterStatus{
		Active:        l.Active(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
