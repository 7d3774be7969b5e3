// Package ratelimit implements local admission control against a
// requests-per-minute budget.
//
// The limiter keeps the admission timestamps of the trailing window and
// blocks callers until one more request fits. Expired timestamps are pruned
// lazily on every admission check.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the rolling window the platform enforces its limit over.
const DefaultWindow = 60 * time.Second

// Clock abstracts time so the limiter can be driven by tests.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
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

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Stats is a point-in-time view of the limiter.
type Stats struct {
	Capacity      int           `json:"capacity"`
	InWindow      int           `json:"in_window"`
	Waiting       int           `json:"waiting"`
	Window        time.Duration `json:"window"`
	CooldownUntil time.Time     `json:"cooldown_until,omitempty"`
	Admitted      uint64        `json:"admitted"`
	Delayed       uint64        `json:"delayed"`
}

// UsagePercentage returns the share of the window currently consumed.
func (s Stats) UsagePercentage() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.InWindow) / float64(s.Capacity) * 100
}

// Limiter is a sliding-window log limiter shared by every dispatch call of
// one client.
type Limiter struct {
	capacity int
	window   time.Duration
	clock    Clock

	// gate admits one evaluator at a time. Blocked channel senders are
	// queued in arrival order, which gives FIFO admission.
	gate chan struct{}

	mu            sync.Mutex
	timestamps    []time.Time
	cooldownUntil time.Time
	waiting       int
	admitted      uint64
	delayed       uint64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the clock.
func WithClock(c Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// WithWindow overrides the rolling window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// New creates a limiter admitting at most capacity requests per window.
// A non-positive capacity is treated as 1.
func New(capacity int, opts ...Option) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}
	l := &Limiter{
		capacity:   capacity,
		window:     DefaultWindow,
		clock:      realClock{},
		gate:       make(chan struct{}, 1),
		timestamps: make([]time.Time, 0, capacity),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until admitting one more request keeps the trailing window
// within capacity, then records the admission.
//
// The only error is ctx's error when the caller abandons the wait. An
// abandoned caller is never recorded; an admitted one stays accounted for.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	l.waiting++
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.waiting--
		l.mu.Unlock()
	}()

	select {
	case l.gate <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.gate }()

	delayed := false
	for {
		wait := l.tryAdmit(delayed)
		if wait <= 0 {
			return nil
		}
		delayed = true
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryAdmit prunes, checks and records in a single critical section. It
// returns zero when the caller was admitted, otherwise how long to wait
// before re-evaluating.
func (l *Limiter) tryAdmit(delayed bool) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneLocked(now)

	if now.Before(l.cooldownUntil) {
		return l.cooldownUntil.Sub(now)
	}

	if len(l.timestamps) < l.capacity {
		l.timestamps = append(l.timestamps, now)
		l.admitted++
		if delayed {
			l.delayed++
		}
		return 0
	}

	wait := l.window - now.Sub(l.timestamps[0])
	if wait <= 0 {
		// Clock granularity; the next prune releases the slot.
		wait = time.Millisecond
	}
	return wait
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}

// NoteServerThrottle records a server-reported cooldown. Admissions resume
// at whichever is later: the local window estimate or now+retryAfter.
func (l *Limiter) NoteServerThrottle(retryAfter time.Duration) {
	if retryAfter <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.clock.Now().Add(retryAfter)
	if until.After(l.cooldownUntil) {
		l.cooldownUntil = until
	}
}

// Capacity returns the configured requests per window.
func (l *Limiter) Capacity() int { return l.capacity }

// Stats returns current window usage.
func (l *Limiter) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneLocked(now)

	s := Stats{
		Capacity: l.capacity,
		InWindow: len(l.timestamps),
		Waiting:  l.waiting,
		Window:   l.window,
		Admitted: l.admitted,
		Delayed:  l.delayed,
	}
	if now.Before(l.cooldownUntil) {
		s.CooldownUntil = l.cooldownUntil
	}
	return s
}
