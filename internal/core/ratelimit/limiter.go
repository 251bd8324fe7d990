// Package ratelimit bounds brute-force login attempts per identifier.
//
// An identifier gets up to MaxAttempts allowed attempts; the counter resets
// once Window has elapsed since the last counted attempt. Denied attempts do
// not move the window.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxAttempts = 5
)

// AttemptRecord is the per-identifier state kept by an AttemptStore.
type AttemptRecord struct {
	Count       int
	LastAttempt time.Time
}

// AttemptStore persists attempt records. Get reports found=false for an
// identifier with no record.
type AttemptStore interface {
	Get(ctx context.Context, identifier string) (rec AttemptRecord, found bool, err error)
	Put(ctx context.Context, identifier string, rec AttemptRecord) error
	Delete(ctx context.Context, identifier string) error
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed          bool
	RemainingSeconds int
}

// Limiter applies the attempt policy over an AttemptStore.
type Limiter struct {
	store       AttemptStore
	window      time.Duration
	maxAttempts int
	now         func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithWindow overrides DefaultWindow.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New returns a Limiter backed by store.
func New(store AttemptStore, opts ...Option) *Limiter {
	l := &Limiter{
		store:       store,
		window:      DefaultWindow,
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Window returns the configured lockout window.
func (l *Limiter) Window() time.Duration { return l.window }

// Check counts an attempt for identifier and reports whether it may proceed.
func (l *Limiter) Check(ctx context.Context, identifier string) (Decision, error) {
	now := l.now()

	rec, found, err := l.store.Get(ctx, identifier)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit get: %w", err)
	}

	elapsed := now.Sub(rec.LastAttempt)
	if !found || elapsed > l.window {
		if err := l.store.Put(ctx, identifier, AttemptRecord{Count: 1, LastAttempt: now}); err != nil {
			return Decision{}, fmt.Errorf("rate limit put: %w", err)
		}
		return Decision{Allowed: true}, nil
	}

	if rec.Count >= l.maxAttempts {
		remaining := int(math.Ceil((l.window - elapsed).Seconds()))
		return Decision{Allowed: false, RemainingSeconds: remaining}, nil
	}

	rec.Count++
	rec.LastAttempt = now
	if err := l.store.Put(ctx, identifier, rec); err != nil {
		return Decision{}, fmt.Errorf("rate limit put: %w", err)
	}
	return Decision{Allowed: true}, nil
}

// Clear forgets identifier; called after a successful login.
func (l *Limiter) Clear(ctx context.Context, identifier string) error {
	if err := l.store.Delete(ctx, identifier); err != nil {
		return fmt.Errorf("rate limit clear: %w", err)
	}
	return nil
}
