// Package limiter enforces per-category request budgets.
//
// Each category (e.g. "read", "write", "login") owns an independent token
// bucket: capacity = burst size, refill = rate_per_minute/60 tokens per
// second. A category without an explicit budget inherits the session
// default. A zero rate turns a category into a hard stop.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrDisabled is returned for categories configured with rate_per_minute = 0.
var ErrDisabled = errors.New("category is disabled (rate 0)")

// Config holds one category's budget.
type Config struct {
	RatePerMinute int `yaml:"rate_per_minute"`
	Burst         int `yaml:"burst"`
}

type budget struct {
	cfg Config
	lim *rate.Limiter
}

// Limiter manages the per-category token buckets of one session.
type Limiter struct {
	mu          sync.Mutex
	budgets     map[string]*budget
	defaults    Config
	pausedUntil time.Time

	now func() time.Time
}

// New creates a limiter with the given default budget.
func New(defaults Config) *Limiter {
	return &Limiter{
		budgets:  make(map[string]*budget),
		defaults: defaults,
		now:      time.Now,
	}
}

// Configure sets a dedicated budget for a category, replacing any existing
// bucket (and its accumulated tokens).
func (l *Limiter) Configure(category string, cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.budgets[category] = newBudget(cfg)
}

func newBudget(cfg Config) *budget {
	b := &budget{cfg: cfg}
	if cfg.RatePerMinute > 0 {
		b.lim = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.Burst)
	}
	return b
}

func (l *Limiter) budgetFor(category string) *budget {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.budgets[category]
	if !ok {
		b = newBudget(l.defaults)
		l.budgets[category] = b
	}
	return b
}

// TryAcquire consumes a token if one is available right now. It never
// blocks. Disabled categories and an active global pause always deny.
func (l *Limiter) TryAcquire(category string) bool {
	if l.paused() {
		return false
	}

	b := l.budgetFor(category)
	if b.lim == nil {
		return false
	}
	return b.lim.Allow()
}

// Acquire blocks until a token is available or ctx is cancelled. The wait is
// computed from the bucket's refill rate, so it never oversleeps by more
// than the refill resolution.
func (l *Limiter) Acquire(ctx context.Context, category string) error {
	b := l.budgetFor(category)
	if b.lim == nil {
		return fmt.Errorf("category %q: %w", category, ErrDisabled)
	}

	if wait := l.pauseRemaining(); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return b.lim.Wait(ctx)
}

// Pause denies all categories for the given duration. Used for Retry-After
// style hard stops after a 429.
func (l *Limiter) Pause(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	until := l.now().Add(d)
	if until.After(l.pausedUntil) {
		l.pausedUntil = until
	}
}

func (l *Limiter) paused() bool {
	return l.pauseRemaining() > 0
}

func (l *Limiter) pauseRemaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pausedUntil.Sub(l.now())
}

// Tokens returns the current token balance of a category, for introspection.
func (l *Limiter) Tokens(category string) float64 {
	b := l.budgetFor(category)
	if b.lim == nil {
		return 0
	}
	return b.lim.Tokens()
}

// Reset drops a category's bucket so it refills from a full burst. An empty
// category resets everything.
func (l *Limiter) Reset(category string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if category == "" {
		l.budgets = make(map[string]*budget)
		return
	}
	delete(l.budgets, category)
}
