package bootstrap

import (
	"context"
	"time"
)

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMaxRetries caps RetryInitialization calls between rollbacks.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithActionBudget caps how often each recovery action kind is applied.
func WithActionBudget(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.actionBudget = n
		}
	}
}

// WithSettleDelay sets the pause after native libraries load.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.settleDelay = d
		}
	}
}

// WithJournal records every attempt in j.
func WithJournal(j Journal) Option {
	return func(o *Orchestrator) {
		o.journal = j
	}
}

// WithLockFile holds an advisory lock on path while an attempt runs so a
// second process fails fast instead of extracting over the first.
func WithLockFile(path string) Option {
	return func(o *Orchestrator) {
		o.lockPath = path
	}
}

// WithClock replaces time.Now and the context-aware sleep used for settle
// delays and retry backoff.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
		if sleep != nil {
			o.sleep = sleep
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
