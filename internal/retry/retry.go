// Package retry runs upstream calls under a bounded exponential backoff with a per-attempt timeout.
//
// The delay schedule and loop come from [backoff]; classification and per-attempt deadlines are layered on top.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/desertthunder/songbridge/internal/shared"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultMaxDelay       = 3 * time.Second
	DefaultAttemptTimeout = 8 * time.Second
)

// Attempt describes one finished call attempt.
type Attempt struct {
	Number  int // 1-based
	Err     error
	Kind    shared.ErrorKind
	Latency time.Duration
}

// Observer is notified after every attempt that ran to completion or hit its own deadline.
// Attempts aborted by the caller's cancellation are not observed.
type Observer func(Attempt)

// Policy is the single retry loop used by every provider call path.
//
// Delays follow min(BaseDelay·2^attempt, MaxDelay) with no jitter.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	IsRetryable    func(error) bool
	AttemptTimeout time.Duration

	// Sleep replaces the real timer between attempts when set.
	Sleep func(ctx context.Context, d time.Duration) error

	observer Observer
}

// DefaultPolicy returns 3 attempts, 1s/2s backoff capped at 3s, and an 8s attempt timeout.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		MaxDelay:       DefaultMaxDelay,
		IsRetryable:    shared.IsRetryable,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// FromConfig builds a policy from [shared.RetryConfig], falling back to defaults for zero values.
func FromConfig(cfg shared.RetryConfig) Policy {
	p := DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BaseDelay.Duration > 0 {
		p.BaseDelay = cfg.BaseDelay.Duration
	}
	if cfg.MaxDelay.Duration > 0 {
		p.MaxDelay = cfg.MaxDelay.Duration
	}
	if cfg.AttemptTimeout.Duration > 0 {
		p.AttemptTimeout = cfg.AttemptTimeout.Duration
	}
	return p
}

// WithObserver returns a copy of p that reports attempts to fn.
func (p Policy) WithObserver(fn Observer) Policy {
	p.observer = fn
	return p
}

// schedule is the delay sequence between attempts.
func (p Policy) schedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Do calls fn until it succeeds, returns a terminal error, or attempts run out.
//
// Each attempt gets its own deadline. An attempt that exceeds it fails with a timeout, which is transient.
// On exhaustion the last classified error is returned. If ctx is cancelled the loop stops at once and
// returns an error matching [shared.ErrCancelled].
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	p = p.withDefaults()
	if err := ctx.Err(); err != nil {
		return zero, cancelled(err)
	}

	number := 0
	operation := func() (T, error) {
		number++
		attemptCtx, cancel := context.WithTimeout(ctx, p.AttemptTimeout)
		start := time.Now()
		v, err := fn(attemptCtx)
		latency := time.Since(start)
		timedOut := errors.Is(attemptCtx.Err(), context.DeadlineExceeded)
		cancel()

		if err == nil {
			p.observe(Attempt{Number: number, Latency: latency})
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, backoff.Permanent(cancelled(ctx.Err()))
		}
		if timedOut && shared.Classify(err) != shared.KindTimeout {
			err = asTimeout(err, p.AttemptTimeout)
		}

		p.observe(Attempt{Number: number, Err: err, Kind: shared.Classify(err), Latency: latency})
		if !p.IsRetryable(err) {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.schedule(), uint64(p.MaxAttempts-1)), ctx)

	var timer backoff.Timer
	if p.Sleep != nil {
		timer = &sleepTimer{ctx: ctx, sleep: p.Sleep}
	}

	v, err := backoff.RetryNotifyWithTimerAndData(operation, b, nil, timer)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, shared.ErrCancelled) {
			return zero, cancelled(ctx.Err())
		}
		return zero, err
	}
	return v, nil
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = max(d.MaxDelay, p.BaseDelay)
	}
	if p.IsRetryable == nil {
		p.IsRetryable = d.IsRetryable
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = d.AttemptTimeout
	}
	return p
}

// sleepTimer adapts a sleep function to [backoff.Timer]. Start blocks for the wait, then fires unless ctx ended.
type sleepTimer struct {
	ctx   context.Context
	sleep func(ctx context.Context, d time.Duration) error
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	if err := t.sleep(t.ctx, d); err == nil || t.ctx.Err() == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time { return t.c }

func (p Policy) observe(a Attempt) {
	if p.observer != nil {
		p.observer(a)
	}
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", shared.ErrCancelled, cause)
}

// asTimeout reclassifies an attempt that ran past its deadline, keeping the provider and op when known.
func asTimeout(err error, limit time.Duration) error {
	pe := &shared.ProviderError{Kind: shared.KindTimeout, Err: fmt.Errorf("attempt exceeded %s: %w", limit, err)}
	var inner *shared.ProviderError
	if errors.As(err, &inner) {
		pe.Provider, pe.Op = inner.Provider, inner.Op
	}
	return pe
}
