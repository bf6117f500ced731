package retry

import (
	"context"
	"fmt"
	"time"
)

// Backoff returns the wait before the next attempt; attempt starts at 1.
type Backoff func(attempt int) time.Duration

// Linear waits attempt × step.
func Linear(step time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Policy bounds how throttled calls are retried.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	// HonorSuggested waits for a server-suggested delay when it is longer than the backoff.
	HonorSuggested bool
	// Retryable decides whether an error is worth another attempt. Nil means IsThrottle.
	Retryable func(error) bool
	Sleep     Sleeper
}

// DefaultPolicy makes three attempts waiting 5s then 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     Linear(5 * time.Second),
		Sleep:       ContextSleep,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff == nil {
		p.Backoff = Linear(5 * time.Second)
	}
	if p.Retryable == nil {
		p.Retryable = IsThrottle
	}
	if p.Sleep == nil {
		p.Sleep = ContextSleep
	}
	return p
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the attempts
// are exhausted. The terminal error is returned unchanged.
func Do[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p := policy.normalized()

	var zero T
	for attempt := 1; ; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		if attempt >= p.MaxAttempts || !p.Retryable(err) {
			return zero, err
		}

		wait := p.Backoff(attempt)
		if p.HonorSuggested {
			if suggested, ok := SuggestedDelay(err); ok && suggested > wait {
				wait = suggested
			}
		}
		if sleepErr := p.Sleep(ctx, wait); sleepErr != nil {
			return zero, fmt.Errorf("retry interrupted after attempt %d: %w", attempt, err)
		}
	}
}

// Run is Do for calls without a result.
func Run(ctx context.Context, policy Policy, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
