// Package retry provides bounded exponential backoff for transient
// collaborator failures. Only errors marked Transient are retried; auth and
// bad-request failures surface immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int           // total tries, including the first
	BaseDelay   time.Duration // delay before the second try
	MaxDelay    time.Duration // backoff ceiling
}

// DefaultPolicy suits tracker/PR/AI remote calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks an error as retryable. Wrapping nil returns nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) was marked Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Do runs fn, retrying transient failures under the policy. It returns nil on
// the first success, the last error when attempts are exhausted, and stops
// early on context cancellation or a non-transient error.
func Do(ctx context.Context, policy Policy, op string, fn func() error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt == policy.MaxAttempts {
			break
		}

		if sleepErr := sleep(ctx, backoffDelay(policy, attempt)); sleepErr != nil {
			return sleepErr
		}
	}
	return fmt.Errorf("%s: retries exhausted after %d attempts: %w", op, policy.MaxAttempts, err)
}

// backoffDelay doubles the base delay per completed attempt, capped.
func backoffDelay(policy Policy, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := policy.BaseDelay * time.Duration(1<<uint(attempt-1))
	if delay > policy.MaxDelay {
		return policy.MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
