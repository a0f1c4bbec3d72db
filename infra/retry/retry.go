// Package retry repeats a fallible operation with fixed or linear backoff.
package retry

import (
	"context"
	"errors"
	"time"
)

// Options configures Do
type Options struct {
	// MaxAttempts counts the first call; values below 1 mean 3
	MaxAttempts int
	// Delay before the second attempt; zero means one second
	Delay time.Duration
	// Linear multiplies Delay by the attempt number, otherwise it is fixed
	Linear bool
	// OnRetry is called after a failed attempt that will be retried
	OnRetry func(err error, attempt int)
	// RetryIf decides whether err is worth another attempt. When nil, errors
	// exposing Retryable() bool are asked and anything else is retried.
	RetryIf func(err error) bool
}

// DefaultOptions mirrors the defaults applied to a zero Options
func DefaultOptions() Options {
	return Options{MaxAttempts: 3, Delay: time.Second, Linear: true}
}

type retryable interface {
	Retryable() bool
}

func shouldRetry(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// Do calls fn until it succeeds, the attempts run out, RetryIf refuses, or
// ctx is done. The last error from fn is returned unchanged.
func Do[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts Options) (T, error) {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 3
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	retryIf := opts.RetryIf
	if retryIf == nil {
		retryIf = shouldRetry
	}

	var (
		zero    T
		lastErr error
	)
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == opts.MaxAttempts || !retryIf(err) {
			break
		}

		if opts.OnRetry != nil {
			opts.OnRetry(err, attempt)
		}

		wait := opts.Delay
		if opts.Linear {
			wait = opts.Delay * time.Duration(attempt)
		}

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		}
	}

	return zero, lastErr
}

// Run is Do for operations without a result
func Run(ctx context.Context, fn func(ctx context.Context) error, opts Options) error {
	_, err := Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts)
	return err
}
