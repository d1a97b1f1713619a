// Package fn provides small generic helpers used across the engine: retry
// with exponential backoff, bounded parallel mapping, and slice utilities.
package fn

import (
	"context"
	"math/rand"
	"time"
)

// RetryOpts configures retry behavior.
type RetryOpts struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Jitter      bool
	// ShouldRetry decides whether an error is worth another attempt.
	// Nil retries every error.
	ShouldRetry func(error) bool
}

// DefaultRetry provides sensible retry defaults.
var DefaultRetry = RetryOpts{
	MaxAttempts: 3,
	InitialWait: time.Second,
	MaxWait:     30 * time.Second,
	Jitter:      true,
}

// Once retries a single extra time after a short backoff.
func Once(wait time.Duration, shouldRetry func(error) bool) RetryOpts {
	return RetryOpts{
		MaxAttempts: 2,
		InitialWait: wait,
		MaxWait:     wait * 4,
		Jitter:      true,
		ShouldRetry: shouldRetry,
	}
}

// Retry runs f up to MaxAttempts times with exponential backoff.
func Retry(ctx context.Context, opts RetryOpts, f func(context.Context) error) error {
	_, err := RetryValue(ctx, opts, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f(ctx)
	})
	return err
}

// RetryValue runs f up to MaxAttempts times with exponential backoff,
// returning the first successful value. The context is checked before every
// sleep so cancellation is never delayed by the backoff.
func RetryValue[T any](ctx context.Context, opts RetryOpts, f func(context.Context) (T, error)) (T, error) {
	var (
		val  T
		err  error
		wait = opts.InitialWait
	)

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		val, err = f(ctx)
		if err == nil {
			return val, nil
		}
		if attempt == opts.MaxAttempts-1 {
			break
		}
		if opts.ShouldRetry != nil && !opts.ShouldRetry(err) {
			break
		}

		select {
		case <-ctx.Done():
			return val, ctx.Err()
		default:
		}

		sleep := wait
		if opts.Jitter {
			sleep = time.Duration(float64(wait) * (0.5 + rand.Float64()))
		}
		if sleep > opts.MaxWait {
			sleep = opts.MaxWait
		}

		select {
		case <-ctx.Done():
			return val, ctx.Err()
		case <-time.After(sleep):
		}

		wait *= 2
		if wait > opts.MaxWait {
			wait = opts.MaxWait
		}
	}
	return val, err
}
