package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/aditya01hpl/Inspectra/pkg/resilience"
)

// GuardOpts bounds calls to a provider: a per-call deadline, a token
// bucket rate limit, and a circuit breaker that fails fast while the
// provider is down.
type GuardOpts struct {
	// Timeout is the per-call deadline. Zero disables it.
	Timeout time.Duration
	// RPS is the sustained request rate. Zero or negative means
	// unlimited.
	RPS float64
	// Burst is the rate limiter burst size. Defaults to 1 when RPS is
	// set.
	Burst int
	// Breaker configures the circuit breaker.
	Breaker resilience.BreakerOpts
}

func newLimiter(opts GuardOpts) *rate.Limiter {
	if opts.RPS <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(opts.RPS), burst)
}

type guard struct {
	limiter *rate.Limiter
	breaker *resilience.Breaker
	timeout time.Duration
}

func newGuard(opts GuardOpts) *guard {
	return &guard{
		limiter: newLimiter(opts),
		breaker: resilience.NewBreaker(opts.Breaker),
		timeout: opts.Timeout,
	}
}

func doGuarded[T any](ctx context.Context, g *guard, f func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := g.limiter.Wait(ctx); err != nil {
		return zero, fmt.Errorf("llm: rate wait: %w", err)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	v, err := resilience.CallValue(g.breaker, func() (T, error) { return f(ctx) })
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return zero, fmt.Errorf("llm: %w: circuit open", ErrUnavailable)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return zero, fmt.Errorf("llm: %w: deadline exceeded", ErrUnavailable)
		}
		return zero, err
	}
	return v, nil
}

// GuardedCompleter wraps a Completer with GuardOpts.
type GuardedCompleter struct {
	inner Completer
	g     *guard
}

// GuardCompleter protects a Completer with a deadline, rate limit, and
// circuit breaker.
func GuardCompleter(inner Completer, opts GuardOpts) *GuardedCompleter {
	return &GuardedCompleter{inner: inner, g: newGuard(opts)}
}

func (c *GuardedCompleter) Model() string { return c.inner.Model() }

// Complete implements Completer.
func (c *GuardedCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return doGuarded(ctx, c.g, func(ctx context.Context) (string, error) {
		return c.inner.Complete(ctx, req)
	})
}

// GuardedEmbedder wraps an Embedder with GuardOpts.
type GuardedEmbedder struct {
	inner Embedder
	g     *guard
}

// GuardEmbedder protects an Embedder with a deadline, rate limit, and
// circuit breaker.
func GuardEmbedder(inner Embedder, opts GuardOpts) *GuardedEmbedder {
	return &GuardedEmbedder{inner: inner, g: newGuard(opts)}
}

// Dimensions implements Embedder.
func (e *GuardedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Embed implements Embedder.
func (e *GuardedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return doGuarded(ctx, e.g, func(ctx context.Context) ([][]float32, error) {
		return e.inner.Embed(ctx, texts)
	})
}
