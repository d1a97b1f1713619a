// Package resilience provides a circuit breaker for calls to flaky
// downstream services (model providers, vector stores).
//
// The breaker walks the usual three states. Closed passes calls through
// while counting consecutive failures; once the threshold trips, the
// breaker opens and fails fast. After a cooldown the breaker lets a
// limited number of probe calls through (half-open) and closes again
// only when a probe succeeds.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned for calls rejected while the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the breaker's current mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerOpts configures a Breaker.
type BreakerOpts struct {
	// FailThreshold is the number of consecutive failures that opens
	// the breaker.
	FailThreshold int
	// Cooldown is how long the breaker stays open before allowing
	// probe calls.
	Cooldown time.Duration
	// HalfOpenMax caps in-flight probe calls while half-open.
	HalfOpenMax int
}

// DefaultBreakerOpts trips after 5 consecutive failures and probes
// again after 30 seconds.
func DefaultBreakerOpts() BreakerOpts {
	return BreakerOpts{
		FailThreshold: 5,
		Cooldown:      30 * time.Second,
		HalfOpenMax:   1,
	}
}

// Breaker is a concurrency-safe circuit breaker. The zero value is not
// usable; construct with NewBreaker.
type Breaker struct {
	opts BreakerOpts

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int

	now func() time.Time
}

// NewBreaker builds a Breaker, applying defaults for zero fields.
func NewBreaker(opts BreakerOpts) *Breaker {
	def := DefaultBreakerOpts()
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = def.FailThreshold
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = def.Cooldown
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = def.HalfOpenMax
	}
	return &Breaker{opts: opts, state: StateClosed, now: time.Now}
}

// State reports the breaker's current state, accounting for cooldown
// expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState must be called with b.mu held.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Cooldown {
		b.state = StateHalfOpen
		b.probes = 0
	}
	return b.state
}

// Call runs f under the breaker. While open it returns ErrCircuitOpen
// without invoking f.
func (b *Breaker) Call(f func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := f()
	b.after(err)
	return err
}

// CallValue runs f under the breaker and passes its value through.
func CallValue[T any](b *Breaker, f func() (T, error)) (T, error) {
	var zero T
	if err := b.before(); err != nil {
		return zero, err
	}
	v, err := f()
	b.after(err)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.currentState() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probes >= b.opts.HalfOpenMax {
			return ErrCircuitOpen
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.state = StateClosed
		b.failures = 0
		b.probes = 0
		return
	}
	switch b.state {
	case StateHalfOpen:
		b.trip()
	default:
		b.failures++
		if b.failures >= b.opts.FailThreshold {
			b.trip()
		}
	}
}

// trip must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.failures = 0
	b.probes = 0
	b.openedAt = b.now()
}
