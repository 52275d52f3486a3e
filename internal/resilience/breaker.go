// Package resilience provides reliability patterns for calls to collaborators
// settingsd does not own, such as the representative directory.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the externally visible breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker opens after a run of consecutive failures and rejects calls until a
// cool-down elapses, then lets a single probe through (half-open).
// Errors matched by the IsFailure predicate count as failures; any other
// result, including domain errors such as "not found", counts as success.
type Breaker struct {
	name        string
	maxFailures int
	timeout     time.Duration
	isFailure   func(error) bool
	now         func() time.Time // for testing

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailurePredicate overrides which errors trip the breaker.
func WithFailurePredicate(fn func(error) bool) Option {
	return func(b *Breaker) { b.isFailure = fn }
}

// NewBreaker creates a circuit breaker named for log output.
func NewBreaker(name string, maxFailures int, timeout time.Duration, opts ...Option) *Breaker {
	b := &Breaker{
		name:        name,
		maxFailures: max(maxFailures, 1),
		timeout:     timeout,
		isFailure:   func(err error) bool { return err != nil && !errors.Is(err, context.Canceled) },
		now:         time.Now,
		state:       StateClosed,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Execute runs fn unless the circuit is open. While half-open only one probe
// runs at a time; concurrent callers get ErrCircuitOpen.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if b.isFailure(err) {
		b.onFailure(err)
	} else {
		b.onSuccess()
	}
	return err
}

// State returns the current state, reporting an expired open circuit as half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.timeout {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return false
		}
		b.setState(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(err error) {
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		if b.state != StateOpen {
			slog.Warn("circuit breaker opened", "breaker", b.name, "failures", b.failures, "error", err)
		}
		b.setState(StateOpen)
		b.openedAt = b.now()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	if b.state != StateClosed {
		slog.Info("circuit breaker closed", "breaker", b.name)
	}
	b.setState(StateClosed)
}

func (b *Breaker) setState(s State) {
	b.state = s
}
