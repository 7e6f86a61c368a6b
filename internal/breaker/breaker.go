// Package breaker implements a per-dependency circuit breaker used to guard
// every outbound suspension point of the dispatch pipeline (chat-platform API,
// AI agent, database writes).
//
// A breaker starts CLOSED and passes calls through. After Threshold
// consecutive failures it OPENs: calls are rejected immediately with
// ErrCircuitOpen instead of piling up timeouts against a dependency that is
// already down. After Timeout has elapsed (checked lazily on the next call)
// or when the scheduled ResetTimeout timer fires, the breaker moves to
// HALF_OPEN and lets exactly one trial call through; concurrent callers are
// rejected with ErrCircuitOpen until the trial resolves. A trial success
// resets the breaker to CLOSED, a failure reopens it and restarts the timer.
//
// The breaker never swallows errors: a recorded failure always propagates to
// the caller. State transitions are mutex-guarded because success/failure
// callbacks race across goroutines.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the current position of a breaker in its lifecycle.
type State string

// Breaker states.
const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrCircuitOpen is returned by Execute when the breaker is OPEN and the
// probe window has not yet elapsed. Callers can match it with errors.Is.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Stats is a point-in-time snapshot for observability endpoints.
type Stats struct {
	Name            string     `json:"name"`
	State           State      `json:"state"`
	FailureCount    int        `json:"failure_count"`
	LastFailureTime *time.Time `json:"last_failure_time,omitempty"`
}

// timer is the subset of time.Timer the breaker needs; swapped in tests so
// the OPEN→HALF_OPEN flip can be driven without sleeping.
type timer interface {
	Stop() bool
}

// Breaker guards a single dependency. Construct one instance per dependency
// in the composition root and route every call site through it; failure
// counting is meaningless across separate instances.
type Breaker struct {
	name         string
	threshold    int
	timeout      time.Duration
	resetTimeout time.Duration

	mu           sync.Mutex
	state        State
	failureCount int
	lastFailure  time.Time
	resetTimer   timer
	generation   uint64 // invalidates timers superseded by a reset
	probing      bool   // a HALF_OPEN trial call is in flight

	now      func() time.Time
	schedule func(d time.Duration, fn func()) timer
}

// Option customizes a Breaker at construction time.
type Option func(*Breaker)

// WithClock replaces the wall clock, letting tests fast-forward virtual time.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithScheduler replaces the deferred-timer factory used for the scheduled
// OPEN→HALF_OPEN flip. Tests can capture and fire the callback manually.
func WithScheduler(schedule func(d time.Duration, fn func()) timer) Option {
	return func(b *Breaker) { b.schedule = schedule }
}

// New constructs a Breaker.
//
//   - name:         identifies the guarded dependency in logs and stats
//   - threshold:    consecutive failures before the breaker opens (>= 1)
//   - timeout:      how long OPEN blocks new attempts before a lazy probe
//   - resetTimeout: delay before the scheduled HALF_OPEN flip
func New(name string, threshold int, timeout, resetTimeout time.Duration, opts ...Option) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	b := &Breaker{
		name:         name,
		threshold:    threshold,
		timeout:      timeout,
		resetTimeout: resetTimeout,
		state:        StateClosed,
		now:          time.Now,
	}
	b.schedule = func(d time.Duration, fn func()) timer {
		return time.AfterFunc(d, fn)
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs fn through the breaker. When the breaker is OPEN and the probe
// window has not elapsed, fn is not invoked and ErrCircuitOpen is returned.
// Otherwise fn's error (nil or not) is recorded and returned unchanged.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// allow decides whether a call may proceed, applying the lazy OPEN→HALF_OPEN
// transition when the timeout has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		// Only one trial call at a time; everyone else keeps getting
		// rejected until it resolves.
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	case StateOpen:
		if b.now().Sub(b.lastFailure) > b.timeout {
			// Optimistic probe: attempt the call in HALF_OPEN.
			b.transitionLocked(StateHalfOpen)
			b.probing = true
			return nil
		}
		return ErrCircuitOpen
	default:
		return ErrCircuitOpen
	}
}

// recordSuccess resets the breaker to CLOSED. Any pending HALF_OPEN timer is
// superseded: a success arriving before the timer fires must win.
func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.transitionLocked(StateClosed)
}

// recordFailure bumps the failure counter; crossing the threshold (or any
// failure while HALF_OPEN) opens the breaker and schedules the next probe.
func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailure = b.now()

	if b.state == StateHalfOpen || (b.state == StateClosed && b.failureCount >= b.threshold) {
		b.transitionLocked(StateOpen)
		b.scheduleHalfOpenLocked()
	}
}

// transitionLocked moves the breaker to next and cancels any pending timer.
// Callers must hold b.mu.
func (b *Breaker) transitionLocked(next State) {
	if b.state == next {
		return
	}
	b.state = next
	b.generation++
	b.probing = false
	if b.resetTimer != nil {
		b.resetTimer.Stop()
		b.resetTimer = nil
	}
}

// scheduleHalfOpenLocked arms the deferred OPEN→HALF_OPEN flip. The captured
// generation makes a superseded timer a no-op even if Stop loses the race.
// Callers must hold b.mu.
func (b *Breaker) scheduleHalfOpenLocked() {
	gen := b.generation
	b.resetTimer = b.schedule(b.resetTimeout, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.generation != gen || b.state != StateOpen {
			return
		}
		b.transitionLocked(StateHalfOpen)
	})
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string { return b.name }

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// GetStats returns a snapshot of the breaker for diagnostics payloads.
func (b *Breaker) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Stats{
		Name:         b.name,
		State:        b.state,
		FailureCount: b.failureCount,
	}
	if !b.lastFailure.IsZero() {
		t := b.lastFailure
		s.LastFailureTime = &t
	}
	return s
}
