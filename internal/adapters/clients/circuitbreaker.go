package clients

import (
	"sync"
	"time"

	"github.com/jsamuelsen/authrpc/internal/platform/config"
)

// State is the position of a circuit breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota

	// StateOpen rejects calls until the open timeout elapses.
	StateOpen

	// StateHalfOpen lets a limited number of trial calls through.
	StateHalfOpen
)

// String returns a human-readable name for the state.
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

// outcome is how a finished call is counted by the breaker.
type outcome int

const (
	// outcomeSuccess is any answer from the backend, including error envelopes.
	outcomeSuccess outcome = iota

	// outcomeFailure is a transport failure or a 5xx status.
	outcomeFailure

	// outcomeIgnored is a call abandoned by its caller, e.g. context cancellation.
	outcomeIgnored
)

// admission identifies one allowed call. generation is the state period the
// call was admitted in; halfOpen marks calls holding a half-open slot.
type admission struct {
	generation uint64
	halfOpen   bool
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	State               State
	ConsecutiveFailures int
	OpenedAt            time.Time
}

// CircuitBreaker guards one backend service.
//
// State transitions:
//   - Closed → Open: after MaxFailures consecutive failures
//   - Open → HalfOpen: on the first call after Timeout has passed
//   - HalfOpen → Closed: after HalfOpenLimit consecutive successes
//   - HalfOpen → Open: on any failure
//
// An outcome only counts in the state period its call was admitted in, so a
// slow call from before a transition neither frees a half-open slot nor moves
// the new state.
type CircuitBreaker struct {
	mu         sync.Mutex
	cfg        config.CircuitBreakerConfig
	state      State
	generation uint64
	failures   int
	successes  int
	inFlight   int
	openedAt   time.Time

	onStateChange func(from, to State)
	now           func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg config.CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// OnStateChange registers fn to run after every transition. fn runs on the
// goroutine that caused the transition, after the breaker lock is released.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.onStateChange = fn
}

// Allow reports whether a call may proceed. A true result must be followed
// by exactly one RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) Allow() bool {
	_, ok := cb.admit()
	return ok
}

// admit is Allow for callers that finish with done.
func (cb *CircuitBreaker) admit() (admission, bool) {
	cb.mu.Lock()

	var (
		from State
		adm  admission
	)

	changed := false
	allowed := false

	switch cb.state {
	case StateClosed:
		allowed = true

	case StateOpen:
		if cb.now().Sub(cb.openedAt) >= cb.cfg.Timeout {
			from, changed = cb.transitionTo(StateHalfOpen)
			cb.inFlight = 1
			adm.halfOpen = true
			allowed = true
		}

	case StateHalfOpen:
		if cb.inFlight < cb.cfg.HalfOpenLimit {
			cb.inFlight++
			adm.halfOpen = true
			allowed = true
		}
	}

	adm.generation = cb.generation
	notify := cb.onStateChange
	cb.mu.Unlock()

	if changed && notify != nil {
		notify(from, StateHalfOpen)
	}

	return adm, allowed
}

// done records the outcome of a call admitted by admit.
func (cb *CircuitBreaker) done(adm admission, o outcome) {
	cb.mu.Lock()

	var from, to State

	changed := false

	if adm.generation != cb.generation {
		o = outcomeIgnored
	} else if adm.halfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}

	switch o {
	case outcomeSuccess:
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.successes++
			if cb.successes >= cb.cfg.HalfOpenLimit {
				from, changed = cb.transitionTo(StateClosed)
				to = StateClosed
			}
		}

	case outcomeFailure:
		switch cb.state {
		case StateClosed:
			cb.failures++
			if cb.failures >= cb.cfg.MaxFailures {
				from, changed = cb.transitionTo(StateOpen)
				to = StateOpen
			}
		case StateHalfOpen:
			from, changed = cb.transitionTo(StateOpen)
			to = StateOpen
		}
	}

	notify := cb.onStateChange
	cb.mu.Unlock()

	if changed && notify != nil {
		notify(from, to)
	}
}

// RecordSuccess counts an answered call admitted in the current state.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.done(cb.current(), outcomeSuccess)
}

// RecordFailure counts a failed call admitted in the current state.
func (cb *CircuitBreaker) RecordFailure() {
	cb.done(cb.current(), outcomeFailure)
}

func (cb *CircuitBreaker) current() admission {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return admission{generation: cb.generation, halfOpen: cb.state == StateHalfOpen}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.state
}

// Snapshot returns the current state and counters.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return Snapshot{
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
		OpenedAt:            cb.openedAt,
	}
}

// transitionTo must be called with the lock held. It returns the previous
// state and whether anything changed.
func (cb *CircuitBreaker) transitionTo(next State) (State, bool) {
	prev := cb.state
	if prev == next {
		return prev, false
	}

	cb.state = next
	cb.generation++
	cb.failures = 0
	cb.successes = 0

	switch next {
	case StateOpen:
		cb.openedAt = cb.now()
		cb.inFlight = 0
	case StateClosed:
		cb.openedAt = time.Time{}
		cb.inFlight = 0
	}

	return prev, true
}
