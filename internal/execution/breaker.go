package execution

import (
	"sync"
	"time"
)

// BreakerState is the observable state of a circuit breaker.
type BreakerState string

// Breaker states.
const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerSnapshot is a read-only copy of the breaker's state for
// observability.
type BreakerSnapshot struct {
	State        BreakerState
	FailureCount int
	LastFailure  time.Time
}

// CircuitBreaker stops calls to a failing upstream after a run of
// consecutive failures and periodically lets a trial call through to
// detect recovery.
//
// A breaker is owned by one transport instance and passed by pointer to
// the retry layer that consults it; it is never shared process-wide, so
// independent transports (one per API key, say) cannot cross-contaminate
// failure counts. Batch execution is sequential, but the breaker is
// mutex-guarded anyway so a future bounded worker pool can share it
// safely.
type CircuitBreaker struct {
	mu           sync.Mutex
	threshold    int
	cooldown     time.Duration
	state        BreakerState
	failureCount int
	lastFailure  time.Time

	now func() time.Time // test seam
}

// NewCircuitBreaker creates a breaker in the CLOSED state with zero
// failures. It opens after threshold consecutive failures and allows a
// trial call once cooldown has elapsed.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. When the breaker is OPEN and
// the cooldown has elapsed it transitions to HALF_OPEN and admits the call
// as a trial.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) >= b.cooldown {
			b.state = BreakerHalfOpen
			return true
		}
		return false
	default:
		// CLOSED, or HALF_OPEN with the trial call in flight.
		return true
	}
}

// RecordSuccess reports a successful call. Any state returns to CLOSED
// and the consecutive-failure count resets.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failureCount = 0
}

// RecordFailure reports a failed call. A failed HALF_OPEN trial reopens
// the breaker and restarts the cooldown; in CLOSED state the consecutive
// failure counter increments and trips the breaker at the threshold.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	switch b.state {
	case BreakerHalfOpen:
		b.state = BreakerOpen
	default:
		b.failureCount++
		if b.failureCount >= b.threshold {
			b.state = BreakerOpen
		}
	}
}

// State returns a read-only snapshot for observability.
func (b *CircuitBreaker) State() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BreakerSnapshot{
		State:        b.state,
		FailureCount: b.failureCount,
		LastFailure:  b.lastFailure,
	}
}

// Reset returns the breaker to its initial CLOSED state. Intended for
// explicit operator action and test isolation.
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failureCount = 0
	b.lastFailure = time.Time{}
}
