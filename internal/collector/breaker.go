package collector

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	StateClosed   BreakerState = iota // calls pass through
	StateOpen                         // calls rejected until the cooldown elapses
	StateHalfOpen                     // one trial call allowed
)

func (s BreakerState) String() string {
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

// ErrCircuitOpen is returned when a source's breaker rejects the call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker opens after maxFailures consecutive failures and rejects calls for
// cooldown. The first call after the cooldown is a trial: success closes the
// breaker, failure reopens it. Errors matched by Neutral leave the state and
// failure count untouched, and a half-open breaker waits for the next trial.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	maxFailures int
	cooldown    time.Duration
	lastFailure time.Time
	trial       bool
	now         func() time.Time

	OnStateChange func(from, to BreakerState)
	Neutral       func(error) bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Breaker{maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.cooldown {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.trial = true
	case StateHalfOpen:
		if b.trial {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.trial = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false

	if err != nil && b.Neutral != nil && b.Neutral(err) {
		return err
	}
	if err != nil {
		b.failures++
		b.lastFailure = b.now()
		if b.state == StateHalfOpen || b.failures >= b.maxFailures {
			b.transition(StateOpen)
		}
		return err
	}
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
	b.failures = 0
	return nil
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == StateClosed {
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
