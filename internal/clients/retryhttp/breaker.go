package retryhttp

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without touching the network while the breaker
// cooldown is in effect.
var ErrCircuitOpen = errors.New("circuit breaker open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Breaker is a per-upstream circuit breaker. It opens after tripAfter
// consecutive failures inside a rolling window, fails fast for the cooldown,
// then admits a small number of trial calls before closing again.
type Breaker struct {
	mu sync.Mutex

	state     breakerState
	failures  int
	lastFail  time.Time
	openedAt  time.Time
	trials    int
	trialWins int

	tripAfter int
	window    time.Duration
	cooldown  time.Duration
	trialMax  int

	now func() time.Time
}

// NewBreaker creates a breaker that trips after tripAfter consecutive
// failures within window, stays open for cooldown, and requires trialMax
// half-open successes to close.
func NewBreaker(tripAfter int, window, cooldown time.Duration, trialMax int) *Breaker {
	if tripAfter <= 0 {
		tripAfter = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	if trialMax <= 0 {
		trialMax = 2
	}
	return &Breaker{
		tripAfter: tripAfter,
		window:    window,
		cooldown:  cooldown,
		trialMax:  trialMax,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed. Transitions open -> half-open
// once the cooldown has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = stateHalfOpen
		b.trials = 0
		b.trialWins = 0
		fallthrough
	case stateHalfOpen:
		if b.trials >= b.trialMax {
			return ErrCircuitOpen
		}
		b.trials++
		return nil
	default:
		return nil
	}
}

// Success records a successful call.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateHalfOpen:
		b.trialWins++
		if b.trialWins >= b.trialMax {
			b.state = stateClosed
			b.failures = 0
		}
	default:
		b.failures = 0
	}
}

// Failure records a failed call and trips the breaker when the consecutive
// count inside the rolling window reaches the threshold.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = now
		return
	}

	// Failures outside the rolling window do not accumulate.
	if !b.lastFail.IsZero() && now.Sub(b.lastFail) > b.window {
		b.failures = 0
	}
	b.lastFail = now
	b.failures++

	if b.failures >= b.tripAfter {
		b.state = stateOpen
		b.openedAt = now
	}
}

// State returns the current state name for logging.
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.String()
}
