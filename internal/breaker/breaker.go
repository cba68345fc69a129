// Package breaker is a consecutive-failure circuit breaker shared by the
// scan workers that talk to the candle provider.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the breaker state.
type State int

const (
	Closed   State = iota // calls pass through
	Open                  // calls rejected until the cool-down elapses
	HalfOpen              // a single probe call is in flight
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling fn while the breaker is open, or
// while another goroutine holds the half-open probe.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker trips after Threshold consecutive counted failures and stays open
// for Cooldown. After that one probe is let through; its outcome decides
// whether the breaker closes or re-opens.
type Breaker struct {
	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool

	threshold int
	cooldown  time.Duration

	// IsFailure decides whether an error returned by fn counts toward
	// tripping. Nil counts every non-nil error.
	IsFailure func(error) bool
	// OnStateChange is called with the lock held; keep it short.
	OnStateChange func(from, to State)

	now func() time.Time
}

// New returns a closed breaker.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.setState(HalfOpen)
		b.probing = true
	case HalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := err != nil && (b.IsFailure == nil || b.IsFailure(err))
	wasProbe := b.state == HalfOpen
	if wasProbe {
		b.probing = false
	}

	if !failed {
		b.failures = 0
		if wasProbe {
			b.setState(Closed)
		}
		return
	}

	b.failures++
	if wasProbe || b.failures >= b.threshold {
		b.openedAt = b.now()
		b.setState(Open)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if to == Closed {
		b.failures = 0
	}
	if b.OnStateChange != nil {
		b.OnStateChange(from, to)
	}
}
