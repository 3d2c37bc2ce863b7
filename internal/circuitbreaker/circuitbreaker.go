package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Do when the circuit is open and the cooldown has
// not yet elapsed. Callers fall back without touching the upstream.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker state.
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
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds breaker parameters. Zero values pick safe defaults.
type Config struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before probing.
	Cooldown time.Duration
	// OnStateChange, when set, is invoked outside the lock on transitions.
	OnStateChange func(from, to State)
}

// Breaker short-circuits calls to an unstable upstream. After
// FailureThreshold consecutive failures it rejects calls for Cooldown,
// then lets probe calls through until SuccessThreshold successes close it.
type Breaker struct {
	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	cfg       Config
}

// New creates a Breaker from cfg.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{state: StateClosed, cfg: cfg}
}

// Do runs fn when the circuit allows it and records the outcome.
// Returns ErrOpen without calling fn while the circuit is open.
func (b *Breaker) Do(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

// State returns the current state for health checks and metrics.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) before() error {
	b.mu.Lock()
	if b.state == StateOpen {
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			b.mu.Unlock()
			return ErrOpen
		}
		b.successes = 0
		b.transition(StateHalfOpen)
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	if err != nil {
		b.failures++
		b.openedAt = time.Now()
		if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
			b.failures = 0
			b.transition(StateOpen)
		}
		b.mu.Unlock()
		return
	}
	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.successes = 0
			b.transition(StateClosed)
		}
	}
	b.mu.Unlock()
}

// transition switches state and queues the change callback. Must be called
// with the lock held; the callback runs on a fresh goroutine so it cannot
// deadlock against callers that re-enter the breaker.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		go b.cfg.OnStateChange(from, to)
	}
}
