package checks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/fastuator/health"
)

// ErrCircuitOpen is the failure reported while a breaker skips its check.
var ErrCircuitOpen = errors.New("checks: circuit open")

// BreakerState is the state of a BreakerChecker.
type BreakerState int

const (
	// BreakerClosed runs every check.
	BreakerClosed BreakerState = iota
	// BreakerOpen reports DOWN without running the check.
	BreakerOpen
	// BreakerHalfOpen lets a single probe through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures WithBreaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive DOWN results that open the
	// circuit.
	// Default: 3
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before a probe.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// OnStateChange is called with the checker name on every transition.
	OnStateChange func(name string, from, to BreakerState)
}

// BreakerChecker stops calling a dependency that keeps failing, so probes
// keep answering quickly while it is down.
type BreakerChecker struct {
	checker health.Checker
	config  BreakerConfig
	now     func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

// WithBreaker wraps c in a circuit breaker.
func WithBreaker(c health.Checker, config BreakerConfig) *BreakerChecker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 3
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	return &BreakerChecker{checker: c, config: config, now: time.Now}
}

// Name returns the wrapped checker's name.
func (b *BreakerChecker) Name() string {
	return b.checker.Name()
}

// State returns the current state.
func (b *BreakerChecker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLocked()
}

// Check runs the wrapped check unless the circuit is open. A panic in the
// wrapped check counts as a failure and is propagated.
func (b *BreakerChecker) Check(ctx context.Context) health.Result {
	if !b.allow() {
		return health.Failed(ErrCircuitOpen).WithDetail("circuit", BreakerOpen.String())
	}

	up := false
	defer func() { b.record(up) }()

	result := b.checker.Check(ctx)
	up = result.Status.IsUp()
	return result
}

func (b *BreakerChecker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentLocked() {
	case BreakerOpen:
		return false
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
	}
	return true
}

func (b *BreakerChecker) record(up bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		if up {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.config.MaxFailures {
			b.openLocked(BreakerClosed)
		}
	case BreakerHalfOpen:
		b.probing = false
		if up {
			b.failures = 0
			b.transitionLocked(BreakerHalfOpen, BreakerClosed)
			return
		}
		b.openLocked(BreakerHalfOpen)
	}
}

func (b *BreakerChecker) currentLocked() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.config.ResetTimeout {
		b.probing = false
		b.transitionLocked(BreakerOpen, BreakerHalfOpen)
	}
	return b.state
}

func (b *BreakerChecker) openLocked(from BreakerState) {
	b.openedAt = b.now()
	b.transitionLocked(from, BreakerOpen)
}

func (b *BreakerChecker) transitionLocked(from, to BreakerState) {
	b.state = to
	if b.config.OnStateChange != nil && from != to {
		b.config.OnStateChange(b.checker.Name(), from, to)
	}
}
