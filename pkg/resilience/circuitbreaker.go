package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is in the open state.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker trips open after a run of consecutive failures and lets a
// single probe request through once the reset timeout has elapsed.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration

	mu       sync.Mutex
	open     bool
	failures int
	openedAt time.Time
	probing  bool
	logger   *slog.Logger
}

// NewCircuitBreaker creates a closed CircuitBreaker. Zero values select a
// threshold of 5 failures and a 30-second reset timeout.
func NewCircuitBreaker(name string, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		logger:           slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn if the circuit allows it, recording success or failure.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.open {
		return nil
	}
	if time.Since(cb.openedAt) >= cb.resetTimeout && !cb.probing {
		cb.probing = true
		cb.logger.Info("circuit allowing probe request", "after", cb.resetTimeout)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		if cb.open {
			cb.logger.Info("circuit closed (recovered)")
		}
		cb.open = false
		cb.probing = false
		cb.failures = 0
		return
	}
	cb.failures++
	cb.probing = false
	if cb.open {
		cb.openedAt = time.Now()
		cb.logger.Warn("circuit re-opened (probe failed)")
		return
	}
	if cb.failures >= cb.failureThreshold {
		cb.open = true
		cb.openedAt = time.Now()
		cb.logger.Warn("circuit opened", "consecutive_failures", cb.failures, "threshold", cb.failureThreshold)
	}
}

// IsOpen reports whether the circuit is currently open.
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}
