// Package resilience provides a circuit breaker guarding outbound fetches.
// A source that keeps failing stops being fetched until a cooldown passes,
// so retry storms against a broken marketplace endpoint die down on their own.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrOpen is returned when the breaker rejects a call without attempting it.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds breaker thresholds.
type Config struct {
	// FailureThreshold is the consecutive failures that open the breaker.
	FailureThreshold int
	// SuccessThreshold is the half-open successes that close it again.
	SuccessThreshold int
	// Cooldown is how long an open breaker rejects before probing.
	Cooldown time.Duration
}

// DefaultConfig returns thresholds suited to periodic scrape fetches.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Minute,
	}
}

// Breaker is a circuit breaker for one named dependency.
type Breaker struct {
	name   string
	config Config

	mu          sync.RWMutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time

	totalCalls    int64
	totalFailures int64
	totalRejected int64
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, config Config) *Breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultConfig().Cooldown
	}
	return &Breaker{name: name, config: config, state: StateClosed}
}

// Execute runs fn with result under breaker protection. An open breaker
// returns ErrOpen without calling fn; a cancelled context counts as a
// failure because the dependency did not answer in time.
func Execute[T any](b *Breaker, ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T

	if err := b.allow(); err != nil {
		return zero, err
	}

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			b.recordFailure()
			return zero, r.err
		}
		b.recordSuccess()
		return r.value, nil
	case <-ctx.Done():
		b.recordFailure()
		return zero, ctx.Err()
	}
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	switch b.state {
	case StateOpen:
		if time.Since(b.lastFailure) > b.config.Cooldown {
			b.transition(StateHalfOpen)
			return nil
		}
		b.totalRejected++
		return ErrOpen
	default:
		return nil
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transition(StateClosed)
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++
	b.lastFailure = time.Now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(state State) {
	b.state = state
	b.failures = 0
	b.successes = 0
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Name returns the dependency name the breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// Stats reports cumulative call counts.
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		Name:          b.name,
		State:         b.state,
		TotalCalls:    b.totalCalls,
		TotalFailures: b.totalFailures,
		TotalRejected: b.totalRejected,
	}
}

// Reset forces the breaker back to closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
}

// Stats holds cumulative breaker counters.
type Stats struct {
	Name          string `json:"name"`
	State         State  `json:"state"`
	TotalCalls    int64  `json:"total_calls"`
	TotalFailures int64  `json:"total_failures"`
	TotalRejected int64  `json:"total_rejected"`
}
