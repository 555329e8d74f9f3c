package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/toolroute/toolroute/core"
)

// CircuitState represents the state of one executor's circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows a single probe request
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
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

// ErrorClassifier determines which errors count toward breaker thresholds
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts infrastructure errors only. Caller
// cancellation and configuration mistakes say nothing about executor
// health, so they never trip a breaker.
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if core.IsConfigurationError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, core.ErrContextCanceled) {
		return false
	}
	return true
}

// BreakerConfig holds configuration shared by all per-executor breakers.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int

	// SleepWindow is how long an open breaker waits before allowing a probe
	SleepWindow time.Duration

	// ErrorClassifier determines which errors count as failures
	ErrorClassifier ErrorClassifier

	// Logger for breaker state transitions
	Logger core.Logger
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		FailureThreshold: 3,
		SleepWindow:      30 * time.Second,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           &core.NoOpLogger{},
	}
}

type breaker struct {
	state          CircuitState
	failures       int
	stateChangedAt time.Time
	probing        bool
}

// BreakerSet maintains one circuit breaker per executor. An open breaker
// makes the executor ineligible for the current request the same way an
// inactive registry entry does; the cascade advances past it.
type BreakerSet struct {
	config   *BreakerConfig
	breakers map[string]*breaker
	mu       sync.Mutex
}

// NewBreakerSet creates a breaker set. A nil config uses defaults.
func NewBreakerSet(config *BreakerConfig) *BreakerSet {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	return &BreakerSet{
		config:   config,
		breakers: make(map[string]*breaker),
	}
}

// SetLogger sets the logger provider.
func (s *BreakerSet) SetLogger(logger core.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger == nil {
		s.config.Logger = &core.NoOpLogger{}
	} else {
		s.config.Logger = logger
	}
}

func (s *BreakerSet) get(executorID string) *breaker {
	b, ok := s.breakers[executorID]
	if !ok {
		b = &breaker{state: StateClosed, stateChangedAt: time.Now()}
		s.breakers[executorID] = b
	}
	return b
}

// CanExecute reports whether the executor's breaker admits a request.
// An open breaker past its sleep window converts to half-open and admits
// exactly one probe.
func (s *BreakerSet) CanExecute(executorID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(executorID)
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.stateChangedAt) < s.config.SleepWindow {
			return false
		}
		s.transition(executorID, b, StateHalfOpen)
		b.probing = true
		return true
	case StateHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return true
}

// RecordSuccess closes the executor's breaker and resets its failure count.
func (s *BreakerSet) RecordSuccess(executorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(executorID)
	b.failures = 0
	b.probing = false
	if b.state != StateClosed {
		s.transition(executorID, b, StateClosed)
	}
}

// RecordFailure counts a failure against the executor's breaker if the
// error classifies as infrastructure. A half-open probe failure reopens
// immediately.
func (s *BreakerSet) RecordFailure(executorID string, err error) {
	if !s.config.ErrorClassifier(err) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.get(executorID)
	b.probing = false
	switch b.state {
	case StateHalfOpen:
		s.transition(executorID, b, StateOpen)
	case StateClosed:
		b.failures++
		if b.failures >= s.config.FailureThreshold {
			s.transition(executorID, b, StateOpen)
		}
	}
}

// State returns the executor's current breaker state.
func (s *BreakerSet) State(executorID string) CircuitState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(executorID).state
}

// transition must be called with the lock held.
func (s *BreakerSet) transition(executorID string, b *breaker, to CircuitState) {
	from := b.state
	b.state = to
	b.stateChangedAt = time.Now()
	if to == StateClosed {
		b.failures = 0
	}
	s.config.Logger.Info("Circuit breaker state change", map[string]interface{}{
		"operation":   "breaker_transition",
		"executor_id": executorID,
		"from":        from.String(),
		"to":          to.String(),
	})
}
