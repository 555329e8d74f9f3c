package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Executor-related errors
	ErrExecutorNotFound    = errors.New("executor not found")
	ErrExecutorInactive    = errors.New("executor inactive")
	ErrExecutorUnavailable = errors.New("executor unavailable")
	ErrExecutorTimeout     = errors.New("executor timeout")

	// Cascade errors
	ErrCascadeExhausted = errors.New("cascade exhausted")
	ErrDiscoveryEmpty   = errors.New("discovery returned no candidates")

	// Learned-state errors
	ErrWeightConflict = errors.New("weight store write conflict")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// Operation errors
	ErrTimeout            = errors.New("operation timeout")
	ErrContextCanceled    = errors.New("context canceled")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")

	// Infrastructure errors
	ErrConnectionFailed   = errors.New("connection failed")
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)

// RoutingError provides structured error information with context.
// It implements the error interface and supports error wrapping.
type RoutingError struct {
	Op      string // Operation that failed (e.g., "cascade.Tier2")
	Kind    string // Error kind (e.g., "executor", "discovery", "config")
	ID      string // Optional ID of the entity involved
	Message string // Human-readable message
	Err     error  // Underlying error for wrapping
}

// Error returns the string representation of the error
func (e *RoutingError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

// Unwrap returns the underlying error for use with errors.Is/As
func (e *RoutingError) Unwrap() error {
	return e.Err
}

// NewRoutingError creates a new RoutingError
func NewRoutingError(op, kind string, err error) *RoutingError {
	return &RoutingError{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// IsTierAdvance reports whether an error is an executor-level failure
// the cascade recovers from by moving on to the next candidate. Other
// errors stop the current tier's walk and defer to re-planning.
func IsTierAdvance(err error) bool {
	return errors.Is(err, ErrExecutorUnavailable) ||
		errors.Is(err, ErrExecutorTimeout) ||
		errors.Is(err, ErrExecutorInactive) ||
		errors.Is(err, ErrCircuitBreakerOpen) ||
		errors.Is(err, ErrDiscoveryEmpty)
}

// IsRetryable checks if an error is retryable
// Retryable errors are typically transient infrastructure issues
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrWeightConflict) ||
		errors.Is(err, ErrTimeout)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingConfiguration)
}
