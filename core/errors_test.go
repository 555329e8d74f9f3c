package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutingErrorFormats(t *testing.T) {
	tests := []struct {
		name string
		err  *RoutingError
		want string
	}{
		{
			name: "op with id",
			err:  &RoutingError{Op: "cascade.invoke", Kind: "executor", ID: "calc-1", Err: ErrExecutorTimeout},
			want: "cascade.invoke [calc-1]: executor timeout",
		},
		{
			name: "op without id",
			err:  &RoutingError{Op: "registry.Sync", Kind: "discovery", Err: ErrConnectionFailed},
			want: "registry.Sync: connection failed",
		},
		{
			name: "message only",
			err:  &RoutingError{Kind: "cascade", Message: "no executor could handle the request"},
			want: "no executor could handle the request",
		},
		{
			name: "bare wrapped error",
			err:  &RoutingError{Err: ErrCascadeExhausted},
			want: "cascade exhausted",
		},
		{
			name: "kind fallback",
			err:  &RoutingError{Kind: "config"},
			want: "config error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestRoutingErrorUnwrap(t *testing.T) {
	inner := fmt.Errorf("dial redis: %w", ErrConnectionFailed)
	err := NewRoutingError("store.ApplyWeight", "learning", inner)

	assert.True(t, errors.Is(err, ErrConnectionFailed))
	assert.Equal(t, inner, err.Unwrap())

	var re *RoutingError
	assert.True(t, errors.As(error(err), &re))
	assert.Equal(t, "store.ApplyWeight", re.Op)
}

func TestIsTierAdvance(t *testing.T) {
	assert.True(t, IsTierAdvance(ErrExecutorTimeout))
	assert.True(t, IsTierAdvance(ErrExecutorUnavailable))
	assert.True(t, IsTierAdvance(ErrCircuitBreakerOpen))
	assert.True(t, IsTierAdvance(ErrDiscoveryEmpty))
	assert.True(t, IsTierAdvance(NewRoutingError("cascade.invoke", "executor", ErrExecutorInactive)))

	assert.False(t, IsTierAdvance(ErrContextCanceled))
	assert.False(t, IsTierAdvance(ErrCascadeExhausted))
	assert.False(t, IsTierAdvance(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrWeightConflict))
	assert.True(t, IsRetryable(ErrConnectionFailed))
	assert.True(t, IsRetryable(fmt.Errorf("record outcome: %w", ErrTimeout)))

	assert.False(t, IsRetryable(ErrInvalidConfiguration))
	assert.False(t, IsRetryable(ErrCascadeExhausted))
}

func TestIsConfigurationError(t *testing.T) {
	assert.True(t, IsConfigurationError(ErrInvalidConfiguration))
	assert.True(t, IsConfigurationError(fmt.Errorf("engine: %w", ErrMissingConfiguration)))
	assert.False(t, IsConfigurationError(ErrExecutorNotFound))
}
