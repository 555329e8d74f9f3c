package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolroute/toolroute/core"
)

func testBreakers(sleep time.Duration) *BreakerSet {
	return NewBreakerSet(&BreakerConfig{
		FailureThreshold: 3,
		SleepWindow:      sleep,
	})
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	s := testBreakers(time.Minute)
	boom := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		assert.True(t, s.CanExecute("exec-1"))
		s.RecordFailure("exec-1", boom)
	}
	assert.Equal(t, StateClosed, s.State("exec-1"))

	s.RecordFailure("exec-1", boom)
	assert.Equal(t, StateOpen, s.State("exec-1"))
	assert.False(t, s.CanExecute("exec-1"))
}

func TestBreakerIsPerExecutor(t *testing.T) {
	s := testBreakers(time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		s.RecordFailure("bad", boom)
	}
	assert.False(t, s.CanExecute("bad"))
	assert.True(t, s.CanExecute("good"))
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	s := testBreakers(10 * time.Millisecond)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		s.RecordFailure("exec-1", boom)
	}
	require.False(t, s.CanExecute("exec-1"))

	time.Sleep(20 * time.Millisecond)

	// One probe is admitted, a second concurrent request is not.
	assert.True(t, s.CanExecute("exec-1"))
	assert.Equal(t, StateHalfOpen, s.State("exec-1"))
	assert.False(t, s.CanExecute("exec-1"))

	s.RecordSuccess("exec-1")
	assert.Equal(t, StateClosed, s.State("exec-1"))
	assert.True(t, s.CanExecute("exec-1"))
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	s := testBreakers(10 * time.Millisecond)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		s.RecordFailure("exec-1", boom)
	}
	time.Sleep(20 * time.Millisecond)
	require.True(t, s.CanExecute("exec-1"))

	s.RecordFailure("exec-1", boom)
	assert.Equal(t, StateOpen, s.State("exec-1"))
	assert.False(t, s.CanExecute("exec-1"))
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	s := testBreakers(time.Minute)
	boom := errors.New("boom")

	s.RecordFailure("exec-1", boom)
	s.RecordFailure("exec-1", boom)
	s.RecordSuccess("exec-1")
	s.RecordFailure("exec-1", boom)
	s.RecordFailure("exec-1", boom)

	assert.Equal(t, StateClosed, s.State("exec-1"))
}

func TestDefaultErrorClassifier(t *testing.T) {
	assert.False(t, DefaultErrorClassifier(nil))
	assert.False(t, DefaultErrorClassifier(context.Canceled))
	assert.False(t, DefaultErrorClassifier(core.ErrContextCanceled))
	assert.False(t, DefaultErrorClassifier(core.ErrInvalidConfiguration))
	assert.True(t, DefaultErrorClassifier(core.ErrExecutorTimeout))
	assert.True(t, DefaultErrorClassifier(errors.New("connection reset")))
}

func TestClassifierIgnoredErrorsDoNotTrip(t *testing.T) {
	s := testBreakers(time.Minute)

	for i := 0; i < 10; i++ {
		s.RecordFailure("exec-1", context.Canceled)
	}
	assert.Equal(t, StateClosed, s.State("exec-1"))
}
