package learning

import (
	"context"
	"fmt"

	"github.com/toolroute/toolroute/core"
	"github.com/toolroute/toolroute/resilience"
)

// Recorder is the outcome recorder / weight updater: the single writer
// of the learned state. It is called exactly once per completed cascade
// and folds every recorded attempt into the weight and pattern stores.
type Recorder struct {
	store         Store
	learningRate  float64
	weightDecay   float64
	weightFloor   float64
	weightCeiling float64
	retry         *resilience.RetryConfig

	logger    core.Logger
	telemetry core.Telemetry
}

// NewRecorder creates a recorder from engine configuration.
func NewRecorder(store Store, cfg *core.Config) *Recorder {
	return &Recorder{
		store:         store,
		learningRate:  cfg.LearningRate,
		weightDecay:   cfg.WeightDecay,
		weightFloor:   cfg.WeightFloor,
		weightCeiling: cfg.WeightCeiling,
		retry:         resilience.DefaultRetryConfig(),
		logger:        &core.NoOpLogger{},
		telemetry:     &core.NoOpTelemetry{},
	}
}

// SetLogger sets the logger provider.
func (r *Recorder) SetLogger(logger core.Logger) {
	if logger == nil {
		r.logger = &core.NoOpLogger{}
	} else {
		r.logger = logger
	}
}

// SetTelemetry sets the telemetry provider.
func (r *Recorder) SetTelemetry(t core.Telemetry) {
	if t == nil {
		r.telemetry = &core.NoOpTelemetry{}
	} else {
		r.telemetry = t
	}
}

// Record folds one completed cascade into the learned state:
//
//   - every attempted executor's weight moves by learningRate scaled by
//     the attempt's outcome score (up on success/partial, down on
//     failure, floored),
//   - all weights then decay one step toward the neutral 1.0,
//   - one success-pattern sample is recorded under the plan's
//     (primary, secondary count, feature bucket) key.
//
// Record must be called exactly once per cascade; replaying the same
// outcome would double-count the pattern sample. Transient store
// failures are retried per store operation, so a write that already
// landed is never re-applied.
func (r *Recorder) Record(ctx context.Context, plan *core.RoutingPlan, bucket core.FeatureBucket, outcome *core.RoutingOutcome) error {
	ctx, span := r.telemetry.StartSpan(ctx, "learning.Record")
	defer span.End()
	span.SetAttribute("request.id", outcome.RequestID)
	span.SetAttribute("outcome.status", string(outcome.Status))

	for _, attempt := range outcome.Attempts {
		if attempt.ExecutorID == "" {
			continue // tier transitions without an executor (e.g. empty discovery)
		}
		if err := r.applyAttempt(ctx, attempt); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to apply attempt for %s: %w", attempt.ExecutorID, err)
		}
	}

	if err := r.withRetry(ctx, func() error { return r.store.DecayAll(ctx, r.decayStep) }); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to decay weights: %w", err)
	}

	key := PatternKey{
		Primary:        plan.Primary,
		SecondaryCount: len(plan.Secondaries),
		Bucket:         bucket,
	}
	if plan.Primary != "" {
		success := outcome.Status == core.StatusSuccess
		var patternScore float64
		if n := len(outcome.Attempts); n > 0 {
			patternScore = outcome.Attempts[n-1].Score
		}
		if err := r.withRetry(ctx, func() error {
			return r.store.RecordPattern(ctx, key, success, patternScore)
		}); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to record pattern %s: %w", key.String(), err)
		}
	}

	r.telemetry.RecordMetric("toolroute.outcomes", 1, map[string]string{
		"status":   string(outcome.Status),
		"category": string(outcome.Category),
	})

	r.logger.Info("Outcome recorded", map[string]interface{}{
		"operation":     "outcome_recorded",
		"request_id":    outcome.RequestID,
		"status":        outcome.Status,
		"attempt_count": len(outcome.Attempts),
		"pattern_key":   key.String(),
	})
	return nil
}

// applyAttempt moves one executor's weight and totals by one attempt.
// Each store write retries on its own, never the pair: a weight move
// that already landed must not be replayed when the totals write fails.
func (r *Recorder) applyAttempt(ctx context.Context, attempt core.ExecutionAttempt) error {
	succeeded := attempt.Outcome == core.OutcomeSuccess || attempt.Outcome == core.OutcomePartial

	err := r.withRetry(ctx, func() error {
		return r.store.ApplyWeight(ctx, attempt.ExecutorID, func(current float64) float64 {
			var next float64
			if succeeded {
				next = current + r.learningRate*attempt.Score
			} else {
				next = current - r.learningRate*(1-attempt.Score)
			}
			return r.clamp(next)
		})
	})
	if err != nil {
		return err
	}

	return r.withRetry(ctx, func() error {
		return r.store.RecordExecutorOutcome(ctx, attempt.ExecutorID, succeeded, attempt.Score)
	})
}

// withRetry retries one store operation on transient failures.
func (r *Recorder) withRetry(ctx context.Context, op func() error) error {
	return resilience.Retry(ctx, r.retry, op)
}

// decayStep drifts a weight one step toward the neutral 1.0 so stale
// evidence fades absent new outcomes.
func (r *Recorder) decayStep(current float64) float64 {
	return r.clamp(1.0 + (current-1.0)*r.weightDecay)
}

func (r *Recorder) clamp(w float64) float64 {
	if w < r.weightFloor {
		return r.weightFloor
	}
	if w > r.weightCeiling {
		return r.weightCeiling
	}
	return w
}
