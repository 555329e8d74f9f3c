package core

import (
	"context"
	"encoding/json"
	"time"
)

// Logger interface - minimal logging interface
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
}

// Telemetry interface - optional telemetry support
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a telemetry span
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// InvokeResult is what an executor call produces. The routing core never
// inspects Payload; it only acts on Score and the returned error.
type InvokeResult struct {
	// Score is the executor's self-reported outcome quality in [0,1].
	Score float64
	// Payload is the opaque result handed back to the caller on success.
	Payload json.RawMessage
}

// ExecutorInvoker is the collaborator that actually reaches an executor.
// Implementations own the wire protocol; the core only cares about the
// outcome score and error. A timeout must surface as an error.
type ExecutorInvoker interface {
	Invoke(ctx context.Context, executorID string, req *Request, timeout time.Duration) (*InvokeResult, error)
}

// DiscoveryAdapter finds previously unknown executors for a set of
// category-derived search queries. Invoked only at the discovery tier.
// An empty result is not an error.
type DiscoveryAdapter interface {
	Discover(ctx context.Context, queries []string) ([]*ExecutorDescriptor, error)
}

// RegistrySource is the backing store for the executor registry.
// Entries are never deleted mid-process, only marked inactive.
type RegistrySource interface {
	ListActive(ctx context.Context) ([]*ExecutorDescriptor, error)
	Append(ctx context.Context, d *ExecutorDescriptor) error
}

// EscalationSink receives the signal that no known or discoverable
// executor could handle a request, so a new tool may need to be built
// out-of-band. Implementations must not block.
type EscalationSink interface {
	Escalate(ctx context.Context, req *Request, category Category)
}

// LearnedState exposes read-only snapshots of the learned weight store
// to the scorer. Reads may be slightly stale; only the outcome recorder
// writes.
type LearnedState interface {
	// Weight returns the learned multiplier for an executor (1.0 when unknown).
	Weight(executorID string) float64
	// PatternBoost returns a multiplier >= 1.0 when historical success
	// patterns for the executor match the request's feature bucket.
	PatternBoost(executorID string, bucket FeatureBucket) float64
}

// Default no-op implementations

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

// NoOpTelemetry provides a no-op telemetry implementation
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan provides a no-op span implementation
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}

// NoOpLearnedState returns neutral weights for every executor.
type NoOpLearnedState struct{}

func (n *NoOpLearnedState) Weight(executorID string) float64 { return 1.0 }
func (n *NoOpLearnedState) PatternBoost(executorID string, bucket FeatureBucket) float64 {
	return 1.0
}
