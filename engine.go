// Package toolroute routes task requests to the best available executor
// out of a heterogeneous pool and guarantees completion through a tiered
// fallback cascade. The Engine is the single entry point: it classifies
// the request, scores and plans candidates, drives the cascade, and
// feeds every outcome back into the learned-weight store.
package toolroute

import (
	"context"
	"fmt"
	"io"

	"github.com/toolroute/toolroute/cascade"
	"github.com/toolroute/toolroute/classify"
	"github.com/toolroute/toolroute/core"
	"github.com/toolroute/toolroute/learning"
	"github.com/toolroute/toolroute/registry"
	"github.com/toolroute/toolroute/resilience"
	"github.com/toolroute/toolroute/routing"
	"github.com/toolroute/toolroute/scoring"
)

// Engine wires the routing pipeline together. Safe for concurrent use:
// classification, scoring, and planning are read-only, the cascade keeps
// per-request state, and the recorder serializes learned-state writes.
type Engine struct {
	config     *core.Config
	registry   *registry.Registry
	classifier *classify.Classifier
	scorer     *scoring.Scorer
	router     *routing.Router
	cascade    *cascade.Cascade
	recorder   *learning.Recorder
	store      learning.Store
	logger     core.Logger
	telemetry  core.Telemetry
}

type engineOptions struct {
	logger    core.Logger
	telemetry core.Telemetry
	store     learning.Store
	source    core.RegistrySource
	adapter   core.DiscoveryAdapter
	sink      core.EscalationSink
	breakers  *resilience.BreakerConfig
}

// Option configures an Engine.
type Option func(*engineOptions)

// WithLogger sets the logger used by the engine and all components.
func WithLogger(logger core.Logger) Option {
	return func(o *engineOptions) { o.logger = logger }
}

// WithTelemetry sets the telemetry provider.
func WithTelemetry(t core.Telemetry) Option {
	return func(o *engineOptions) { o.telemetry = t }
}

// WithStore replaces the learned-state store. Without this option the
// engine uses Redis when configured, an in-memory store otherwise.
func WithStore(store learning.Store) Option {
	return func(o *engineOptions) { o.store = store }
}

// WithRegistrySource attaches a backing store for the executor registry.
func WithRegistrySource(source core.RegistrySource) Option {
	return func(o *engineOptions) { o.source = source }
}

// WithDiscovery attaches the external discovery collaborator consulted
// when the registry's executors are exhausted.
func WithDiscovery(adapter core.DiscoveryAdapter) Option {
	return func(o *engineOptions) { o.adapter = adapter }
}

// WithEscalationSink attaches the collaborator notified when a request
// exhausts every tier.
func WithEscalationSink(sink core.EscalationSink) Option {
	return func(o *engineOptions) { o.sink = sink }
}

// WithBreakers replaces the per-executor circuit breaker configuration.
func WithBreakers(config *resilience.BreakerConfig) Option {
	return func(o *engineOptions) { o.breakers = config }
}

// NewEngine creates a routing engine. The invoker is the only required
// collaborator; everything else has a working default.
func NewEngine(cfg *core.Config, invoker core.ExecutorInvoker, opts ...Option) (*Engine, error) {
	if invoker == nil {
		return nil, fmt.Errorf("executor invoker is required: %w", core.ErrMissingConfiguration)
	}
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}

	e := &Engine{
		config:     cfg,
		registry:   registry.New(options.source),
		classifier: classify.NewClassifier(cfg.ConfidenceFloor),
		scorer:     scoring.NewScorer(cfg),
		router:     routing.NewRouter(cfg),
		logger:     &core.NoOpLogger{},
		telemetry:  &core.NoOpTelemetry{},
	}
	if options.logger != nil {
		e.logger = options.logger
	}
	if options.telemetry != nil {
		e.telemetry = options.telemetry
	}

	e.cascade = cascade.New(invoker, e.registry, e.scorer, cfg)
	if options.adapter != nil {
		e.cascade.SetDiscovery(options.adapter)
	}
	if options.sink != nil {
		e.cascade.SetEscalationSink(options.sink)
	}
	if options.breakers != nil {
		e.cascade.SetBreakers(resilience.NewBreakerSet(options.breakers))
	}

	e.store = options.store
	if e.store == nil {
		if cfg.RedisURL != "" {
			store, err := learning.NewRedisStore(cfg.RedisURL, cfg.Namespace)
			if err != nil {
				return nil, err
			}
			e.store = store
		} else {
			e.store = learning.NewMemoryStore()
		}
	}
	e.recorder = learning.NewRecorder(e.store, cfg)

	e.propagate()

	if cfg.CatalogPath != "" {
		descriptors, err := core.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		if err := e.registry.Seed(context.Background(), descriptors); err != nil {
			return nil, err
		}
	}
	if options.source != nil {
		if err := e.registry.Sync(context.Background()); err != nil {
			return nil, err
		}
	}

	e.logger.Info("Routing engine initialized", map[string]interface{}{
		"operation":  "engine_init",
		"executors":  e.registry.Len(),
		"redis":      cfg.RedisURL != "",
		"namespace":  cfg.Namespace,
		"categories": len(core.Categories()),
	})
	return e, nil
}

// propagate pushes the engine's logger and telemetry into components.
func (e *Engine) propagate() {
	e.registry.SetLogger(e.logger)
	e.scorer.SetLogger(e.logger)
	e.router.SetLogger(e.logger)
	e.cascade.SetLogger(e.logger)
	e.cascade.SetTelemetry(e.telemetry)
	e.recorder.SetLogger(e.logger)
	e.recorder.SetTelemetry(e.telemetry)
	if s, ok := e.store.(interface{ SetLogger(core.Logger) }); ok {
		s.SetLogger(e.logger)
	}
}

// Route drives one request through classification, planning, and the
// fallback cascade. The caller always receives a RoutingOutcome with the
// full attempt chain; on exhaustion the error wraps ErrCascadeExhausted.
func (e *Engine) Route(ctx context.Context, req *core.Request) (*core.RoutingOutcome, error) {
	ctx, span := e.telemetry.StartSpan(ctx, "engine.Route")
	defer span.End()
	span.SetAttribute("request_id", req.ID)

	cls := e.classifier.Classify(req.Text)
	span.SetAttribute("category", string(cls.Category))
	span.SetAttribute("confidence", cls.Confidence)

	candidates := e.scorer.Score(cls, req, e.registry.Snapshot(), e.store)

	plan, err := e.router.Plan(cls, req, candidates, e.registry)
	if err != nil {
		// Nothing in the registry can serve this request; the cascade
		// still runs so discovery gets its chance before exhaustion.
		plan = &core.RoutingPlan{
			Strategy: core.StrategySequential,
			Band:     core.BandImmediateFallback,
			Category: cls.Category,
		}
	}

	outcome, cascadeErr := e.cascade.Execute(ctx, req, cls, plan, e.store)

	if recErr := e.recordOutcome(ctx, plan, cls, outcome); recErr != nil {
		e.logger.Error("Failed to record routing outcome", map[string]interface{}{
			"operation":  "engine_record",
			"request_id": req.ID,
			"error":      recErr.Error(),
		})
		span.RecordError(recErr)
	}

	if cascadeErr != nil {
		span.RecordError(cascadeErr)
	}
	return outcome, cascadeErr
}

// recordOutcome persists the attempt chain through the recorder. The
// recorder retries transient store conflicts per write internally, so
// the whole Record call is never replayed.
func (e *Engine) recordOutcome(ctx context.Context, plan *core.RoutingPlan, cls core.ClassificationResult, outcome *core.RoutingOutcome) error {
	if plan.Primary == "" && len(outcome.Attempts) == 0 {
		return nil
	}
	return e.recorder.Record(ctx, plan, cls.Bucket, outcome)
}

// Classify exposes the classifier for callers that want the category
// decision without routing.
func (e *Engine) Classify(text string) core.ClassificationResult {
	return e.classifier.Classify(text)
}

// Registry returns the engine's executor registry for seeding and
// lifecycle management.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Stats returns the learned-state aggregates.
func (e *Engine) Stats(ctx context.Context) (*learning.Stats, error) {
	return e.store.Stats(ctx)
}

// Sync refreshes the registry from its backing source.
func (e *Engine) Sync(ctx context.Context) error {
	return e.registry.Sync(ctx)
}

// Close releases any store-held resources.
func (e *Engine) Close() error {
	if closer, ok := e.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
