// Package cascade drives a routing plan through up to four escalating
// tiers until one executor succeeds or every avenue is exhausted. Tiers
// run sequentially within a request; the same executor is never tried
// twice, and every tier outcome is recorded in the attempt log whether
// it succeeded or not.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/toolroute/toolroute/core"
	"github.com/toolroute/toolroute/discovery"
	"github.com/toolroute/toolroute/registry"
	"github.com/toolroute/toolroute/resilience"
	"github.com/toolroute/toolroute/scoring"
)

// Tier numbers as they appear in the attempt log.
const (
	tierPrimary   = 1
	tierAlternate = 2
	tierDiscovery = 3
	tierEscalate  = 4
)

// partialFloor separates a partial outcome from an outright failure.
// Partial results still advance the cascade but are rewarded by the
// recorder instead of penalized.
const partialFloor = 0.3

// invocation is the result of one executor call within a tier.
type invocation struct {
	executorID string
	score      float64
	duration   time.Duration
	err        error
}

// Cascade executes routing plans with tiered fallback.
type Cascade struct {
	invoker          core.ExecutorInvoker
	registry         *registry.Registry
	scorer           *scoring.Scorer
	adapter          core.DiscoveryAdapter
	ranker           *discovery.Ranker
	breakers         *resilience.BreakerSet
	escalation       core.EscalationSink
	tierTimeout      time.Duration
	successThreshold float64
	logger           core.Logger
	telemetry        core.Telemetry
}

// New creates a cascade over the registry's executors. Discovery and
// escalation collaborators are optional and attached via setters.
func New(invoker core.ExecutorInvoker, reg *registry.Registry, scorer *scoring.Scorer, cfg *core.Config) *Cascade {
	return &Cascade{
		invoker:          invoker,
		registry:         reg,
		scorer:           scorer,
		ranker:           discovery.NewRanker(cfg.DiscoveryLimit),
		breakers:         resilience.NewBreakerSet(nil),
		tierTimeout:      cfg.TierTimeout,
		successThreshold: cfg.SuccessThreshold,
		logger:           &core.NoOpLogger{},
		telemetry:        &core.NoOpTelemetry{},
	}
}

// SetDiscovery attaches the external discovery collaborator. Without one
// the discovery tier is skipped.
func (c *Cascade) SetDiscovery(adapter core.DiscoveryAdapter) {
	c.adapter = adapter
}

// SetEscalationSink attaches the collaborator notified on exhaustion.
func (c *Cascade) SetEscalationSink(sink core.EscalationSink) {
	c.escalation = sink
}

// SetBreakers replaces the per-executor circuit breaker set.
func (c *Cascade) SetBreakers(breakers *resilience.BreakerSet) {
	if breakers != nil {
		c.breakers = breakers
	}
}

// SetLogger sets the logger provider.
func (c *Cascade) SetLogger(logger core.Logger) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	c.logger = logger
	c.ranker.SetLogger(logger)
	c.breakers.SetLogger(logger)
}

// SetTelemetry sets the telemetry provider.
func (c *Cascade) SetTelemetry(telemetry core.Telemetry) {
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}
	c.telemetry = telemetry
}

// Execute runs the plan through the tiers. The returned outcome always
// carries the full attempt chain; on exhaustion the error wraps
// ErrCascadeExhausted, and on caller cancellation ErrContextCanceled.
func (c *Cascade) Execute(ctx context.Context, req *core.Request, cls core.ClassificationResult, plan *core.RoutingPlan, learned core.LearnedState) (*core.RoutingOutcome, error) {
	ctx, span := c.telemetry.StartSpan(ctx, "cascade.Execute")
	defer span.End()
	span.SetAttribute("request_id", req.ID)
	span.SetAttribute("primary", plan.Primary)

	outcome := &core.RoutingOutcome{
		RequestID:  req.ID,
		Status:     core.StatusExhausted,
		Category:   cls.Category,
		Confidence: plan.Confidence,
	}
	tried := make(map[string]bool)

	type tierFunc func(context.Context, *core.Request, core.ClassificationResult, *core.RoutingPlan, core.LearnedState, map[string]bool) (*core.ExecutionAttempt, bool)
	tiers := []tierFunc{c.runPrimary, c.runAlternate, c.runDiscovery}

	for i, tier := range tiers {
		if err := ctx.Err(); err != nil {
			return outcome, fmt.Errorf("cascade aborted for request %s: %w", req.ID, core.ErrContextCanceled)
		}

		tierCtx, tierSpan := c.telemetry.StartSpan(ctx, fmt.Sprintf("cascade.tier%d", i+1))
		attempt, attempted := tier(tierCtx, req, cls, plan, learned, tried)
		if attempted {
			tierSpan.SetAttribute("executor_id", attempt.ExecutorID)
			tierSpan.SetAttribute("outcome", string(attempt.Outcome))
		}
		tierSpan.End()
		if !attempted {
			continue
		}
		c.record(outcome, attempt)
		if attempt.Outcome == core.OutcomeSuccess {
			outcome.Status = core.StatusSuccess
			outcome.Winner = attempt.ExecutorID
			c.telemetry.RecordMetric("toolroute.cascade.tier", float64(attempt.Tier), map[string]string{
				"status": string(core.StatusSuccess),
			})
			return outcome, nil
		}
	}

	c.escalate(ctx, req, cls, outcome)
	return outcome, &core.RoutingError{
		Op:      "cascade.Execute",
		Kind:    "cascade",
		ID:      req.ID,
		Message: "no executor could handle the request",
		Err:     core.ErrCascadeExhausted,
	}
}

// record appends one tier attempt and folds its cost and latency into
// the aggregates.
func (c *Cascade) record(outcome *core.RoutingOutcome, attempt *core.ExecutionAttempt) {
	outcome.Attempts = append(outcome.Attempts, *attempt)
	outcome.TotalLatency += attempt.Duration
	if d, ok := c.registry.Get(attempt.ExecutorID); ok {
		outcome.TotalCost += d.CostPerCall
	}
	c.logger.Info("Cascade tier completed", map[string]interface{}{
		"operation":   "cascade_tier",
		"request_id":  attempt.RequestID,
		"tier":        attempt.Tier,
		"executor_id": attempt.ExecutorID,
		"outcome":     string(attempt.Outcome),
		"score":       attempt.Score,
	})
}

// runPrimary executes the routing plan as constructed. How many plan
// executors participate depends on the strategy and confidence band.
func (c *Cascade) runPrimary(ctx context.Context, req *core.Request, cls core.ClassificationResult, plan *core.RoutingPlan, _ core.LearnedState, tried map[string]bool) (*core.ExecutionAttempt, bool) {
	if plan.Primary == "" {
		return nil, false
	}

	var best invocation
	switch plan.Strategy {
	case core.StrategyParallelCompare:
		best = c.parallelCompare(ctx, req, plan.Order, tried)
	case core.StrategyVerification:
		best = c.verify(ctx, req, plan, tried)
	case core.StrategyEnhancement:
		best = c.enhance(ctx, req, plan, tried)
	default:
		best = c.sequential(ctx, req, plan, tried)
	}
	return c.toAttempt(req.ID, tierPrimary, best), true
}

// sequential walks the plan's execution order until one executor
// succeeds. A direct-band plan trusts its primary and leaves the
// secondaries for later tiers. Executor-level failures (unavailable,
// timeout, open breaker) keep the walk going; any other error stops it
// and hands the request to the next tier's re-planning.
func (c *Cascade) sequential(ctx context.Context, req *core.Request, plan *core.RoutingPlan, tried map[string]bool) invocation {
	order := plan.Order
	if plan.Band == core.BandDirect {
		order = []string{plan.Primary}
	}

	var best invocation
	for i, id := range order {
		inv := c.invoke(ctx, req, id, tried)
		if i == 0 || inv.score > best.score {
			best = inv
		}
		if inv.err == nil && inv.score >= c.successThreshold {
			return inv
		}
		if inv.err != nil && !core.IsTierAdvance(inv.err) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return best
}

// parallelCompare fans out to every plan executor concurrently and joins
// on all results, keeping the best score.
func (c *Cascade) parallelCompare(ctx context.Context, req *core.Request, order []string, tried map[string]bool) invocation {
	results := make(chan invocation, len(order))
	launched := 0
	for _, id := range order {
		if tried[id] {
			continue
		}
		tried[id] = true
		launched++
		go func(executorID string) {
			results <- c.invoke(ctx, req, executorID, nil)
		}(id)
	}
	if launched == 0 {
		return invocation{err: core.ErrExecutorNotFound}
	}

	var best invocation
	for i := 0; i < launched; i++ {
		inv := <-results
		if i == 0 || invBetter(inv, best) {
			best = inv
		}
	}
	return best
}

func invBetter(a, b invocation) bool {
	if (a.err == nil) != (b.err == nil) {
		return a.err == nil
	}
	return a.score > b.score
}

// verify runs the primary and, when it looks good, confirms with the
// first secondary; the tier score averages the two so a failed
// verification drags the outcome down.
func (c *Cascade) verify(ctx context.Context, req *core.Request, plan *core.RoutingPlan, tried map[string]bool) invocation {
	primary := c.invoke(ctx, req, plan.Primary, tried)
	if primary.err != nil || len(plan.Secondaries) == 0 {
		return primary
	}

	check := c.invoke(ctx, req, plan.Secondaries[0], tried)
	combined := primary
	combined.duration += check.duration
	if check.err == nil {
		combined.score = (primary.score + check.score) / 2
	} else {
		combined.score = primary.score / 2
	}
	return combined
}

// enhance runs the primary and lets the first secondary enrich the
// result; enrichment can only help the score, never hurt it.
func (c *Cascade) enhance(ctx context.Context, req *core.Request, plan *core.RoutingPlan, tried map[string]bool) invocation {
	primary := c.invoke(ctx, req, plan.Primary, tried)
	if primary.err != nil || primary.score < c.successThreshold || len(plan.Secondaries) == 0 {
		return primary
	}

	extra := c.invoke(ctx, req, plan.Secondaries[0], tried)
	combined := primary
	combined.duration += extra.duration
	if extra.err == nil && extra.score > combined.score {
		combined.score = extra.score
	}
	return combined
}

// runAlternate re-scores the registry excluding everything already
// tried: same-category candidates first, then cross-category executors
// whose capability tags match request keywords. The first viable
// candidate is attempted.
func (c *Cascade) runAlternate(ctx context.Context, req *core.Request, cls core.ClassificationResult, _ *core.RoutingPlan, learned core.LearnedState, tried map[string]bool) (*core.ExecutionAttempt, bool) {
	pool := make([]*core.ExecutorDescriptor, 0)
	for _, d := range c.registry.Snapshot() {
		if !tried[d.ID] {
			pool = append(pool, d)
		}
	}
	if len(pool) == 0 {
		return nil, false
	}

	candidateID := ""
	if candidates := c.scorer.Score(cls, req, pool, learned); len(candidates) > 0 {
		candidateID = candidates[0].ExecutorID
	} else if widened := c.widen(req, pool); widened != "" {
		candidateID = widened
	}
	if candidateID == "" {
		c.logger.Debug("No alternate executor available", map[string]interface{}{
			"operation":  "cascade_alternate",
			"request_id": req.ID,
			"category":   string(cls.Category),
		})
		return nil, false
	}

	inv := c.invoke(ctx, req, candidateID, tried)
	return c.toAttempt(req.ID, tierAlternate, inv), true
}

// widen finds a cross-category executor whose capability tags textually
// overlap the request. Restricted requests stay behind the privacy gate
// even here.
func (c *Cascade) widen(req *core.Request, pool []*core.ExecutorDescriptor) string {
	bestID := ""
	bestOverlap := 0
	for _, d := range pool {
		if req.Sensitivity == core.SensitivityRestricted && d.Privacy != core.PrivacyLocal {
			continue
		}
		overlap := capabilityKeywordOverlap(req.Text, d.Capabilities)
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestID = d.ID
		}
	}
	return bestID
}

// runDiscovery asks the external adapter for new executors, ranks them,
// registers the best match, and attempts it. An empty discovery result
// transitions straight to escalation without an Invoke.
func (c *Cascade) runDiscovery(ctx context.Context, req *core.Request, cls core.ClassificationResult, _ *core.RoutingPlan, _ core.LearnedState, tried map[string]bool) (*core.ExecutionAttempt, bool) {
	if c.adapter == nil {
		return nil, false
	}

	queries := discovery.BuildQueries(&cls, req)
	found, err := c.adapter.Discover(ctx, queries)
	if err != nil {
		c.logger.Warn("Discovery adapter failed", map[string]interface{}{
			"operation":  "cascade_discovery",
			"request_id": req.ID,
			"error":      err.Error(),
		})
		return nil, false
	}

	ranked := c.ranker.Rank(&cls, req, found)
	var chosen *core.ExecutorDescriptor
	for _, rd := range ranked {
		d := rd.Descriptor
		if tried[d.ID] {
			continue
		}
		if req.Sensitivity == core.SensitivityRestricted && d.Privacy != core.PrivacyLocal {
			continue
		}
		chosen = d
		break
	}
	if chosen == nil {
		c.logger.Info("Discovery returned no usable executor", map[string]interface{}{
			"operation":  "cascade_discovery",
			"request_id": req.ID,
			"found":      len(found),
		})
		return nil, false
	}

	if chosen.Kind == "" {
		chosen.Kind = core.KindDiscovered
	}
	chosen.Active = true
	chosen.DiscoveredAt = time.Now()
	if err := c.registry.Append(ctx, chosen); err != nil {
		c.logger.Warn("Failed to register discovered executor", map[string]interface{}{
			"operation":   "cascade_discovery",
			"executor_id": chosen.ID,
			"error":       err.Error(),
		})
	}

	inv := c.invoke(ctx, req, chosen.ID, tried)
	return c.toAttempt(req.ID, tierDiscovery, inv), true
}

// escalate records the terminal tier and hands the signal to the
// escalation collaborator. Building a new tool happens out-of-band.
func (c *Cascade) escalate(ctx context.Context, req *core.Request, cls core.ClassificationResult, outcome *core.RoutingOutcome) {
	attempt := &core.ExecutionAttempt{
		RequestID: req.ID,
		Tier:      tierEscalate,
		Outcome:   core.OutcomeFailure,
		Error:     "no executor available; escalating",
	}
	outcome.Attempts = append(outcome.Attempts, *attempt)

	c.logger.Error("Cascade exhausted", map[string]interface{}{
		"operation":  "cascade_escalate",
		"request_id": req.ID,
		"category":   string(cls.Category),
		"attempts":   len(outcome.Attempts),
	})
	c.telemetry.RecordMetric("toolroute.cascade.exhausted", 1, map[string]string{
		"category": string(cls.Category),
	})
	if c.escalation != nil {
		c.escalation.Escalate(ctx, req, cls.Category)
	}
}

// invoke performs one bounded executor call through its circuit breaker.
// A nil tried map means the caller already claimed the executor.
func (c *Cascade) invoke(ctx context.Context, req *core.Request, executorID string, tried map[string]bool) invocation {
	if tried != nil {
		tried[executorID] = true
	}

	if !c.breakers.CanExecute(executorID) {
		return invocation{
			executorID: executorID,
			err: &core.RoutingError{
				Op:   "cascade.invoke",
				Kind: "executor",
				ID:   executorID,
				Err:  core.ErrCircuitBreakerOpen,
			},
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.tierTimeout)
	defer cancel()

	start := time.Now()
	result, err := c.invoker.Invoke(callCtx, executorID, req, c.tierTimeout)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = &core.RoutingError{
				Op:   "cascade.invoke",
				Kind: "executor",
				ID:   executorID,
				Err:  core.ErrExecutorTimeout,
			}
		}
		c.breakers.RecordFailure(executorID, err)
		return invocation{executorID: executorID, duration: elapsed, err: err}
	}

	c.breakers.RecordSuccess(executorID)
	return invocation{executorID: executorID, score: result.Score, duration: elapsed}
}

// toAttempt classifies one tier's best invocation into an attempt record.
func (c *Cascade) toAttempt(requestID string, tier int, inv invocation) *core.ExecutionAttempt {
	attempt := &core.ExecutionAttempt{
		RequestID:  requestID,
		Tier:       tier,
		ExecutorID: inv.executorID,
		Score:      inv.score,
		Duration:   inv.duration,
	}
	switch {
	case inv.err != nil:
		attempt.Outcome = core.OutcomeFailure
		attempt.Error = inv.err.Error()
	case inv.score >= c.successThreshold:
		attempt.Outcome = core.OutcomeSuccess
	case inv.score >= partialFloor:
		attempt.Outcome = core.OutcomePartial
	default:
		attempt.Outcome = core.OutcomeFailure
	}
	return attempt
}

func capabilityKeywordOverlap(text string, capabilities []string) int {
	tokens := make(map[string]bool)
	for _, f := range splitLower(text) {
		tokens[f] = true
	}
	overlap := 0
	for _, cap := range capabilities {
		for _, part := range splitTag(cap) {
			if tokens[part] {
				overlap++
				break
			}
		}
	}
	return overlap
}

func splitLower(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".,!?;:\"'()")
	}
	return fields
}

func splitTag(tag string) []string {
	return strings.Split(strings.ToLower(tag), "_")
}
