// Package routing turns a ranked candidate list into an execution plan:
// a primary executor, up to two complementary secondaries, an execution
// order and a combination strategy.
package routing

import (
	"fmt"
	"strings"

	"github.com/toolroute/toolroute/core"
)

// confidenceBoost is added to the primary's score when secondary
// coverage reduces the plan's risk, capped at maxConfidence.
const (
	confidenceBoost = 0.2
	maxConfidence   = 0.95
)

// DescriptorLookup resolves executor ids to their descriptors.
// *registry.Registry satisfies it.
type DescriptorLookup interface {
	Get(id string) (*core.ExecutorDescriptor, bool)
}

// Router constructs routing plans.
type Router struct {
	maxSecondaries int
	logger         core.Logger
}

// NewRouter creates a router from engine configuration.
func NewRouter(cfg *core.Config) *Router {
	return &Router{
		maxSecondaries: cfg.MaxSecondaries,
		logger:         &core.NoOpLogger{},
	}
}

// SetLogger sets the logger provider.
func (r *Router) SetLogger(logger core.Logger) {
	if logger == nil {
		r.logger = &core.NoOpLogger{}
	} else {
		r.logger = logger
	}
}

// Plan builds a routing plan from a ranked candidate list. The first
// candidate becomes the primary; secondaries are chosen to complement
// it rather than merely rank next.
func (r *Router) Plan(cls core.ClassificationResult, req *core.Request, candidates []core.ScoredCandidate, lookup DescriptorLookup) (*core.RoutingPlan, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates for category %s: %w", cls.Category, core.ErrExecutorNotFound)
	}

	primary := candidates[0]
	secondaries := r.selectSecondaries(primary, candidates[1:], lookup)
	order := executionOrder(req.Text, primary.ExecutorID, secondaries, lookup)
	strategy := combinationStrategy(req.Text)

	confidence := primary.Score
	if len(secondaries) > 0 {
		confidence += confidenceBoost
		if confidence > maxConfidence {
			confidence = maxConfidence
		}
	}

	plan := &core.RoutingPlan{
		Primary:     primary.ExecutorID,
		Secondaries: secondaries,
		Order:       order,
		Strategy:    strategy,
		Confidence:  confidence,
		Band:        executionBand(primary.Score),
		Category:    cls.Category,
	}

	r.logger.Info("Routing plan constructed", map[string]interface{}{
		"operation":       "plan_constructed",
		"request_id":      req.ID,
		"primary":         plan.Primary,
		"secondary_count": len(plan.Secondaries),
		"strategy":        plan.Strategy,
		"confidence":      plan.Confidence,
		"band":            plan.Band,
	})
	return plan, nil
}

// selectSecondaries picks up to maxSecondaries complementary executors:
// a search-leaning primary gets an analysis-capable backup, an
// analysis-leaning primary gets a verification-capable one. Remaining
// slots fill from rank order. The primary is never duplicated.
func (r *Router) selectSecondaries(primary core.ScoredCandidate, rest []core.ScoredCandidate, lookup DescriptorLookup) []string {
	if r.maxSecondaries == 0 || len(rest) == 0 {
		return nil
	}

	var wantTag string
	if pd, ok := lookup.Get(primary.ExecutorID); ok {
		switch {
		case hasAnyCapability(pd, "search", "real_time", "fact_check") || pd.Privacy == core.PrivacyLocal:
			wantTag = "analysis"
		case hasAnyCapability(pd, "analysis", "reasoning", "comparison"):
			wantTag = "verification"
		}
	}

	picked := make([]string, 0, r.maxSecondaries)
	used := map[string]bool{primary.ExecutorID: true}

	if wantTag != "" {
		for _, c := range rest {
			if used[c.ExecutorID] {
				continue
			}
			if d, ok := lookup.Get(c.ExecutorID); ok && hasAnyCapability(d, wantTag) {
				picked = append(picked, c.ExecutorID)
				used[c.ExecutorID] = true
				break
			}
		}
	}

	for _, c := range rest {
		if len(picked) >= r.maxSecondaries {
			break
		}
		if used[c.ExecutorID] {
			continue
		}
		picked = append(picked, c.ExecutorID)
		used[c.ExecutorID] = true
	}
	return picked
}

// realtimeTerms signal that later steps depend on fresh external data,
// so a search-capable executor must run first regardless of score rank.
var realtimeTerms = []string{"latest", "current", "recent", "real-time", "search", "最新", "搜索"}

func executionOrder(text, primary string, secondaries []string, lookup DescriptorLookup) []string {
	all := append([]string{primary}, secondaries...)
	if !containsAnyTerm(text, realtimeTerms) {
		return all
	}

	for i, id := range all {
		d, ok := lookup.Get(id)
		if !ok {
			continue
		}
		if hasAnyCapability(d, "search", "real_time", "current_data") {
			if i == 0 {
				return all
			}
			reordered := make([]string, 0, len(all))
			reordered = append(reordered, id)
			for _, other := range all {
				if other != id {
					reordered = append(reordered, other)
				}
			}
			return reordered
		}
	}
	return all
}

var (
	compareTerms = []string{"compare", "versus", " vs ", "比較", "對比"}
	verifyTerms  = []string{"verify", "check", "confirm", "驗證", "檢查", "確認"}
	enhanceTerms = []string{"detailed", "comprehensive", "in depth", "in-depth", "詳細", "全面"}
)

// combinationStrategy picks how primary and secondary results combine,
// from the request's own language.
func combinationStrategy(text string) core.Strategy {
	switch {
	case containsAnyTerm(text, compareTerms):
		return core.StrategyParallelCompare
	case containsAnyTerm(text, verifyTerms):
		return core.StrategyVerification
	case containsAnyTerm(text, enhanceTerms):
		return core.StrategyEnhancement
	default:
		return core.StrategySequential
	}
}

// executionBand labels the plan by the primary's raw score. Lower bands
// widen the safety net: backup_ready runs secondaries eagerly and
// immediate_fallback expects the cascade to advance quickly.
func executionBand(score float64) core.ExecutionBand {
	switch {
	case score >= 0.85:
		return core.BandDirect
	case score >= 0.70:
		return core.BandMonitored
	case score >= 0.55:
		return core.BandBackupReady
	default:
		return core.BandImmediateFallback
	}
}

func hasAnyCapability(d *core.ExecutorDescriptor, tags ...string) bool {
	for _, t := range tags {
		if d.HasCapability(t) {
			return true
		}
	}
	return false
}

func containsAnyTerm(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
