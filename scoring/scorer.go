// Package scoring ranks candidate executors for a classified request.
// Scoring is read-only over registry and learned-state snapshots and is
// safe to run concurrently for independent requests.
package scoring

import (
	"sort"
	"time"

	"github.com/toolroute/toolroute/core"
)

// preferredBoost is the multiplier applied to caller-preferred executors.
const preferredBoost = 1.05

// Scorer computes composite scores for candidate executors.
type Scorer struct {
	weights core.ScoringWeights
	floor   float64
	ceiling float64
	logger  core.Logger
}

// NewScorer creates a scorer from engine configuration.
func NewScorer(cfg *core.Config) *Scorer {
	return &Scorer{
		weights: cfg.ScoringWeights,
		floor:   cfg.WeightFloor,
		ceiling: cfg.WeightCeiling,
		logger:  &core.NoOpLogger{},
	}
}

// SetLogger sets the logger provider.
func (s *Scorer) SetLogger(logger core.Logger) {
	if logger == nil {
		s.logger = &core.NoOpLogger{}
	} else {
		s.logger = logger
	}
}

// Score ranks the given executors for one request. Executors with zero
// category affinity are skipped; for the "restricted" sensitivity level
// every non-local executor scores zero and is excluded outright.
// Candidates sort descending by score, ties broken by lower cost.
func (s *Scorer) Score(cls core.ClassificationResult, req *core.Request, executors []*core.ExecutorDescriptor, learned core.LearnedState) []core.ScoredCandidate {
	if learned == nil {
		learned = &core.NoOpLearnedState{}
	}

	candidates := make([]core.ScoredCandidate, 0, len(executors))
	for _, d := range executors {
		if !d.Active {
			continue
		}

		affinity := s.affinityFor(d, cls.Category)
		if affinity <= 0 {
			continue
		}

		privacy := privacyFit(req.Sensitivity, d.Privacy)
		if req.Sensitivity == core.SensitivityRestricted && privacy == 0 {
			// Hard privacy gate: non-local executors can never handle
			// restricted data, regardless of other factors.
			continue
		}

		cost := costFit(req.Budget, d.CostPerCall)
		latency := latencyFit(req.LatencyCeiling, d.AvgLatency())
		learnedFit := s.learnedFit(learned, d.ID, cls.Bucket)

		breakdown := core.ScoreBreakdown{
			Affinity: affinity * s.weights.Category,
			Privacy:  privacy * s.weights.Privacy,
			Cost:     cost * s.weights.Cost,
			Latency:  latency * s.weights.Latency,
			Learned:  learnedFit * s.weights.Learned,
		}
		score := breakdown.Affinity + breakdown.Privacy + breakdown.Cost + breakdown.Latency + breakdown.Learned

		score *= complexityFactor(cls.Complexity, d.Complexity)
		if isPreferred(req, d.ID) {
			score *= preferredBoost
		}
		if score > 1 {
			score = 1
		}

		candidates = append(candidates, core.ScoredCandidate{
			ExecutorID:  d.ID,
			Category:    cls.Category,
			Score:       score,
			Breakdown:   breakdown,
			CostPerCall: d.CostPerCall,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].CostPerCall < candidates[j].CostPerCall
	})

	s.logger.Debug("Candidates scored", map[string]interface{}{
		"operation":       "score_candidates",
		"request_id":      req.ID,
		"category":        cls.Category,
		"candidate_count": len(candidates),
	})
	return candidates
}

// affinityFor returns the executor's affinity for the category. Requests
// that fell through to "general" use the executor's best declared
// affinity at half strength, so every executor stays reachable without
// out-competing true category matches.
func (s *Scorer) affinityFor(d *core.ExecutorDescriptor, c core.Category) float64 {
	if a := d.Affinity(c); a > 0 {
		return a
	}
	if c != core.CategoryGeneral {
		return 0
	}
	var best float64
	for _, a := range d.Affinities {
		if a > best {
			best = a
		}
	}
	return best * 0.5
}

// privacyFitTable maps (sensitivity, privacy tier) to a [0,1] fit.
// Restricted is a hard gate handled by the caller: only local executors
// score above zero.
var privacyFitTable = map[core.Sensitivity]map[core.PrivacyTier]float64{
	core.SensitivityRestricted: {
		core.PrivacyLocal: 1.0,
	},
	core.SensitivityConfidential: {
		core.PrivacyLocal:        1.0,
		core.PrivacyRegional:     0.75,
		core.PrivacyCloudManaged: 0.4,
		core.PrivacyPublicOnly:   0.1,
	},
	core.SensitivityInternal: {
		core.PrivacyLocal:        1.0,
		core.PrivacyRegional:     0.9,
		core.PrivacyCloudManaged: 0.7,
		core.PrivacyPublicOnly:   0.4,
	},
}

func privacyFit(s core.Sensitivity, tier core.PrivacyTier) float64 {
	if s == core.SensitivityPublic || s == core.SensitivityUnspecified {
		return 1.0
	}
	return privacyFitTable[s][tier]
}

// costFit maps an estimated cost against the declared budget. Without a
// budget, cheaper is simply better on a soft curve. Over budget the fit
// decays to zero instead of gating hard; cost is a preference, privacy
// is the only hard constraint.
func costFit(budget, cost float64) float64 {
	if cost <= 0 {
		return 1.0
	}
	if budget <= 0 {
		return 1.0 / (1.0 + cost)
	}
	if cost <= budget {
		return 1.0 - 0.5*(cost/budget)
	}
	fit := 0.5 - 0.5*((cost-budget)/budget)
	if fit < 0 {
		return 0
	}
	return fit
}

// latencyFit mirrors costFit for the latency ceiling.
func latencyFit(ceiling, avg time.Duration) float64 {
	if avg <= 0 {
		return 1.0
	}
	if ceiling <= 0 {
		return 1.0 / (1.0 + avg.Seconds())
	}
	if avg <= ceiling {
		return 1.0 - 0.5*(float64(avg)/float64(ceiling))
	}
	fit := 0.5 - 0.5*(float64(avg-ceiling)/float64(ceiling))
	if fit < 0 {
		return 0
	}
	return fit
}

// learnedFit normalizes the learned weight (with any pattern boost) from
// its [floor, ceiling] range into [0,1].
func (s *Scorer) learnedFit(learned core.LearnedState, id string, bucket core.FeatureBucket) float64 {
	w := learned.Weight(id) * learned.PatternBoost(id, bucket)
	fit := (w - s.floor) / (s.ceiling - s.floor)
	if fit < 0 {
		return 0
	}
	if fit > 1 {
		return 1
	}
	return fit
}

// tierCapacity maps an executor's complexity tier to the request
// complexity it comfortably handles.
var tierCapacity = map[core.ComplexityTier]float64{
	core.ComplexitySimple:  0.35,
	core.ComplexityMedium:  0.7,
	core.ComplexityComplex: 1.0,
}

// complexityFactor dampens executors whose complexity tier falls short
// of the request's estimated complexity.
func complexityFactor(complexity float64, tier core.ComplexityTier) float64 {
	capacity, ok := tierCapacity[tier]
	if !ok {
		capacity = 0.7
	}
	if complexity <= capacity {
		return 1.0
	}
	return 1.0 - 0.2*(complexity-capacity)
}

func isPreferred(req *core.Request, id string) bool {
	for _, p := range req.Preferred {
		if p == id {
			return true
		}
	}
	return false
}
