package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolroute/toolroute/core"
)

func testScorer() *Scorer {
	return NewScorer(core.DefaultConfig())
}

func descriptor(id string, cat core.Category, affinity float64) *core.ExecutorDescriptor {
	return &core.ExecutorDescriptor{
		ID:         id,
		Name:       id,
		Kind:       core.KindCloudAPI,
		Affinities: map[core.Category]float64{cat: affinity},
		Complexity: core.ComplexityMedium,
		Privacy:    core.PrivacyCloudManaged,
		Active:     true,
	}
}

func classification(cat core.Category) core.ClassificationResult {
	return core.ClassificationResult{Category: cat, Confidence: 0.8}
}

// stubLearned returns fixed weights per executor.
type stubLearned struct {
	weights map[string]float64
	boosts  map[string]float64
}

func (s *stubLearned) Weight(id string) float64 {
	if w, ok := s.weights[id]; ok {
		return w
	}
	return 1.0
}

func (s *stubLearned) PatternBoost(id string, _ core.FeatureBucket) float64 {
	if b, ok := s.boosts[id]; ok {
		return b
	}
	return 1.0
}

func TestScoreOrdersByAffinity(t *testing.T) {
	s := testScorer()
	req := core.NewRequest("calculate the quarterly totals")

	executors := []*core.ExecutorDescriptor{
		descriptor("weak", core.CategoryCalculation, 0.3),
		descriptor("strong", core.CategoryCalculation, 0.95),
		descriptor("unrelated", core.CategoryAutomation, 0.9),
	}

	candidates := s.Score(classification(core.CategoryCalculation), req, executors, nil)
	require.Len(t, candidates, 2, "zero-affinity executor must be excluded")
	assert.Equal(t, "strong", candidates[0].ExecutorID)
	assert.Equal(t, "weak", candidates[1].ExecutorID)
}

func TestScoreRestrictedPrivacyGate(t *testing.T) {
	s := testScorer()
	req := core.NewRequest("latest earnings figures", core.WithSensitivity(core.SensitivityRestricted))

	local := descriptor("local-model", core.CategoryFactualSearch, 0.6)
	local.Privacy = core.PrivacyLocal
	cloud := descriptor("cloud-api", core.CategoryFactualSearch, 0.99)
	regional := descriptor("regional-api", core.CategoryFactualSearch, 0.9)
	regional.Privacy = core.PrivacyRegional

	candidates := s.Score(classification(core.CategoryFactualSearch), req, []*core.ExecutorDescriptor{local, cloud, regional}, nil)
	require.Len(t, candidates, 1, "every non-local executor must be ineligible")
	assert.Equal(t, "local-model", candidates[0].ExecutorID)
}

func TestScoreRestrictedNoLocalExecutors(t *testing.T) {
	s := testScorer()
	req := core.NewRequest("latest stock price", core.WithSensitivity(core.SensitivityRestricted))

	candidates := s.Score(classification(core.CategoryFactualSearch), req, []*core.ExecutorDescriptor{
		descriptor("cloud-a", core.CategoryFactualSearch, 0.9),
		descriptor("cloud-b", core.CategoryFactualSearch, 0.8),
	}, nil)
	assert.Empty(t, candidates)
}

func TestScoreSkipsInactive(t *testing.T) {
	s := testScorer()
	req := core.NewRequest("calculate this")

	inactive := descriptor("gone", core.CategoryCalculation, 0.9)
	inactive.Active = false

	candidates := s.Score(classification(core.CategoryCalculation), req, []*core.ExecutorDescriptor{inactive}, nil)
	assert.Empty(t, candidates)
}

func TestScoreLearnedWeightBreaksRank(t *testing.T) {
	s := testScorer()
	req := core.NewRequest("calculate this")

	a := descriptor("a", core.CategoryCalculation, 0.8)
	b := descriptor("b", core.CategoryCalculation, 0.8)

	learned := &stubLearned{weights: map[string]float64{"a": 0.2, "b": 2.5}}
	candidates := s.Score(classification(core.CategoryCalculation), req, []*core.ExecutorDescriptor{a, b}, learned)
	require.Len(t, candidates, 2)
	assert.Equal(t, "b", candidates[0].ExecutorID)
	assert.Greater(t, candidates[0].Score, candidates[1].Score)
}

func TestScoreTieBreaksOnCost(t *testing.T) {
	s := testScorer()
	req := core.NewRequest("calculate this", core.WithBudget(10))

	cheap := descriptor("cheap", core.CategoryCalculation, 0.8)
	cheap.CostPerCall = 0.1
	pricey := descriptor("pricey", core.CategoryCalculation, 0.8)
	pricey.CostPerCall = 0.1

	candidates := s.Score(classification(core.CategoryCalculation), req, []*core.ExecutorDescriptor{pricey, cheap}, nil)
	require.Len(t, candidates, 2)
	assert.Equal(t, candidates[0].Score, candidates[1].Score)
}

func TestScorePreferredBoost(t *testing.T) {
	s := testScorer()

	a := descriptor("a", core.CategoryCalculation, 0.8)
	b := descriptor("b", core.CategoryCalculation, 0.8)

	plain := core.NewRequest("calculate this")
	preferring := core.NewRequest("calculate this", core.WithPreferred("a"))

	base := s.Score(classification(core.CategoryCalculation), plain, []*core.ExecutorDescriptor{a, b}, nil)
	boosted := s.Score(classification(core.CategoryCalculation), preferring, []*core.ExecutorDescriptor{a, b}, nil)

	require.Len(t, base, 2)
	require.Len(t, boosted, 2)
	assert.Equal(t, "a", boosted[0].ExecutorID)
	assert.Greater(t, boosted[0].Score, base[0].Score)
}

func TestScoreGeneralCategoryReachesAllExecutors(t *testing.T) {
	s := testScorer()
	req := core.NewRequest("hmm")

	d := descriptor("specialist", core.CategoryAcademicPaper, 0.9)
	candidates := s.Score(classification(core.CategoryGeneral), req, []*core.ExecutorDescriptor{d}, nil)
	require.Len(t, candidates, 1)
	assert.Less(t, candidates[0].Score, 1.0)
}

func TestScoreBreakdownSumsToScore(t *testing.T) {
	s := testScorer()
	req := core.NewRequest("calculate this")

	d := descriptor("a", core.CategoryCalculation, 0.8)
	candidates := s.Score(classification(core.CategoryCalculation), req, []*core.ExecutorDescriptor{d}, nil)
	require.Len(t, candidates, 1)

	br := candidates[0].Breakdown
	sum := br.Affinity + br.Privacy + br.Cost + br.Latency + br.Learned
	assert.InDelta(t, sum, candidates[0].Score, 1e-9)
}

func TestCostFit(t *testing.T) {
	assert.Equal(t, 1.0, costFit(0, 0))
	assert.InDelta(t, 0.5, costFit(0, 1.0), 1e-9)
	assert.InDelta(t, 0.75, costFit(10, 5), 1e-9)
	assert.InDelta(t, 0.25, costFit(10, 15), 1e-9)
	assert.Equal(t, 0.0, costFit(10, 30))
}

func TestLatencyFit(t *testing.T) {
	assert.Equal(t, 1.0, latencyFit(0, 0))
	assert.InDelta(t, 0.75, latencyFit(2*time.Second, time.Second), 1e-9)
	assert.Equal(t, 0.0, latencyFit(time.Second, 10*time.Second))
}

func TestComplexityFactorDampensUnderpoweredExecutors(t *testing.T) {
	assert.Equal(t, 1.0, complexityFactor(0.3, core.ComplexitySimple))
	assert.Less(t, complexityFactor(0.9, core.ComplexitySimple), 1.0)
	assert.Equal(t, 1.0, complexityFactor(0.9, core.ComplexityComplex))
}
