// Package learning holds the long-lived learned state: per-executor
// weight records and success patterns keyed by coarse request features.
// The stores are read by the scorer through snapshots and written only
// by the outcome recorder.
package learning

import (
	"context"
	"fmt"
	"sync"

	"github.com/toolroute/toolroute/core"
)

// minPatternSamples is how many samples a pattern bucket needs before
// it starts influencing scoring.
const minPatternSamples = 3

// patternBoostRate scales how strongly a proven pattern lifts its
// primary executor's learned weight.
const patternBoostRate = 0.5

// patternSuccessFloor is the success rate a pattern must exceed to
// contribute a boost.
const patternSuccessFloor = 0.7

// PatternKey identifies a success-pattern bucket.
type PatternKey struct {
	Primary        string
	SecondaryCount int
	Bucket         core.FeatureBucket
}

// String returns a stable key form usable in maps and Redis.
func (k PatternKey) String() string {
	return fmt.Sprintf("%s:%d:%s", k.Primary, k.SecondaryCount, k.Bucket.Key())
}

// PatternStats are the running totals for one pattern bucket.
type PatternStats struct {
	Count        int64   `json:"count"`
	SuccessCount int64   `json:"success_count"`
	AvgScore     float64 `json:"avg_score"`
}

// SuccessRate returns the bucket's observed success rate.
func (p PatternStats) SuccessRate() float64 {
	if p.Count == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(p.Count)
}

// ExecutorStats aggregates per-executor outcomes.
type ExecutorStats struct {
	Total    int64   `json:"total"`
	Success  int64   `json:"success"`
	AvgScore float64 `json:"avg_score"`
}

// Stats is the aggregate view of the learned state.
type Stats struct {
	TotalRecords int64                     `json:"total_records"`
	Weights      map[string]float64        `json:"weights"`
	Executors    map[string]*ExecutorStats `json:"executors"`
	PatternCount int                       `json:"pattern_count"`
}

// Store is the learned-state persistence contract. It embeds the
// read-only LearnedState the scorer consumes; the mutating methods are
// called only by the Recorder (single-writer contract). Implementations
// must not lose concurrent updates: in-memory via a mutex, external
// stores via compare-and-swap.
type Store interface {
	core.LearnedState

	// ApplyWeight atomically transforms one executor's weight.
	ApplyWeight(ctx context.Context, executorID string, update func(current float64) float64) error
	// DecayAll applies one decay step to every known weight.
	DecayAll(ctx context.Context, decay func(current float64) float64) error
	// RecordPattern folds one sample into a pattern bucket.
	RecordPattern(ctx context.Context, key PatternKey, success bool, score float64) error
	// RecordExecutorOutcome folds one attempt into per-executor totals.
	RecordExecutorOutcome(ctx context.Context, executorID string, success bool, score float64) error
	// Stats returns the aggregate learned-state view.
	Stats(ctx context.Context) (*Stats, error)
}

// MemoryStore is the in-process Store implementation. A single mutex
// serializes writes; reads take the read lock and copy out.
type MemoryStore struct {
	mu       sync.RWMutex
	weights  map[string]float64
	patterns map[string]*PatternStats
	// patternKeys keeps the decoded key alongside the stats so
	// PatternBoost can match on primary and bucket without parsing.
	patternKeys map[string]PatternKey
	executors   map[string]*ExecutorStats
	records     int64
}

// NewMemoryStore creates an empty in-memory learned-state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		weights:     make(map[string]float64),
		patterns:    make(map[string]*PatternStats),
		patternKeys: make(map[string]PatternKey),
		executors:   make(map[string]*ExecutorStats),
	}
}

// Weight returns the learned multiplier for an executor, 1.0 when the
// executor has no history yet.
func (s *MemoryStore) Weight(executorID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if w, ok := s.weights[executorID]; ok {
		return w
	}
	return 1.0
}

// PatternBoost returns a multiplier above 1.0 when a well-sampled,
// high-success pattern exists for this executor and feature bucket.
func (s *MemoryStore) PatternBoost(executorID string, bucket core.FeatureBucket) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	boost := 1.0
	for keyStr, stats := range s.patterns {
		key := s.patternKeys[keyStr]
		if key.Primary != executorID || key.Bucket != bucket {
			continue
		}
		if stats.Count < minPatternSamples {
			continue
		}
		if rate := stats.SuccessRate(); rate > patternSuccessFloor {
			candidate := 1.0 + patternBoostRate*rate
			if candidate > boost {
				boost = candidate
			}
		}
	}
	return boost
}

// ApplyWeight atomically transforms one executor's weight.
func (s *MemoryStore) ApplyWeight(ctx context.Context, executorID string, update func(float64) float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.weights[executorID]
	if !ok {
		current = 1.0
	}
	s.weights[executorID] = update(current)
	return nil
}

// DecayAll applies one decay step to every known weight.
func (s *MemoryStore) DecayAll(ctx context.Context, decay func(float64) float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.weights {
		s.weights[id] = decay(w)
	}
	return nil
}

// RecordPattern folds one sample into a pattern bucket.
func (s *MemoryStore) RecordPattern(ctx context.Context, key PatternKey, success bool, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keyStr := key.String()
	stats, ok := s.patterns[keyStr]
	if !ok {
		stats = &PatternStats{}
		s.patterns[keyStr] = stats
		s.patternKeys[keyStr] = key
	}
	stats.Count++
	if success {
		stats.SuccessCount++
	}
	// Running average without storing samples
	stats.AvgScore += (score - stats.AvgScore) / float64(stats.Count)
	s.records++
	return nil
}

// RecordExecutorOutcome folds one attempt into per-executor totals.
func (s *MemoryStore) RecordExecutorOutcome(ctx context.Context, executorID string, success bool, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.executors[executorID]
	if !ok {
		stats = &ExecutorStats{}
		s.executors[executorID] = stats
	}
	stats.Total++
	if success {
		stats.Success++
	}
	stats.AvgScore += (score - stats.AvgScore) / float64(stats.Total)
	return nil
}

// Stats returns a copy of the aggregate learned-state view.
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &Stats{
		TotalRecords: s.records,
		Weights:      make(map[string]float64, len(s.weights)),
		Executors:    make(map[string]*ExecutorStats, len(s.executors)),
		PatternCount: len(s.patterns),
	}
	for id, w := range s.weights {
		out.Weights[id] = w
	}
	for id, es := range s.executors {
		copied := *es
		out.Executors[id] = &copied
	}
	return out, nil
}
