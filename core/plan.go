package core

import (
	"fmt"
	"time"
)

// FeatureBucket is the coarse feature signature used to key success
// patterns. It deliberately loses detail: patterns learned on one
// request should transfer to requests that merely look similar.
type FeatureBucket struct {
	LengthClass      string `json:"length_class"` // short | medium | long
	HasSearchTerms   bool   `json:"has_search_terms"`
	HasCalcTerms     bool   `json:"has_calc_terms"`
	HasAnalysisTerms bool   `json:"has_analysis_terms"`
	Language         string `json:"language"` // latin | cjk
}

// Key returns a stable string form usable as a map or Redis key.
func (b FeatureBucket) Key() string {
	return fmt.Sprintf("%s:%t:%t:%t:%s",
		b.LengthClass, b.HasSearchTerms, b.HasCalcTerms, b.HasAnalysisTerms, b.Language)
}

// ClassificationResult is the classifier's output for one request.
// Computed fresh per request; never persisted.
type ClassificationResult struct {
	Category   Category      `json:"category"`
	Confidence float64       `json:"confidence"`
	Matched    []string      `json:"matched,omitempty"` // feature tokens that fired
	Complexity float64       `json:"complexity"`        // derived estimate in [0,1]
	WordCount  int           `json:"word_count"`
	Bucket     FeatureBucket `json:"bucket"`
}

// ScoreBreakdown records the per-factor contributions of a candidate's
// composite score, each already weighted.
type ScoreBreakdown struct {
	Affinity float64 `json:"affinity"`
	Privacy  float64 `json:"privacy"`
	Cost     float64 `json:"cost"`
	Latency  float64 `json:"latency"`
	Learned  float64 `json:"learned"`
}

// ScoredCandidate pairs an executor with its composite score for one
// request. Ephemeral; recomputed per request.
type ScoredCandidate struct {
	ExecutorID string         `json:"executor_id"`
	Category   Category       `json:"category"`
	Score      float64        `json:"score"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	// CostPerCall is carried for tie-breaking (lower cost wins ties).
	CostPerCall float64 `json:"cost_per_call"`
}

// Strategy is how primary and secondary executors' results combine.
type Strategy string

const (
	StrategySequential      Strategy = "sequential"
	StrategyParallelCompare Strategy = "parallel_compare"
	StrategyVerification    Strategy = "verification"
	StrategyEnhancement     Strategy = "enhancement"
)

// ExecutionBand labels how much backup a plan's confidence warrants.
type ExecutionBand string

const (
	BandDirect            ExecutionBand = "direct"
	BandMonitored         ExecutionBand = "monitored"
	BandBackupReady       ExecutionBand = "backup_ready"
	BandImmediateFallback ExecutionBand = "immediate_fallback"
)

// RoutingPlan is the router's output: one plan per request, immutable
// once constructed, consumed by the cascade.
type RoutingPlan struct {
	Primary     string        `json:"primary"`
	Secondaries []string      `json:"secondaries,omitempty"` // max 2
	Order       []string      `json:"order"`
	Strategy    Strategy      `json:"strategy"`
	Confidence  float64       `json:"confidence"`
	Band        ExecutionBand `json:"band"`
	Category    Category      `json:"category"`
}

// Outcome classifies the result quality of a single execution attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

// ExecutionAttempt is one entry in a request's append-only attempt log.
// Attempts are never mutated after being recorded.
type ExecutionAttempt struct {
	RequestID  string        `json:"request_id"`
	Tier       int           `json:"tier"`
	ExecutorID string        `json:"executor_id"`
	Outcome    Outcome       `json:"outcome"`
	Score      float64       `json:"score"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// FinalStatus is the terminal state of a cascade.
type FinalStatus string

const (
	StatusSuccess   FinalStatus = "success"
	StatusExhausted FinalStatus = "exhausted"
)

// RoutingOutcome is what the caller always receives: the terminal status,
// the full attempt chain, and aggregate cost/latency. On exhaustion the
// chain is the primary diagnostic artifact.
type RoutingOutcome struct {
	RequestID    string             `json:"request_id"`
	Status       FinalStatus        `json:"status"`
	Attempts     []ExecutionAttempt `json:"attempts"`
	Winner       string             `json:"winner,omitempty"`
	Category     Category           `json:"category"`
	Confidence   float64            `json:"confidence"`
	TotalCost    float64            `json:"total_cost"`
	TotalLatency time.Duration      `json:"total_latency"`
}
