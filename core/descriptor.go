package core

import "time"

// Category is one of the fixed task categories a request can classify into.
type Category string

const (
	CategoryFactualSearch   Category = "factual_search"
	CategoryAcademicPaper   Category = "academic_paper"
	CategoryAutomation      Category = "automation"
	CategoryCalculation     Category = "calculation"
	CategoryComplexAnalysis Category = "complex_analysis"
	CategorySimpleQA        Category = "simple_qa"
	CategoryGeneral         Category = "general"
)

// categoryPriority is the fixed tie-break order used when two categories
// score identically during classification.
var categoryPriority = map[Category]int{
	CategoryFactualSearch:   0,
	CategoryAcademicPaper:   1,
	CategoryAutomation:      2,
	CategoryCalculation:     3,
	CategoryComplexAnalysis: 4,
	CategorySimpleQA:        5,
	CategoryGeneral:         6,
}

// CategoryPriority returns the tie-break rank for a category.
// Lower wins. Unknown categories rank last.
func CategoryPriority(c Category) int {
	if p, ok := categoryPriority[c]; ok {
		return p
	}
	return len(categoryPriority)
}

// Categories returns all classifiable categories in priority order,
// excluding the "general" fallback.
func Categories() []Category {
	return []Category{
		CategoryFactualSearch,
		CategoryAcademicPaper,
		CategoryAutomation,
		CategoryCalculation,
		CategoryComplexAnalysis,
		CategorySimpleQA,
	}
}

// ComplexityTier classifies how demanding an executor's workloads may be.
type ComplexityTier string

const (
	ComplexitySimple  ComplexityTier = "simple"
	ComplexityMedium  ComplexityTier = "medium"
	ComplexityComplex ComplexityTier = "complex"
)

// PrivacyTier describes how suitable an executor is for sensitive data,
// ordered from least to most suitable.
type PrivacyTier string

const (
	PrivacyPublicOnly   PrivacyTier = "public_only"
	PrivacyCloudManaged PrivacyTier = "cloud_managed"
	PrivacyRegional     PrivacyTier = "regional"
	PrivacyLocal        PrivacyTier = "local"
)

// privacyRank orders privacy tiers; higher is more suitable for
// sensitive data.
var privacyRank = map[PrivacyTier]int{
	PrivacyPublicOnly:   0,
	PrivacyCloudManaged: 1,
	PrivacyRegional:     2,
	PrivacyLocal:        3,
}

// PrivacyRank returns the ordering rank of a privacy tier.
func PrivacyRank(t PrivacyTier) int {
	if r, ok := privacyRank[t]; ok {
		return r
	}
	return 0
}

// ExecutorKind distinguishes the kinds of backends an executor can be.
// The routing core is kind-agnostic; the kind is metadata only.
type ExecutorKind string

const (
	KindLocalModel ExecutorKind = "local_model"
	KindCloudAPI   ExecutorKind = "cloud_api"
	KindAutomation ExecutorKind = "automation"
	KindDiscovered ExecutorKind = "discovered"
)

// ExecutorDescriptor is a registry entry describing one execution backend.
// Entries come from static configuration at startup and may be appended at
// runtime by the discovery adapter. They are never deleted mid-process,
// only marked inactive.
type ExecutorDescriptor struct {
	ID           string               `json:"id" yaml:"id"`
	Name         string               `json:"name" yaml:"name"`
	Kind         ExecutorKind         `json:"kind" yaml:"kind"`
	Affinities   map[Category]float64 `json:"affinities" yaml:"affinities"`
	Capabilities []string             `json:"capabilities" yaml:"capabilities"`
	Complexity   ComplexityTier       `json:"complexity" yaml:"complexity"`
	CostPerCall  float64              `json:"cost_per_call" yaml:"cost_per_call"`
	AvgLatencyMS int64                `json:"avg_latency_ms" yaml:"avg_latency_ms"`
	Privacy      PrivacyTier          `json:"privacy" yaml:"privacy"`
	// Platform is the source platform for discovered executors
	// (e.g. "mcp.so", "aci.dev", "zapier"). Empty for static entries.
	Platform     string    `json:"platform,omitempty" yaml:"platform,omitempty"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	// Active is managed by the registry; the catalog loader defaults it
	// to true for file entries that omit the flag.
	Active       bool      `json:"active" yaml:"-"`
	DiscoveredAt time.Time `json:"discovered_at,omitempty" yaml:"-"`
}

// AvgLatency returns the executor's average latency estimate.
func (d *ExecutorDescriptor) AvgLatency() time.Duration {
	return time.Duration(d.AvgLatencyMS) * time.Millisecond
}

// Affinity returns the executor's base affinity for a category (0 when
// the executor declares none).
func (d *ExecutorDescriptor) Affinity(c Category) float64 {
	return d.Affinities[c]
}

// HasCapability reports whether the executor declares a capability tag.
func (d *ExecutorDescriptor) HasCapability(tag string) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}
