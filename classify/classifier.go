// Package classify turns raw request text into a task category with a
// confidence, matched feature tokens and a derived complexity estimate.
// Classification is a pure function of the text: identical input always
// yields identical output.
package classify

import (
	"regexp"
	"sort"
	"strings"

	"github.com/toolroute/toolroute/core"
)

const (
	keywordWeight = 1.0
	patternWeight = 2.0 // regex hits are stronger evidence than keywords
	lengthBonus   = 0.5
	antiPenalty   = 1.5

	// saturation is the raw score at which confidence reaches 1.0.
	saturation = 4.0
)

// categoryProfile holds the per-category matching tables.
type categoryProfile struct {
	category core.Category
	keywords []string
	patterns []*regexp.Regexp
	// minWords/maxWords is the expected word-count range; requests inside
	// it get a small bonus.
	minWords int
	maxWords int
	// antiIndicators penalize the category when present, to keep
	// near-miss categories apart (e.g. factual lookups that mention
	// academic terms belong to academic_paper).
	antiIndicators []string
}

// Classifier scores request text against the fixed category set.
type Classifier struct {
	profiles        []categoryProfile
	confidenceFloor float64
}

// NewClassifier builds a classifier with the default category tables.
func NewClassifier(confidenceFloor float64) *Classifier {
	return &Classifier{
		profiles:        buildProfiles(),
		confidenceFloor: confidenceFloor,
	}
}

func buildProfiles() []categoryProfile {
	return []categoryProfile{
		{
			category: core.CategoryFactualSearch,
			keywords: []string{
				"current", "latest", "recent", "record", "fact",
				"who is", "when did", "where is", "how much", "today", "now",
			},
			patterns: compile(
				`current.*record`,
				`latest\s+\w+`,
				`who is\s+\w+.*currently`,
				`world record`,
			),
			minWords:       5,
			maxWords:       25,
			antiIndicators: []string{"paper", "research", "journal", "arxiv", "university", "publication"},
		},
		{
			category: core.CategoryAcademicPaper,
			keywords: []string{
				"paper", "research", "study", "journal", "university",
				"academic", "scholar", "publication", "arxiv", "doi", "citation",
			},
			patterns: compile(
				`paper.*university`,
				`research.*study`,
				`journal.*article`,
				`academic.*publication`,
			),
			minWords:       10,
			maxWords:       50,
			antiIndicators: []string{"automate", "workflow"},
		},
		{
			category: core.CategoryAutomation,
			keywords: []string{
				"automate", "workflow", "process", "schedule", "integrate",
				"connect", "sync", "batch", "bulk", "trigger",
			},
			patterns: compile(
				`how to automate`,
				`workflow.*automation`,
				`automate.*process`,
			),
			minWords:       5,
			maxWords:       30,
			antiIndicators: []string{"paper", "research"},
		},
		{
			category: core.CategoryCalculation,
			keywords: []string{
				"calculate", "compute", "sum", "formula", "equation",
				"math", "solve", "result",
			},
			patterns: compile(
				`calculate.*\d+`,
				`\d+\s*[-+*/]\s*\d+`,
				`what is\s+\d+`,
				`solve.*equation`,
				`sum of`,
			),
			minWords: 3,
			maxWords: 30,
		},
		{
			category: core.CategoryComplexAnalysis,
			keywords: []string{
				"analyze", "compare", "evaluate", "assess", "examine",
				"contrast", "difference", "similarity", "advantages",
				"disadvantages", "pros", "cons",
			},
			patterns: compile(
				`analyze.*compare`,
				`advantages.*disadvantages`,
				`difference.*between`,
				`pros.*cons`,
			),
			minWords: 15,
			maxWords: 100,
		},
		{
			category: core.CategorySimpleQA,
			keywords: []string{"what is", "define", "explain", "describe", "meaning"},
			patterns: compile(
				`^what is\s+[a-z]`,
				`define\s+\w+`,
				`meaning of`,
			),
			minWords:       3,
			maxWords:       15,
			antiIndicators: []string{"analyze", "compare", "detailed", "comprehensive"},
		},
	}
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// Classify scores the text against every category profile and returns
// the winner, or "general" when no category clears the confidence floor.
func (c *Classifier) Classify(text string) core.ClassificationResult {
	lower := strings.ToLower(text)
	wordCount := len(strings.Fields(text))

	type catScore struct {
		category core.Category
		score    float64
		matched  []string
	}
	scores := make([]catScore, 0, len(c.profiles))

	for _, p := range c.profiles {
		var raw float64
		var matched []string

		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				raw += keywordWeight
				matched = append(matched, kw)
			}
		}
		for _, re := range p.patterns {
			if re.MatchString(lower) {
				raw += patternWeight
				matched = append(matched, re.String())
			}
		}
		if wordCount >= p.minWords && wordCount <= p.maxWords {
			raw += lengthBonus
		}
		for _, anti := range p.antiIndicators {
			if strings.Contains(lower, anti) {
				raw -= antiPenalty
			}
		}
		if raw < 0 {
			raw = 0
		}
		scores = append(scores, catScore{category: p.category, score: raw, matched: matched})
	}

	// Highest normalized score wins; ties break on the fixed category
	// priority order. The sort is stable by construction of the keys.
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return core.CategoryPriority(scores[i].category) < core.CategoryPriority(scores[j].category)
	})

	best := scores[0]
	confidence := best.score / saturation
	if confidence > 1 {
		confidence = 1
	}

	result := core.ClassificationResult{
		Category:   best.category,
		Confidence: confidence,
		Matched:    best.matched,
		Complexity: complexityEstimate(lower, wordCount),
		WordCount:  wordCount,
		Bucket:     ExtractBucket(text),
	}

	if confidence < c.confidenceFloor {
		result.Category = core.CategoryGeneral
	}
	return result
}

// complexityEstimate derives a [0,1] complexity score from length and
// content indicators.
func complexityEstimate(lower string, wordCount int) float64 {
	var complexity float64
	switch {
	case wordCount > 30:
		complexity += 0.3
	case wordCount > 15:
		complexity += 0.2
	case wordCount < 8:
		complexity += 0.1 // very short questions are often underspecified
	}

	indicators := []struct {
		term   string
		weight float64
	}{
		{"analyze", 0.2}, {"compare", 0.2}, {"evaluate", 0.2},
		{"detailed", 0.15}, {"comprehensive", 0.15},
		{"advantages", 0.1}, {"disadvantages", 0.1},
		{"multiple", 0.1}, {"various", 0.1},
	}
	for _, ind := range indicators {
		if strings.Contains(lower, ind.term) {
			complexity += ind.weight
		}
	}

	if complexity > 1 {
		complexity = 1
	}
	return complexity
}
