package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/toolroute/toolroute/core"
)

func TestClassifyCategories(t *testing.T) {
	c := NewClassifier(0.3)

	tests := []struct {
		name     string
		text     string
		expected core.Category
	}{
		{
			name:     "arithmetic question",
			text:     "What is 15 + 27?",
			expected: core.CategoryCalculation,
		},
		{
			name:     "explicit calculation",
			text:     "Calculate the sum of 120 and 85",
			expected: core.CategoryCalculation,
		},
		{
			name:     "factual lookup",
			text:     "What is the current world record for the marathon?",
			expected: core.CategoryFactualSearch,
		},
		{
			name:     "academic search",
			text:     "Find the research paper on transformer architectures published by Stanford University in a peer reviewed journal",
			expected: core.CategoryAcademicPaper,
		},
		{
			name:     "automation request",
			text:     "How to automate my weekly report generation workflow",
			expected: core.CategoryAutomation,
		},
		{
			name:     "definition question",
			text:     "What is photosynthesis?",
			expected: core.CategorySimpleQA,
		},
		{
			name:     "no signal falls back to general",
			text:     "hmm",
			expected: core.CategoryGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.text)
			assert.Equal(t, tt.expected, result.Category, "matched: %v", result.Matched)
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier(0.3)
	text := "Compare the advantages and disadvantages of microservices versus monolithic architectures and analyze which suits a small team better"

	first := c.Classify(text)
	for i := 0; i < 10; i++ {
		again := c.Classify(text)
		assert.Equal(t, first.Category, again.Category)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Equal(t, first.Matched, again.Matched)
	}
	assert.Equal(t, core.CategoryComplexAnalysis, first.Category)
}

func TestClassifyAntiIndicators(t *testing.T) {
	c := NewClassifier(0.3)

	// Mentions "latest" but the academic vocabulary should keep this
	// out of factual_search.
	result := c.Classify("Find the latest research paper from MIT on quantum error correction published in a journal")
	assert.Equal(t, core.CategoryAcademicPaper, result.Category)
}

func TestClassifyConfidenceBounds(t *testing.T) {
	c := NewClassifier(0.3)

	result := c.Classify("Calculate 2 + 2 and solve the equation x + 1 = 3, what is the sum of the results")
	assert.Equal(t, core.CategoryCalculation, result.Category)
	assert.LessOrEqual(t, result.Confidence, 1.0)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
}

func TestComplexityEstimate(t *testing.T) {
	c := NewClassifier(0.3)

	short := c.Classify("What is DNS?")
	long := c.Classify("Analyze and compare multiple deployment strategies in detail, evaluate the advantages and disadvantages of each, and produce a comprehensive recommendation covering various operational concerns for a regulated environment")

	assert.Greater(t, long.Complexity, short.Complexity)
	assert.LessOrEqual(t, long.Complexity, 1.0)
}

func TestExtractBucket(t *testing.T) {
	t.Run("short latin with calc terms", func(t *testing.T) {
		b := ExtractBucket("Calculate 15 + 27")
		assert.Equal(t, "short", b.LengthClass)
		assert.True(t, b.HasCalcTerms)
		assert.False(t, b.HasSearchTerms)
		assert.Equal(t, "latin", b.Language)
	})

	t.Run("cjk detection", func(t *testing.T) {
		b := ExtractBucket("幫我搜索最新的匯率資料")
		assert.Equal(t, "cjk", b.Language)
		assert.True(t, b.HasSearchTerms)
	})

	t.Run("bucket key is stable", func(t *testing.T) {
		a := ExtractBucket("analyze this for me please")
		b := ExtractBucket("analyze this for me please")
		assert.Equal(t, a.Key(), b.Key())
	})

	t.Run("length classes", func(t *testing.T) {
		medium := ExtractBucket("one two three four five six seven eight nine ten eleven")
		assert.Equal(t, "medium", medium.LengthClass)
	})
}
