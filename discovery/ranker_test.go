package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolroute/toolroute/core"
)

func descriptor(id, platform, description string, caps ...string) *core.ExecutorDescriptor {
	return &core.ExecutorDescriptor{
		ID:           id,
		Name:         id,
		Platform:     platform,
		Description:  description,
		Capabilities: caps,
		Active:       true,
	}
}

func TestBuildQueriesSubstitutesTopic(t *testing.T) {
	cls := &core.ClassificationResult{
		Category: core.CategoryCalculation,
		Matched:  []string{"calculate", "sum"},
	}
	queries := BuildQueries(cls, core.NewRequest("calculate the sum of these invoices"))

	require.NotEmpty(t, queries)
	for _, q := range queries {
		assert.Contains(t, q, "calculate sum")
	}
}

func TestBuildQueriesFallsBackToRequestWords(t *testing.T) {
	cls := &core.ClassificationResult{Category: core.CategoryGeneral}
	queries := BuildQueries(cls, core.NewRequest("translate this contract into German"))

	require.NotEmpty(t, queries)
	assert.Contains(t, queries[0], "translate this contract into")
}

func TestBuildQueriesUnknownCategoryUsesGeneral(t *testing.T) {
	cls := &core.ClassificationResult{Category: core.Category("bogus")}
	queries := BuildQueries(cls, core.NewRequest("do something"))
	require.Len(t, queries, len(categoryTemplates[core.CategoryGeneral]))
}

func TestRankPlatformPriorityBreaksTies(t *testing.T) {
	r := NewRanker(10)
	cls := &core.ClassificationResult{Category: core.CategoryFactualSearch}
	req := core.NewRequest("something unrelated to either tool")

	ranked := r.Rank(cls, req, []*core.ExecutorDescriptor{
		descriptor("long-tail", "randomhub", ""),
		descriptor("curated", "mcp.so", ""),
		descriptor("zap", "zapier", ""),
	})
	require.Len(t, ranked, 3)
	assert.Equal(t, "curated", ranked[0].Descriptor.ID)
	assert.Equal(t, "zap", ranked[1].Descriptor.ID)
	assert.Equal(t, "long-tail", ranked[2].Descriptor.ID)
}

func TestRankKeywordOverlapOutweighsPlatform(t *testing.T) {
	r := NewRanker(10)
	cls := &core.ClassificationResult{Category: core.CategoryFactualSearch}
	req := core.NewRequest("search current currency exchange rates")

	relevant := descriptor("fx-search", "randomhub", "search current currency exchange rates in real time", "search")
	generic := descriptor("generic", "mcp.so", "image generation service")

	ranked := r.Rank(cls, req, []*core.ExecutorDescriptor{generic, relevant})
	require.Len(t, ranked, 2)
	assert.Equal(t, "fx-search", ranked[0].Descriptor.ID)
}

func TestRankRespectsLimit(t *testing.T) {
	r := NewRanker(2)
	cls := &core.ClassificationResult{Category: core.CategoryFactualSearch}
	req := core.NewRequest("anything")

	ranked := r.Rank(cls, req, []*core.ExecutorDescriptor{
		descriptor("a", "", ""),
		descriptor("b", "", ""),
		descriptor("c", "", ""),
	})
	assert.Len(t, ranked, 2)
}

func TestRankSkipsNilAndEmptyDescriptors(t *testing.T) {
	r := NewRanker(10)
	cls := &core.ClassificationResult{Category: core.CategoryFactualSearch}

	ranked := r.Rank(cls, core.NewRequest("anything"), []*core.ExecutorDescriptor{
		nil,
		{},
		descriptor("ok", "mcp.so", ""),
	})
	require.Len(t, ranked, 1)
	assert.Equal(t, "ok", ranked[0].Descriptor.ID)
}

func TestRankEmptyInput(t *testing.T) {
	r := NewRanker(10)
	cls := &core.ClassificationResult{Category: core.CategoryFactualSearch}
	assert.Nil(t, r.Rank(cls, core.NewRequest("anything"), nil))
}
