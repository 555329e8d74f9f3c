package discovery

import (
	"sort"
	"strings"

	"github.com/toolroute/toolroute/core"
)

// Match score factor weights. Platform priority keeps curated registries
// ahead of long-tail sources when textual overlap ties.
const (
	keywordWeight    = 0.4
	categoryWeight   = 0.2
	capabilityWeight = 0.2
	platformWeight   = 0.2
)

// platformPriority ranks discovery source platforms by curation quality.
var platformPriority = map[string]float64{
	"mcp.so":  1.0,
	"aci.dev": 0.9,
	"zapier":  0.8,
}

const defaultPlatformPriority = 0.5

// RankedDescriptor pairs a discovered executor with its match score.
type RankedDescriptor struct {
	Descriptor *core.ExecutorDescriptor
	Score      float64
}

// Ranker orders discovered executor descriptors by how well they match
// the request that triggered discovery.
type Ranker struct {
	limit  int
	logger core.Logger
}

// NewRanker creates a ranker returning at most limit candidates.
func NewRanker(limit int) *Ranker {
	if limit <= 0 {
		limit = 10
	}
	return &Ranker{
		limit:  limit,
		logger: &core.NoOpLogger{},
	}
}

// SetLogger sets the logger provider.
func (r *Ranker) SetLogger(logger core.Logger) {
	if logger == nil {
		r.logger = &core.NoOpLogger{}
	} else {
		r.logger = logger
	}
}

// Rank scores and orders discovered descriptors against the request.
// Descriptors with no textual or category relationship to the request
// still rank, carried by platform priority alone, so an empty result only
// happens when discovery itself returned nothing.
func (r *Ranker) Rank(cls *core.ClassificationResult, req *core.Request, found []*core.ExecutorDescriptor) []RankedDescriptor {
	if len(found) == 0 {
		return nil
	}

	reqTokens := tokenize(req.Text)

	ranked := make([]RankedDescriptor, 0, len(found))
	for _, d := range found {
		if d == nil || d.ID == "" {
			continue
		}
		score := keywordWeight*keywordOverlap(reqTokens, d) +
			categoryWeight*d.Affinity(cls.Category) +
			capabilityWeight*capabilityOverlap(reqTokens, d) +
			platformWeight*priorityFor(d.Platform)
		ranked = append(ranked, RankedDescriptor{Descriptor: d, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > r.limit {
		ranked = ranked[:r.limit]
	}

	r.logger.Debug("Ranked discovered executors", map[string]interface{}{
		"operation": "discovery_rank",
		"found":     len(found),
		"returned":  len(ranked),
		"category":  string(cls.Category),
	})
	return ranked
}

func priorityFor(platform string) float64 {
	if p, ok := platformPriority[strings.ToLower(platform)]; ok {
		return p
	}
	return defaultPlatformPriority
}

// keywordOverlap measures what fraction of request tokens appear in the
// descriptor's name or description.
func keywordOverlap(reqTokens map[string]struct{}, d *core.ExecutorDescriptor) float64 {
	if len(reqTokens) == 0 {
		return 0
	}
	descTokens := tokenize(d.Name + " " + d.Description)
	matched := 0
	for tok := range reqTokens {
		if _, ok := descTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(reqTokens))
}

// capabilityOverlap measures what fraction of the descriptor's capability
// tags match a request token.
func capabilityOverlap(reqTokens map[string]struct{}, d *core.ExecutorDescriptor) float64 {
	if len(d.Capabilities) == 0 {
		return 0
	}
	matched := 0
	for _, cap := range d.Capabilities {
		for _, part := range strings.Split(strings.ToLower(cap), "_") {
			if _, ok := reqTokens[part]; ok {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(d.Capabilities))
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		tok := strings.Trim(field, ".,!?;:\"'()[]")
		if len(tok) < 2 {
			continue
		}
		tokens[tok] = struct{}{}
	}
	return tokens
}
