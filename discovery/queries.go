// Package discovery builds search queries for the external discovery
// collaborator and ranks the executor descriptors it returns. It is only
// consulted when the registry's own executors have been exhausted.
package discovery

import (
	"fmt"
	"strings"

	"github.com/toolroute/toolroute/core"
)

// maxQueryTopicWords bounds the topic substituted into query templates.
const maxQueryTopicWords = 4

// categoryTemplates maps each task category to the search query templates
// used against discovery platforms. %s receives the request topic.
var categoryTemplates = map[core.Category][]string{
	core.CategoryFactualSearch: {
		"real-time web search tool for %s",
		"news and fact lookup service %s",
	},
	core.CategoryAcademicPaper: {
		"academic paper search API %s",
		"scholarly literature retrieval tool %s",
	},
	core.CategoryAutomation: {
		"workflow automation connector for %s",
		"task automation integration %s",
	},
	core.CategoryCalculation: {
		"calculation and math evaluation service %s",
		"data computation tool %s",
	},
	core.CategoryComplexAnalysis: {
		"analysis and reasoning service for %s",
		"report generation tool %s",
	},
	core.CategorySimpleQA: {
		"question answering service %s",
	},
	core.CategoryGeneral: {
		"general purpose assistant tool %s",
	},
}

// BuildQueries generates category-specific search queries with the
// request's extracted topic substituted in. At least one query is always
// returned so the adapter is never called with nothing to search for.
func BuildQueries(cls *core.ClassificationResult, req *core.Request) []string {
	topic := extractTopic(cls, req)

	templates, ok := categoryTemplates[cls.Category]
	if !ok {
		templates = categoryTemplates[core.CategoryGeneral]
	}

	queries := make([]string, 0, len(templates))
	for _, tpl := range templates {
		queries = append(queries, strings.TrimSpace(fmt.Sprintf(tpl, topic)))
	}
	return queries
}

// extractTopic prefers the classifier's matched tokens; when classification
// fell through to general, the leading request words stand in.
func extractTopic(cls *core.ClassificationResult, req *core.Request) string {
	if len(cls.Matched) > 0 {
		n := len(cls.Matched)
		if n > maxQueryTopicWords {
			n = maxQueryTopicWords
		}
		return strings.Join(cls.Matched[:n], " ")
	}

	words := strings.Fields(req.Text)
	if len(words) > maxQueryTopicWords {
		words = words[:maxQueryTopicWords]
	}
	return strings.Join(words, " ")
}
