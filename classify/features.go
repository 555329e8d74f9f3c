package classify

import (
	"strings"

	"github.com/toolroute/toolroute/core"
)

// Term sets for the coarse feature bucket. The bilingual entries match
// the request corpus this engine serves.
var (
	searchTerms   = []string{"latest", "current", "search", "最新", "搜索"}
	calcTerms     = []string{"calculate", "compute", "計算"}
	analysisTerms = []string{"analyze", "compare", "分析", "比較"}
)

// ExtractBucket reduces request text to the coarse feature signature
// used for success-pattern bookkeeping.
func ExtractBucket(text string) core.FeatureBucket {
	lower := strings.ToLower(text)
	words := len(strings.Fields(text))

	lengthClass := "long"
	switch {
	case words < 10:
		lengthClass = "short"
	case words < 25:
		lengthClass = "medium"
	}

	return core.FeatureBucket{
		LengthClass:      lengthClass,
		HasSearchTerms:   containsAny(lower, searchTerms),
		HasCalcTerms:     containsAny(lower, calcTerms),
		HasAnalysisTerms: containsAny(lower, analysisTerms),
		Language:         detectLanguage(text),
	}
}

func containsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// detectLanguage reports "cjk" when the text contains CJK ideographs,
// "latin" otherwise.
func detectLanguage(text string) string {
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			return "cjk"
		}
	}
	return "latin"
}
