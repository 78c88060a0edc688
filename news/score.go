package news

import (
	"strings"
	"unicode"

	"github.com/ronguha/hedge-fund-agent/models"
)

// SearchTrustedRelevance is assigned to articles coming from a provider that
// already ranked them (relevancy sort upstream), instead of recomputing.
const SearchTrustedRelevance = 0.8

// overlapSaturation is the hit count at which keyword-overlap scoring
// saturates to 1.0.
const overlapSaturation = 5

// maxSummaryRunes bounds the downstream payload size of article summaries.
const maxSummaryRunes = 200

// QueryTerms lowers and tokenizes the scenario description and appends the
// instrument symbols, forming the term set used for keyword-overlap scoring.
func (q Query) QueryTerms() []string {
	terms := strings.FieldsFunc(strings.ToLower(q.ScenarioDescription), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '&'
	})
	for _, inst := range q.Instruments {
		if inst = strings.ToLower(strings.TrimSpace(inst)); inst != "" {
			terms = append(terms, inst)
		}
	}
	return terms
}

// ScoreByOverlap counts case-insensitive term hits inside title+summary and
// normalizes by the saturation constant, clamped to 1.0. Zero hits means the
// article is irrelevant and must be dropped by the caller, not scored.
func ScoreByOverlap(article models.NewsArticle, terms []string) float64 {
	text := strings.ToLower(article.Title + " " + article.Summary)
	hits := 0
	for _, term := range terms {
		if term != "" && strings.Contains(text, term) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	return models.Clamp01(float64(hits) / overlapSaturation)
}

// TruncateSummary bounds a summary to the shared payload limit, respecting
// rune boundaries.
func TruncateSummary(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxSummaryRunes {
		return s
	}
	return string(runes[:maxSummaryRunes])
}
