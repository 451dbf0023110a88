// Package match implements the deterministic keyword-overlap estimator used
// as the baseline match score and as the validation fallback score.
package match

import (
	"math"
	"regexp"
	"strings"

	"resumeanalyzer/internal/types"
)

var tokenPattern = regexp.MustCompile(`[a-z]{4,}`)

// stopwords are frequent filler tokens excluded from keyword extraction.
var stopwords = map[string]struct{}{
	"with": {},
	"have": {},
	"this": {},
	"that": {},
	"from": {},
}

const maxMissingKeywords = 10

// ExtractKeywords lowercases the text, pulls alphabetic runs of four or more
// characters, drops stopwords, and dedupes while keeping first-seen order.
func ExtractKeywords(text string) []string {
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)

	seen := make(map[string]struct{}, len(tokens))
	keywords := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, skip := stopwords[tok]; skip {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		keywords = append(keywords, tok)
	}
	return keywords
}

// ScoreAndGaps scores resumeText against the keywords of jobDescription.
// A keyword counts as matched when it appears as a substring of the
// lowercased resume. The score is the matched percentage rounded to the
// nearest integer and clamped to [0,100]; no keywords means score 0.
func ScoreAndGaps(resumeText, jobDescription string) types.MatchScoreGapReport {
	keywords := ExtractKeywords(jobDescription)
	if len(keywords) == 0 {
		return types.MatchScoreGapReport{
			Score:           0,
			MatchedKeywords: []string{},
			MissingKeywords: []string{},
		}
	}

	haystack := strings.ToLower(resumeText)
	matched := make([]string, 0, len(keywords))
	missing := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			matched = append(matched, kw)
		} else {
			missing = append(missing, kw)
		}
	}

	score := int(math.Round(100 * float64(len(matched)) / float64(len(keywords))))
	if score < 0 {
		score = 0
	} else if score > 100 {
		score = 100
	}

	if len(missing) > maxMissingKeywords {
		missing = missing[:maxMissingKeywords]
	}

	return types.MatchScoreGapReport{
		Score:           score,
		MatchedKeywords: matched,
		MissingKeywords: missing,
	}
}
