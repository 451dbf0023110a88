package analysis

import (
	"encoding/json"
	"math"
	"strings"

	"resumeanalyzer/internal/types"
)

// stripCodeFences removes a wrapping markdown code fence from model output.
// Models frequently wrap JSON in ```json ... ``` despite being told not to.
func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// extractJSONSpan returns the substring from the first '{' to the last '}',
// the usual salvage when a model surrounds its JSON with prose.
func extractJSONSpan(content string) (string, bool) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

// ParseAnalysisResponse extracts an AnalysisResult from raw model output.
// It first tries the trimmed content as-is, then the first-to-last brace
// span. A result is accepted only when all three fields are non-empty
// after trimming. Returns nil when nothing parseable is found; never errors.
func ParseAnalysisResponse(content string) *types.AnalysisResult {
	cleaned := stripCodeFences(content)

	if result := tryParseAnalysis(cleaned); result != nil {
		return result
	}

	if span, ok := extractJSONSpan(cleaned); ok {
		if result := tryParseAnalysis(span); result != nil {
			return result
		}
	}

	return nil
}

func tryParseAnalysis(candidate string) *types.AnalysisResult {
	var result types.AnalysisResult
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil
	}

	result.Analysis = strings.TrimSpace(result.Analysis)
	result.RewrittenResume = strings.TrimSpace(result.RewrittenResume)
	result.CoverLetter = strings.TrimSpace(result.CoverLetter)

	if result.Analysis == "" || result.RewrittenResume == "" || result.CoverLetter == "" {
		return nil
	}
	return &result
}

// ParseValidationResponse extracts a ValidationResult from raw model output
// using the same two-step strategy. A verdict is accepted only when the
// summary is non-empty, the improvedMatchScore key is present (a number in
// [0,100] or null), and passesValidation is a boolean. Returns nil on
// anything else; never errors.
func ParseValidationResponse(content string) *types.ValidationResult {
	cleaned := stripCodeFences(content)

	if result := tryParseValidation(cleaned); result != nil {
		return result
	}

	if span, ok := extractJSONSpan(cleaned); ok {
		if result := tryParseValidation(span); result != nil {
			return result
		}
	}

	return nil
}

func tryParseValidation(candidate string) *types.ValidationResult {
	// Decode to raw messages first: the improvedMatchScore key must be
	// present even when null, and passesValidation must be an actual
	// boolean, which a direct struct unmarshal cannot distinguish.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil
	}

	summaryRaw, ok := fields["validationSummary"]
	if !ok {
		return nil
	}
	var summary string
	if err := json.Unmarshal(summaryRaw, &summary); err != nil {
		return nil
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return nil
	}

	scoreRaw, ok := fields["improvedMatchScore"]
	if !ok {
		return nil
	}
	var score *int
	if string(scoreRaw) != "null" {
		// Models sometimes emit scores as floats; accept and round them.
		var f float64
		if err := json.Unmarshal(scoreRaw, &f); err != nil {
			return nil
		}
		n := int(math.Round(f))
		if n < 0 || n > 100 {
			return nil
		}
		score = &n
	}

	passesRaw, ok := fields["passesValidation"]
	if !ok {
		return nil
	}
	var passes bool
	if err := json.Unmarshal(passesRaw, &passes); err != nil {
		return nil
	}

	return &types.ValidationResult{
		ValidationSummary:  summary,
		ImprovedMatchScore: score,
		PassesValidation:   passes,
	}
}
