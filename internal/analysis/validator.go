package analysis

import (
	"context"
	"regexp"
	"strings"

	"resumeanalyzer/internal/config"
	"resumeanalyzer/internal/errors"
	"resumeanalyzer/internal/match"
	"resumeanalyzer/internal/types"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)
)

// Validator checks a rewritten resume, preferring the generative backend's
// judgment and falling back to deterministic checks when the backend is
// unavailable or its verdict is unusable.
type Validator struct {
	backend Backend
	prompts *PromptBuilder
	logger  *errors.Logger
}

// NewValidator creates a validator using the given backend.
func NewValidator(backend Backend, cfg *config.Config, logger *errors.Logger) *Validator {
	return &Validator{
		backend: backend,
		prompts: NewPromptBuilder(cfg),
		logger:  logger,
	}
}

// Validate checks the rewritten resume against the job description. An empty
// or whitespace-only resume fails immediately without a backend call. Backend
// or parse failures fall back to the deterministic checks; Validate itself
// never errors.
func (v *Validator) Validate(ctx context.Context, rewrittenResume, jobDescription string, baselineScore int) *types.ValidationResult {
	if strings.TrimSpace(rewrittenResume) == "" {
		score := baselineScore
		return &types.ValidationResult{
			ValidationSummary:  "The rewritten resume is empty.",
			ImprovedMatchScore: &score,
			PassesValidation:   false,
		}
	}

	if v.backend.Configured() {
		prompt := v.prompts.ValidationPrompt(rewrittenResume, jobDescription, baselineScore)
		raw, err := v.backend.Complete(ctx, prompt)
		if err == nil {
			if result := ParseValidationResponse(raw); result != nil {
				return result
			}
			v.logger.Warn("Unparseable validation response, using deterministic checks",
				"response_length", len(raw))
		} else {
			v.logger.LogError(err, "Backend validation failed, using deterministic checks")
		}
	}

	return v.deterministicValidate(rewrittenResume, jobDescription)
}

// deterministicValidate applies the offline quality checks. The improved
// score is re-estimated from the rewritten resume, not carried over from the
// original.
func (v *Validator) deterministicValidate(rewrittenResume, jobDescription string) *types.ValidationResult {
	issues := DeterministicIssues(rewrittenResume)
	score := match.ScoreAndGaps(rewrittenResume, jobDescription).Score

	if len(issues) > 0 {
		return &types.ValidationResult{
			ValidationSummary:  "Validation found issues: " + strings.Join(issues, "; ") + ".",
			ImprovedMatchScore: &score,
			PassesValidation:   false,
		}
	}

	return &types.ValidationResult{
		ValidationSummary:  "The rewritten resume passed all automated checks.",
		ImprovedMatchScore: &score,
		PassesValidation:   true,
	}
}

// DeterministicIssues returns the list of offline quality problems found in
// a rewritten resume. An empty list means the resume passes.
func DeterministicIssues(rewrittenResume string) []string {
	var issues []string

	if hasNonASCII(rewrittenResume) {
		issues = append(issues, "contains non-ASCII characters")
	}
	if strings.Contains(strings.ToLower(rewrittenResume), "name here") {
		issues = append(issues, "contains placeholder text instead of a real name")
	}
	if !emailPattern.MatchString(rewrittenResume) {
		issues = append(issues, "no email address found")
	}
	if !phonePattern.MatchString(rewrittenResume) {
		issues = append(issues, "no phone number found")
	}

	return issues
}

// hasNonASCII reports whether the text contains bytes outside tab, CR, LF
// and the printable ASCII range 0x20-0x7E.
func hasNonASCII(text string) bool {
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\t', c == '\r', c == '\n':
		case c >= 0x20 && c <= 0x7E:
		default:
			return true
		}
	}
	return false
}
