package types

// AnalysisRequest carries the sanitized inputs for one analysis run.
type AnalysisRequest struct {
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
}

// AnalysisResult is the content bundle produced by a single generation pass.
// All three fields are non-empty; the parser rejects anything less.
type AnalysisResult struct {
	Analysis        string `json:"analysis"`
	RewrittenResume string `json:"rewrittenResume"`
	CoverLetter     string `json:"coverLetter"`
}

// ValidationResult is the verdict on one rewritten resume.
// ImprovedMatchScore is nil when the validator could not produce a score.
type ValidationResult struct {
	ValidationSummary  string `json:"validationSummary"`
	ImprovedMatchScore *int   `json:"improvedMatchScore"`
	PassesValidation   bool   `json:"passesValidation"`
}

// MatchScoreGapReport is the deterministic keyword-overlap estimate.
// Keyword order follows first appearance in the job description;
// MissingKeywords holds at most the first ten gaps.
type MatchScoreGapReport struct {
	Score           int      `json:"score"`
	MatchedKeywords []string `json:"matchedKeywords"`
	MissingKeywords []string `json:"missingKeywords"`
}

// GenerationAttempt snapshots one iteration of the generate-validate loop.
type GenerationAttempt struct {
	Attempt    int
	Result     *AnalysisResult
	Validation *ValidationResult
}

// AnalyzeResponse is the successful HTTP response body for /api/analyze.
type AnalyzeResponse struct {
	Analysis           string `json:"analysis"`
	RewrittenResume    string `json:"rewrittenResume"`
	CoverLetter        string `json:"coverLetter"`
	ValidationSummary  string `json:"validationSummary"`
	ImprovedMatchScore *int   `json:"improvedMatchScore"`
	BaselineMatchScore int    `json:"baselineMatchScore"`
	CreditsRemaining   int    `json:"creditsRemaining"`
}

// AnalysisOutcome is what the orchestrator hands back to its callers.
type AnalysisOutcome struct {
	Result             *AnalysisResult
	Validation         *ValidationResult
	BaselineMatchScore int
	Attempts           int
}
