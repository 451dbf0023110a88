package analysis

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"resumeanalyzer/internal/config"
	"resumeanalyzer/internal/errors"
	"resumeanalyzer/internal/match"
	"resumeanalyzer/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var reportedScorePattern = regexp.MustCompile(`Match Score:\s*(\d{1,3})`)

// Orchestrator drives the generate-validate loop for one analysis request.
// It owns input sanitization, the baseline score, the bounded retry policy
// and the terminal failure; billing and transport concerns stay with the
// caller.
type Orchestrator struct {
	generator   *Generator
	validator   *Validator
	backend     Backend
	maxAttempts int
	logger      *errors.Logger
}

// NewOrchestrator wires the pipeline from a backend and configuration.
func NewOrchestrator(backend Backend, cfg *config.Config, logger *errors.Logger) *Orchestrator {
	maxAttempts := cfg.AI.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Orchestrator{
		generator:   NewGenerator(backend, cfg, logger),
		validator:   NewValidator(backend, cfg, logger),
		backend:     backend,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Analyze runs the full pipeline. On success the outcome always carries a
// passing validation; when every attempt fails validation the caller gets a
// VALIDATION_EXHAUSTED error and no partial result.
func (o *Orchestrator) Analyze(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisOutcome, error) {
	tracer := otel.Tracer("resumeanalyzer.analysis")
	ctx, span := tracer.Start(ctx, "analysis.analyze")
	defer span.End()

	req = SanitizeRequest(req)
	if req.ResumeText == "" || req.JobDescription == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidInput,
			"Both resumeText and jobDescription are required", nil)
	}

	span.SetAttributes(
		attribute.Int("input.resume_length", len(req.ResumeText)),
		attribute.Int("input.job_length", len(req.JobDescription)),
		attribute.Bool("backend.configured", o.backend.Configured()),
	)

	baselineReport := match.ScoreAndGaps(req.ResumeText, req.JobDescription)

	// Without a backend a retry cannot change the outcome, so one attempt.
	maxAttempts := o.maxAttempts
	if !o.backend.Configured() {
		maxAttempts = 1
	}

	var last types.GenerationAttempt
	baseline := baselineReport.Score
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		enforcePlainText := attempt > 1
		result := o.generator.Generate(ctx, req, enforcePlainText)

		// The baseline describes the original resume, so only the first
		// draft's analysis may refine it; retries never move it.
		if attempt == 1 {
			baseline = baselineScore(result.Analysis, baselineReport)
		}

		validation := o.validator.Validate(ctx, result.RewrittenResume, req.JobDescription, baseline)

		last = types.GenerationAttempt{
			Attempt:    attempt,
			Result:     result,
			Validation: validation,
		}

		if validation.PassesValidation {
			span.SetAttributes(
				attribute.Int("analysis.attempts", attempt),
				attribute.Int("analysis.baseline_score", baseline),
				attribute.Bool("success", true),
			)
			o.logger.Info("Analysis completed",
				"attempts", attempt,
				"baseline_score", baseline)
			return &types.AnalysisOutcome{
				Result:             result,
				Validation:         validation,
				BaselineMatchScore: baseline,
				Attempts:           attempt,
			}, nil
		}

		o.logger.Warn("Generated resume failed validation",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"summary", validation.ValidationSummary)
	}

	span.SetAttributes(
		attribute.Int("analysis.attempts", last.Attempt),
		attribute.Bool("success", false),
	)
	return nil, errors.NewInternalError(errors.ErrCodeValidationExhausted,
		"Could not produce a resume that passes validation", nil).
		WithContext("attempts", last.Attempt).
		WithContext("last_summary", last.Validation.ValidationSummary)
}

// baselineScore prefers the score the analysis text itself reports, clamped
// to [0,100]; absent that it uses the deterministic estimate.
func baselineScore(analysisText string, report types.MatchScoreGapReport) int {
	if m := reportedScorePattern.FindStringSubmatch(analysisText); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			if n < 0 {
				return 0
			}
			if n > 100 {
				return 100
			}
			return n
		}
	}
	return report.Score
}

// SanitizeRequest normalizes line endings, strips control characters other
// than tab and newline, and trims surrounding whitespace from both inputs.
func SanitizeRequest(req types.AnalysisRequest) types.AnalysisRequest {
	return types.AnalysisRequest{
		ResumeText:     sanitizeText(req.ResumeText),
		JobDescription: sanitizeText(req.JobDescription),
	}
}

func sanitizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\t' || r == '\n' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
