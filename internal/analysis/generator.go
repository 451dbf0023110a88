package analysis

import (
	"context"

	"resumeanalyzer/internal/config"
	"resumeanalyzer/internal/errors"
	"resumeanalyzer/internal/match"
	"resumeanalyzer/internal/types"
)

// Generator produces one content bundle per call, preferring the generative
// backend and guaranteeing a result via the mock builder.
type Generator struct {
	backend Backend
	prompts *PromptBuilder
	logger  *errors.Logger
}

// NewGenerator creates a generator using the given backend.
func NewGenerator(backend Backend, cfg *config.Config, logger *errors.Logger) *Generator {
	return &Generator{
		backend: backend,
		prompts: NewPromptBuilder(cfg),
		logger:  logger,
	}
}

// Generate produces a content bundle for the request. When the backend is
// configured it is called once; any transport or parse failure is logged and
// the deterministic mock bundle is returned instead. Generate never errors.
// enforcePlainText restates the plain-text constraints on retry passes.
func (g *Generator) Generate(ctx context.Context, req types.AnalysisRequest, enforcePlainText bool) *types.AnalysisResult {
	if g.backend.Configured() {
		prompt := g.prompts.GenerationPrompt(req, enforcePlainText)
		raw, err := g.backend.Complete(ctx, prompt)
		if err == nil {
			if result := ParseAnalysisResponse(raw); result != nil {
				return result
			}
			g.logger.Warn("Unparseable generation response, falling back to mock content",
				"response_length", len(raw))
		} else {
			g.logger.LogError(err, "Backend generation failed, falling back to mock content")
		}
	}

	report := match.ScoreAndGaps(req.ResumeText, req.JobDescription)
	return BuildMockResult(req, report)
}
