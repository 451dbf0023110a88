package analysis

import (
	"fmt"
	"strings"

	"resumeanalyzer/internal/config"
	"resumeanalyzer/internal/types"
)

// defaultGenerationPrompt is the built-in template for the content bundle.
// Placeholders: resume text, job description.
const defaultGenerationPrompt = `You are an expert resume coach and ATS specialist.

Given the resume and job description below, produce a JSON object with exactly
these keys and no others:
  "analysis": a detailed match analysis with these sections, each introduced by
    its header on its own line: "Match Score:" (a number from 0 to 100),
    "Strengths:", "Weaknesses:", "Missing Keywords:", "Suggestions:",
    "ATS Tips:". Use "- " to begin each bullet point.
  "rewrittenResume": the candidate's resume rewritten to be ATS-optimized for
    this job. Keep it truthful to the original experience.
  "coverLetter": a tailored cover letter for this job.

Rules:
- Respond with JSON only. No markdown fences, no commentary.
- Use plain ASCII characters only. No smart quotes, em dashes, bullets (use
  hyphens), or accented characters.
- Never use placeholder text such as "NAME HERE"; carry over the candidate's
  actual name and contact details from the resume.

Resume:
%s

Job description:
%s`

// plainTextReinforcement is appended on retry passes after a validation
// failure.
const plainTextReinforcement = `

IMPORTANT: a previous draft failed validation. The rewritten resume MUST:
- contain only plain ASCII text (tab, CR, LF and printable characters),
- open with the candidate's real name and contact details (email and phone)
  on the first lines,
- contain no placeholder text of any kind.`

// defaultValidationPrompt is the built-in template for self-validation.
// Placeholders: baseline score, job description, rewritten resume.
const defaultValidationPrompt = `You are a strict resume reviewer checking a rewritten resume before it is
returned to a paying user.

Check the resume below for all of the following:
- plain ASCII only (no smart quotes, em dashes, or special bullets),
- the candidate's name and contact details (email and phone) appear in the
  opening lines,
- clear section headers,
- bullet points describe measurable achievements.

The resume previously scored %d out of 100 against the job description below.
Estimate a new 0-100 match score for this version against that job
description.

Respond with a JSON object with exactly these keys:
  "validationSummary": one or two sentences summarizing your verdict,
  "improvedMatchScore": the new score as a number, or null if you cannot tell,
  "passesValidation": true only if every check above passes.

Respond with JSON only. No markdown fences, no commentary.

Job description:
%s

Resume:
%s`

// PromptBuilder assembles backend prompts, honoring configured overrides.
type PromptBuilder struct {
	cfg *config.Config
}

// NewPromptBuilder creates a prompt builder bound to the given configuration.
func NewPromptBuilder(cfg *config.Config) *PromptBuilder {
	return &PromptBuilder{cfg: cfg}
}

// GenerationPrompt builds the content-bundle prompt. When enforcePlainText is
// set (retry passes) the plain-text constraints are restated at the end.
func (b *PromptBuilder) GenerationPrompt(req types.AnalysisRequest, enforcePlainText bool) string {
	template := defaultGenerationPrompt
	if b.cfg != nil {
		template = b.cfg.ResolvePrompt(config.PromptGenerate, defaultGenerationPrompt)
	}
	prompt := fmt.Sprintf(template, req.ResumeText, req.JobDescription)
	if enforcePlainText {
		prompt += plainTextReinforcement
	}
	return prompt
}

// ValidationPrompt builds the self-validation prompt for a rewritten resume.
func (b *PromptBuilder) ValidationPrompt(rewrittenResume, jobDescription string, baselineScore int) string {
	template := defaultValidationPrompt
	if b.cfg != nil {
		template = b.cfg.ResolvePrompt(config.PromptValidate, defaultValidationPrompt)
	}
	return fmt.Sprintf(template, baselineScore,
		strings.TrimSpace(jobDescription), strings.TrimSpace(rewrittenResume))
}
