package analysis

import (
	"context"
	"strings"
	"testing"

	"resumeanalyzer/internal/match"
)

func TestValidateEmptyResumeFailsFast(t *testing.T) {
	backend := &fakeBackend{configured: true}
	v := NewValidator(backend, testConfig(), testLogger())

	for _, resume := range []string{"", "   ", "\n\t\n"} {
		result := v.Validate(context.Background(), resume, "python docker", 42)
		if result.PassesValidation {
			t.Errorf("Validate(%q) passed, want failure", resume)
		}
		if result.ImprovedMatchScore == nil || *result.ImprovedMatchScore != 42 {
			t.Errorf("Validate(%q) score = %v, want baseline 42", resume, result.ImprovedMatchScore)
		}
	}

	if backend.calls != 0 {
		t.Errorf("backend calls = %d, want 0 for empty resumes", backend.calls)
	}
}

func TestDeterministicIssues(t *testing.T) {
	tests := []struct {
		name       string
		resume     string
		wantIssues int
	}{
		{
			name:       "clean resume",
			resume:     "Jane Doe\njane@example.com | (555) 123-4567\nExperience",
			wantIssues: 0,
		},
		{
			name:       "smart quotes are non-ascii",
			resume:     "Jane Doe — Engineer\njane@example.com | (555) 123-4567",
			wantIssues: 1,
		},
		{
			name:       "placeholder name",
			resume:     "NAME HERE\njane@example.com | (555) 123-4567",
			wantIssues: 1,
		},
		{
			name:       "placeholder name lowercase",
			resume:     "name here\njane@example.com | (555) 123-4567",
			wantIssues: 1,
		},
		{
			name:       "missing email",
			resume:     "Jane Doe\n(555) 123-4567",
			wantIssues: 1,
		},
		{
			name:       "missing phone",
			resume:     "Jane Doe\njane@example.com",
			wantIssues: 1,
		},
		{
			name:       "everything wrong",
			resume:     "Résumé of NAME HERE",
			wantIssues: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := DeterministicIssues(tt.resume)
			if len(issues) != tt.wantIssues {
				t.Errorf("DeterministicIssues() = %v (%d issues), want %d",
					issues, len(issues), tt.wantIssues)
			}
		})
	}
}

func TestDeterministicIssuesAllowsTabsAndNewlines(t *testing.T) {
	resume := "Jane Doe\r\n\tjane@example.com | (555) 123-4567"
	if issues := DeterministicIssues(resume); len(issues) != 0 {
		t.Errorf("tab/CR/LF flagged as non-ASCII: %v", issues)
	}
}

func TestValidateUnparseableBackendFallsBack(t *testing.T) {
	backend := &fakeBackend{
		configured: true,
		respond: func(prompt string) (string, error) {
			return "sure, the resume looks fine to me!", nil
		},
	}
	v := NewValidator(backend, testConfig(), testLogger())

	// validResume mentions "experience" and "shipped" but not "kubernetes",
	// so re-estimating it against this job yields 50, not the baseline.
	result := v.Validate(context.Background(), validResume, "experience shipped kubernetes nothing", 55)
	if !result.PassesValidation {
		t.Errorf("deterministic fallback failed a clean resume: %s", result.ValidationSummary)
	}
	want := match.ScoreAndGaps(validResume, "experience shipped kubernetes nothing").Score
	if result.ImprovedMatchScore == nil || *result.ImprovedMatchScore != want {
		t.Errorf("fallback score = %v, want re-estimated %d", result.ImprovedMatchScore, want)
	}
	if result.ImprovedMatchScore != nil && *result.ImprovedMatchScore == 55 {
		t.Error("fallback score must come from the rewritten resume, not the baseline")
	}
	if backend.calls != 1 {
		t.Errorf("backend calls = %d, want 1", backend.calls)
	}
}

func TestValidateFallbackScoresRewrittenResume(t *testing.T) {
	v := NewValidator(NullBackend{}, testConfig(), testLogger())

	// The rewritten resume covers every job keyword even though the
	// original (baseline 0) covered none.
	rewritten := "Jane Doe\njane@example.com | (555) 123-4567\n\nCore Skills\n- golang, kubernetes, terraform"
	result := v.Validate(context.Background(), rewritten, "golang kubernetes terraform", 0)
	if !result.PassesValidation {
		t.Fatalf("clean resume failed fallback validation: %s", result.ValidationSummary)
	}
	if result.ImprovedMatchScore == nil || *result.ImprovedMatchScore != 100 {
		t.Errorf("ImprovedMatchScore = %v, want 100 from the rewritten resume", result.ImprovedMatchScore)
	}
}

func TestValidateUsesBackendVerdict(t *testing.T) {
	backend := &fakeBackend{
		configured: true,
		respond: func(prompt string) (string, error) {
			// Deterministic checks would fail this resume; the backend verdict wins.
			return `{"validationSummary":"Approved.","improvedMatchScore":90,"passesValidation":true}`, nil
		},
	}
	v := NewValidator(backend, testConfig(), testLogger())

	result := v.Validate(context.Background(), "no contact details at all", "python docker", 10)
	if !result.PassesValidation {
		t.Error("backend verdict not honored")
	}
	if result.ImprovedMatchScore == nil || *result.ImprovedMatchScore != 90 {
		t.Errorf("score = %v, want 90", result.ImprovedMatchScore)
	}
}

func TestValidationPromptCarriesJobDescription(t *testing.T) {
	job := "We need deep kubernetes and terraform experience."
	var prompt string
	backend := &fakeBackend{
		configured: true,
		respond: func(p string) (string, error) {
			prompt = p
			return `{"validationSummary":"ok","improvedMatchScore":80,"passesValidation":true}`, nil
		},
	}
	v := NewValidator(backend, testConfig(), testLogger())

	v.Validate(context.Background(), validResume, job, 30)
	if !strings.Contains(prompt, job) {
		t.Error("validation prompt does not include the job description")
	}
	if !strings.Contains(prompt, "30 out of 100") {
		t.Error("validation prompt does not reference the baseline score")
	}
}
