package analysis

import (
	"strings"
	"testing"

	"resumeanalyzer/internal/match"
	"resumeanalyzer/internal/types"
)

func TestInferRoleName(t *testing.T) {
	tests := []struct {
		name string
		job  string
		want string
	}{
		{
			name: "labeled title line",
			job:  "About us\nTitle: Senior Platform Engineer\nWe build things.",
			want: "Senior Platform Engineer",
		},
		{
			name: "role label with dash",
			job:  "Role - Backend Developer\nRequirements follow.",
			want: "Backend Developer",
		},
		{
			name: "position label case-insensitive",
			job:  "POSITION: Data Analyst",
			want: "Data Analyst",
		},
		{
			name: "first short line fallback",
			job:  "Software Engineer\nWe are looking for someone great.",
			want: "Software Engineer",
		},
		{
			name: "long first line skipped",
			job:  strings.Repeat("x", 120) + "\nStaff Engineer\nmore text",
			want: "Staff Engineer",
		},
		{
			name: "generic fallback",
			job:  strings.Repeat("y", 200),
			want: "this role",
		},
		{
			name: "empty input",
			job:  "",
			want: "this role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferRoleName(tt.job); got != tt.want {
				t.Errorf("InferRoleName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildMockResultComplete(t *testing.T) {
	req := types.AnalysisRequest{
		ResumeText:     "react developer with five years of experience",
		JobDescription: "Title: Frontend Engineer\nreact typescript agile",
	}
	report := match.ScoreAndGaps(req.ResumeText, req.JobDescription)

	result := BuildMockResult(req, report)
	if result.Analysis == "" || result.RewrittenResume == "" || result.CoverLetter == "" {
		t.Fatal("mock result has an empty field")
	}

	for _, header := range []string{"Match Score:", "Strengths:", "Weaknesses:", "Missing Keywords:", "Suggestions:", "ATS Tips:"} {
		if !strings.Contains(result.Analysis, header) {
			t.Errorf("analysis missing header %q", header)
		}
	}

	if !strings.Contains(result.CoverLetter, "Frontend Engineer") {
		t.Error("cover letter does not mention the inferred role")
	}
	for _, kw := range report.MissingKeywords {
		if !strings.Contains(result.CoverLetter, kw) {
			t.Errorf("cover letter does not mention missing keyword %q", kw)
		}
	}
	if !strings.Contains(result.RewrittenResume, strings.Join(report.MissingKeywords, ", ")) {
		t.Error("resume core skills line does not carry the missing keywords")
	}
}

func TestBuildMockResultPassesDeterministicValidation(t *testing.T) {
	req := types.AnalysisRequest{
		ResumeText:     "react developer",
		JobDescription: "react typescript agile",
	}
	report := match.ScoreAndGaps(req.ResumeText, req.JobDescription)

	result := BuildMockResult(req, report)
	if issues := DeterministicIssues(result.RewrittenResume); len(issues) != 0 {
		t.Errorf("mock resume fails its own validation: %v", issues)
	}
}

func TestBuildMockResultCoverLetterKeywordCap(t *testing.T) {
	req := types.AnalysisRequest{
		ResumeText:     "nothing relevant",
		JobDescription: "alpha bravo charlie delta echoes foxtrot golfing hotels",
	}
	report := match.ScoreAndGaps(req.ResumeText, req.JobDescription)
	if len(report.MissingKeywords) <= maxCoverLetterKeywords {
		t.Fatalf("test setup: need more than %d missing keywords, got %d",
			maxCoverLetterKeywords, len(report.MissingKeywords))
	}

	result := BuildMockResult(req, report)
	for _, kw := range report.MissingKeywords[maxCoverLetterKeywords:] {
		if strings.Contains(result.CoverLetter, kw) {
			t.Errorf("cover letter mentions keyword %q beyond the cap", kw)
		}
	}
}
