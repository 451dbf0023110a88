package analysis

import (
	"testing"
)

const goodBundle = `{"analysis":"Match Score: 72\nStrengths:\n- solid","rewrittenResume":"Jane Doe\njane@example.com | (555) 123-4567","coverLetter":"Dear Hiring Manager,"}`

func TestParseAnalysisResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantNil bool
	}{
		{
			name:    "clean json",
			content: goodBundle,
			wantNil: false,
		},
		{
			name:    "json wrapped in markdown fence",
			content: "```json\n" + goodBundle + "\n```",
			wantNil: false,
		},
		{
			name:    "bare fence without language tag",
			content: "```\n" + goodBundle + "\n```",
			wantNil: false,
		},
		{
			name:    "json surrounded by prose",
			content: "Here is the result you asked for:\n" + goodBundle + "\nLet me know if you need anything else.",
			wantNil: false,
		},
		{
			name:    "empty content",
			content: "",
			wantNil: true,
		},
		{
			name:    "plain prose without json",
			content: "I cannot help with that request.",
			wantNil: true,
		},
		{
			name:    "missing field",
			content: `{"analysis":"a","rewrittenResume":"b"}`,
			wantNil: true,
		},
		{
			name:    "whitespace-only field",
			content: `{"analysis":"a","rewrittenResume":"   ","coverLetter":"c"}`,
			wantNil: true,
		},
		{
			name:    "malformed json",
			content: `{"analysis":"a","rewrittenResume":"b","coverLetter":`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAnalysisResponse(tt.content)
			if (got == nil) != tt.wantNil {
				t.Errorf("ParseAnalysisResponse() = %v, wantNil = %v", got, tt.wantNil)
			}
			if got != nil {
				if got.Analysis == "" || got.RewrittenResume == "" || got.CoverLetter == "" {
					t.Error("accepted result has an empty field")
				}
			}
		})
	}
}

func TestParseValidationResponse(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantNil   bool
		wantScore *int
		wantPass  bool
	}{
		{
			name:      "passing verdict",
			content:   `{"validationSummary":"Looks good.","improvedMatchScore":85,"passesValidation":true}`,
			wantScore: intPtr(85),
			wantPass:  true,
		},
		{
			name:      "null score accepted",
			content:   `{"validationSummary":"Could not score.","improvedMatchScore":null,"passesValidation":false}`,
			wantScore: nil,
			wantPass:  false,
		},
		{
			name:      "fenced verdict",
			content:   "```json\n{\"validationSummary\":\"Fine.\",\"improvedMatchScore\":60,\"passesValidation\":true}\n```",
			wantScore: intPtr(60),
			wantPass:  true,
		},
		{
			name:    "missing improvedMatchScore key",
			content: `{"validationSummary":"Fine.","passesValidation":true}`,
			wantNil: true,
		},
		{
			name:    "score out of range",
			content: `{"validationSummary":"Fine.","improvedMatchScore":140,"passesValidation":true}`,
			wantNil: true,
		},
		{
			name:    "passesValidation not boolean",
			content: `{"validationSummary":"Fine.","improvedMatchScore":50,"passesValidation":"yes"}`,
			wantNil: true,
		},
		{
			name:    "empty summary",
			content: `{"validationSummary":"  ","improvedMatchScore":50,"passesValidation":true}`,
			wantNil: true,
		},
		{
			name:    "not json",
			content: "the resume passes",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseValidationResponse(tt.content)
			if (got == nil) != tt.wantNil {
				t.Fatalf("ParseValidationResponse() = %v, wantNil = %v", got, tt.wantNil)
			}
			if got == nil {
				return
			}
			if got.PassesValidation != tt.wantPass {
				t.Errorf("PassesValidation = %v, want %v", got.PassesValidation, tt.wantPass)
			}
			if (got.ImprovedMatchScore == nil) != (tt.wantScore == nil) {
				t.Fatalf("ImprovedMatchScore = %v, want %v", got.ImprovedMatchScore, tt.wantScore)
			}
			if got.ImprovedMatchScore != nil && *got.ImprovedMatchScore != *tt.wantScore {
				t.Errorf("ImprovedMatchScore = %d, want %d", *got.ImprovedMatchScore, *tt.wantScore)
			}
		})
	}
}

func intPtr(n int) *int { return &n }
