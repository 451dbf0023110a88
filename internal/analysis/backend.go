package analysis

import (
	"context"

	"resumeanalyzer/internal/config"
	"resumeanalyzer/internal/errors"
)

// Backend is a single chat-completion call against a generative model.
// Implementations return the raw text of the model response; callers own
// prompt construction and response parsing.
type Backend interface {
	// Complete sends one prompt and returns the raw response text.
	Complete(ctx context.Context, prompt string) (string, error)

	// Configured reports whether the backend can actually serve calls.
	// The orchestrator uses this to bound its retry loop.
	Configured() bool

	// Close releases any resources held by the backend.
	Close() error
}

// ModelChecker is implemented by backends that can report model availability.
type ModelChecker interface {
	GetModelInfo(ctx context.Context) *ModelInfo
}

// ModelInfo represents information about the backing model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// NullBackend is the backend used when no API key is configured.
// Every call fails, which routes generation to the mock builder and
// validation to the deterministic checks.
type NullBackend struct{}

var _ Backend = (*NullBackend)(nil)

func (NullBackend) Complete(ctx context.Context, prompt string) (string, error) {
	return "", errors.NewAIError(errors.ErrCodeMissingAPIKey,
		"No generative backend configured", nil)
}

func (NullBackend) Configured() bool { return false }

func (NullBackend) Close() error { return nil }

// NewBackend selects the backend variant once at startup: a live Gemini
// backend when an API key is present, the null backend otherwise.
func NewBackend(cfg *config.Config, logger *errors.Logger) (Backend, error) {
	if !cfg.BackendConfigured() {
		logger.Info("No AI API key configured, running in mock-only mode")
		return NullBackend{}, nil
	}
	return NewGeminiBackend(&cfg.AI, logger)
}
