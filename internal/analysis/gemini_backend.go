package analysis

import (
	"context"
	"crypto/rand"
	goerrors "errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"resumeanalyzer/internal/config"
	"resumeanalyzer/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GeminiBackend implements Backend against the Google Gemini API.
type GeminiBackend struct {
	client         *genai.Client
	config         *config.AIConfig
	circuitBreaker *CompletionCircuitBreaker
	modelBreaker   *ModelCircuitBreaker
	logger         *errors.Logger
}

var _ Backend = (*GeminiBackend)(nil)
var _ ModelChecker = (*GeminiBackend)(nil)

// NewGeminiBackend creates a Gemini-backed completion backend.
func NewGeminiBackend(cfg *config.AIConfig, logger *errors.Logger) (*GeminiBackend, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed,
			"Failed to create Gemini client", err)
	}

	return &GeminiBackend{
		client:         client,
		config:         cfg,
		circuitBreaker: NewCompletionCircuitBreaker(&cfg.CircuitBreaker, logger),
		modelBreaker:   NewModelCircuitBreaker(&cfg.CircuitBreaker, logger),
		logger:         logger,
	}, nil
}

// Configured implements Backend
func (g *GeminiBackend) Configured() bool { return true }

// Complete implements Backend. A single prompt goes out, the raw response
// text comes back. The per-call timeout, retry with exponential backoff, and
// circuit breaker all live here so callers see one call, one error.
func (g *GeminiBackend) Complete(ctx context.Context, prompt string) (string, error) {
	tracer := otel.Tracer("resumeanalyzer.analysis.gemini")
	ctx, span := tracer.Start(ctx, "gemini.complete")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Int("ai.prompt_length", len(prompt)),
	)

	callCtx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	genaiConfig := &genai.GenerateContentConfig{}
	if g.config.Temperature > 0 {
		temp := g.config.Temperature
		genaiConfig.Temperature = &temp
	}

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(callCtx, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(callCtx, g.config.Model, genai.Text(prompt), genaiConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return "", errors.NewAIError(errors.ErrCodeAIServiceFailed,
			"Failed to generate content", err)
	}

	text := result.Text()
	if usage := result.UsageMetadata; usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", int64(usage.PromptTokenCount)),
			attribute.Int64("ai.tokens.output", int64(usage.CandidatesTokenCount)),
			attribute.Int64("ai.tokens.total", int64(usage.TotalTokenCount)),
		)
	}
	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("ai.response_length", len(text)),
	)

	return text, nil
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiBackend) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      g.config.Model,
		Available: false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	model, err := g.modelBreaker.ExecuteModel(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	if model.DisplayName != "" {
		modelInfo.DisplayName = model.DisplayName
	}
	if model.Version != "" {
		modelInfo.Version = model.Version
	}

	return modelInfo
}

// executeWithRetry executes a backend call with retry and exponential backoff
func (g *GeminiBackend) executeWithRetry(ctx context.Context, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying backend call",
				"attempt", attempt,
				"max_retries", g.config.MaxRetries,
				"error", lastErr.Error())

			// Exponential backoff with jitter to prevent thundering herd
			baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			jitterMax := big.NewInt(int64(float64(baseDelay) * 0.1))
			jitterBig, _ := rand.Int(rand.Reader, jitterMax)
			jitter := time.Duration(jitterBig.Int64())
			backoff := min(baseDelay+jitter, 30*time.Second)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("Backend call succeeded after retry",
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"error", err.Error())
			break
		}
	}

	return nil, fmt.Errorf("backend call failed after %d retries: %w", g.config.MaxRetries, lastErr)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Network errors (timeouts, connection refused) are worth retrying
	var netErr net.Error
	if goerrors.As(err, &netErr) {
		return true
	}

	// Google API errors with transient status codes
	var apiErr *googleapi.Error
	if goerrors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiBackend) GetCircuitBreakerStats() map[string]any {
	stats := map[string]any{
		"completion": g.circuitBreaker.GetStats(),
		"model":      g.modelBreaker.GetModelStats(),
	}
	stats["overall_healthy"] = g.circuitBreaker.IsHealthy() && g.modelBreaker.IsModelHealthy()
	return stats
}

// Close implements Backend
func (g *GeminiBackend) Close() error {
	// The genai client holds no resources that need explicit release in
	// single-shot usage.
	return nil
}
