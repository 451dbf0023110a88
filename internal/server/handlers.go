package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"resumeanalyzer/internal/analysis"
	"resumeanalyzer/internal/billing"
	appErrors "resumeanalyzer/internal/errors"
	"resumeanalyzer/internal/observability"
	"resumeanalyzer/internal/types"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// tracer returns the API tracer, falling back to a no-op tracer when the
// server runs without an observability manager (tests, one-shot CLI).
func (s *Server) tracer() oteltrace.Tracer {
	if s.Obs == nil {
		return noop.NewTracerProvider().Tracer("resumeanalyzer.api")
	}
	return s.Obs.Tracer("resumeanalyzer.api")
}

func (s *Server) metrics() *observability.Metrics {
	if s.Obs == nil {
		return &observability.Metrics{}
	}
	return s.Obs.GetMetrics()
}

// analyzeHandler serves POST /api/analyze. The order of gates matters:
// input validation, then session resolution, then the credit/membership
// check, and only then generation. A credit is debited exactly once, after
// validation passes, and never for members.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := s.tracer().Start(r.Context(), "api.analyze")
	defer span.End()
	start := time.Now()

	var req AnalyzeRequest
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		writeErrorResponse(w, "Invalid request body", appErrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.ResumeText) == "" {
		writeErrorResponse(w, "Missing resume text", appErrors.ErrCodeInvalidInput, "resumeText field is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		writeErrorResponse(w, "Missing job description", appErrors.ErrCodeInvalidInput, "jobDescription field is required", http.StatusBadRequest)
		return
	}

	identity, err := s.Resolver.ResolveRequest(r)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "auth"))
		s.writeAppError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.Int("request.resume_length", len(req.ResumeText)),
		attribute.Int("request.job_length", len(req.JobDescription)),
	)

	info, err := s.Store.EnsureUser(ctx, identity.Email)
	if err != nil {
		span.RecordError(err)
		s.Logger.LogError(err, "Failed to load billing state",
			"request_id", requestID(ctx))
		writeErrorResponse(w, "Billing lookup failed", appErrors.ErrCodeStoreFailed, "", http.StatusInternalServerError)
		return
	}

	member := billing.HasActiveMembership(info, time.Now())
	if !member && info.Credits <= 0 {
		s.metrics().RecordPaymentRejected(ctx)
		s.Logger.Info("Analysis rejected: no credits",
			"user", identity.Email,
			"request_id", requestID(ctx))
		writeErrorResponse(w, "No credits remaining", appErrors.ErrCodePaymentRequired,
			"Purchase credits or a membership to run an analysis", http.StatusPaymentRequired)
		return
	}

	outcome, err := s.Orchestrator.Analyze(ctx, types.AnalysisRequest{
		ResumeText:     req.ResumeText,
		JobDescription: req.JobDescription,
	})
	s.metrics().RecordAnalysis(ctx, time.Since(start), attemptCount(outcome), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "analysis"))
		s.writeAppError(w, r, err)
		return
	}

	creditsRemaining := info.Credits
	if !member {
		remaining, err := s.Store.DecrementCredit(ctx, identity.Email)
		if err != nil {
			span.RecordError(err)
			// A concurrent request on the same account can win the last
			// credit between the gate check and the debit.
			if errors.Is(err, billing.ErrInsufficientCredits) {
				s.metrics().RecordPaymentRejected(ctx)
				writeErrorResponse(w, "No credits remaining", appErrors.ErrCodePaymentRequired,
					"Purchase credits or a membership to run an analysis", http.StatusPaymentRequired)
				return
			}
			s.Logger.LogError(err, "Failed to debit credit",
				"user", identity.Email,
				"request_id", requestID(ctx))
			writeErrorResponse(w, "Billing update failed", appErrors.ErrCodeStoreFailed, "", http.StatusInternalServerError)
			return
		}
		creditsRemaining = remaining
		s.metrics().RecordCreditConsumed(ctx)
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("analysis.attempts", outcome.Attempts),
		attribute.Int("analysis.baseline_score", outcome.BaselineMatchScore),
	)

	response := types.AnalyzeResponse{
		Analysis:           outcome.Result.Analysis,
		RewrittenResume:    outcome.Result.RewrittenResume,
		CoverLetter:        outcome.Result.CoverLetter,
		ValidationSummary:  outcome.Validation.ValidationSummary,
		ImprovedMatchScore: outcome.Validation.ImprovedMatchScore,
		BaselineMatchScore: outcome.BaselineMatchScore,
		CreditsRemaining:   creditsRemaining,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		span.RecordError(err)
		s.Logger.LogError(err, "Failed to encode analyze response")
	}
}

func attemptCount(outcome *types.AnalysisOutcome) int {
	if outcome == nil {
		return 0
	}
	return outcome.Attempts
}

// grantHandler serves POST /api/credits/grant, the operational hook for
// applying a purchased plan. The checkout flow itself lives elsewhere.
func (s *Server) grantHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := s.tracer().Start(r.Context(), "api.credits.grant")
	defer span.End()

	var req GrantRequest
	if err := parseJSONRequest(r, &req); err != nil {
		span.RecordError(err)
		writeErrorResponse(w, "Invalid request body", appErrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Email) == "" {
		writeErrorResponse(w, "Missing email", appErrors.ErrCodeInvalidInput, "email field is required", http.StatusBadRequest)
		return
	}
	plan, err := billing.ParsePlan(req.Plan)
	if err != nil {
		writeErrorResponse(w, "Invalid plan", appErrors.ErrCodeInvalidInput, err.Error(), http.StatusBadRequest)
		return
	}

	if err := billing.ApplyPlan(ctx, s.Store, req.Email, plan, time.Now()); err != nil {
		span.RecordError(err)
		s.Logger.LogError(err, "Failed to apply plan",
			"user", req.Email,
			"plan", string(plan))
		writeErrorResponse(w, "Failed to apply plan", appErrors.ErrCodeStoreFailed, "", http.StatusInternalServerError)
		return
	}

	info, err := s.Store.GetAccessInfo(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		writeErrorResponse(w, "Billing lookup failed", appErrors.ErrCodeStoreFailed, "", http.StatusInternalServerError)
		return
	}

	s.Logger.Info("Plan applied",
		"user", req.Email,
		"plan", string(plan),
		"credits", info.Credits)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(GrantResponse{
		Email:               info.Email,
		Credits:             info.Credits,
		MembershipPlan:      info.MembershipPlan,
		MembershipExpiresAt: info.MembershipExpiresAt,
	}); err != nil {
		span.RecordError(err)
		s.Logger.LogError(err, "Failed to encode grant response")
	}
}

// healthHandler reports service health including backend model availability
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status":  "healthy",
		"service": "resumeanalyzer",
		"version": s.Version,
	}

	backendStatus := map[string]any{
		"configured": s.Backend != nil && s.Backend.Configured(),
	}
	if checker, ok := s.Backend.(analysis.ModelChecker); ok {
		timeout := s.AppConfig.Observability.HealthCheck.Timeout
		ctx, cancel := contextWithOptionalTimeout(r.Context(), timeout)
		defer cancel()

		modelInfo := checker.GetModelInfo(ctx)
		backendStatus["model"] = modelInfo
		if !modelInfo.Available {
			response["status"] = "degraded"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	} else {
		backendStatus["mode"] = "mock-only"
	}
	response["ai_backend"] = backendStatus

	type breakerStats interface {
		GetCircuitBreakerStats() map[string]any
	}
	if backend, ok := s.Backend.(breakerStats); ok {
		response["circuit_breaker"] = backend.GetCircuitBreakerStats()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.Logger.LogError(err, "Failed to encode health response")
	}
}

func contextWithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"service": "resumeanalyzer",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.Logger.LogError(err, "Failed to encode stats response")
	}
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() {
		_ = r.Body.Close()
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// writeAppError maps an application error onto the HTTP status taxonomy.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := appErrors.HTTPStatus(err)

	var appErr *appErrors.AppError
	if errors.As(err, &appErr) {
		if status >= http.StatusInternalServerError {
			s.Logger.LogError(err, "Request failed",
				"endpoint", r.URL.Path,
				"request_id", requestID(r.Context()))
		}
		writeErrorResponse(w, appErr.Message, appErr.Code, "", status)
		return
	}

	s.Logger.LogError(err, "Request failed",
		"endpoint", r.URL.Path,
		"request_id", requestID(r.Context()))
	writeErrorResponse(w, "Internal server error", appErrors.ErrCodeInternal, "", status)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, errText, code, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   errText,
		Code:    code,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
