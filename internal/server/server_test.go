package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resumeanalyzer/internal/analysis"
	"resumeanalyzer/internal/auth"
	"resumeanalyzer/internal/billing"
	"resumeanalyzer/internal/config"
	appErrors "resumeanalyzer/internal/errors"
	"resumeanalyzer/internal/types"
)

const (
	testSigningKey = "test-signing-key"
	testCookieName = "resume_session"
	testUser       = "jane@example.com"
)

// scriptedBackend scripts completion responses for end-to-end handler tests.
type scriptedBackend struct {
	respond func(prompt string) (string, error)
}

func (b *scriptedBackend) Complete(ctx context.Context, prompt string) (string, error) {
	return b.respond(prompt)
}

func (b *scriptedBackend) Configured() bool { return true }

func (b *scriptedBackend) Close() error { return nil }

func testAppConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
		},
		Server: config.ServerConfig{
			Port:            "0",
			ShutdownTimeout: time.Second,
			MaxRequestBytes: 1 << 20,
		},
	}
}

func newTestServer(t *testing.T, backend analysis.Backend, store billing.Store, apiKeys []string) *Server {
	t.Helper()

	logger, err := appErrors.New("error")
	if err != nil {
		t.Fatalf("New logger: %v", err)
	}
	resolver, err := auth.NewResolver(testCookieName, testSigningKey)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	appCfg := testAppConfig()
	return NewServer(appCfg, ServerConfig{
		Port:           "0",
		Version:        "test",
		APIKeys:        apiKeys,
		MaxRequestSize: appCfg.Server.MaxRequestBytes,
	}, Dependencies{
		Orchestrator: analysis.NewOrchestrator(backend, appCfg, logger),
		Backend:      backend,
		Store:        store,
		Resolver:     resolver,
		Logger:       logger,
	})
}

func sessionCookie(t *testing.T, srv *Server, email string) *http.Cookie {
	t.Helper()
	token, err := srv.Resolver.IssueToken(email, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	return &http.Cookie{Name: testCookieName, Value: token}
}

func analyzeBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(AnalyzeRequest{
		ResumeText:     "react developer with five years of production experience",
		JobDescription: "Title: Frontend Engineer\nWe need react typescript agile experience.",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewBuffer(body)
}

func doAnalyze(t *testing.T, mux *http.ServeMux, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", analyzeBody(t))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestAnalyzeRequiresSession(t *testing.T) {
	srv := newTestServer(t, analysis.NullBackend{}, billing.NewMemoryStore(1), nil)
	mux := srv.setupRoutes()

	rec := doAnalyze(t, mux, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != appErrors.ErrCodeUnauthenticated {
		t.Errorf("code = %q, want UNAUTHENTICATED", resp.Code)
	}
}

func TestAnalyzeRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t, analysis.NullBackend{}, billing.NewMemoryStore(1), nil)
	mux := srv.setupRoutes()
	cookie := sessionCookie(t, srv, testUser)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "this is not json"},
		{"missing resume", `{"jobDescription":"job"}`},
		{"missing job", `{"resumeText":"resume"}`},
		{"whitespace resume", `{"resumeText":"   ","jobDescription":"job"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestAnalyzeDebitsSignupCreditThenRejects(t *testing.T) {
	srv := newTestServer(t, analysis.NullBackend{}, billing.NewMemoryStore(1), nil)
	mux := srv.setupRoutes()
	cookie := sessionCookie(t, srv, testUser)

	// First request consumes the single signup credit.
	rec := doAnalyze(t, mux, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp types.AnalyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.CreditsRemaining != 0 {
		t.Errorf("CreditsRemaining = %d, want 0", resp.CreditsRemaining)
	}
	if resp.Analysis == "" || resp.RewrittenResume == "" || resp.CoverLetter == "" {
		t.Error("response bundle has an empty field")
	}
	if resp.BaselineMatchScore < 0 || resp.BaselineMatchScore > 100 {
		t.Errorf("BaselineMatchScore = %d, out of range", resp.BaselineMatchScore)
	}
	for _, missing := range []string{"typescript", "agile"} {
		if !strings.Contains(resp.Analysis, missing) {
			t.Errorf("analysis does not report %q among the missing keywords", missing)
		}
	}

	// Second request finds an empty balance.
	rec = doAnalyze(t, mux, cookie)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("second request status = %d, want 402", rec.Code)
	}
	if errResp := decodeError(t, rec); errResp.Code != appErrors.ErrCodePaymentRequired {
		t.Errorf("code = %q, want PAYMENT_REQUIRED", errResp.Code)
	}
}

func TestAnalyzeMembershipSkipsDebit(t *testing.T) {
	store := billing.NewMemoryStore(1)
	srv := newTestServer(t, analysis.NullBackend{}, store, nil)
	mux := srv.setupRoutes()
	cookie := sessionCookie(t, srv, testUser)

	if err := billing.ApplyPlan(context.Background(), store, testUser, billing.PlanLifetime, time.Now()); err != nil {
		t.Fatalf("ApplyPlan: %v", err)
	}

	for i := 0; i < 2; i++ {
		rec := doAnalyze(t, mux, cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, body %s", i+1, rec.Code, rec.Body.String())
		}
	}

	info, err := store.GetAccessInfo(context.Background(), testUser)
	if err != nil {
		t.Fatalf("GetAccessInfo: %v", err)
	}
	if info.Credits != 1 {
		t.Errorf("Credits = %d, want untouched signup credit", info.Credits)
	}
}

func TestAnalyzeValidationExhaustedKeepsCredit(t *testing.T) {
	backend := &scriptedBackend{
		respond: func(prompt string) (string, error) {
			if strings.Contains(prompt, "coverLetter") {
				return `{"analysis":"Match Score: 40","rewrittenResume":"NAME HERE","coverLetter":"Dear"}`, nil
			}
			return `{"validationSummary":"Still broken.","improvedMatchScore":null,"passesValidation":false}`, nil
		},
	}
	store := billing.NewMemoryStore(1)
	srv := newTestServer(t, backend, store, nil)
	mux := srv.setupRoutes()
	cookie := sessionCookie(t, srv, testUser)

	rec := doAnalyze(t, mux, cookie)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != appErrors.ErrCodeValidationExhausted {
		t.Errorf("code = %q, want VALIDATION_EXHAUSTED", resp.Code)
	}

	info, err := store.GetAccessInfo(context.Background(), testUser)
	if err != nil {
		t.Fatalf("GetAccessInfo: %v", err)
	}
	if info.Credits != 1 {
		t.Errorf("Credits = %d, failed analyses must not debit", info.Credits)
	}
}

func TestGrantEndpointAuth(t *testing.T) {
	t.Run("disabled without configured keys", func(t *testing.T) {
		srv := newTestServer(t, analysis.NullBackend{}, billing.NewMemoryStore(1), nil)
		mux := srv.setupRoutes()

		req := httptest.NewRequest(http.MethodPost, "/api/credits/grant",
			strings.NewReader(`{"email":"jane@example.com","plan":"one_time"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("rejects missing key", func(t *testing.T) {
		srv := newTestServer(t, analysis.NullBackend{}, billing.NewMemoryStore(1), []string{"ops-key-12345"})
		mux := srv.setupRoutes()

		req := httptest.NewRequest(http.MethodPost, "/api/credits/grant",
			strings.NewReader(`{"email":"jane@example.com","plan":"one_time"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func TestGrantAppliesPlans(t *testing.T) {
	store := billing.NewMemoryStore(1)
	srv := newTestServer(t, analysis.NullBackend{}, store, []string{"ops-key-12345"})
	mux := srv.setupRoutes()

	grant := func(t *testing.T, body string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/api/credits/grant", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", "ops-key-12345")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	t.Run("one_time adds a credit", func(t *testing.T) {
		rec := grant(t, `{"email":"jane@example.com","plan":"one_time"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		var resp GrantResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		// Signup credit plus the granted one.
		if resp.Credits != 2 {
			t.Errorf("Credits = %d, want 2", resp.Credits)
		}
	})

	t.Run("annual activates membership", func(t *testing.T) {
		rec := grant(t, `{"email":"jane@example.com","plan":"annual"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}

		var resp GrantResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.MembershipPlan != "annual" {
			t.Errorf("MembershipPlan = %q, want annual", resp.MembershipPlan)
		}
		if resp.MembershipExpiresAt == nil || !resp.MembershipExpiresAt.After(time.Now()) {
			t.Errorf("MembershipExpiresAt = %v, want a future expiry", resp.MembershipExpiresAt)
		}
	})

	t.Run("unknown plan rejected", func(t *testing.T) {
		rec := grant(t, `{"email":"jane@example.com","plan":"weekly"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, analysis.NullBackend{}, billing.NewMemoryStore(1), nil)
	mux := srv.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
	backendInfo, ok := resp["ai_backend"].(map[string]any)
	if !ok {
		t.Fatalf("ai_backend missing: %v", resp)
	}
	if backendInfo["configured"] != false || backendInfo["mode"] != "mock-only" {
		t.Errorf("ai_backend = %v, want unconfigured mock-only", backendInfo)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t, analysis.NullBackend{}, billing.NewMemoryStore(1), nil)
	mux := srv.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := resp["rate_limiting"]; !ok {
		t.Error("stats response missing rate_limiting")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	logger, _ := appErrors.New("error")
	appCfg := testAppConfig()
	rl := &config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstCapacity:  2,
		ByIP:           true,
	}
	resolver, err := auth.NewResolver(testCookieName, testSigningKey)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	srv := NewServer(appCfg, ServerConfig{
		Port:           "0",
		MaxRequestSize: appCfg.Server.MaxRequestBytes,
		RateLimit:      rl,
	}, Dependencies{
		Orchestrator: analysis.NewOrchestrator(analysis.NullBackend{}, appCfg, logger),
		Backend:      analysis.NullBackend{},
		Store:        billing.NewMemoryStore(5),
		Resolver:     resolver,
		Logger:       logger,
	})
	defer srv.RateLimiter.Close()
	mux := srv.setupRoutes()
	cookie := sessionCookie(t, srv, testUser)

	var rejected int
	for i := 0; i < 4; i++ {
		rec := doAnalyze(t, mux, cookie)
		if rec.Code == http.StatusTooManyRequests {
			rejected++
		}
	}
	// Burst of 2 at 1 rps: at least one of four back-to-back calls is shed.
	if rejected == 0 {
		t.Error("no request was rate limited")
	}
}
