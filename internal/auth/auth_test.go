package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	resolver, err := NewResolver("resume_session", "test-signing-key")
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return resolver
}

func TestNewResolverValidation(t *testing.T) {
	if _, err := NewResolver("", "key"); err == nil {
		t.Error("expected error for empty cookie name")
	}
	if _, err := NewResolver("cookie", ""); err == nil {
		t.Error("expected error for empty signing key")
	}
}

func TestResolveRequestRoundTrip(t *testing.T) {
	resolver := newTestResolver(t)

	token, err := resolver.IssueToken("user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
	req.AddCookie(&http.Cookie{Name: "resume_session", Value: token})

	identity, err := resolver.ResolveRequest(req)
	if err != nil {
		t.Fatalf("ResolveRequest() error = %v", err)
	}
	if identity.Email != "user@example.com" {
		t.Errorf("Email = %q, want user@example.com", identity.Email)
	}
}

func TestResolveRequestFailures(t *testing.T) {
	resolver := newTestResolver(t)

	t.Run("no cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
		if _, err := resolver.ResolveRequest(req); err == nil {
			t.Error("expected error for missing cookie")
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
		req.AddCookie(&http.Cookie{Name: "resume_session", Value: "not-a-jwt"})
		if _, err := resolver.ResolveRequest(req); err == nil {
			t.Error("expected error for malformed token")
		}
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other, err := NewResolver("resume_session", "a-different-key")
		if err != nil {
			t.Fatalf("NewResolver() error = %v", err)
		}
		token, err := other.IssueToken("user@example.com", time.Hour)
		if err != nil {
			t.Fatalf("IssueToken() error = %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
		req.AddCookie(&http.Cookie{Name: "resume_session", Value: token})
		if _, err := resolver.ResolveRequest(req); err == nil {
			t.Error("expected error for token signed with another key")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := resolver.IssueToken("user@example.com", -time.Minute)
		if err != nil {
			t.Fatalf("IssueToken() error = %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/analyze", nil)
		req.AddCookie(&http.Cookie{Name: "resume_session", Value: token})
		if _, err := resolver.ResolveRequest(req); err == nil {
			t.Error("expected error for expired token")
		}
	})
}
