package server

import (
	"time"

	"resumeanalyzer/internal/analysis"
	"resumeanalyzer/internal/auth"
	"resumeanalyzer/internal/billing"
	"resumeanalyzer/internal/config"
	appErrors "resumeanalyzer/internal/errors"
	"resumeanalyzer/internal/observability"
)

// AnalyzeRequest is the request body for the analyze endpoint.
type AnalyzeRequest struct {
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
}

// GrantRequest is the request body for the operational credit-grant endpoint.
type GrantRequest struct {
	Email string `json:"email"`
	Plan  string `json:"plan"`
}

// GrantResponse reports the user's billing state after a grant.
type GrantResponse struct {
	Email               string     `json:"email"`
	Credits             int        `json:"credits"`
	MembershipPlan      string     `json:"membershipPlan,omitempty"`
	MembershipExpiresAt *time.Time `json:"membershipExpiresAt,omitempty"`
}

// ErrorResponse is the standard error body for all endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Server holds configuration and collaborators for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// TLS Configuration
	TLSConfig config.TLSConfig

	// API keys guarding the operational endpoints
	APIKeys map[string]bool

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	// Domain collaborators
	Orchestrator *analysis.Orchestrator
	Backend      analysis.Backend
	Store        billing.Store
	Resolver     *auth.Resolver

	// Observability
	Obs *observability.Manager

	// Logger
	Logger *appErrors.Logger
}

// ServerConfig holds the transport-level settings for creating a Server.
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig
}

// Dependencies holds the domain collaborators the handlers dispatch to.
type Dependencies struct {
	Orchestrator *analysis.Orchestrator
	Backend      analysis.Backend
	Store        billing.Store
	Resolver     *auth.Resolver
	Obs          *observability.Manager
	Logger       *appErrors.Logger
}

// NewServer creates a new Server instance from configuration and collaborators.
func NewServer(appCfg *config.Config, cfg ServerConfig, deps Dependencies) *Server {
	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool)
	for _, key := range cfg.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			deps.Logger,
		)
	}

	return &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		APIKeys:        apiKeyMap,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Orchestrator:   deps.Orchestrator,
		Backend:        deps.Backend,
		Store:          deps.Store,
		Resolver:       deps.Resolver,
		Obs:            deps.Obs,
		Logger:         deps.Logger,
	}
}
