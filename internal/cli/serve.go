package cli

import (
	"context"
	"fmt"
	"time"

	"resumeanalyzer/internal/analysis"
	"resumeanalyzer/internal/auth"
	"resumeanalyzer/internal/billing"
	"resumeanalyzer/internal/config"
	"resumeanalyzer/internal/observability"
	"resumeanalyzer/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis service",
	Long: `Start an HTTP server that provides REST API endpoints for resume analysis.

Available endpoints:
- POST /api/analyze: Analyze a resume against a job description (session cookie auth)
- POST /api/credits/grant: Apply a purchased plan to a user (API key auth)
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")

	// Bind flags to viper config keys
	bindFlag := func(key, flagName string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(flagName)); err != nil {
			panic(err)
		}
	}

	bindFlag("server.port", "port")
	bindFlag("server.host", "host")
	bindFlag("server.tls.mode", "tls-mode")
	bindFlag("server.tls.certfile", "cert-file")
	bindFlag("server.tls.keyfile", "key-file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if cfg.Auth.SessionSigningKey == "" {
		return fmt.Errorf("auth.sessionSigningKey is required to run the server")
	}

	obs, err := observability.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			logger.LogError(err, "Failed to shutdown observability")
		}
	}()

	backend, err := analysis.NewBackend(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create AI backend: %w", err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.LogError(err, "Failed to close AI backend")
		}
	}()

	store, err := newStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open billing store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.LogError(err, "Failed to close billing store")
		}
	}()

	resolver, err := auth.NewResolver(cfg.Auth.SessionCookieName, cfg.Auth.SessionSigningKey)
	if err != nil {
		return fmt.Errorf("failed to create session resolver: %w", err)
	}

	if cfg.AI.CustomPrompts.WatchPromptFiles {
		watcher, err := config.NewPromptWatcher(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to start prompt watcher: %w", err)
		}
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.LogError(err, "Failed to close prompt watcher")
			}
		}()
	}

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.Server.MaxRequestBytes,
		RateLimit:      &cfg.Server.RateLimit,
	}
	deps := server.Dependencies{
		Orchestrator: analysis.NewOrchestrator(backend, cfg, logger),
		Backend:      backend,
		Store:        store,
		Resolver:     resolver,
		Obs:          obs,
		Logger:       logger,
	}
	return server.NewServer(cfg, serverCfg, deps).Start(cmd.Context())
}

// newStore opens the configured billing store backend.
func newStore(cfg *config.Config) (billing.Store, error) {
	switch cfg.Billing.Store {
	case "memory":
		return billing.NewMemoryStore(cfg.Billing.SignupCredits), nil
	case "sqlite":
		return billing.NewSQLiteStore(cfg.Billing.SQLitePath, cfg.Billing.SignupCredits)
	default:
		return nil, fmt.Errorf("unknown billing store: %q", cfg.Billing.Store)
	}
}
