package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		AI: AIConfig{
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
		},
		Server: ServerConfig{
			Port:            "8080",
			MaxRequestBytes: 1 << 20,
			TLS:             TLSConfig{Mode: "disabled"},
		},
		Billing: BillingConfig{
			Store:      "sqlite",
			SQLitePath: "test.db",
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"empty API key is valid mock-only mode", func(c *Config) { c.AI.APIKey = "" }, false},
		{"zero timeout", func(c *Config) { c.AI.Timeout = 0 }, true},
		{"zero max attempts", func(c *Config) { c.AI.MaxAttempts = 0 }, true},
		{"missing port", func(c *Config) { c.Server.Port = "" }, true},
		{"zero request size", func(c *Config) { c.Server.MaxRequestBytes = 0 }, true},
		{"memory store", func(c *Config) { c.Billing.Store = "memory"; c.Billing.SQLitePath = "" }, false},
		{"unknown store", func(c *Config) { c.Billing.Store = "postgres" }, true},
		{"sqlite store without path", func(c *Config) { c.Billing.SQLitePath = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTLSConfig(t *testing.T) {
	tests := []struct {
		name    string
		tls     TLSConfig
		wantErr bool
	}{
		{"disabled", TLSConfig{Mode: "disabled"}, false},
		{"server with certs", TLSConfig{Mode: "server", CertFile: "c.pem", KeyFile: "k.pem"}, false},
		{"server without certs", TLSConfig{Mode: "server"}, true},
		{"unknown mode", TLSConfig{Mode: "mutual"}, true},
		{"bad min version", TLSConfig{Mode: "server", CertFile: "c.pem", KeyFile: "k.pem", MinVersion: "1.1"}, true},
		{"tls 1.3", TLSConfig{Mode: "server", CertFile: "c.pem", KeyFile: "k.pem", MinVersion: "1.3"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.TLS = tt.tls
			err := cfg.ValidateTLSConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTLSConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBackendConfigured(t *testing.T) {
	cfg := validConfig()
	if cfg.BackendConfigured() {
		t.Error("BackendConfigured() = true without an API key")
	}
	cfg.AI.APIKey = "key"
	if !cfg.BackendConfigured() {
		t.Error("BackendConfigured() = false with an API key")
	}
}

func TestResolvePromptPrecedence(t *testing.T) {
	// The loaded-prompt store is package state; restore it after the test.
	defer loadedPrompts.set(PromptGenerate, "")

	cfg := validConfig()

	if got := cfg.ResolvePrompt(PromptGenerate, "builtin"); got != "builtin" {
		t.Errorf("ResolvePrompt() = %q, want builtin fallback", got)
	}

	cfg.AI.CustomPrompts.Generate = "inline"
	if got := cfg.ResolvePrompt(PromptGenerate, "builtin"); got != "inline" {
		t.Errorf("ResolvePrompt() = %q, want inline config value", got)
	}

	loadedPrompts.set(PromptGenerate, "from file")
	if got := cfg.ResolvePrompt(PromptGenerate, "builtin"); got != "from file" {
		t.Errorf("ResolvePrompt() = %q, want file-loaded content", got)
	}
}

func TestLoadPromptsFromFiles(t *testing.T) {
	defer loadedPrompts.set(PromptValidate, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "validate.txt")
	if err := os.WriteFile(path, []byte("custom validate prompt"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := validConfig()
	cfg.AI.CustomPrompts.ValidateFile = path
	if err := cfg.loadPromptsFromFiles(); err != nil {
		t.Fatalf("loadPromptsFromFiles() error = %v", err)
	}
	if got := GetLoadedPrompt(PromptValidate); got != "custom validate prompt" {
		t.Errorf("GetLoadedPrompt() = %q", got)
	}

	t.Run("missing file", func(t *testing.T) {
		cfg := validConfig()
		cfg.AI.CustomPrompts.GenerateFile = filepath.Join(dir, "does-not-exist.txt")
		if err := cfg.loadPromptsFromFiles(); err == nil {
			t.Error("loadPromptsFromFiles() accepted a missing file")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		empty := filepath.Join(dir, "empty.txt")
		if err := os.WriteFile(empty, nil, 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		cfg := validConfig()
		cfg.AI.CustomPrompts.GenerateFile = empty
		if err := cfg.loadPromptsFromFiles(); err == nil {
			t.Error("loadPromptsFromFiles() accepted an empty file")
		}
	})
}

func TestApplyFallbacksLegacyGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "legacy-key")

	cfg := validConfig()
	cfg.applyFallbacks()
	if cfg.AI.APIKey != "legacy-key" {
		t.Errorf("APIKey = %q, want the legacy environment fallback", cfg.AI.APIKey)
	}

	cfg = validConfig()
	cfg.AI.APIKey = "configured"
	cfg.applyFallbacks()
	if cfg.AI.APIKey != "configured" {
		t.Errorf("APIKey = %q, config value must win over the legacy variable", cfg.AI.APIKey)
	}
}
