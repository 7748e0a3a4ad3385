package config

import (
	"os"
	"path/filepath"
	"testing"

	"gradegate/internal/domain"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.Server.HTTPPort)
	}
	if cfg.Provider.Name != "gemini" {
		t.Errorf("Provider.Name = %q, want gemini", cfg.Provider.Name)
	}
	if cfg.Pipeline.BaseMaxTokens != 1200 || cfg.Pipeline.RetryMaxTokens != 1600 {
		t.Errorf("token budgets = (%d, %d), want (1200, 1600)",
			cfg.Pipeline.BaseMaxTokens, cfg.Pipeline.RetryMaxTokens)
	}
	if cfg.Pipeline.InlineImageLimit != 3*1024*1024 {
		t.Errorf("InlineImageLimit = %d, want 3 MiB", cfg.Pipeline.InlineImageLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want default", cfg.Server.HTTPPort)
	}
}

func TestLoadFile(t *testing.T) {
	content := `
[server]
http_port = 9090

[provider]
name = "bedrock"

[provider.bedrock]
region = "eu-west-1"
model = "anthropic.claude-3-haiku-20240307-v1:0"

[pipeline]
base_max_tokens = 800
retry_max_tokens = 1000
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.Server.HTTPPort)
	}
	if cfg.ProviderKind() != domain.ProviderBedrock {
		t.Errorf("ProviderKind = %v, want bedrock", cfg.ProviderKind())
	}
	if cfg.Provider.Bedrock.Region != "eu-west-1" {
		t.Errorf("Region = %q, want eu-west-1", cfg.Provider.Bedrock.Region)
	}
	if cfg.Pipeline.BaseMaxTokens != 800 {
		t.Errorf("BaseMaxTokens = %d, want 800", cfg.Pipeline.BaseMaxTokens)
	}
	// Unset sections keep their defaults.
	if cfg.Cache.SchemaTTL != Default().Cache.SchemaTTL {
		t.Errorf("SchemaTTL = %v, want default", cfg.Cache.SchemaTTL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"unknown provider", func(c *Config) { c.Provider.Name = "openai" }, true},
		{"zero base tokens", func(c *Config) { c.Pipeline.BaseMaxTokens = 0 }, true},
		{"retry below base", func(c *Config) { c.Pipeline.RetryMaxTokens = 100 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRADEGATE_HTTP_PORT", "7070")
	t.Setenv("GRADEGATE_PROVIDER", "bedrock")
	t.Setenv("GRADEGATE_GEMINI_API_KEY", "env-key")
	t.Setenv("GRADEGATE_LOG_LEVEL", "debug")

	cfg, err := Load("/nonexistent/config.toml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPPort != 7070 {
		t.Errorf("HTTPPort = %d, want 7070", cfg.Server.HTTPPort)
	}
	if cfg.Provider.Name != "bedrock" {
		t.Errorf("Provider.Name = %q, want bedrock", cfg.Provider.Name)
	}
	if cfg.Provider.Gemini.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.Provider.Gemini.APIKey)
	}
	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Telemetry.LogLevel)
	}
}

func TestAPIKeyExpansion(t *testing.T) {
	t.Setenv("TEST_GEMINI_KEY", "secret-from-env")

	content := `
[provider.gemini]
api_key = "${TEST_GEMINI_KEY}"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Provider.Gemini.APIKey != "secret-from-env" {
		t.Errorf("APIKey = %q, want expanded value", cfg.Provider.Gemini.APIKey)
	}
}
