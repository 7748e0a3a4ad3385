// Package config provides configuration management for gradegate.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gradegate/internal/domain"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Provider  ProviderConfig  `toml:"provider"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Cache     CacheConfig     `toml:"cache"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	HTTPPort       int           `toml:"http_port"`
	BindAddress    string        `toml:"bind_address"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	MaxRequestSize int64         `toml:"max_request_size"`
}

// TelemetryConfig contains logging and metrics settings
type TelemetryConfig struct {
	ServiceName       string `toml:"service_name"`
	PrometheusEnabled bool   `toml:"prometheus_enabled"`
	LogFormat         string `toml:"log_format"`
	LogLevel          string `toml:"log_level"`
}

// ProviderConfig selects and configures the completion backend
type ProviderConfig struct {
	// Name is "gemini" or "bedrock"
	Name    string        `toml:"name"`
	Timeout time.Duration `toml:"timeout"`
	Gemini  GeminiConfig  `toml:"gemini"`
	Bedrock BedrockConfig `toml:"bedrock"`
}

// GeminiConfig contains Gemini-specific settings
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// BedrockConfig contains AWS Bedrock-specific settings
type BedrockConfig struct {
	Region          string `toml:"region"`
	Model           string `toml:"model"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// PipelineConfig tunes the grading pipeline
type PipelineConfig struct {
	BaseMaxTokens  int32   `toml:"base_max_tokens"`
	RetryMaxTokens int32   `toml:"retry_max_tokens"`
	Temperature    float32 `toml:"temperature"`
	// InlineImageLimit is the largest raster image embedded inline, in bytes.
	InlineImageLimit int64 `toml:"inline_image_limit"`
	// InjectionSensitivity is LOW, MEDIUM, HIGH, or PARANOID.
	InjectionSensitivity string `toml:"injection_sensitivity"`
}

// CacheConfig tunes the HTTP response cache
type CacheConfig struct {
	SchemaTTL     time.Duration `toml:"schema_ttl"`
	ModelsTTL     time.Duration `toml:"models_ttl"`
	SweepInterval time.Duration `toml:"sweep_interval"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       8080,
			BindAddress:    "0.0.0.0",
			ReadTimeout:    2 * time.Minute,
			WriteTimeout:   5 * time.Minute,
			MaxRequestSize: 32 * 1024 * 1024, // submissions carry file bytes
		},
		Telemetry: TelemetryConfig{
			ServiceName:       "gradegate",
			PrometheusEnabled: true,
			LogFormat:         "json",
			LogLevel:          "info",
		},
		Provider: ProviderConfig{
			Name:    "gemini",
			Timeout: 2 * time.Minute,
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
			Bedrock: BedrockConfig{
				Region: "us-east-1",
				Model:  "anthropic.claude-3-5-sonnet-20241022-v2:0",
			},
		},
		Pipeline: PipelineConfig{
			BaseMaxTokens:        1200,
			RetryMaxTokens:       1600,
			Temperature:          0.3,
			InlineImageLimit:     3 * 1024 * 1024,
			InjectionSensitivity: "MEDIUM",
		},
		Cache: CacheConfig{
			SchemaTTL:     15 * time.Minute,
			ModelsTTL:     5 * time.Minute,
			SweepInterval: time.Minute,
		},
	}
}

// Load loads configuration from a file, falling back to defaults when the
// file does not exist
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			cfg.substituteEnvVars()
			return cfg, nil
		}
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.substituteEnvVars()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that would otherwise surface mid-request
func (c *Config) Validate() error {
	if _, ok := domain.ParseProvider(c.Provider.Name); !ok {
		return fmt.Errorf("unknown provider %q", c.Provider.Name)
	}
	if c.Pipeline.BaseMaxTokens <= 0 {
		return fmt.Errorf("base_max_tokens must be positive, got %d", c.Pipeline.BaseMaxTokens)
	}
	if c.Pipeline.RetryMaxTokens < c.Pipeline.BaseMaxTokens {
		return fmt.Errorf("retry_max_tokens (%d) must not be below base_max_tokens (%d)",
			c.Pipeline.RetryMaxTokens, c.Pipeline.BaseMaxTokens)
	}
	return nil
}

// substituteEnvVars substitutes ${VAR} patterns with environment variables
// and applies direct GRADEGATE_* environment variable overrides
func (c *Config) substituteEnvVars() {
	c.Provider.Gemini.APIKey = expandEnv(c.Provider.Gemini.APIKey)
	c.Provider.Bedrock.AccessKeyID = expandEnv(c.Provider.Bedrock.AccessKeyID)
	c.Provider.Bedrock.SecretAccessKey = expandEnv(c.Provider.Bedrock.SecretAccessKey)

	if v := os.Getenv("GRADEGATE_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("GRADEGATE_PROVIDER"); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv("GRADEGATE_GEMINI_API_KEY"); v != "" {
		c.Provider.Gemini.APIKey = v
	}
	if v := os.Getenv("GRADEGATE_GEMINI_MODEL"); v != "" {
		c.Provider.Gemini.Model = v
	}
	if v := os.Getenv("GRADEGATE_BEDROCK_REGION"); v != "" {
		c.Provider.Bedrock.Region = v
	}
	if v := os.Getenv("GRADEGATE_BEDROCK_MODEL"); v != "" {
		c.Provider.Bedrock.Model = v
	}
	if v := os.Getenv("GRADEGATE_LOG_LEVEL"); v != "" {
		c.Telemetry.LogLevel = v
	}
}

// expandEnv expands ${VAR} or $VAR patterns
func expandEnv(s string) string {
	if s == "" {
		return s
	}
	return os.ExpandEnv(s)
}

// ProviderKind returns the parsed provider selection
func (c *Config) ProviderKind() domain.Provider {
	p, _ := domain.ParseProvider(c.Provider.Name)
	return p
}
