// Package provider implements completion backends for the grading pipeline.
package provider

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"gradegate/internal/config"
	"gradegate/internal/domain"
)

// NewGenerator builds the configured completion backend
func NewGenerator(cfg *config.Config) (domain.Generator, error) {
	switch cfg.ProviderKind() {
	case domain.ProviderGemini:
		return NewGeminiGenerator(cfg.Provider.Gemini, cfg.Provider.Timeout)
	case domain.ProviderBedrock:
		return NewBedrockGenerator(cfg.Provider.Bedrock, cfg.Provider.Timeout)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider.Name)
	}
}

// NewFileStore builds the file reference store for the configured backend.
// Bedrock has no upload API; referenced parts travel as document blocks
// instead, so the returned store is nil there.
func NewFileStore(cfg *config.Config) domain.FileStore {
	if cfg.ProviderKind() != domain.ProviderGemini {
		return nil
	}
	return NewGeminiFileStore(cfg.Provider.Gemini, cfg.Provider.Timeout)
}

// buildHTTPClient returns an HTTP client tuned for long generation calls
func buildHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}

// transientStatus reports whether an HTTP status warrants job-level retry
func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= 500
}

// estimateCompletionTokens approximates tokens as ceil(len/4) when the
// provider supplies no usage metadata
func estimateCompletionTokens(text string) int32 {
	return int32(math.Ceil(float64(len(text)) / 4))
}

// truncate shortens a string for log output
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
