// Package budget decides output-token ceilings and truncation retries.
package budget

import (
	"strings"

	"gradegate/internal/domain"
)

// Manager hands out the token ceiling for each attempt. The base ceiling
// may be raised exactly once per logical request; after that the pipeline
// proceeds to structural repair, never a third call.
type Manager struct {
	base  int32
	retry int32
}

// New creates a Manager. Non-positive values fall back to the defaults
// (1200 base, 1600 retry).
func New(base, retry int32) *Manager {
	if base <= 0 {
		base = 1200
	}
	if retry < base {
		retry = 1600
	}
	if retry < base {
		retry = base
	}
	return &Manager{base: base, retry: retry}
}

// Base returns the first attempt's ceiling
func (m *Manager) Base() int32 { return m.base }

// Retry returns the escalated ceiling for the single permitted retry
func (m *Manager) Retry() int32 { return m.retry }

// Truncated reports whether a result was cut off: the provider signalled a
// length-limited stop, or the raw text does not end with a closing
// structural character consistent with a JSON object response.
func (m *Manager) Truncated(res *domain.GenerationResult) bool {
	if res == nil {
		return false
	}
	if res.FinishReason == domain.FinishReasonLength {
		return true
	}

	trimmed := strings.TrimSpace(res.RawText)
	if trimmed == "" {
		return false
	}

	// A fenced response legitimately ends with backticks.
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return false
	}

	last := trimmed[len(trimmed)-1]
	return last != '}' && last != ']'
}

// NextAttempt reports whether another attempt is permitted and its ceiling.
// attempt is 1-based: after the first attempt a truncated result earns the
// retry ceiling; after the second it never does.
func (m *Manager) NextAttempt(attempt int, truncated bool) (int32, bool) {
	if attempt == 1 && truncated {
		return m.retry, true
	}
	return 0, false
}
