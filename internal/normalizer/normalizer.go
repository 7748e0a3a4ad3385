// Package normalizer converts raw model text into a candidate feedback object.
package normalizer

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"gradegate/internal/domain"
	"gradegate/internal/telemetry"
)

// Stage names recovery strategies for logging and metrics
type Stage string

const (
	StageDirect     Stage = "direct"
	StageFenced     Stage = "fenced"
	StageFenceBrace Stage = "fence_braced"
	StageFenceKV    Stage = "fence_kv"
	StageSpan       Stage = "span"
	StageRepair     Stage = "repair"
	StageHeuristic  Stage = "heuristic"
)

// Normalizer runs the recovery cascade. Each stage is attempted only when
// the previous one fails; the heuristic stage never fails, so only empty
// raw text is a hard error.
type Normalizer struct {
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// New creates a Normalizer
func New(metrics *telemetry.Metrics, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{metrics: metrics, logger: logger}
}

var fencedBlockRegex = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")

// Normalize produces a best-effort candidate object from raw model text.
// truncated signals that the budget manager saw a length-limited stop, which
// unlocks the structural repair stage.
func (n *Normalizer) Normalize(rawText string, truncated bool) (map[string]any, error) {
	trimmed := strings.TrimSpace(rawText)
	if trimmed == "" {
		return nil, &domain.ParseExhaustedError{RawText: rawText}
	}

	if candidate, stage, ok := n.tryStructured(trimmed); ok {
		n.record(stage)
		return candidate, nil
	}

	if truncated {
		if candidate, ok := n.tryRepair(trimmed); ok {
			n.record(StageRepair)
			return candidate, nil
		}
	}

	n.record(StageHeuristic)
	return ExtractSections(trimmed), nil
}

// tryStructured runs the structured parsing stages in order
func (n *Normalizer) tryStructured(text string) (map[string]any, Stage, bool) {
	// Stage 1: the whole text is JSON.
	if candidate, ok := parseObject(text); ok {
		return candidate, StageDirect, true
	}

	// Stage 2: first fenced code block.
	if match := fencedBlockRegex.FindStringSubmatch(text); match != nil {
		content := strings.TrimSpace(match[1])

		if candidate, ok := parseObject(content); ok {
			return candidate, StageFenced, true
		}

		// Stage 3: the fence content may be missing its outer braces.
		if candidate, ok := parseObject("{" + content + "}"); ok {
			return candidate, StageFenceBrace, true
		}
		if candidate, ok := reconstructFromPairs(content); ok {
			return candidate, StageFenceKV, true
		}
	} else if span := firstObjectSpan(text); span != "" {
		// Stage 4: first top-level {...} span, only when no fence exists.
		if candidate, ok := parseObject(span); ok {
			return candidate, StageSpan, true
		}
	}

	return nil, "", false
}

// tryRepair applies structural repair to the most promising fragment and
// reparses
func (n *Normalizer) tryRepair(text string) (map[string]any, bool) {
	fragment := text
	if match := fencedBlockRegex.FindStringSubmatch(text); match != nil {
		fragment = strings.TrimSpace(match[1])
	} else if idx := strings.Index(text, "{"); idx >= 0 {
		fragment = text[idx:]
	}

	repaired := Repair(fragment)
	if candidate, ok := parseObject(repaired); ok {
		n.logger.Debug("truncated response repaired", "original_len", len(fragment), "repaired_len", len(repaired))
		return candidate, true
	}
	return nil, false
}

func (n *Normalizer) record(stage Stage) {
	if n.metrics != nil {
		n.metrics.NormalizerStage.WithLabelValues(string(stage)).Inc()
	}
}

// parseObject parses text as a JSON object
func parseObject(text string) (map[string]any, bool) {
	var candidate map[string]any
	if err := json.Unmarshal([]byte(text), &candidate); err != nil {
		return nil, false
	}
	if candidate == nil {
		return nil, false
	}
	return candidate, true
}

// firstObjectSpan returns the first balanced top-level {...} span, or ""
func firstObjectSpan(text string) string {
	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

var kvPairRegex = regexp.MustCompile(`"[A-Za-z_][A-Za-z0-9_]*"\s*:\s*(?:"(?:[^"\\]|\\.)*"|\[[^\[\]]*\]|-?\d+(?:\.\d+)?|true|false|null)`)

// reconstructFromPairs regex-extracts "key": value pairs and reassembles an
// object, for content that lost its structural glue
func reconstructFromPairs(content string) (map[string]any, bool) {
	pairs := kvPairRegex.FindAllString(content, -1)
	if len(pairs) == 0 {
		return nil, false
	}
	return parseObject("{" + strings.Join(pairs, ",") + "}")
}
