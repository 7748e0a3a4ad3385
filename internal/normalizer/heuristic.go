package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

// defaultScore is used when no usable score can be extracted from prose.
const defaultScore = 75.0

var (
	sectionHeadingRegex = regexp.MustCompile(`(?i)^\s*(?:#+\s*|\*\*)?\s*(strengths?|improvements?|suggestions?|areas? for improvement)\b`)
	listItemRegex       = regexp.MustCompile(`^\s*(?:\d+[.)]\s+|[-*•]\s+)(.+)$`)
	scoreRegex          = regexp.MustCompile(`(?i)\b(?:score|rating|grade)\b\s*[:=]?\s*(\d+(?:\.\d+)?)(?:\s*/\s*(\d+))?`)
	summaryLabelRegex   = regexp.MustCompile(`(?i)^\s*(?:#+\s*|\*\*)?\s*(summary|overview)\b\s*(?:\*\*)?\s*:?\s*(.*)$`)
	headingLineRegex    = regexp.MustCompile(`^\s*(?:#+\s|\*\*[^*]+\*\*\s*:?\s*$)`)
)

// ExtractSections is the last-resort recovery path: scan prose for labeled
// sections, list items, a score, and a summary. It always returns an
// object, possibly with empty lists and the default score.
func ExtractSections(text string) map[string]any {
	lines := strings.Split(text, "\n")

	sections := map[string][]any{
		"strengths":    {},
		"improvements": {},
		"suggestions":  {},
	}

	current := ""
	for _, line := range lines {
		if match := sectionHeadingRegex.FindStringSubmatch(line); match != nil {
			current = canonicalSection(match[1])
			continue
		}
		if current == "" {
			continue
		}
		if item := listItemRegex.FindStringSubmatch(line); item != nil {
			sections[current] = append(sections[current], strings.TrimSpace(item[1]))
		} else if strings.TrimSpace(line) == "" {
			// A blank line ends a section only if another heading follows;
			// keep scanning.
			continue
		}
	}

	candidate := map[string]any{
		"strengths":    sections["strengths"],
		"improvements": sections["improvements"],
		"suggestions":  sections["suggestions"],
		"score":        extractScore(text),
		"summary":      extractSummary(lines),
	}
	return candidate
}

func canonicalSection(heading string) string {
	switch strings.ToLower(strings.TrimSpace(heading)) {
	case "strength", "strengths":
		return "strengths"
	case "suggestion", "suggestions":
		return "suggestions"
	default:
		return "improvements"
	}
}

// extractScore finds the first score/rating/grade number, normalizes
// fractions like 8/10 to a 0-100 scale, and falls back to the default when
// the value is out of range
func extractScore(text string) float64 {
	match := scoreRegex.FindStringSubmatch(text)
	if match == nil {
		return defaultScore
	}

	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return defaultScore
	}

	if match[2] != "" {
		if denom, err := strconv.ParseFloat(match[2], 64); err == nil && denom > 0 {
			value = value / denom * 100
		}
	}

	if value < 0 || value > 100 {
		return defaultScore
	}
	return value
}

// extractSummary prefers a labeled summary/overview line, then the first
// non-heading paragraph
func extractSummary(lines []string) string {
	for i, line := range lines {
		if match := summaryLabelRegex.FindStringSubmatch(line); match != nil {
			if rest := strings.TrimSpace(match[2]); rest != "" {
				return rest
			}
			for j := i + 1; j < len(lines); j++ {
				if s := strings.TrimSpace(lines[j]); s != "" {
					return s
				}
			}
		}
	}

	for _, line := range lines {
		s := strings.TrimSpace(line)
		if s == "" || headingLineRegex.MatchString(line) ||
			sectionHeadingRegex.MatchString(line) || listItemRegex.MatchString(line) {
			continue
		}
		return s
	}
	return ""
}
