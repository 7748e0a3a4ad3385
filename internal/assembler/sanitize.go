package assembler

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	htmlTagRegex    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`[ \t]+`)
)

// Sanitize strips HTML tags and control characters from submission text and
// applies NFKC normalization. Newlines are preserved so list structure in
// the submission survives.
func Sanitize(input string) string {
	result := htmlTagRegex.ReplaceAllString(input, " ")
	result = norm.NFKC.String(result)
	result = stripControlChars(result)
	result = whitespaceRegex.ReplaceAllString(result, " ")

	var lines []string
	for _, line := range strings.Split(result, "\n") {
		lines = append(lines, strings.TrimRight(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// stripControlChars removes control and zero-width characters, keeping
// tabs and newlines
func stripControlChars(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\t' && r != '\n' {
			continue
		}
		switch r {
		case '\u200B', '\u200C', '\u200D', '\u200E', '\u200F',
			'\u2060', '\u2061', '\u2062', '\u2063', '\u2064',
			'\uFEFF':
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}
