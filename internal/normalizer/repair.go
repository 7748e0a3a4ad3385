package normalizer

import "strings"

// Repair makes truncated JSON parseable: closes an unterminated string,
// strips a trailing comma or dangling key, and appends the deficit of
// closing braces and brackets in nesting order.
func Repair(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return trimmed
	}

	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(trimmed); i++ {
		c := trimmed[i]
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
		case '{', '[':
			if !inString {
				stack = append(stack, c)
			}
		case '}':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if inString {
		trimmed += `"`
	}

	trimmed = stripDanglingTail(trimmed)

	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			trimmed += "}"
		} else {
			trimmed += "]"
		}
	}

	return trimmed
}

// stripDanglingTail removes a trailing comma, or a key left hanging with no
// value after its colon ("key": <end-of-text>)
func stripDanglingTail(text string) string {
	trimmed := strings.TrimRight(text, " \t\n\r")

	if strings.HasSuffix(trimmed, ",") {
		return strings.TrimRight(trimmed[:len(trimmed)-1], " \t\n\r")
	}

	if strings.HasSuffix(trimmed, ":") {
		// Drop the orphaned key along with its colon.
		rest := strings.TrimRight(trimmed[:len(trimmed)-1], " \t\n\r")
		if strings.HasSuffix(rest, `"`) {
			if open := strings.LastIndex(rest[:len(rest)-1], `"`); open >= 0 {
				rest = strings.TrimRight(rest[:open], " \t\n\r")
				return strings.TrimSuffix(rest, ",")
			}
		}
		return rest
	}

	return trimmed
}
