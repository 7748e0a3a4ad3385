package assembler

import "testing"

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text unchanged",
			input:    "A well argued essay.",
			expected: "A well argued essay.",
		},
		{
			name:     "strips html tags",
			input:    "An <b>important</b> point <script>alert(1)</script>here",
			expected: "An important point alert(1) here",
		},
		{
			name:     "removes zero width characters",
			input:    "ign​ore th‌is",
			expected: "ignore this",
		},
		{
			name:     "removes byte order mark",
			input:    "\uFEFFhello",
			expected: "hello",
		},
		{
			name:     "collapses runs of spaces and tabs",
			input:    "too   many\t\tspaces",
			expected: "too many spaces",
		},
		{
			name:     "preserves newlines",
			input:    "first line\nsecond line",
			expected: "first line\nsecond line",
		},
		{
			name:     "trims surrounding whitespace",
			input:    "  padded  ",
			expected: "padded",
		},
		{
			name:     "normalizes compatibility forms",
			input:    "ﬁnal",
			expected: "final",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.input)
			if got != tt.expected {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
