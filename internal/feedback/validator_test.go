package feedback

import (
	"errors"
	"testing"

	"gradegate/internal/domain"
)

func TestValidateCompleteCandidate(t *testing.T) {
	candidate := map[string]any{
		"strengths":    []any{"clear argument", "good pacing"},
		"improvements": []any{"weak citations"},
		"suggestions":  []any{"add a counterargument"},
		"summary":      "A strong draft.",
		"score":        87.0,
	}

	fb, err := Validate(candidate, "raw")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if fb.Score != 87.0 {
		t.Errorf("Score = %v, want 87", fb.Score)
	}
	if len(fb.Strengths) != 2 || fb.Strengths[0] != "clear argument" {
		t.Errorf("Strengths = %v", fb.Strengths)
	}
	if fb.SchemaVersion != SchemaVersion {
		t.Errorf("SchemaVersion = %q, want %q", fb.SchemaVersion, SchemaVersion)
	}
}

func TestValidateDefaults(t *testing.T) {
	fb, err := Validate(map[string]any{}, "raw")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if fb.Score != 75.0 {
		t.Errorf("missing score should default to 75, got %v", fb.Score)
	}
	if fb.Strengths == nil || len(fb.Strengths) != 0 {
		t.Errorf("Strengths = %v, want empty non-nil", fb.Strengths)
	}
	if fb.Summary != "" {
		t.Errorf("Summary = %q, want empty", fb.Summary)
	}
}

func TestValidateScoreCoercion(t *testing.T) {
	tests := []struct {
		name     string
		score    any
		expected float64
		wantErr  bool
	}{
		{"number", 42.0, 42, false},
		{"numeric string", "91", 91, false},
		{"out of range high", 120.0, 75, false},
		{"out of range negative", -5.0, 75, false},
		{"non numeric string", "excellent", 0, true},
		{"wrong type", []any{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, err := Validate(map[string]any{"score": tt.score}, "raw")
			if tt.wantErr {
				var schemaErr *domain.SchemaValidationError
				if !errors.As(err, &schemaErr) {
					t.Fatalf("error = %v, want SchemaValidationError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if fb.Score != tt.expected {
				t.Errorf("Score = %v, want %v", fb.Score, tt.expected)
			}
		})
	}
}

func TestValidateListCoercion(t *testing.T) {
	t.Run("non array fails", func(t *testing.T) {
		_, err := Validate(map[string]any{"strengths": "not a list"}, "raw")
		var schemaErr *domain.SchemaValidationError
		if !errors.As(err, &schemaErr) {
			t.Fatalf("error = %v, want SchemaValidationError", err)
		}
	})

	t.Run("mixed entries", func(t *testing.T) {
		fb, err := Validate(map[string]any{
			"strengths": []any{"good", 7.0, map[string]any{"x": 1}, "  ", "fine"},
		}, "raw")
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		// Strings kept, numbers stringified, objects and blanks dropped.
		want := []string{"good", "7", "fine"}
		if len(fb.Strengths) != len(want) {
			t.Fatalf("Strengths = %v, want %v", fb.Strengths, want)
		}
		for i := range want {
			if fb.Strengths[i] != want[i] {
				t.Errorf("Strengths[%d] = %q, want %q", i, fb.Strengths[i], want[i])
			}
		}
	})
}

func TestValidateCriteriaScores(t *testing.T) {
	candidate := map[string]any{
		"criteriaScores": []any{
			map[string]any{"name": "Clarity", "score": 80.0, "feedback": "mostly clear"},
			map[string]any{"name": "Evidence"},       // missing score, dropped
			map[string]any{"score": 60.0},            // missing name, dropped
			"not an object",                          // dropped
			map[string]any{"name": "Style", "score": 70.0},
		},
	}

	fb, err := Validate(candidate, "raw")
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(fb.CriteriaScores) != 2 {
		t.Fatalf("CriteriaScores = %v, want 2 entries", fb.CriteriaScores)
	}
	if fb.CriteriaScores[0].Name != "Clarity" || fb.CriteriaScores[0].Feedback != "mostly clear" {
		t.Errorf("first criterion = %+v", fb.CriteriaScores[0])
	}
	if fb.CriteriaScores[1].Name != "Style" {
		t.Errorf("second criterion = %+v", fb.CriteriaScores[1])
	}
}

func TestValidateSummaryTypeMismatch(t *testing.T) {
	_, err := Validate(map[string]any{"summary": 12.0}, "raw text here")
	var schemaErr *domain.SchemaValidationError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v, want SchemaValidationError", err)
	}
	if schemaErr.RawText != "raw text here" {
		t.Errorf("RawText = %q, want original raw text", schemaErr.RawText)
	}
}
