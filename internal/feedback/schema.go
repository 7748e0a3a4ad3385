// Package feedback defines the grading schema and validates candidate objects.
package feedback

// SchemaVersion is stamped on every validated feedback object.
const SchemaVersion = "1.0"

// Schema returns the canonical grading feedback JSON schema (draft-07)
func Schema() map[string]any {
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "object",
		"properties": map[string]any{
			"strengths": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"improvements": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"suggestions": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"summary": map[string]any{"type": "string"},
			"score": map[string]any{
				"type":    "number",
				"minimum": 0,
				"maximum": 100,
			},
			"criteriaScores": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":     map[string]any{"type": "string"},
						"score":    map[string]any{"type": "number"},
						"feedback": map[string]any{"type": "string"},
					},
					"required": []string{"name", "score"},
				},
			},
			"schemaVersion": map[string]any{"type": "string"},
		},
		"required": []string{"strengths", "improvements", "suggestions", "summary", "score"},
	}
}
