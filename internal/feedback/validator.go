package feedback

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"gradegate/internal/domain"
)

// neutralScore is the fallback when a score is missing or out of range.
const neutralScore = 75.0

// Validate coerces a normalizer candidate into a StructuredFeedback and
// checks it against the grading schema. Missing lists default to empty,
// missing or out-of-range scores default to the neutral value, and
// incomplete criteriaScores entries are dropped. A present field with an
// irreconcilable type fails with SchemaValidationError.
func Validate(candidate map[string]any, rawText string) (*domain.StructuredFeedback, error) {
	fb := &domain.StructuredFeedback{
		Strengths:     []string{},
		Improvements:  []string{},
		Suggestions:   []string{},
		SchemaVersion: SchemaVersion,
	}

	for _, field := range []struct {
		key  string
		dest *[]string
	}{
		{"strengths", &fb.Strengths},
		{"improvements", &fb.Improvements},
		{"suggestions", &fb.Suggestions},
	} {
		list, err := coerceStringList(candidate, field.key)
		if err != nil {
			return nil, &domain.SchemaValidationError{RawText: rawText, Candidate: candidate, Detail: err.Error()}
		}
		*field.dest = list
	}

	score, err := coerceScore(candidate)
	if err != nil {
		return nil, &domain.SchemaValidationError{RawText: rawText, Candidate: candidate, Detail: err.Error()}
	}
	fb.Score = score

	summary, err := coerceSummary(candidate)
	if err != nil {
		return nil, &domain.SchemaValidationError{RawText: rawText, Candidate: candidate, Detail: err.Error()}
	}
	fb.Summary = summary

	criteria, err := coerceCriteria(candidate)
	if err != nil {
		return nil, &domain.SchemaValidationError{RawText: rawText, Candidate: candidate, Detail: err.Error()}
	}
	fb.CriteriaScores = criteria

	if err := checkSchema(fb); err != nil {
		return nil, &domain.SchemaValidationError{RawText: rawText, Candidate: candidate, Detail: err.Error()}
	}

	return fb, nil
}

// checkSchema runs the structural check over the coerced object
func checkSchema(fb *domain.StructuredFeedback) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(Schema()),
		gojsonschema.NewGoLoader(fb),
	)
	if err != nil {
		return fmt.Errorf("schema check: %w", err)
	}
	if !result.Valid() {
		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("schema violations: %s", strings.Join(details, "; "))
	}
	return nil
}

func coerceStringList(candidate map[string]any, key string) ([]string, error) {
	raw, ok := candidate[key]
	if !ok || raw == nil {
		return []string{}, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q: expected array, got %T", key, raw)
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case float64:
			out = append(out, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			// Non-scalar list entries are dropped rather than failing
			// the whole validation.
		}
	}
	return out, nil
}

func coerceScore(candidate map[string]any) (float64, error) {
	raw, ok := candidate["score"]
	if !ok || raw == nil {
		return neutralScore, nil
	}

	var value float64
	switch v := raw.(type) {
	case float64:
		value = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("field \"score\": expected number, got %q", v)
		}
		value = parsed
	default:
		return 0, fmt.Errorf("field \"score\": expected number, got %T", raw)
	}

	if value < 0 || value > 100 {
		return neutralScore, nil
	}
	return value, nil
}

func coerceSummary(candidate map[string]any) (string, error) {
	raw, ok := candidate["summary"]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field \"summary\": expected string, got %T", raw)
	}
	return strings.TrimSpace(s), nil
}

func coerceCriteria(candidate map[string]any) ([]domain.CriterionScore, error) {
	raw, ok := candidate["criteriaScores"]
	if !ok || raw == nil {
		return nil, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("field \"criteriaScores\": expected array, got %T", raw)
	}

	var out []domain.CriterionScore
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		score, hasScore := entry["score"].(float64)
		if name == "" || !hasScore {
			// Entries missing a sub-field are dropped.
			continue
		}
		feedbackText, _ := entry["feedback"].(string)
		out = append(out, domain.CriterionScore{
			Name:     name,
			Score:    score,
			Feedback: feedbackText,
		})
	}
	return out, nil
}
