package domain

import (
	"errors"
	"fmt"
)

// InputRejectedError is raised when a submission trips injection screening
// or is empty. Raised before any external call is made.
type InputRejectedError struct {
	Pattern  string
	Category string
}

func (e *InputRejectedError) Error() string {
	if e.Pattern == "" {
		return "input rejected: empty or invalid prompt"
	}
	return fmt.Sprintf("input rejected: %s pattern %q detected", e.Category, e.Pattern)
}

// TransientServiceError classifies timeouts, rate limits, and provider-side
// failures. The surrounding job layer owns retry policy for these.
type TransientServiceError struct {
	Provider Provider
	Op       string
	Err      error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("%s %s: transient failure: %v", e.Provider, e.Op, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// UploadFailedError reports a failed file reference creation. Carries mime
// type and size for operator diagnosis.
type UploadFailedError struct {
	MimeType string
	Size     int
	Err      error
}

func (e *UploadFailedError) Error() string {
	return fmt.Sprintf("upload failed for %s (%d bytes): %v", e.MimeType, e.Size, e.Err)
}

func (e *UploadFailedError) Unwrap() error { return e.Err }

// ParseExhaustedError means every normalizer stage failed to produce a
// candidate object. Only possible on empty or degenerate raw text.
type ParseExhaustedError struct {
	RawText string
}

func (e *ParseExhaustedError) Error() string {
	return fmt.Sprintf("parse recovery exhausted (%d bytes of raw text)", len(e.RawText))
}

// SchemaValidationError means a candidate object parsed but a present field
// has an irreconcilable type. Carries the raw text and the partially-coerced
// candidate for diagnosis.
type SchemaValidationError struct {
	RawText   string
	Candidate map[string]any
	Detail    string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("feedback failed schema validation: %s", e.Detail)
}

// IsTransient reports whether err should be retried at the job level
func IsTransient(err error) bool {
	var te *TransientServiceError
	return errors.As(err, &te)
}
