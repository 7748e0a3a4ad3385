// Package domain defines core domain types for the grading pipeline.
package domain

import (
	"context"
)

// =============================================================================
// Provider Types
// =============================================================================

// Provider identifies a generative completion backend
type Provider string

const (
	ProviderGemini  Provider = "gemini"
	ProviderBedrock Provider = "bedrock"
)

// ParseProvider parses a provider string
func ParseProvider(s string) (Provider, bool) {
	switch s {
	case "gemini", "google":
		return ProviderGemini, true
	case "bedrock", "aws", "aws-bedrock", "aws_bedrock":
		return ProviderBedrock, true
	default:
		return "", false
	}
}

// =============================================================================
// Prompt Types
// =============================================================================

// PartKind discriminates the variants of a PromptPart
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
	PartFile  PartKind = "file"
)

// Encoding describes how a non-text part travels to the provider
type Encoding string

const (
	// EncodingInline embeds the bytes directly in the request.
	EncodingInline Encoding = "inline"
	// EncodingReferenced uploads the bytes out-of-band and sends an opaque URI.
	EncodingReferenced Encoding = "referenced"
)

// PromptPart is one unit of multimodal input. Parts are constructed
// per-request and not retained after the request completes.
type PromptPart struct {
	Kind     PartKind `json:"kind"`
	Text     string   `json:"text,omitempty"`
	Data     []byte   `json:"data,omitempty"`
	MimeType string   `json:"mime_type,omitempty"`
	// ExtractedText carries pre-extracted document text when available.
	ExtractedText string   `json:"extracted_text,omitempty"`
	Encoding      Encoding `json:"encoding,omitempty"`
	// FileURI is set for Referenced parts after upload.
	FileURI string `json:"file_uri,omitempty"`
}

// SubmissionFile is a file attached to a submission
type SubmissionFile struct {
	Name          string `json:"name"`
	MimeType      string `json:"mime_type"`
	Data          []byte `json:"data"`
	ExtractedText string `json:"extracted_text,omitempty"`
}

// Submission is the unit of work handed to the grading pipeline
type Submission struct {
	Text          string           `json:"text"`
	Files         []SubmissionFile `json:"files,omitempty"`
	GradingPrompt string           `json:"grading_prompt"`
	Criteria      []string         `json:"criteria,omitempty"`
}

// =============================================================================
// Generation Types
// =============================================================================

// GenerationRequest is a provider-agnostic completion request.
// MaxOutputTokens starts at the base budget and may be raised exactly once
// per logical request by the budget manager.
type GenerationRequest struct {
	Parts             []PromptPart   `json:"parts"`
	SystemInstruction string         `json:"system_instruction,omitempty"`
	Temperature       float32        `json:"temperature"`
	MaxOutputTokens   int32          `json:"max_output_tokens"`
	ResponseSchema    map[string]any `json:"response_schema,omitempty"`
	RequestID         string         `json:"request_id,omitempty"`
}

// Usage contains token accounting for one attempt
type Usage struct {
	PromptTokens     int32 `json:"prompt_tokens"`
	CompletionTokens int32 `json:"completion_tokens"`
	TotalTokens      int32 `json:"total_tokens"`
	// Estimated is true when the provider supplied no usage metadata and
	// completion tokens were derived from text length.
	Estimated bool `json:"estimated,omitempty"`
}

// FinishReason indicates why generation stopped
type FinishReason string

const (
	FinishReasonStop   FinishReason = "stop"
	FinishReasonLength FinishReason = "length"
	FinishReasonError  FinishReason = "error"
)

// GenerationResult is the outcome of one completion attempt
type GenerationResult struct {
	RawText      string       `json:"raw_text"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        *Usage       `json:"usage,omitempty"`
}

// FinishedCleanly reports whether the provider stopped of its own accord
func (r *GenerationResult) FinishedCleanly() bool {
	return r.FinishReason == FinishReasonStop
}

// =============================================================================
// Streaming Types
// =============================================================================

// StreamEvent is one event in a streaming generation
type StreamEvent interface {
	eventType() string
}

// TextChunk is a text content chunk
type TextChunk struct {
	Content string `json:"content"`
}

func (TextChunk) eventType() string { return "text" }

// UsageEvent carries token usage, emitted near the end of a stream
type UsageEvent struct {
	Usage Usage `json:"usage"`
}

func (UsageEvent) eventType() string { return "usage" }

// FinishEvent terminates a stream
type FinishEvent struct {
	Reason FinishReason `json:"reason"`
}

func (FinishEvent) eventType() string { return "finish" }

// =============================================================================
// Feedback Types
// =============================================================================

// CriterionScore is a per-criterion grading entry
type CriterionScore struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback,omitempty"`
}

// StructuredFeedback is the validated grading result. Score is always
// present and within [0,100] after validation.
type StructuredFeedback struct {
	Strengths      []string         `json:"strengths"`
	Improvements   []string         `json:"improvements"`
	Suggestions    []string         `json:"suggestions"`
	Summary        string           `json:"summary"`
	Score          float64          `json:"score"`
	CriteriaScores []CriterionScore `json:"criteriaScores,omitempty"`
	SchemaVersion  string           `json:"schemaVersion"`
}

// =============================================================================
// Interfaces
// =============================================================================

// Generator is the capability interface for completion backends
type Generator interface {
	// Generate performs a single-shot completion
	Generate(ctx context.Context, req *GenerationRequest) (*GenerationResult, error)

	// GenerateStream starts a streaming completion
	GenerateStream(ctx context.Context, req *GenerationRequest) (<-chan StreamEvent, error)

	// Provider returns the backend identity
	Provider() Provider
}

// FileStore uploads bytes out-of-band and returns an opaque reference URI
type FileStore interface {
	Upload(ctx context.Context, data []byte, mimeType string) (string, error)
}
