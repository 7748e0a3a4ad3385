// Package assembler converts submissions into ordered prompt parts.
package assembler

import (
	"context"
	"log/slog"

	"gradegate/internal/domain"
	"gradegate/internal/telemetry"
)

// Assembler turns a submission into the ordered part sequence sent to the
// completion provider: grading instruction first, submission parts in
// order, then a trailing instruction describing the expected response shape.
type Assembler struct {
	screener         *Screener
	files            domain.FileStore // nil when the provider has no upload API
	inlineImageLimit int64
	metrics          *telemetry.Metrics
	logger           *slog.Logger
}

// Options configures an Assembler
type Options struct {
	InjectionSensitivity string
	InlineImageLimit     int64
	FileStore            domain.FileStore
	Metrics              *telemetry.Metrics
	Logger               *slog.Logger
}

// New creates an Assembler
func New(opts Options) *Assembler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.InlineImageLimit
	if limit <= 0 {
		limit = 3 * 1024 * 1024
	}
	return &Assembler{
		screener:         NewScreener(opts.InjectionSensitivity),
		files:            opts.FileStore,
		inlineImageLimit: limit,
		metrics:          opts.Metrics,
		logger:           logger,
	}
}

// Assemble validates, screens, and encodes a submission. Referenced parts
// are uploaded through the file store when one is configured; otherwise
// they keep their bytes and the provider embeds them directly.
func (a *Assembler) Assemble(ctx context.Context, sub *domain.Submission) ([]domain.PromptPart, error) {
	text := Sanitize(sub.Text)
	prompt := Sanitize(sub.GradingPrompt)

	if text == "" && len(sub.Files) == 0 {
		return nil, &domain.InputRejectedError{}
	}

	for _, candidate := range []string{text, prompt} {
		if candidate == "" {
			continue
		}
		if det := a.screener.Screen(candidate); det != nil {
			a.logger.Warn("prompt injection detected",
				"category", det.Category,
				"pattern", det.Pattern,
				"method", det.Method,
				"confidence", det.Confidence,
			)
			if a.metrics != nil {
				a.metrics.InjectionDetections.WithLabelValues(det.Category, det.Method).Inc()
			}
			return nil, &domain.InputRejectedError{Pattern: det.Pattern, Category: det.Category}
		}
	}

	var parts []domain.PromptPart

	if prompt != "" {
		parts = append(parts, domain.PromptPart{Kind: domain.PartText, Text: prompt})
	}
	if text != "" {
		parts = append(parts, domain.PromptPart{Kind: domain.PartText, Text: text})
	}

	for _, file := range sub.Files {
		part, err := a.encodeFile(ctx, file)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}

	parts = append(parts, domain.PromptPart{Kind: domain.PartText, Text: responseShapeInstruction(sub.Criteria)})

	return parts, nil
}

// encodeFile applies the encoding decision and uploads referenced parts
func (a *Assembler) encodeFile(ctx context.Context, file domain.SubmissionFile) (domain.PromptPart, error) {
	kind := domain.PartFile
	if isRasterImage(file.MimeType) {
		kind = domain.PartImage
	}

	part := domain.PromptPart{
		Kind:          kind,
		Data:          file.Data,
		MimeType:      file.MimeType,
		ExtractedText: Sanitize(file.ExtractedText),
		Encoding:      DecideEncoding(file.MimeType, int64(len(file.Data)), a.inlineImageLimit),
	}

	if part.Encoding == domain.EncodingReferenced && a.files != nil {
		uri, err := a.files.Upload(ctx, file.Data, file.MimeType)
		if err != nil {
			if a.metrics != nil {
				a.metrics.UploadsTotal.WithLabelValues(file.MimeType, "error").Inc()
			}
			if domain.IsTransient(err) {
				return domain.PromptPart{}, err
			}
			return domain.PromptPart{}, &domain.UploadFailedError{
				MimeType: file.MimeType,
				Size:     len(file.Data),
				Err:      err,
			}
		}
		if a.metrics != nil {
			a.metrics.UploadsTotal.WithLabelValues(file.MimeType, "success").Inc()
		}
		part.FileURI = uri
		part.Data = nil
	}

	return part, nil
}

func isRasterImage(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/gif", "image/webp", "image/bmp", "image/tiff":
		return true
	}
	return false
}

// responseShapeInstruction is the trailing part telling the model how to
// shape its answer
func responseShapeInstruction(criteria []string) string {
	base := `Respond with a single JSON object and nothing else. The object must have the keys "strengths" (array of strings), "improvements" (array of strings), "suggestions" (array of strings), "summary" (string), and "score" (number between 0 and 100).`
	if len(criteria) == 0 {
		return base
	}
	instruction := base + ` Also include "criteriaScores": an array of objects with "name", "score", and "feedback" for each of these criteria:`
	for _, c := range criteria {
		instruction += " " + c + ";"
	}
	return instruction
}
