// Package pipeline orchestrates grading: assemble, generate, normalize, validate.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gradegate/internal/assembler"
	"gradegate/internal/budget"
	"gradegate/internal/domain"
	"gradegate/internal/feedback"
	"gradegate/internal/normalizer"
	"gradegate/internal/telemetry"
)

// Pipeline turns a submission into validated structured feedback. Each run
// is request-scoped; the only shared state lives in the file store's dedup
// index and the metrics registry.
type Pipeline struct {
	assembler   *assembler.Assembler
	budget      *budget.Manager
	generator   domain.Generator
	normalizer  *normalizer.Normalizer
	temperature float32
	metrics     *telemetry.Metrics
	logger      *slog.Logger
}

// Options configures a Pipeline
type Options struct {
	Assembler   *assembler.Assembler
	Budget      *budget.Manager
	Generator   domain.Generator
	Normalizer  *normalizer.Normalizer
	Temperature float32
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger
}

// New creates a Pipeline
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		assembler:   opts.Assembler,
		budget:      opts.Budget,
		generator:   opts.Generator,
		normalizer:  opts.Normalizer,
		temperature: opts.Temperature,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// Grade runs the full pipeline for one submission
func (p *Pipeline) Grade(ctx context.Context, sub *domain.Submission) (*domain.StructuredFeedback, error) {
	requestID := uuid.NewString()
	logger := p.logger.With("request_id", requestID, "provider", string(p.generator.Provider()))

	var recorder *telemetry.GradingRecorder
	if p.metrics != nil {
		recorder = p.metrics.NewGradingRecorder(string(p.generator.Provider()))
	}

	fb, usage, err := p.grade(ctx, sub, requestID, logger)
	if recorder != nil {
		if err != nil {
			recorder.RecordError(errorType(err))
		} else {
			var promptTokens, completionTokens int64
			if usage != nil {
				promptTokens = int64(usage.PromptTokens)
				completionTokens = int64(usage.CompletionTokens)
			}
			recorder.RecordSuccess(promptTokens, completionTokens)
		}
	}
	return fb, err
}

func (p *Pipeline) grade(ctx context.Context, sub *domain.Submission, requestID string, logger *slog.Logger) (*domain.StructuredFeedback, *domain.Usage, error) {
	parts, err := p.assembler.Assemble(ctx, sub)
	if err != nil {
		logger.Warn("submission rejected during assembly", "error", err)
		return nil, nil, err
	}

	req := &domain.GenerationRequest{
		Parts:           parts,
		Temperature:     p.temperature,
		MaxOutputTokens: p.budget.Base(),
		ResponseSchema:  feedback.Schema(),
		RequestID:       requestID,
	}

	result, err := p.generate(ctx, req)
	if err != nil {
		logger.Error("generation failed", "error", err)
		return nil, nil, err
	}

	truncated := p.budget.Truncated(result)
	if ceiling, retry := p.budget.NextAttempt(1, truncated); retry {
		logger.Info("truncated response, retrying with raised ceiling",
			"base", p.budget.Base(), "retry", ceiling)
		if p.metrics != nil {
			p.metrics.TruncationRetries.Inc()
		}

		req.MaxOutputTokens = ceiling
		retried, err := p.generate(ctx, req)
		if err != nil {
			// The first attempt still holds usable text; absorb the
			// retry failure and continue into repair.
			logger.Warn("budget retry failed, proceeding with first attempt", "error", err)
		} else {
			result = retried
			truncated = p.budget.Truncated(result)
		}
	}

	candidate, err := p.normalizer.Normalize(result.RawText, truncated)
	if err != nil {
		logger.Error("parse recovery exhausted", "raw_len", len(result.RawText))
		return nil, nil, err
	}

	fb, err := feedback.Validate(candidate, result.RawText)
	if err != nil {
		logger.Error("feedback failed validation", "error", err)
		return nil, nil, err
	}

	logger.Info("submission graded",
		"score", fb.Score,
		"strengths", len(fb.Strengths),
		"improvements", len(fb.Improvements),
		"truncated", truncated,
	)

	return fb, result.Usage, nil
}

// generate calls the backend and records per-provider request metrics
func (p *Pipeline) generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	provider := string(p.generator.Provider())
	if p.metrics != nil {
		p.metrics.ProviderRequests.WithLabelValues(provider).Inc()
	}

	start := time.Now()
	result, err := p.generator.Generate(ctx, req)
	if p.metrics != nil {
		p.metrics.ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	}
	return result, err
}

// errorType labels an error for metrics
func errorType(err error) string {
	var (
		rejected  *domain.InputRejectedError
		transient *domain.TransientServiceError
		upload    *domain.UploadFailedError
		exhausted *domain.ParseExhaustedError
		schema    *domain.SchemaValidationError
	)
	switch {
	case errors.As(err, &rejected):
		return "input_rejected"
	case errors.As(err, &transient):
		return "transient"
	case errors.As(err, &upload):
		return "upload_failed"
	case errors.As(err, &exhausted):
		return "parse_exhausted"
	case errors.As(err, &schema):
		return "schema_validation"
	}
	return "internal"
}
