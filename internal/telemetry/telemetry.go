// Package telemetry provides observability with Prometheus metrics and structured logging.
package telemetry

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the grading pipeline
type Metrics struct {
	// Pipeline metrics
	GradingsTotal   *prometheus.CounterVec
	GradingDuration *prometheus.HistogramVec

	// Token metrics
	TokensInput  *prometheus.CounterVec
	TokensOutput *prometheus.CounterVec

	// Budget metrics
	TruncationRetries prometheus.Counter

	// Normalizer metrics
	NormalizerStage *prometheus.CounterVec

	// Assembler metrics
	InjectionDetections *prometheus.CounterVec
	UploadsTotal        *prometheus.CounterVec
	UploadDedupHits     prometheus.Counter

	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	// Cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheSets      *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		GradingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_gradings_total",
				Help: "Total grading pipeline runs",
			},
			[]string{"provider", "status"},
		),

		GradingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gradegate_grading_duration_seconds",
				Help:    "Grading pipeline duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),

		TokensInput: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_tokens_input_total",
				Help: "Total prompt tokens sent",
			},
			[]string{"provider"},
		),

		TokensOutput: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_tokens_output_total",
				Help: "Total completion tokens received",
			},
			[]string{"provider"},
		),

		TruncationRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gradegate_truncation_retries_total",
				Help: "Total single-shot budget escalations after truncation",
			},
		),

		NormalizerStage: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_normalizer_stage_total",
				Help: "Recovery stage that produced the candidate object",
			},
			[]string{"stage"},
		),

		InjectionDetections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_injection_detections_total",
				Help: "Prompt injection detections by category and method",
			},
			[]string{"category", "method"},
		),

		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_uploads_total",
				Help: "File reference uploads by mime type and status",
			},
			[]string{"mime_type", "status"},
		),

		UploadDedupHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gradegate_upload_dedup_hits_total",
				Help: "Uploads avoided by content-hash reuse",
			},
		),

		ProviderRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_provider_requests_total",
				Help: "Total requests per provider",
			},
			[]string{"provider"},
		),

		ProviderErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_provider_errors_total",
				Help: "Total errors per provider",
			},
			[]string{"provider", "error_type"},
		),

		ProviderLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gradegate_provider_latency_seconds",
				Help:    "Provider API latency in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),

		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_cache_hits_total",
				Help: "Response cache hits",
			},
			[]string{"cache"},
		),

		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_cache_misses_total",
				Help: "Response cache misses",
			},
			[]string{"cache"},
		),

		CacheSets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_cache_sets_total",
				Help: "Response cache stores",
			},
			[]string{"cache"},
		),

		CacheEvictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gradegate_cache_evictions_total",
				Help: "Response cache evictions by sweep",
			},
			[]string{"cache"},
		),
	}
}

// Handler returns an HTTP handler for Prometheus metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// GradingRecorder records metrics for one pipeline run
type GradingRecorder struct {
	metrics   *Metrics
	provider  string
	startTime time.Time
}

// NewGradingRecorder starts timing a pipeline run
func (m *Metrics) NewGradingRecorder(provider string) *GradingRecorder {
	return &GradingRecorder{
		metrics:   m,
		provider:  provider,
		startTime: time.Now(),
	}
}

// RecordSuccess records a completed run with its token usage
func (r *GradingRecorder) RecordSuccess(promptTokens, completionTokens int64) {
	duration := time.Since(r.startTime).Seconds()
	r.metrics.GradingsTotal.WithLabelValues(r.provider, "success").Inc()
	r.metrics.GradingDuration.WithLabelValues(r.provider).Observe(duration)
	r.metrics.TokensInput.WithLabelValues(r.provider).Add(float64(promptTokens))
	r.metrics.TokensOutput.WithLabelValues(r.provider).Add(float64(completionTokens))
}

// RecordError records a failed run
func (r *GradingRecorder) RecordError(errorType string) {
	duration := time.Since(r.startTime).Seconds()
	r.metrics.GradingsTotal.WithLabelValues(r.provider, "error").Inc()
	r.metrics.GradingDuration.WithLabelValues(r.provider).Observe(duration)
	r.metrics.ProviderErrors.WithLabelValues(r.provider, errorType).Inc()
}

// NewLogger builds the process logger from config values
func NewLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
