package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetricsRegisters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.GradingsTotal.WithLabelValues("gemini", "success").Inc()
	m.NormalizerStage.WithLabelValues("direct").Inc()
	m.TruncationRetries.Inc()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}

	found := map[string]bool{}
	for _, f := range families {
		found[f.GetName()] = true
	}
	for _, name := range []string{"gradegate_gradings_total", "gradegate_normalizer_stage_total", "gradegate_truncation_retries_total"} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}

func TestGradingRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	rec := m.NewGradingRecorder("gemini")
	rec.RecordSuccess(100, 40)

	rec = m.NewGradingRecorder("gemini")
	rec.RecordError("transient")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == "gradegate_gradings_total" {
			total := 0.0
			for _, metric := range f.GetMetric() {
				total += metric.GetCounter().GetValue()
			}
			if total != 2 {
				t.Errorf("gradings_total = %v, want 2", total)
			}
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	logger := NewLogger("json", "debug")
	if !logger.Enabled(nil, slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}

	logger = NewLogger("json", "warn")
	if logger.Enabled(nil, slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
}

func TestLoggerEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("graded", "score", 82)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "graded" {
		t.Errorf("msg = %v", entry["msg"])
	}
}
