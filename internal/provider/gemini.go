package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gradegate/internal/config"
	"gradegate/internal/domain"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiGenerator talks to the Gemini generateContent API over raw HTTP
type GeminiGenerator struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ domain.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a Gemini backend
func NewGeminiGenerator(cfg config.GeminiConfig, timeout time.Duration) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiGenerator{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: buildHTTPClient(timeout),
	}, nil
}

// Provider returns the backend identity
func (g *GeminiGenerator) Provider() domain.Provider {
	return domain.ProviderGemini
}

// GenerateStream starts a streaming completion. Pre-flight failures (bad
// status, network error) return an error; mid-stream failures surface as a
// FinishEvent with reason error.
func (g *GeminiGenerator) GenerateStream(ctx context.Context, req *domain.GenerationRequest) (<-chan domain.StreamEvent, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?key=%s&alt=sse", g.baseURL, g.model, g.apiKey)

	body, err := json.Marshal(g.buildRequest(req))
	if err != nil {
		// Marshalling our own map is a programming error, not a provider fault.
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	slog.Debug("gemini request",
		"model", g.model,
		"parts", len(req.Parts),
		"max_output_tokens", req.MaxOutputTokens,
		"request_id", req.RequestID,
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransientServiceError{Provider: domain.ProviderGemini, Op: "generate", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		apiErr := fmt.Errorf("API error: %s - %s", resp.Status, truncate(string(bodyBytes), 500))
		if transientStatus(resp.StatusCode) {
			return nil, &domain.TransientServiceError{Provider: domain.ProviderGemini, Op: "generate", Err: apiErr}
		}
		return nil, apiErr
	}

	eventChan := make(chan domain.StreamEvent, 64)
	go func() {
		defer close(eventChan)
		defer resp.Body.Close()
		g.readStream(resp.Body, eventChan)
	}()

	return eventChan, nil
}

// Generate collects a full result from the streaming call
func (g *GeminiGenerator) Generate(ctx context.Context, req *domain.GenerationRequest) (*domain.GenerationResult, error) {
	events, err := g.GenerateStream(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &domain.GenerationResult{FinishReason: domain.FinishReasonStop}
	var text strings.Builder

	for event := range events {
		switch e := event.(type) {
		case domain.TextChunk:
			text.WriteString(e.Content)
		case domain.UsageEvent:
			usage := e.Usage
			result.Usage = &usage
		case domain.FinishEvent:
			result.FinishReason = e.Reason
		}
	}

	result.RawText = text.String()

	if result.FinishReason == domain.FinishReasonError {
		return nil, &domain.TransientServiceError{
			Provider: domain.ProviderGemini,
			Op:       "generate",
			Err:      fmt.Errorf("stream terminated abnormally"),
		}
	}

	if result.Usage == nil {
		result.Usage = &domain.Usage{
			CompletionTokens: estimateCompletionTokens(result.RawText),
			Estimated:        true,
		}
	}

	return result, nil
}

// buildRequest builds the generateContent JSON body
func (g *GeminiGenerator) buildRequest(req *domain.GenerationRequest) map[string]any {
	geminiReq := map[string]any{}

	var parts []map[string]any
	for _, part := range req.Parts {
		switch {
		case part.Kind == domain.PartText:
			parts = append(parts, map[string]any{"text": part.Text})
		case part.FileURI != "":
			parts = append(parts, map[string]any{
				"fileData": map[string]string{
					"fileUri":  part.FileURI,
					"mimeType": part.MimeType,
				},
			})
		default:
			parts = append(parts, map[string]any{
				"inlineData": map[string]string{
					"mimeType": part.MimeType,
					"data":     base64.StdEncoding.EncodeToString(part.Data),
				},
			})
		}
	}

	geminiReq["contents"] = []map[string]any{
		{"role": "user", "parts": parts},
	}

	if req.SystemInstruction != "" {
		geminiReq["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": req.SystemInstruction}},
		}
	}

	generationConfig := map[string]any{
		"temperature":     req.Temperature,
		"maxOutputTokens": req.MaxOutputTokens,
	}
	if req.ResponseSchema != nil {
		generationConfig["responseMimeType"] = "application/json"
	}
	geminiReq["generationConfig"] = generationConfig

	return geminiReq
}

// readStream parses the SSE response into stream events
func (g *GeminiGenerator) readStream(body io.Reader, eventChan chan<- domain.StreamEvent) {
	reader := NewSSEReader(body)
	finished := false

	for {
		event, err := reader.ReadEvent()
		if err != nil {
			if err != io.EOF {
				eventChan <- domain.FinishEvent{Reason: domain.FinishReasonError}
				return
			}
			if !finished {
				eventChan <- domain.FinishEvent{Reason: domain.FinishReasonStop}
			}
			return
		}
		if g.parseChunk(event.Data, eventChan) {
			finished = true
		}
	}
}

// parseChunk parses one JSON chunk, returning true once a finish reason
// was emitted
func (g *GeminiGenerator) parseChunk(data string, eventChan chan<- domain.StreamEvent) bool {
	var chunk struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int32 `json:"promptTokenCount"`
			CandidatesTokenCount int32 `json:"candidatesTokenCount"`
			TotalTokenCount      int32 `json:"totalTokenCount"`
		} `json:"usageMetadata"`
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		slog.Error("gemini chunk parse failed", "error", err, "data", truncate(data, 200))
		return false
	}

	if chunk.Error.Message != "" {
		slog.Error("gemini API error in stream", "code", chunk.Error.Code, "message", chunk.Error.Message)
		eventChan <- domain.FinishEvent{Reason: domain.FinishReasonError}
		return true
	}

	for _, candidate := range chunk.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				eventChan <- domain.TextChunk{Content: part.Text}
			}
		}
	}

	if chunk.UsageMetadata.TotalTokenCount > 0 {
		eventChan <- domain.UsageEvent{Usage: domain.Usage{
			PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
			CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
		}}
	}

	finished := false
	for _, candidate := range chunk.Candidates {
		if candidate.FinishReason == "" {
			continue
		}
		var reason domain.FinishReason
		switch candidate.FinishReason {
		case "MAX_TOKENS":
			reason = domain.FinishReasonLength
		default:
			reason = domain.FinishReasonStop
		}
		eventChan <- domain.FinishEvent{Reason: reason}
		finished = true
	}
	return finished
}
