package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"gradegate/internal/domain"
	"gradegate/internal/feedback"
)

// GradeRequest is the wire form of a grading submission
type GradeRequest struct {
	Text     string      `json:"text"`
	Files    []GradeFile `json:"files,omitempty"`
	Prompt   string      `json:"prompt"`
	Criteria []string    `json:"criteria,omitempty"`
}

// GradeFile is one attached submission file with base64 content
type GradeFile struct {
	Name          string `json:"name"`
	MimeType      string `json:"mimeType"`
	DataBase64    string `json:"dataBase64,omitempty"`
	ExtractedText string `json:"extractedText,omitempty"`
}

// ErrorResponse is the error envelope for all endpoints
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine code and human message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handleGrade handles POST /v1/grade
func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	sub := &domain.Submission{
		Text:          req.Text,
		GradingPrompt: req.Prompt,
		Criteria:      req.Criteria,
	}
	for _, f := range req.Files {
		data, err := base64.StdEncoding.DecodeString(f.DataBase64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "File content is not valid base64: "+f.Name)
			return
		}
		sub.Files = append(sub.Files, domain.SubmissionFile{
			Name:          f.Name,
			MimeType:      f.MimeType,
			Data:          data,
			ExtractedText: f.ExtractedText,
		})
	}

	fb, err := s.pipeline.Grade(r.Context(), sub)
	if err != nil {
		s.writeGradeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, fb)
}

// writeGradeError maps pipeline errors onto HTTP status codes
func (s *Server) writeGradeError(w http.ResponseWriter, err error) {
	var (
		rejected  *domain.InputRejectedError
		transient *domain.TransientServiceError
		upload    *domain.UploadFailedError
		exhausted *domain.ParseExhaustedError
		schema    *domain.SchemaValidationError
	)
	switch {
	case errors.As(err, &rejected):
		s.writeError(w, http.StatusUnprocessableEntity, "input_rejected", err.Error())
	case errors.As(err, &transient):
		w.Header().Set("Retry-After", "5")
		s.writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.As(err, &upload):
		s.writeError(w, http.StatusBadGateway, "upload_failed", err.Error())
	case errors.As(err, &exhausted):
		s.writeError(w, http.StatusBadGateway, "parse_exhausted", "Model output could not be normalized")
	case errors.As(err, &schema):
		s.writeError(w, http.StatusBadGateway, "schema_validation", err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// handleFeedbackSchema handles GET /v1/feedback/schema
func (s *Server) handleFeedbackSchema(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"version": feedback.SchemaVersion,
		"schema":  feedback.Schema(),
	})
}

// handleConfigModels handles GET /v1/config/models
func (s *Server) handleConfigModels(w http.ResponseWriter, r *http.Request) {
	type modelEntry struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
		Active   bool   `json:"active"`
	}

	active := string(s.config.ProviderKind())
	entries := []modelEntry{
		{Provider: "gemini", Model: s.config.Provider.Gemini.Model, Active: active == "gemini"},
		{Provider: "bedrock", Model: s.config.Provider.Bedrock.Model, Active: active == "bedrock"},
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"provider": active,
		"models":   entries,
	})
}

// handleCacheStats handles GET /v1/cache/stats
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats())
}

// handleCacheClear handles POST /v1/cache/clear. An optional "pattern"
// query invalidates only matching keys.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	removed := s.cache.Clear(pattern)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"cleared": removed,
		"pattern": pattern,
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": string(s.config.ProviderKind()),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}
