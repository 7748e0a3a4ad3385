package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"gradegate/internal/config"
	"gradegate/internal/domain"
)

// GeminiFileStore uploads file bytes through the Gemini resumable upload
// protocol and returns opaque file URIs. Identical content is uploaded only
// once per process: a SHA-256 index maps content hashes to prior URIs.
type GeminiFileStore struct {
	apiKey     string
	uploadURL  string
	httpClient *http.Client

	// OnDedupHit, when set, is called each time an upload is served from
	// the content-hash index instead of the wire.
	OnDedupHit func()

	mu     sync.RWMutex
	byHash map[string]string
}

var _ domain.FileStore = (*GeminiFileStore)(nil)

// NewGeminiFileStore creates the file store
func NewGeminiFileStore(cfg config.GeminiConfig, timeout time.Duration) *GeminiFileStore {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	// The upload surface lives at /upload/v1beta, not under the API base path.
	uploadURL := strings.Replace(baseURL, "/v1beta", "/upload/v1beta", 1)

	return &GeminiFileStore{
		apiKey:     cfg.APIKey,
		uploadURL:  uploadURL + "/files",
		httpClient: buildHTTPClient(timeout),
		byHash:     make(map[string]string),
	}
}

// Upload pushes bytes to the file API, reusing a prior URI when the same
// content was uploaded before
func (s *GeminiFileStore) Upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	s.mu.RLock()
	uri, ok := s.byHash[hash]
	s.mu.RUnlock()
	if ok {
		slog.Debug("file upload deduplicated", "hash", hash[:12], "uri", uri)
		if s.OnDedupHit != nil {
			s.OnDedupHit()
		}
		return uri, nil
	}

	uri, err := s.upload(ctx, data, mimeType)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.byHash[hash] = uri
	s.mu.Unlock()

	return uri, nil
}

// upload runs the two-step resumable protocol: start a session, then send
// the bytes and finalize
func (s *GeminiFileStore) upload(ctx context.Context, data []byte, mimeType string) (string, error) {
	startURL := fmt.Sprintf("%s?key=%s", s.uploadURL, s.apiKey)

	meta, _ := json.Marshal(map[string]any{
		"file": map[string]string{"display_name": "submission"},
	})

	startReq, err := http.NewRequestWithContext(ctx, http.MethodPost, startURL, bytes.NewReader(meta))
	if err != nil {
		return "", fmt.Errorf("build upload start request: %w", err)
	}
	startReq.Header.Set("Content-Type", "application/json")
	startReq.Header.Set("X-Goog-Upload-Protocol", "resumable")
	startReq.Header.Set("X-Goog-Upload-Command", "start")
	startReq.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(data)))
	startReq.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	startResp, err := s.httpClient.Do(startReq)
	if err != nil {
		return "", &domain.TransientServiceError{Provider: domain.ProviderGemini, Op: "upload", Err: err}
	}
	io.Copy(io.Discard, startResp.Body)
	startResp.Body.Close()

	if startResp.StatusCode != http.StatusOK {
		err := fmt.Errorf("upload session start: %s", startResp.Status)
		if transientStatus(startResp.StatusCode) {
			return "", &domain.TransientServiceError{Provider: domain.ProviderGemini, Op: "upload", Err: err}
		}
		return "", err
	}

	sessionURL := startResp.Header.Get("X-Goog-Upload-URL")
	if sessionURL == "" {
		return "", fmt.Errorf("upload session start: missing X-Goog-Upload-URL header")
	}

	dataReq, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build upload data request: %w", err)
	}
	dataReq.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	dataReq.Header.Set("X-Goog-Upload-Offset", "0")

	dataResp, err := s.httpClient.Do(dataReq)
	if err != nil {
		return "", &domain.TransientServiceError{Provider: domain.ProviderGemini, Op: "upload", Err: err}
	}
	defer dataResp.Body.Close()

	if dataResp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(dataResp.Body)
		err := fmt.Errorf("upload finalize: %s - %s", dataResp.Status, truncate(string(bodyBytes), 300))
		if transientStatus(dataResp.StatusCode) {
			return "", &domain.TransientServiceError{Provider: domain.ProviderGemini, Op: "upload", Err: err}
		}
		return "", err
	}

	var result struct {
		File struct {
			URI string `json:"uri"`
		} `json:"file"`
	}
	if err := json.NewDecoder(dataResp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if result.File.URI == "" {
		return "", fmt.Errorf("upload response missing file uri")
	}

	slog.Debug("file uploaded", "mime_type", mimeType, "size", len(data), "uri", result.File.URI)
	return result.File.URI, nil
}
