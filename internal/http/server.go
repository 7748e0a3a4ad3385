// Package http provides the grading HTTP API server.
package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"gradegate/internal/cache"
	"gradegate/internal/config"
	"gradegate/internal/pipeline"
	"gradegate/internal/telemetry"
)

// Server is the HTTP API server
type Server struct {
	config   *config.Config
	pipeline *pipeline.Pipeline
	cache    *cache.Cache
	metrics  *telemetry.Metrics
	mux      *http.ServeMux
}

// NewServer creates the HTTP server. It owns the cache instance; call Close
// during shutdown to stop its sweep loop.
func NewServer(cfg *config.Config, pl *pipeline.Pipeline, metrics *telemetry.Metrics) *Server {
	var cacheOpts []cache.Option
	if metrics != nil {
		cacheOpts = append(cacheOpts, cache.WithCounters(
			func() { metrics.CacheHits.WithLabelValues("response").Inc() },
			func() { metrics.CacheMisses.WithLabelValues("response").Inc() },
			func() { metrics.CacheSets.WithLabelValues("response").Inc() },
			func() { metrics.CacheEvictions.WithLabelValues("response").Inc() },
		))
	}

	s := &Server{
		config:   cfg,
		pipeline: pl,
		cache:    cache.New(cfg.Cache.SweepInterval, cacheOpts...),
		metrics:  metrics,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// Close releases server-owned resources
func (s *Server) Close() {
	s.cache.Close()
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	bypass := func(r *http.Request) bool {
		return strings.EqualFold(r.Header.Get("Cache-Control"), "no-cache")
	}

	schemaCached := s.cache.Middleware(s.config.Cache.SchemaTTL, cache.MiddlewareOptions{
		Condition: func(r *http.Request) bool { return !bypass(r) },
	})
	modelsCached := s.cache.Middleware(s.config.Cache.ModelsTTL, cache.MiddlewareOptions{
		Condition: func(r *http.Request) bool { return !bypass(r) },
	})

	s.mux.HandleFunc("POST /v1/grade", s.handleGrade)
	s.mux.HandleFunc("GET /v1/feedback/schema", schemaCached(s.handleFeedbackSchema))
	s.mux.HandleFunc("GET /v1/config/models", modelsCached(s.handleConfigModels))
	s.mux.HandleFunc("GET /v1/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("POST /v1/cache/clear", s.handleCacheClear)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", telemetry.Handler())
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.requestSizeLimit(s.mux))
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Cache-Control")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestSizeLimit caps request bodies at the configured maximum
func (s *Server) requestSizeLimit(next http.Handler) http.Handler {
	limit := s.config.Server.MaxRequestSize
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPServer builds an http.Server from the configured timeouts and address
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.BindAddress, s.config.Server.HTTPPort),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
}
