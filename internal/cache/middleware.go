package cache

import (
	"net/http"
	"strconv"
	"time"
)

// KeyFunc derives the cache key for a request
type KeyFunc func(*http.Request) string

// ConditionFunc reports whether a request may be served from or stored in
// the cache. Returning false bypasses the cache entirely.
type ConditionFunc func(*http.Request) bool

// MiddlewareOptions customize Middleware behavior
type MiddlewareOptions struct {
	Key       KeyFunc
	Condition ConditionFunc
}

// defaultKey is method plus full request URI
func defaultKey(r *http.Request) string {
	return r.Method + " " + r.URL.RequestURI()
}

// Middleware wraps a handler with response caching. Hits are replayed with
// X-Cache: HIT; misses run the handler and, when the response is 2xx, store
// it for ttl and stamp X-Cache-TTL with the remaining seconds. Bypassed
// requests carry no cache headers at all.
func (c *Cache) Middleware(ttl time.Duration, opts MiddlewareOptions) func(http.HandlerFunc) http.HandlerFunc {
	key := opts.Key
	if key == nil {
		key = defaultKey
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if opts.Condition != nil && !opts.Condition(r) {
				next(w, r)
				return
			}

			cacheKey := key(r)
			if payload, status, contentType, ok := c.Get(cacheKey); ok {
				if contentType != "" {
					w.Header().Set("Content-Type", contentType)
				}
				w.Header().Set("X-Cache", "HIT")
				w.WriteHeader(status)
				w.Write(payload)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK, ttl: ttl}
			rec.Header().Set("X-Cache", "MISS")
			next(rec, r)

			if rec.statusCode >= 200 && rec.statusCode < 300 {
				c.Set(cacheKey, rec.body, rec.statusCode, rec.Header().Get("Content-Type"), ttl)
			}
		}
	}
}

// responseRecorder tees the response body so it can be stored after the
// handler returns. X-Cache-TTL cannot be written once the handler has
// started the body, so the middleware stamps it on the recorder before
// WriteHeader flushes.
type responseRecorder struct {
	http.ResponseWriter
	statusCode  int
	body        []byte
	wroteHeader bool
	ttl         time.Duration
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.statusCode = statusCode
	if statusCode >= 200 && statusCode < 300 && r.ttl > 0 {
		r.Header().Set("X-Cache-TTL", strconv.Itoa(int(r.ttl.Seconds())))
	}
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}
