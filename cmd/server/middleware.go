package main

import (
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cognigate/cognigate/internal/config"
	"github.com/cognigate/cognigate/internal/observability"
	"github.com/cognigate/cognigate/internal/resilience"
)

// buildMiddleware assembles the data-plane middleware stack, outermost
// first: request ID, access log, rate limit, panic recovery.
func buildMiddleware(cfg *config.Config, limiter *resilience.ClientLimiter, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := recoverMiddleware(logger, next)
		if cfg.RateLimit.Enabled && limiter != nil {
			handler = rateLimitMiddleware(limiter, handler)
		}
		handler = accessLogMiddleware(logger, handler)
		handler = observability.RequestIDMiddleware(handler)
		return handler
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush keeps SSE endpoints working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func accessLogMiddleware(logger *observability.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.WithRequestID(r.Context()).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(started).Milliseconds(),
			"remote", clientKey(r),
		)
	})
}

func rateLimitMiddleware(limiter *resilience.ClientLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientKey(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"rate limit exceeded","type":"rate_limit_error"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recoverMiddleware(logger *observability.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.WithRequestID(r.Context()).Error("panic in handler",
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":{"message":"internal server error","type":"internal_error"}}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies a caller for rate limiting: the first
// X-Forwarded-For hop when present, the peer address otherwise.
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
