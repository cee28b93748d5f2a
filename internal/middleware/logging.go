package middleware

import (
	"net/http"
	"time"

	logpkg "github.com/benvon/smart-todo-capture/internal/logger"
	"github.com/benvon/smart-todo-capture/internal/request"
	"github.com/benvon/smart-todo-capture/internal/services/ai"
	"go.uber.org/zap"
)

// statusRecorder captures the status code written by the wrapped handler
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func record(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

// RequestID tags each request with a correlation id, echoed in the
// X-Request-ID response header and carried into provider logs
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := request.IncomingRequestID(r)
		w.Header().Set(request.RequestIDHeader, id)
		ctx := request.WithRequestID(r.Context(), id)
		ctx = ai.WithRequestID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging creates logging middleware
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := record(w)

			next.ServeHTTP(wrapped, r)

			logger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.Int("status_code", wrapped.statusCode),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", request.RequestIDFromContext(r.Context())),
			)
		})
	}
}

// Audit logs rejected and upstream-failed requests at warn level
func Audit(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := record(w)

			next.ServeHTTP(wrapped, r)

			event := auditEvent(wrapped.statusCode)
			if event == "" {
				return
			}
			logger.Warn(event,
				zap.Int("status_code", wrapped.statusCode),
				zap.String("method", r.Method),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
				zap.String("ip", logpkg.SanitizeString(request.ClientIP(r), logpkg.MaxGeneralStringLength)),
				zap.String("request_id", request.RequestIDFromContext(r.Context())),
			)
		})
	}
}

func auditEvent(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "rate_limit_violation"
	case http.StatusRequestEntityTooLarge:
		return "oversized_request"
	case http.StatusBadGateway:
		return "upstream_failure"
	case http.StatusServiceUnavailable:
		return "request_timeout"
	default:
		return ""
	}
}
