package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout leaves room for a primary and a fallback provider
// call on the synchronous transcript endpoint
const DefaultRequestTimeout = 90 * time.Second

const timeoutBody = `{"success":false,"error":"request_timeout","message":"Request timed out"}`

// Timeout bounds handler run time. Timed-out requests get a 503 envelope.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		handler := http.TimeoutHandler(next, timeout, timeoutBody)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			handler.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
