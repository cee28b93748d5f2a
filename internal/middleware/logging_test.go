package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/smart-todo-capture/internal/request"
	"github.com/benvon/smart-todo-capture/internal/services/ai"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
	}{
		{name: "GET request", method: http.MethodGet, path: "/api/v1/tasks", handlerStatus: http.StatusOK},
		{name: "POST request", method: http.MethodPost, path: "/api/v1/transcripts", handlerStatus: http.StatusCreated},
		{name: "404 request", method: http.MethodGet, path: "/notfound", handlerStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.InfoLevel)
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatus)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			Logging(zap.New(core))(handler).ServeHTTP(w, req)

			if w.Code != tt.handlerStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.handlerStatus)
			}
			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("got %d http_request entries, want 1", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["path"] != tt.path {
				t.Errorf("path = %v, want %s", fields["path"], tt.path)
			}
			if fields["status_code"] != int64(tt.handlerStatus) {
				t.Errorf("status_code = %v, want %d", fields["status_code"], tt.handlerStatus)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	var fromRequest, fromAI string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromRequest = request.RequestIDFromContext(r.Context())
		fromAI = ai.ExtractRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(request.RequestIDHeader, "req-7")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if fromRequest != "req-7" || fromAI != "req-7" {
		t.Errorf("context ids = %q / %q, want req-7", fromRequest, fromAI)
	}
	if got := w.Header().Get(request.RequestIDHeader); got != "req-7" {
		t.Errorf("response header = %q, want req-7", got)
	}
}

func TestAudit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status    int
		wantEvent string
	}{
		{status: http.StatusOK},
		{status: http.StatusBadRequest},
		{status: http.StatusTooManyRequests, wantEvent: "rate_limit_violation"},
		{status: http.StatusRequestEntityTooLarge, wantEvent: "oversized_request"},
		{status: http.StatusBadGateway, wantEvent: "upstream_failure"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.WarnLevel)
			handler := Audit(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", nil))

			if tt.wantEvent == "" {
				if logs.Len() != 0 {
					t.Errorf("got %d audit entries, want none", logs.Len())
				}
				return
			}
			if logs.FilterMessage(tt.wantEvent).Len() != 1 {
				t.Errorf("missing %s entry", tt.wantEvent)
			}
		})
	}
}
