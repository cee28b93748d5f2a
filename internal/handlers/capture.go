package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/smart-todo-capture/internal/capture"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CaptureSessions is the session registry behind the capture endpoints
type CaptureSessions interface {
	Start(id string, channel models.TaskSource, title string) (*capture.Session, bool)
	Append(id string, fragments ...string) (int, error)
	Flush(ctx context.Context, id string) (capture.FlushReport, error)
	End(ctx context.Context, id string) (capture.FlushReport, error)
	Sessions() []capture.SessionInfo
}

var _ CaptureSessions = (*capture.Manager)(nil)

// CaptureHandler handles live capture sessions
type CaptureHandler struct {
	sessions CaptureSessions
	logger   *zap.Logger
}

// NewCaptureHandler creates a new capture handler
func NewCaptureHandler(sessions CaptureSessions, logger *zap.Logger) *CaptureHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers capture routes
// The router should already have the /capture/sessions prefix
func (h *CaptureHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListSessions).Methods("GET")
	r.HandleFunc("", h.StartSession).Methods("POST")
	r.HandleFunc("/{id}/fragments", h.AppendFragments).Methods("POST")
	r.HandleFunc("/{id}/flush", h.FlushSession).Methods("POST")
	r.HandleFunc("/{id}", h.EndSession).Methods("DELETE")
}

// StartSessionRequest opens a capture session. ID is generated when empty.
type StartSessionRequest struct {
	ID      string `json:"id" validate:"omitempty,max=200"`
	Channel string `json:"channel" validate:"required,task_source"`
	Title   string `json:"title" validate:"max=500"`
}

// SessionResponse describes a session after start
type SessionResponse struct {
	ID       string            `json:"id"`
	Channel  models.TaskSource `json:"channel"`
	Buffered int               `json:"buffered"`
	Created  bool              `json:"created"`
}

// AppendFragmentsRequest carries one fragment or an ordered list
type AppendFragmentsRequest struct {
	Fragment  string   `json:"fragment" validate:"max=20000"`
	Fragments []string `json:"fragments" validate:"max=500,dive,max=20000"`
}

// AppendFragmentsResponse reports what was buffered
type AppendFragmentsResponse struct {
	Accepted int `json:"accepted"`
	Ignored  int `json:"ignored"`
}

// FlushResponse reports a flush or end
type FlushResponse struct {
	Outcome string                 `json:"outcome"`
	Result  capture.DispatchResult `json:"result"`
}

// StartSession opens a session, or returns the open one for a known id
func (h *CaptureHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	session, created := h.sessions.Start(id, models.TaskSource(req.Channel), req.Title)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(w, status, SessionResponse{
		ID:       session.ID(),
		Channel:  session.Channel(),
		Buffered: session.Buffered(),
		Created:  created,
	})
}

// AppendFragments buffers fragments in order
func (h *CaptureHandler) AppendFragments(w http.ResponseWriter, r *http.Request) {
	var req AppendFragmentsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fragments := req.Fragments
	if req.Fragment != "" {
		fragments = append([]string{req.Fragment}, fragments...)
	}
	if len(fragments) == 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "fragment or fragments is required")
		return
	}

	accepted, err := h.sessions.Append(mux.Vars(r)["id"], fragments...)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, AppendFragmentsResponse{
		Accepted: accepted,
		Ignored:  len(fragments) - accepted,
	})
}

// FlushSession flushes a session on demand
func (h *CaptureHandler) FlushSession(w http.ResponseWriter, r *http.Request) {
	report, err := h.sessions.Flush(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, flushResponse(report))
}

// EndSession ends a session; channels with FlushOnEnd dispatch what is left
func (h *CaptureHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	report, err := h.sessions.End(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, flushResponse(report))
}

// ListSessions lists the open sessions
func (h *CaptureHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sessions.Sessions())
}

func flushResponse(report capture.FlushReport) FlushResponse {
	return FlushResponse{Outcome: report.Outcome.String(), Result: report.Result}
}
