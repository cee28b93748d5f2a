package handlers

import (
	"net/http"

	"github.com/benvon/smart-todo-capture/internal/queue"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ScanHandler schedules mailbox scans on the worker
type ScanHandler struct {
	jobs   JobEnqueuer
	logger *zap.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(jobs JobEnqueuer, logger *zap.Logger) *ScanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanHandler{jobs: jobs, logger: logger}
}

// RegisterRoutes registers scan routes
// The router should already have the /scans prefix
func (h *ScanHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/mailbox", h.ScanMailbox).Methods("POST")
}

// ScanMailboxRequest narrows a mailbox scan. All fields are optional.
type ScanMailboxRequest struct {
	Days        int    `json:"days" validate:"min=0,max=90"`
	MaxResults  int    `json:"max_results" validate:"min=0,max=100"`
	Query       string `json:"query" validate:"max=500"`
	IncludeRead bool   `json:"include_read"`
}

// ScanMailboxResponse identifies the queued scan
type ScanMailboxResponse struct {
	JobID string `json:"job_id"`
}

// ScanMailbox enqueues a scan_mailbox job. An empty body scans with defaults.
func (h *ScanHandler) ScanMailbox(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Job queue is not configured")
		return
	}

	var req ScanMailboxRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	job, err := queue.NewJob(queue.JobTypeScanMailbox, queue.ScanMailboxPayload{
		Days:        req.Days,
		MaxResults:  req.MaxResults,
		Query:       req.Query,
		IncludeRead: req.IncludeRead,
	})
	if err == nil {
		err = h.jobs.Enqueue(r.Context(), job)
	}
	if err != nil {
		h.logger.Error("failed_to_enqueue_mailbox_scan", zap.Error(err))
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to enqueue mailbox scan")
		return
	}

	h.logger.Info("mailbox_scan_enqueued", zap.String("job_id", job.ID.String()))
	respondJSON(w, http.StatusAccepted, ScanMailboxResponse{JobID: job.ID.String()})
}
