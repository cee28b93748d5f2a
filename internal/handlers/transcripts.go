package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/pipeline"
	"github.com/benvon/smart-todo-capture/internal/queue"
	"github.com/benvon/smart-todo-capture/internal/services/extraction"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TranscriptProcessor runs a single transcript through the pipeline
type TranscriptProcessor interface {
	ProcessTranscript(ctx context.Context, in pipeline.TranscriptInput) (*pipeline.Outcome, error)
}

// JobEnqueuer publishes jobs for the worker
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// TranscriptHandler handles transcript uploads
type TranscriptHandler struct {
	processor TranscriptProcessor
	jobs      JobEnqueuer
	logger    *zap.Logger
}

// NewTranscriptHandler creates a new transcript handler. jobs may be nil, in
// which case batch uploads are refused.
func NewTranscriptHandler(processor TranscriptProcessor, jobs JobEnqueuer, logger *zap.Logger) *TranscriptHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TranscriptHandler{processor: processor, jobs: jobs, logger: logger}
}

// RegisterRoutes registers transcript routes
// The router should already have the /transcripts prefix
func (h *TranscriptHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ProcessTranscript).Methods("POST")
	r.HandleFunc("/batch", h.EnqueueBatch).Methods("POST")
}

// TranscriptRequest is one uploaded transcript
type TranscriptRequest struct {
	Content       string   `json:"content" validate:"required,max=500000"`
	Source        string   `json:"source" validate:"omitempty,task_source"`
	Title         string   `json:"title" validate:"max=500"`
	TranscriptID  string   `json:"transcript_id" validate:"max=200"`
	URL           string   `json:"url" validate:"omitempty,url,max=2000"`
	KnownContacts []string `json:"known_contacts" validate:"max=100,dive,max=200"`
}

// BatchTranscriptRequest carries several transcripts for background processing
type BatchTranscriptRequest struct {
	Transcripts []TranscriptRequest `json:"transcripts" validate:"required,min=1,max=50,dive"`
}

// BatchTranscriptResponse lists the jobs created for a batch
type BatchTranscriptResponse struct {
	Jobs []uuid.UUID `json:"jobs"`
}

// ProcessTranscript extracts tasks from one transcript and returns the
// outcome. The first pipeline error is surfaced to the caller.
func (h *TranscriptHandler) ProcessTranscript(w http.ResponseWriter, r *http.Request) {
	var req TranscriptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	outcome, err := h.processor.ProcessTranscript(r.Context(), req.input())
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// EnqueueBatch enqueues one process_transcripts job per transcript so a bad
// item retries on its own
func (h *TranscriptHandler) EnqueueBatch(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Job queue is not configured")
		return
	}

	var req BatchTranscriptRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp := BatchTranscriptResponse{Jobs: make([]uuid.UUID, 0, len(req.Transcripts))}
	for i, t := range req.Transcripts {
		job, err := queue.NewJob(queue.JobTypeProcessTranscripts, queue.ProcessTranscriptsPayload{
			Transcripts: []queue.TranscriptPayload{t.payload()},
		})
		if err == nil {
			err = h.jobs.Enqueue(r.Context(), job)
		}
		if err != nil {
			h.logger.Error("failed_to_enqueue_transcript",
				zap.Int("index", i),
				zap.Int("enqueued", len(resp.Jobs)),
				zap.Error(err),
			)
			respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Failed to enqueue transcript")
			return
		}
		resp.Jobs = append(resp.Jobs, job.ID)
	}

	h.logger.Info("transcript_batch_enqueued", zap.Int("jobs", len(resp.Jobs)))
	respondJSON(w, http.StatusAccepted, resp)
}

func (t TranscriptRequest) source() models.TaskSource {
	if t.Source == "" {
		return models.TaskSourceManual
	}
	return models.TaskSource(t.Source)
}

func (t TranscriptRequest) input() pipeline.TranscriptInput {
	return pipeline.TranscriptInput{
		Content: t.Content,
		Source:  t.source(),
		Metadata: extraction.Metadata{
			Subject: t.Title,
			URL:     t.URL,
		},
		Reference: models.SourceReference{
			TranscriptID: t.TranscriptID,
			OriginalURL:  t.URL,
		},
		KnownContacts: t.KnownContacts,
	}
}

func (t TranscriptRequest) payload() queue.TranscriptPayload {
	return queue.TranscriptPayload{
		Content:       t.Content,
		Source:        string(t.source()),
		Title:         t.Title,
		TranscriptID:  t.TranscriptID,
		URL:           t.URL,
		KnownContacts: t.KnownContacts,
	}
}

var _ TranscriptProcessor = (*pipeline.Processor)(nil)
