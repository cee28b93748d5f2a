package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/pipeline"
	"github.com/benvon/smart-todo-capture/internal/queue"
	"github.com/benvon/smart-todo-capture/internal/services/extraction"
	"github.com/gorilla/mux"
)

type mockTranscriptProcessor struct {
	processFunc func(ctx context.Context, in pipeline.TranscriptInput) (*pipeline.Outcome, error)
}

func (m *mockTranscriptProcessor) ProcessTranscript(ctx context.Context, in pipeline.TranscriptInput) (*pipeline.Outcome, error) {
	return m.processFunc(ctx, in)
}

type mockEnqueuer struct {
	mu          sync.Mutex
	enqueueFunc func(ctx context.Context, job *queue.Job) error
	jobs        []*queue.Job
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	if m.enqueueFunc != nil {
		if err := m.enqueueFunc(ctx, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
	return nil
}

func newTranscriptRouter(p TranscriptProcessor, jobs JobEnqueuer) *mux.Router {
	r := mux.NewRouter()
	NewTranscriptHandler(p, jobs, nil).RegisterRoutes(r.PathPrefix("/api/v1/transcripts").Subrouter())
	return r
}

func TestTranscriptHandler_ProcessTranscript(t *testing.T) {
	t.Parallel()

	var got pipeline.TranscriptInput
	p := &mockTranscriptProcessor{
		processFunc: func(ctx context.Context, in pipeline.TranscriptInput) (*pipeline.Outcome, error) {
			got = in
			return &pipeline.Outcome{
				Created:    []*models.Task{models.NewTask("Send the deck", in.Source)},
				Candidates: 1,
				Provider:   "openai",
			}, nil
		},
	}
	r := newTranscriptRouter(p, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", jsonBody(t, TranscriptRequest{
		Content:       "Alice: Bob, can you send the deck by Friday?\nBob: Sure.",
		Source:        "zoom",
		Title:         "Weekly sync",
		TranscriptID:  "t-1",
		URL:           "https://zoom.example.com/rec/1",
		KnownContacts: []string{"Bob"},
	})))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var outcome pipeline.Outcome
	decodeData(t, decodeEnvelope(t, w), &outcome)
	if len(outcome.Created) != 1 || outcome.Provider != "openai" {
		t.Errorf("outcome = %+v", outcome)
	}

	if got.Source != models.TaskSourceZoom {
		t.Errorf("Source = %s, want zoom", got.Source)
	}
	if got.Metadata.Subject != "Weekly sync" || got.Reference.TranscriptID != "t-1" || got.Reference.OriginalURL != "https://zoom.example.com/rec/1" {
		t.Errorf("input = %+v", got)
	}
	if len(got.KnownContacts) != 1 || got.KnownContacts[0] != "Bob" {
		t.Errorf("KnownContacts = %v", got.KnownContacts)
	}
}

func TestTranscriptHandler_ProcessTranscript_DefaultsToManual(t *testing.T) {
	t.Parallel()

	var source models.TaskSource
	p := &mockTranscriptProcessor{
		processFunc: func(ctx context.Context, in pipeline.TranscriptInput) (*pipeline.Outcome, error) {
			source = in.Source
			return &pipeline.Outcome{NothingToExtract: true}, nil
		},
	}

	w := httptest.NewRecorder()
	newTranscriptRouter(p, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", strings.NewReader(`{"content":"hi"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if source != models.TaskSourceManual {
		t.Errorf("Source = %q, want manual", source)
	}
}

func TestTranscriptHandler_ProcessTranscript_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{name: "missing content", body: `{"source":"zoom"}`, wantStatus: http.StatusBadRequest},
		{name: "unknown source", body: `{"content":"x","source":"fax"}`, wantStatus: http.StatusBadRequest},
		{name: "bad url", body: `{"content":"x","url":"not a url"}`, wantStatus: http.StatusBadRequest},
		{name: "upstream failure surfaced", body: `{"content":"x"}`, err: &extraction.UpstreamServiceError{Provider: "openai", Err: context.DeadlineExceeded}, wantStatus: http.StatusBadGateway},
		{name: "unparseable reply", body: `{"content":"x"}`, err: &extraction.ResponseParseError{Provider: "openai", Err: errors.New("eof")}, wantStatus: http.StatusBadGateway},
		{name: "store failure", body: `{"content":"x"}`, err: errors.New("failed to upsert task: db down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &mockTranscriptProcessor{
				processFunc: func(ctx context.Context, in pipeline.TranscriptInput) (*pipeline.Outcome, error) {
					return nil, tt.err
				},
			}
			w := httptest.NewRecorder()
			newTranscriptRouter(p, nil).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/transcripts", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestTranscriptHandler_EnqueueBatch(t *testing.T) {
	t.Parallel()

	jobs := &mockEnqueuer{}
	r := newTranscriptRouter(nil, jobs)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/transcripts/batch", jsonBody(t, BatchTranscriptRequest{
		Transcripts: []TranscriptRequest{
			{Content: "first transcript", Source: "meet", TranscriptID: "a", KnownContacts: []string{"Bob"}},
			{Content: "second transcript"},
		},
	})))

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp BatchTranscriptResponse
	decodeData(t, decodeEnvelope(t, w), &resp)
	if len(resp.Jobs) != 2 || len(jobs.jobs) != 2 {
		t.Fatalf("jobs = %v, enqueued %d", resp.Jobs, len(jobs.jobs))
	}

	for i, job := range jobs.jobs {
		if job.Type != queue.JobTypeProcessTranscripts || job.ID != resp.Jobs[i] {
			t.Errorf("job %d = %+v", i, job)
		}
		var payload queue.ProcessTranscriptsPayload
		if err := job.DecodePayload(&payload); err != nil {
			t.Fatalf("DecodePayload() error = %v", err)
		}
		if len(payload.Transcripts) != 1 {
			t.Fatalf("job %d carries %d transcripts, want 1", i, len(payload.Transcripts))
		}
	}

	var first queue.ProcessTranscriptsPayload
	if err := jobs.jobs[0].DecodePayload(&first); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if got := first.Transcripts[0].KnownContacts; len(got) != 1 || got[0] != "Bob" {
		t.Errorf("KnownContacts = %v, want [Bob]", got)
	}

	var second queue.ProcessTranscriptsPayload
	if err := jobs.jobs[1].DecodePayload(&second); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if second.Transcripts[0].Source != string(models.TaskSourceManual) {
		t.Errorf("Source = %q, want manual", second.Transcripts[0].Source)
	}
}

func TestTranscriptHandler_EnqueueBatch_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		jobs       JobEnqueuer
		body       string
		wantStatus int
	}{
		{name: "no queue", jobs: nil, body: `{"transcripts":[{"content":"x"}]}`, wantStatus: http.StatusServiceUnavailable},
		{name: "empty batch", jobs: &mockEnqueuer{}, body: `{"transcripts":[]}`, wantStatus: http.StatusBadRequest},
		{name: "invalid item", jobs: &mockEnqueuer{}, body: `{"transcripts":[{"content":"x"},{"source":"zoom"}]}`, wantStatus: http.StatusBadRequest},
		{
			name: "broker down",
			jobs: &mockEnqueuer{enqueueFunc: func(ctx context.Context, job *queue.Job) error {
				return errors.New("channel closed")
			}},
			body:       `{"transcripts":[{"content":"x"}]}`,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			newTranscriptRouter(nil, tt.jobs).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/transcripts/batch", strings.NewReader(tt.body)))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestScanHandler_ScanMailbox(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantDays   int
	}{
		{name: "empty body uses defaults", body: "", wantStatus: http.StatusAccepted},
		{name: "narrowed scan", body: `{"days":3,"max_results":10}`, wantStatus: http.StatusAccepted, wantDays: 3},
		{name: "days out of range", body: `{"days":365}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			jobs := &mockEnqueuer{}
			r := mux.NewRouter()
			NewScanHandler(jobs, nil).RegisterRoutes(r.PathPrefix("/api/v1/scans").Subrouter())

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/scans/mailbox", strings.NewReader(tt.body)))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				if len(jobs.jobs) != 0 {
					t.Error("rejected request must not enqueue")
				}
				return
			}

			if len(jobs.jobs) != 1 || jobs.jobs[0].Type != queue.JobTypeScanMailbox {
				t.Fatalf("enqueued = %+v", jobs.jobs)
			}
			var payload queue.ScanMailboxPayload
			if err := jobs.jobs[0].DecodePayload(&payload); err != nil {
				t.Fatalf("DecodePayload() error = %v", err)
			}
			if payload.Days != tt.wantDays {
				t.Errorf("Days = %d, want %d", payload.Days, tt.wantDays)
			}
		})
	}
}

func TestScanHandler_NoQueue(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	NewScanHandler(nil, nil).ScanMailbox(w, httptest.NewRequest(http.MethodPost, "/api/v1/scans/mailbox", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
