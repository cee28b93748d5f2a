package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestNewJob(t *testing.T) {
	t.Parallel()

	job, err := NewJob(JobTypeScanMailbox, ScanMailboxPayload{Days: 3})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.ID == uuid.Nil {
		t.Error("Expected job ID to be set")
	}
	if job.Type != JobTypeScanMailbox {
		t.Errorf("Expected job type %s, got %s", JobTypeScanMailbox, job.Type)
	}
	if job.RetryCount != 0 || job.MaxRetries != DefaultMaxRetries {
		t.Errorf("unexpected retry budget %d/%d", job.RetryCount, job.MaxRetries)
	}

	var payload ScanMailboxPayload
	if err := job.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.Days != 3 {
		t.Errorf("payload days = %d, want 3", payload.Days)
	}
}

func TestNewJob_UnencodablePayload(t *testing.T) {
	t.Parallel()

	if _, err := NewJob(JobTypeScanMailbox, make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

func TestJob_DecodePayload_Errors(t *testing.T) {
	t.Parallel()

	empty, _ := NewJob(JobTypeProcessTranscripts, nil)
	var p ProcessTranscriptsPayload
	if err := empty.DecodePayload(&p); err == nil {
		t.Error("expected error for missing payload")
	}

	bad := &Job{ID: uuid.New(), Type: JobTypeProcessTranscripts, Payload: json.RawMessage(`{"transcripts":"nope"}`)}
	if err := bad.DecodePayload(&p); err == nil {
		t.Error("expected error for mismatched payload")
	}
}

func TestJob_ShouldProcess(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name      string
		notBefore *time.Time
		notAfter  *time.Time
		want      bool
		expired   bool
	}{
		{name: "no time constraints", want: true},
		{name: "not before in past", notBefore: timePtr(now.Add(-time.Hour)), want: true},
		{name: "not before in future", notBefore: timePtr(now.Add(time.Hour)), want: false},
		{name: "not after in future", notAfter: timePtr(now.Add(time.Hour)), want: true},
		{name: "not after in past", notAfter: timePtr(now.Add(-time.Hour)), want: false, expired: true},
		{
			name:      "inside window",
			notBefore: timePtr(now.Add(-time.Hour)),
			notAfter:  timePtr(now.Add(time.Hour)),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			job := &Job{ID: uuid.New(), Type: JobTypeScanMailbox, NotBefore: tt.notBefore, NotAfter: tt.notAfter}
			if got := job.ShouldProcess(); got != tt.want {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.want)
			}
			if got := job.IsExpired(); got != tt.expired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.expired)
			}
		})
	}
}

func TestJob_Retry(t *testing.T) {
	t.Parallel()

	job, _ := NewJob(JobTypeProcessTranscripts, ProcessTranscriptsPayload{})
	for i := 0; i < DefaultMaxRetries; i++ {
		if !job.CanRetry() {
			t.Fatalf("expected retry %d to be allowed", i)
		}
		job.IncrementRetry()
	}
	if job.CanRetry() {
		t.Error("expected retries to be exhausted")
	}
}

func TestPublishDelay(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name      string
		notBefore *time.Time
		want      time.Duration
	}{
		{"immediate", nil, 0},
		{"past", timePtr(now.Add(-time.Minute)), 0},
		{"future", timePtr(now.Add(90 * time.Second)), 90 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := publishDelay(&Job{NotBefore: tt.notBefore}, now); got != tt.want {
				t.Errorf("publishDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}
