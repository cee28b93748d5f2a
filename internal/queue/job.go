package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeProcessTranscripts runs uploaded transcripts through the pipeline
	JobTypeProcessTranscripts JobType = "process_transcripts"
	// JobTypeScanMailbox scans the mailbox for new task-bearing messages
	JobTypeScanMailbox JobType = "scan_mailbox"
)

// DefaultMaxRetries is the retry budget given to new jobs
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	NotBefore  *time.Time      `json:"not_before,omitempty"` // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time      `json:"not_after,omitempty"`  // Latest time to process job (nil = no expiration)
	CreatedAt  time.Time       `json:"created_at"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
}

// NewJob creates a new job carrying payload encoded as JSON
func NewJob(jobType JobType, payload any) (*Job, error) {
	job := &Job{
		ID:         uuid.New(),
		Type:       jobType,
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", jobType, err)
		}
		job.Payload = raw
	}
	return job, nil
}

// DecodePayload unmarshals the job payload into v
func (j *Job) DecodePayload(v any) error {
	if len(j.Payload) == 0 {
		return fmt.Errorf("job %s has no payload", j.ID)
	}
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", j.Type, err)
	}
	return nil
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}
	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// TranscriptPayload is one transcript inside a process_transcripts job
type TranscriptPayload struct {
	Content      string `json:"content"`
	Source       string `json:"source"`
	Title        string `json:"title,omitempty"`
	TranscriptID string `json:"transcript_id,omitempty"`
	URL          string `json:"url,omitempty"`

	// KnownContacts feed the same confidence boost as a synchronous upload
	KnownContacts []string `json:"known_contacts,omitempty"`
}

// ProcessTranscriptsPayload is the payload of a process_transcripts job
type ProcessTranscriptsPayload struct {
	Transcripts []TranscriptPayload `json:"transcripts"`
}

// ScanMailboxPayload is the payload of a scan_mailbox job
type ScanMailboxPayload struct {
	Days        int    `json:"days,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
	Query       string `json:"query,omitempty"`
	IncludeRead bool   `json:"include_read,omitempty"`
}
