package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-todo-capture/internal/metrics"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/pipeline"
	"github.com/benvon/smart-todo-capture/internal/queue"
	"github.com/benvon/smart-todo-capture/internal/services/ai"
	"github.com/benvon/smart-todo-capture/internal/services/extraction"
	"go.uber.org/zap"
)

// TranscriptProcessor runs transcripts through the extraction pipeline
type TranscriptProcessor interface {
	ProcessTranscript(ctx context.Context, in pipeline.TranscriptInput) (*pipeline.Outcome, error)
	ProcessBatch(ctx context.Context, inputs []pipeline.TranscriptInput) pipeline.BatchResult
}

// MailboxScanner scans the mailbox for unprocessed messages
type MailboxScanner interface {
	Scan(ctx context.Context, req pipeline.MailboxScanRequest) (pipeline.BatchResult, error)
}

// JobProcessor handles jobs consumed from the queue
type JobProcessor struct {
	transcripts TranscriptProcessor
	mailbox     MailboxScanner
	jobQueue    queue.JobQueue
	logger      *zap.Logger
}

// NewJobProcessor creates a new job processor. mailbox may be nil when no
// mail source is configured; scan_mailbox jobs are then dead-lettered.
func NewJobProcessor(transcripts TranscriptProcessor, mailbox MailboxScanner, jobQueue queue.JobQueue, logger *zap.Logger) *JobProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobProcessor{
		transcripts: transcripts,
		mailbox:     mailbox,
		jobQueue:    jobQueue,
		logger:      logger,
	}
}

// ProcessJob processes a single job and settles its message
func (p *JobProcessor) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	if job == nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("failed_to_nack_empty_message", zap.Error(nackErr))
		}
		return fmt.Errorf("message carries no job")
	}

	if job.IsExpired() {
		p.logger.Warn("job_expired", zap.String("job_id", job.ID.String()), zap.String("job_type", string(job.Type)))
		return p.deadLetter(msg, job, fmt.Errorf("job expired"))
	}
	if !job.ShouldProcess() {
		// Not due yet; requeue without counting a retry
		if nackErr := msg.Nack(true); nackErr != nil {
			p.logger.Warn("failed_to_nack_early_job", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
		}
		return nil
	}

	var err error
	switch job.Type {
	case queue.JobTypeProcessTranscripts:
		err = p.processTranscripts(ctx, job)
	case queue.JobTypeScanMailbox:
		err = p.scanMailbox(ctx, job)
	default:
		p.logger.Error("unknown_job_type",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
		)
		metrics.JobsTotal.WithLabelValues(string(job.Type), "dead_lettered").Inc()
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("failed_to_nack_unknown_job", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err != nil {
		return p.handleJobError(ctx, msg, job, err)
	}

	metrics.JobsTotal.WithLabelValues(string(job.Type), "completed").Inc()
	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job %s: %w", job.ID, ackErr)
	}
	return nil
}

// processTranscripts runs a single transcript directly so its error decides
// how the job settles. Larger payloads are processed as a batch, where
// item failures are counted but never fail the job.
func (p *JobProcessor) processTranscripts(ctx context.Context, job *queue.Job) error {
	var payload queue.ProcessTranscriptsPayload
	if err := job.DecodePayload(&payload); err != nil {
		return permanentError{err}
	}
	if len(payload.Transcripts) == 0 {
		p.logger.Warn("empty_transcript_job", zap.String("job_id", job.ID.String()))
		return nil
	}

	inputs := make([]pipeline.TranscriptInput, 0, len(payload.Transcripts))
	for _, t := range payload.Transcripts {
		inputs = append(inputs, transcriptInput(t))
	}

	if len(inputs) == 1 {
		outcome, err := p.transcripts.ProcessTranscript(ctx, inputs[0])
		if err != nil {
			return err
		}
		p.logger.Info("transcript_job_processed",
			zap.String("job_id", job.ID.String()),
			zap.Int("created", len(outcome.Created)),
			zap.Int("duplicates", len(outcome.Duplicates)),
		)
		return nil
	}

	result := p.transcripts.ProcessBatch(ctx, inputs)
	p.logger.Info("transcript_batch_job_processed",
		zap.String("job_id", job.ID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)
	return nil
}

func (p *JobProcessor) scanMailbox(ctx context.Context, job *queue.Job) error {
	if p.mailbox == nil {
		return permanentError{fmt.Errorf("no mailbox source configured")}
	}
	var payload queue.ScanMailboxPayload
	if err := job.DecodePayload(&payload); err != nil {
		return permanentError{err}
	}

	result, err := p.mailbox.Scan(ctx, pipeline.MailboxScanRequest{
		Days:        payload.Days,
		MaxResults:  payload.MaxResults,
		Query:       payload.Query,
		IncludeRead: payload.IncludeRead,
	})
	if err != nil {
		return err
	}
	p.logger.Info("mailbox_scan_job_processed",
		zap.String("job_id", job.ID.String()),
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)
	return nil
}

// permanentError marks failures that retrying cannot fix
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func (p *JobProcessor) handleJobError(ctx context.Context, msg queue.MessageInterface, job *queue.Job, err error) error {
	jobType := string(job.Type)
	log := p.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", jobType),
	)

	var perm permanentError
	if errors.As(err, &perm) {
		log.Error("job_failed_permanently", zap.Error(err))
		return p.deadLetter(msg, job, err)
	}

	// Throttled providers are retried after a delay, within the retry budget
	if ai.IsQuotaError(err) || ai.IsRateLimitError(err) {
		if !job.CanRetry() {
			log.Error("job_throttled_retries_exhausted", zap.Int("max_retries", job.MaxRetries), zap.Error(err))
			return p.deadLetter(msg, job, err)
		}
		retryDelay := ai.GetRetryDelay(err, job.RetryCount)
		if ai.IsQuotaError(err) {
			log.Warn("job_quota_exhausted", zap.Duration("retry_in", retryDelay), zap.Error(err))
		} else {
			log.Warn("job_rate_limited", zap.Duration("retry_in", retryDelay), zap.Error(err))
		}
		return p.retry(ctx, msg, job, retryDelay, "delayed", err)
	}

	// Both providers have already been tried for this job
	if isExtractionFailure(err) {
		log.Error("job_extraction_failed", zap.Error(err))
		return p.deadLetter(msg, job, err)
	}

	if !job.CanRetry() {
		log.Error("job_failed_max_retries", zap.Int("max_retries", job.MaxRetries), zap.Error(err))
		return p.deadLetter(msg, job, err)
	}

	log.Warn("job_failed_will_retry",
		zap.Int("attempt", job.RetryCount+1),
		zap.Int("max_retries", job.MaxRetries),
		zap.Error(err),
	)
	if retryErr := p.retry(ctx, msg, job, 0, "retried", err); retryErr != nil {
		return retryErr
	}
	return fmt.Errorf("job failed (will retry): %w", err)
}

// retry publishes a copy of job with its retry counted and acks the
// original. A requeued delivery carries the original body, so the count
// has to travel in a new message.
func (p *JobProcessor) retry(ctx context.Context, msg queue.MessageInterface, job *queue.Job, delay time.Duration, outcome string, cause error) error {
	if p.jobQueue == nil {
		return p.deadLetter(msg, job, fmt.Errorf("no queue to retry on: %w", cause))
	}
	if err := p.jobQueue.Enqueue(ctx, delayed(job, delay)); err != nil {
		p.logger.Error("failed_to_reenqueue_job", zap.String("job_id", job.ID.String()), zap.Error(err))
		return p.deadLetter(msg, job, fmt.Errorf("failed to re-enqueue: %w", errors.Join(cause, err)))
	}

	metrics.JobsTotal.WithLabelValues(string(job.Type), outcome).Inc()
	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack retried job %s: %w", job.ID, ackErr)
	}
	return nil
}

// isExtractionFailure reports a generation or parse failure from the
// extraction orchestrator
func isExtractionFailure(err error) bool {
	var upstream *extraction.UpstreamServiceError
	var parse *extraction.ResponseParseError
	return errors.As(err, &upstream) || errors.As(err, &parse)
}

func (p *JobProcessor) deadLetter(msg queue.MessageInterface, job *queue.Job, err error) error {
	metrics.JobsTotal.WithLabelValues(string(job.Type), "dead_lettered").Inc()
	if nackErr := msg.Nack(false); nackErr != nil {
		p.logger.Warn("failed_to_nack_job_to_dlq", zap.String("job_id", job.ID.String()), zap.Error(nackErr))
	}
	return fmt.Errorf("job %s sent to DLQ: %w", job.ID, err)
}

// delayed copies a job with NotBefore pushed out by delay
func delayed(job *queue.Job, delay time.Duration) *queue.Job {
	notBefore := time.Now().Add(delay)
	return &queue.Job{
		ID:         job.ID,
		Type:       job.Type,
		Payload:    job.Payload,
		NotBefore:  &notBefore,
		NotAfter:   job.NotAfter,
		CreatedAt:  job.CreatedAt,
		RetryCount: job.RetryCount + 1,
		MaxRetries: job.MaxRetries,
	}
}

func transcriptInput(t queue.TranscriptPayload) pipeline.TranscriptInput {
	source := models.TaskSource(t.Source)
	if source == "" {
		source = models.TaskSourceManual
	}
	return pipeline.TranscriptInput{
		Content: t.Content,
		Source:  source,
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

var _ TranscriptProcessor = (*pipeline.Processor)(nil)
var _ MailboxScanner = (*pipeline.MailboxScanner)(nil)
