package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-todo-capture/internal/queue"
	"go.uber.org/zap"
)

// DefaultMailboxScanInterval is how often scan_mailbox jobs are scheduled
const DefaultMailboxScanInterval = time.Hour

// MailboxScheduler periodically enqueues scan_mailbox jobs
type MailboxScheduler struct {
	jobQueue queue.JobQueue
	interval time.Duration
	request  queue.ScanMailboxPayload
	logger   *zap.Logger
	now      func() time.Time
}

// NewMailboxScheduler creates a new scheduler. Each job expires after one
// interval so a stalled worker does not accumulate overlapping scans.
func NewMailboxScheduler(jobQueue queue.JobQueue, interval time.Duration, request queue.ScanMailboxPayload, logger *zap.Logger) *MailboxScheduler {
	if interval <= 0 {
		interval = DefaultMailboxScanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailboxScheduler{
		jobQueue: jobQueue,
		interval: interval,
		request:  request,
		logger:   logger,
		now:      time.Now,
	}
}

// ScheduleScan enqueues one scan_mailbox job valid for the next interval
func (s *MailboxScheduler) ScheduleScan(ctx context.Context) (*queue.Job, error) {
	job, err := queue.NewJob(queue.JobTypeScanMailbox, s.request)
	if err != nil {
		return nil, err
	}
	now := s.now()
	notAfter := now.Add(s.interval)
	job.NotBefore = &now
	job.NotAfter = &notAfter

	if err := s.jobQueue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue mailbox scan: %w", err)
	}

	s.logger.Info("scheduled_mailbox_scan",
		zap.String("job_id", job.ID.String()),
		zap.Time("not_after", notAfter),
	)
	return job, nil
}

// Start schedules a scan immediately and then on every tick until ctx is done
func (s *MailboxScheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.schedule(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.schedule(ctx)
		}
	}
}

func (s *MailboxScheduler) schedule(ctx context.Context) {
	if _, err := s.ScheduleScan(ctx); err != nil {
		s.logger.Warn("failed_to_schedule_mailbox_scan", zap.Error(err))
	}
}
