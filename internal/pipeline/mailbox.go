package pipeline

import (
	"context"
	"fmt"

	"github.com/benvon/smart-todo-capture/internal/metrics"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/services/extraction"
	"go.uber.org/zap"
)

// Mailbox scan defaults
const (
	DefaultScanDays       = 7
	DefaultScanMaxResults = 20
	MaxScanResults        = 100
)

// MailSource lists and fetches mailbox messages
type MailSource interface {
	ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error)
	GetMessage(ctx context.Context, id string) (*models.MailMessage, error)
}

// MailboxScanRequest selects which messages to scan
type MailboxScanRequest struct {
	Days       int    `json:"days,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
	Query      string `json:"query,omitempty"`
	// IncludeRead scans read messages too
	IncludeRead bool `json:"include_read,omitempty"`
}

// SearchQuery returns the mailbox query for the request
func (r MailboxScanRequest) SearchQuery() string {
	if r.Query != "" {
		return r.Query
	}
	days := r.Days
	if days <= 0 {
		days = DefaultScanDays
	}
	if r.IncludeRead {
		return fmt.Sprintf("newer_than:%dd", days)
	}
	return fmt.Sprintf("is:unread newer_than:%dd", days)
}

// maxResults defaults an unset limit to DefaultScanMaxResults and caps it at
// MaxScanResults
func (r MailboxScanRequest) maxResults() int64 {
	switch {
	case r.MaxResults <= 0:
		return DefaultScanMaxResults
	case r.MaxResults > MaxScanResults:
		return MaxScanResults
	default:
		return int64(r.MaxResults)
	}
}

// MailboxScanner turns recent mailbox messages into tasks
type MailboxScanner struct {
	source    MailSource
	processor *Processor
	store     TaskStore
	runs      RunRecorder
	logger    *zap.Logger
}

// NewMailboxScanner creates a mailbox scanner. Per-message processing reuses
// processor; runs may be nil.
func NewMailboxScanner(source MailSource, processor *Processor, store TaskStore, runs RunRecorder, logger *zap.Logger) *MailboxScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailboxScanner{source: source, processor: processor, store: store, runs: runs, logger: logger}
}

// Scan processes every matching message. Messages already referenced by a
// task are skipped. Per-message failures are counted and the scan moves on;
// only failing to list the mailbox is returned as an error.
func (s *MailboxScanner) Scan(ctx context.Context, req MailboxScanRequest) (BatchResult, error) {
	var run *models.AgentRun
	if s.runs != nil {
		r, err := s.runs.Start(ctx, AgentGmail)
		if err != nil {
			s.logger.Warn("agent_run_start_failed", zap.String("agent", AgentGmail), zap.Error(err))
		} else {
			run = r
		}
	}

	result, err := s.scan(ctx, req)

	if run != nil {
		run.ItemsProcessed = result.Processed
		run.TasksCreated = result.Created
		run.TasksSkipped = result.Skipped
		run.Errors = result.Errors
		var finishErr error
		if err != nil {
			finishErr = s.runs.Fail(ctx, run, err)
		} else {
			finishErr = s.runs.Complete(ctx, run)
		}
		if finishErr != nil {
			s.logger.Warn("agent_run_finish_failed", zap.String("run_id", run.ID.String()), zap.Error(finishErr))
		}
	}
	return result, err
}

func (s *MailboxScanner) scan(ctx context.Context, req MailboxScanRequest) (BatchResult, error) {
	var result BatchResult
	query := req.SearchQuery()

	ids, err := s.source.ListMessageIDs(ctx, query, req.maxResults())
	if err != nil {
		return result, fmt.Errorf("failed to list mailbox: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Processed++

		seen, err := s.store.ExistsBySourceReference(ctx, "email_id", id)
		if err != nil {
			s.countError(&result, id, err)
			continue
		}
		if seen {
			s.countSkip(&result)
			continue
		}

		msg, err := s.source.GetMessage(ctx, id)
		if err != nil {
			s.logger.Warn("mailbox_message_fetch_failed", zap.String("email_id", id), zap.Error(err))
			s.countSkip(&result)
			continue
		}

		outcome, err := s.processor.process(ctx, TranscriptInput{
			Content: msg.Content(),
			Source:  models.TaskSourceGmail,
			Metadata: extraction.Metadata{
				From:    msg.From,
				Subject: msg.Subject,
				Date:    msg.Date,
				URL:     msg.URL,
			},
			Reference: models.SourceReference{
				EmailID:     msg.ID,
				ThreadID:    msg.ThreadID,
				OriginalURL: msg.URL,
				Snippet:     models.Snippet(msg.Snippet),
			},
			KnownContacts: []string{msg.From},
		})
		if err != nil {
			s.logger.Warn("mailbox_message_failed", zap.String("email_id", id), zap.Error(err))
		}
		result.add(AgentGmail, outcome, err)
	}

	s.logger.Info("mailbox_scan_completed",
		zap.String("query", query),
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

func (s *MailboxScanner) countSkip(result *BatchResult) {
	result.Skipped++
	metrics.BatchItems.WithLabelValues(AgentGmail, "skipped").Inc()
}

func (s *MailboxScanner) countError(result *BatchResult, id string, err error) {
	s.logger.Warn("mailbox_message_failed", zap.String("email_id", id), zap.Error(err))
	result.add(AgentGmail, nil, err)
}
