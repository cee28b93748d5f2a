// Package recurrence returns completed tasks to the inbox once their
// cool-down has elapsed.
package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/smart-todo-capture/internal/metrics"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/tasks"
	"go.uber.org/zap"
)

// DefaultScanInterval is how often Start runs a scan
const DefaultScanInterval = time.Minute

// ErrInvalidStatus is returned for a transition to an unknown status
var ErrInvalidStatus = errors.New("invalid task status")

// Transition moves task to status to. Entering done stamps the completed
// date; leaving done clears it.
func Transition(task *models.Task, to models.TaskStatus, now time.Time) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}

	switch {
	case to == models.TaskStatusDone && task.Status != models.TaskStatusDone:
		completed := now
		task.CompletedDate = &completed
	case to != models.TaskStatusDone:
		task.CompletedDate = nil
	}
	task.Status = to
	task.UpdatedAt = now
	return nil
}

// Due reports whether a completed recurring task should reappear at now
func Due(task *models.Task, now time.Time) bool {
	if !task.RecurrenceEnabled || task.Status != models.TaskStatusDone || task.CompletedDate == nil {
		return false
	}
	cooldown := time.Duration(task.EffectiveRecurrenceDays()) * 24 * time.Hour
	return now.Sub(*task.CompletedDate) >= cooldown
}

// TaskLister lists every task
type TaskLister interface {
	List(ctx context.Context) ([]*models.Task, error)
}

// ScanResult counts what one scan did
type ScanResult struct {
	Scanned     int `json:"scanned"`
	Reactivated int `json:"reactivated"`
	Errors      int `json:"errors"`
}

// Engine periodically reactivates due tasks
type Engine struct {
	lister   TaskLister
	updater  *tasks.Service
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a recurrence engine. A non-positive interval uses
// DefaultScanInterval.
func NewEngine(lister TaskLister, updater *tasks.Service, interval time.Duration, logger *zap.Logger) *Engine {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		lister:   lister,
		updater:  updater,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Scan reactivates every due task. Failures to persist a single task are
// counted and the scan moves on.
func (e *Engine) Scan(ctx context.Context) (ScanResult, error) {
	start := time.Now()
	defer func() { metrics.RecurrenceScanDuration.Observe(time.Since(start).Seconds()) }()

	all, err := e.lister.List(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to list tasks: %w", err)
	}

	now := e.now()
	result := ScanResult{Scanned: len(all)}
	for _, task := range all {
		if !Due(task, now) {
			continue
		}
		err := e.updater.Apply(ctx, task, func(t *models.Task) error {
			return Transition(t, models.TaskStatusIncoming, now)
		}, models.RollbackOnFailure)
		if err != nil {
			result.Errors++
			e.logger.Warn("recurrence_reactivation_failed",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
			continue
		}
		result.Reactivated++
		metrics.RecurrencesTotal.Inc()
		e.logger.Info("recurrence_task_reactivated",
			zap.String("task_id", task.ID.String()),
			zap.String("title", task.Title),
			zap.Int("recurrence_days", task.EffectiveRecurrenceDays()),
		)
	}
	return result, nil
}

// Start runs Scan every interval until ctx is cancelled
func (e *Engine) Start(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("recurrence_engine_started", zap.Duration("interval", e.interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("recurrence_engine_stopped")
			return
		case <-ticker.C:
			result, err := e.Scan(ctx)
			if err != nil {
				e.logger.Error("recurrence_scan_failed", zap.Error(err))
				continue
			}
			if result.Reactivated > 0 || result.Errors > 0 {
				e.logger.Info("recurrence_scan_completed",
					zap.Int("scanned", result.Scanned),
					zap.Int("reactivated", result.Reactivated),
					zap.Int("errors", result.Errors),
				)
			}
		}
	}
}
