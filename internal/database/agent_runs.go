package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/google/uuid"
)

// AgentRunRepository records pipeline passes
type AgentRunRepository struct {
	db *DB
}

// NewAgentRunRepository creates a new agent run repository
func NewAgentRunRepository(db *DB) *AgentRunRepository {
	return &AgentRunRepository{db: db}
}

// Start inserts a running row for agentName
func (r *AgentRunRepository) Start(ctx context.Context, agentName string) (*models.AgentRun, error) {
	run := &models.AgentRun{
		ID:        uuid.New(),
		AgentName: agentName,
		Status:    models.AgentRunRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO agent_runs (id, agent_name, status, started_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.AgentName, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start agent run: %w", err)
	}
	return run, nil
}

// Complete marks a run completed with its counters
func (r *AgentRunRepository) Complete(ctx context.Context, run *models.AgentRun) error {
	return r.finish(ctx, run, models.AgentRunCompleted)
}

// Fail marks a run failed
func (r *AgentRunRepository) Fail(ctx context.Context, run *models.AgentRun, runErr error) error {
	if runErr != nil {
		run.ErrorMessage = runErr.Error()
	}
	return r.finish(ctx, run, models.AgentRunFailed)
}

func (r *AgentRunRepository) finish(ctx context.Context, run *models.AgentRun, status models.AgentRunStatus) error {
	completed := time.Now().UTC()
	run.Status = status
	run.CompletedAt = &completed

	res, err := r.db.ExecContext(ctx, `
		UPDATE agent_runs
		SET status = $2, items_processed = $3, tasks_created = $4, tasks_skipped = $5,
			errors = $6, error_message = $7, completed_at = $8
		WHERE id = $1
	`, run.ID, run.Status, run.ItemsProcessed, run.TasksCreated, run.TasksSkipped,
		run.Errors, run.ErrorMessage, completed)
	if err != nil {
		return fmt.Errorf("failed to finish agent run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("agent run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// Recent returns the latest runs, newest first
func (r *AgentRunRepository) Recent(ctx context.Context, limit int) ([]*models.AgentRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, agent_name, status, items_processed, tasks_created, tasks_skipped,
			errors, error_message, started_at, completed_at
		FROM agent_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query agent runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*models.AgentRun
	for rows.Next() {
		run := &models.AgentRun{}
		var completed sql.NullTime
		if err := rows.Scan(
			&run.ID, &run.AgentName, &run.Status, &run.ItemsProcessed, &run.TasksCreated,
			&run.TasksSkipped, &run.Errors, &run.ErrorMessage, &run.StartedAt, &completed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan agent run: %w", err)
		}
		if completed.Valid {
			t := completed.Time
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent runs: %w", err)
	}
	return runs, nil
}
