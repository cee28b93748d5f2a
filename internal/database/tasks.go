package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const taskColumns = `id, title, description, status, priority, due_date, source, source_reference,
	confidence_score, tags, recurrence_enabled, recurrence_days, completed_date, created_at, updated_at`

// sourceReferenceKeys are the JSONB keys ExistsBySourceReference may query
var sourceReferenceKeys = map[string]bool{
	"email_id":      true,
	"meeting_id":    true,
	"transcript_id": true,
	"session_id":    true,
	"original_url":  true,
}

// TaskRepository handles task database operations
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Upsert inserts or replaces a task by id and returns the stored row.
// Concurrent writers to the same id resolve as last-writer-wins.
func (r *TaskRepository) Upsert(ctx context.Context, task *models.Task) (*models.Task, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	now := time.Now().UTC()
	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			priority = EXCLUDED.priority,
			due_date = EXCLUDED.due_date,
			source = EXCLUDED.source,
			source_reference = EXCLUDED.source_reference,
			confidence_score = EXCLUDED.confidence_score,
			tags = EXCLUDED.tags,
			recurrence_enabled = EXCLUDED.recurrence_enabled,
			recurrence_days = EXCLUDED.recurrence_days,
			completed_date = EXCLUDED.completed_date,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + taskColumns

	row := r.db.QueryRowContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		nullTime(task.DueDate),
		task.Source,
		task.SourceReference,
		nullInt(task.ConfidenceScore),
		pq.StringArray(normalizeTags(task.Tags)),
		task.RecurrenceEnabled,
		task.EffectiveRecurrenceDays(),
		nullTime(task.CompletedDate),
		createdAt,
		now,
	)

	saved, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert task: %w", err)
	}
	return saved, nil
}

// GetByID retrieves a task by ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// List returns every task ordered by creation time
func (r *TaskRepository) List(ctx context.Context) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// Delete removes a task
func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// ExistsBySourceReference reports whether any task's source_reference has key set to value
func (r *TaskRepository) ExistsBySourceReference(ctx context.Context, key, value string) (bool, error) {
	if !sourceReferenceKeys[key] {
		return false, fmt.Errorf("unsupported source reference key %q", key)
	}
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tasks WHERE source_reference->>$1 = $2)`,
		key, value,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check source reference: %w", err)
	}
	return exists, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var (
		dueDate       sql.NullTime
		completedDate sql.NullTime
		confidence    sql.NullInt64
		ref           models.SourceReference
		refValid      sourceReferenceColumn
		tags          pq.StringArray
	)
	refValid.ref = &ref

	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&dueDate,
		&task.Source,
		&refValid,
		&confidence,
		&tags,
		&task.RecurrenceEnabled,
		&task.RecurrenceDays,
		&completedDate,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		d := dueDate.Time
		task.DueDate = &d
	}
	if completedDate.Valid {
		d := completedDate.Time
		task.CompletedDate = &d
	}
	if confidence.Valid {
		c := int(confidence.Int64)
		task.ConfidenceScore = &c
	}
	if refValid.valid {
		task.SourceReference = &ref
	}
	task.Tags = []string(tags)
	return task, nil
}

// sourceReferenceColumn scans a nullable JSONB source_reference
type sourceReferenceColumn struct {
	ref   *models.SourceReference
	valid bool
}

func (c *sourceReferenceColumn) Scan(value any) error {
	if value == nil {
		c.valid = false
		return nil
	}
	c.valid = true
	return c.ref.Scan(value)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// normalizeTags trims, lowercases and de-duplicates tags, keeping first-seen order
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		tag := strings.ToLower(strings.TrimSpace(t))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
