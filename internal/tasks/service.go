// Package tasks applies local task mutations and persists them with an
// explicit policy for what happens when persistence fails.
package tasks

import (
	"context"
	"fmt"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store persists a task and returns the authoritative record
type Store interface {
	Upsert(ctx context.Context, task *models.Task) (*models.Task, error)
}

// PersistenceError reports a mutation that could not be saved
type PersistenceError struct {
	TaskID uuid.UUID
	Policy models.UpdatePolicy
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist task %s (%s): %v", e.TaskID, e.Policy, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Service runs two-phase task updates
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new task service
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Apply mutates task and persists it. On success task holds the stored
// record. On failure task is restored to its previous value or keeps the
// mutation, depending on policy, and a *PersistenceError is returned. An
// error from mutate leaves task untouched.
func (s *Service) Apply(ctx context.Context, task *models.Task, mutate func(*models.Task) error, policy models.UpdatePolicy) error {
	snapshot := task.Clone()
	working := task.Clone()
	if err := mutate(working); err != nil {
		return err
	}

	// Optimistic phase
	*task = *working

	saved, err := s.store.Upsert(ctx, working)
	if err != nil {
		if policy == models.RollbackOnFailure {
			*task = *snapshot
		}
		s.logger.Warn("task_update_not_persisted",
			zap.String("task_id", task.ID.String()),
			zap.String("policy", policy.String()),
			zap.Error(err),
		)
		return &PersistenceError{TaskID: snapshot.ID, Policy: policy, Err: err}
	}

	*task = *saved
	return nil
}
