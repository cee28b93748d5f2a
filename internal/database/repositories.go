package database

import (
	"context"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/google/uuid"
)

// TaskRepositoryInterface defines the interface for task repository operations
// This interface enables better testability by allowing mock implementations
type TaskRepositoryInterface interface {
	Upsert(ctx context.Context, task *models.Task) (*models.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	List(ctx context.Context) ([]*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ExistsBySourceReference(ctx context.Context, key, value string) (bool, error)
}

// AgentRunRepositoryInterface defines the interface for agent run bookkeeping
type AgentRunRepositoryInterface interface {
	Start(ctx context.Context, agentName string) (*models.AgentRun, error)
	Complete(ctx context.Context, run *models.AgentRun) error
	Fail(ctx context.Context, run *models.AgentRun, runErr error) error
}

// CorsConfigRepositoryInterface defines the interface for CORS config storage
type CorsConfigRepositoryInterface interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
	Set(ctx context.Context, c *models.CorsConfig) error
}

// RatelimitConfigRepositoryInterface defines the interface for rate limit config storage
type RatelimitConfigRepositoryInterface interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// Ensure concrete types implement the interfaces
var (
	_ TaskRepositoryInterface            = (*TaskRepository)(nil)
	_ AgentRunRepositoryInterface        = (*AgentRunRepository)(nil)
	_ CorsConfigRepositoryInterface      = (*CorsConfigRepository)(nil)
	_ RatelimitConfigRepositoryInterface = (*RatelimitConfigRepository)(nil)
)
