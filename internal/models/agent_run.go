package models

import (
	"time"

	"github.com/google/uuid"
)

// AgentRunStatus is the state of a pipeline pass
type AgentRunStatus string

const (
	AgentRunRunning   AgentRunStatus = "running"
	AgentRunCompleted AgentRunStatus = "completed"
	AgentRunFailed    AgentRunStatus = "failed"
)

// AgentRun records one pass of an extraction agent over its input
type AgentRun struct {
	ID             uuid.UUID      `json:"id"`
	AgentName      string         `json:"agent_name"`
	Status         AgentRunStatus `json:"status"`
	ItemsProcessed int            `json:"items_processed"`
	TasksCreated   int            `json:"tasks_created"`
	TasksSkipped   int            `json:"tasks_skipped"`
	Errors         int            `json:"errors"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}
