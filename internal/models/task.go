package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusIncoming   TaskStatus = "incoming"
	TaskStatusAICaptured TaskStatus = "ai_captured"
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusDone       TaskStatus = "done"
)

// Valid reports whether s is a known status
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusIncoming, TaskStatusAICaptured, TaskStatusTodo, TaskStatusDone:
		return true
	}
	return false
}

// TaskPriority represents task urgency
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// ParsePriority maps free text to a priority, defaulting to medium
func ParsePriority(s string) TaskPriority {
	switch TaskPriority(s) {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return TaskPriority(s)
	}
	return TaskPriorityMedium
}

// TaskSource is the origin tag of a task
type TaskSource string

const (
	TaskSourceManual     TaskSource = "manual"
	TaskSourceGemini     TaskSource = "gemini"
	TaskSourceGmail      TaskSource = "gmail"
	TaskSourceMeet       TaskSource = "meet"
	TaskSourceGoogleMeet TaskSource = "google_meet"
	TaskSourceZoom       TaskSource = "zoom"
	TaskSourceSlack      TaskSource = "slack"
	TaskSourceLinkedIn   TaskSource = "linkedin"
	TaskSourceCalendar   TaskSource = "calendar"
	TaskSourceBotRecall  TaskSource = "bot_recall"
)

// Valid reports whether s is a known source
func (s TaskSource) Valid() bool {
	switch s {
	case TaskSourceManual, TaskSourceGemini, TaskSourceGmail, TaskSourceMeet, TaskSourceGoogleMeet,
		TaskSourceZoom, TaskSourceSlack, TaskSourceLinkedIn, TaskSourceCalendar, TaskSourceBotRecall:
		return true
	}
	return false
}

// IsMeeting reports whether the source produces meeting transcripts
func (s TaskSource) IsMeeting() bool {
	switch s {
	case TaskSourceMeet, TaskSourceGoogleMeet, TaskSourceZoom, TaskSourceBotRecall:
		return true
	}
	return false
}

// DefaultRecurrenceDays is the cool-down applied when none is set
const DefaultRecurrenceDays = 7

// Task represents a durable unit of work
type Task struct {
	ID                uuid.UUID        `json:"id"`
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	Status            TaskStatus       `json:"status"`
	Priority          TaskPriority     `json:"priority"`
	DueDate           *time.Time       `json:"due_date,omitempty"`
	Source            TaskSource       `json:"source"`
	SourceReference   *SourceReference `json:"source_reference,omitempty"`
	ConfidenceScore   *int             `json:"confidence_score,omitempty"`
	Tags              []string         `json:"tags,omitempty"`
	RecurrenceEnabled bool             `json:"recurrence_enabled"`
	RecurrenceDays    int              `json:"recurrence_days"`
	CompletedDate     *time.Time       `json:"completed_date,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewTask returns a task with the defaults applied to new records
func NewTask(title string, source TaskSource) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:                uuid.New(),
		Title:             title,
		Status:            TaskStatusIncoming,
		Priority:          TaskPriorityMedium,
		Source:            source,
		RecurrenceEnabled: true,
		RecurrenceDays:    DefaultRecurrenceDays,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// IsMachineExtracted reports whether the task carries a confidence score
func (t *Task) IsMachineExtracted() bool {
	return t.ConfidenceScore != nil && *t.ConfidenceScore > 0
}

// EffectiveRecurrenceDays returns the cool-down, falling back to the default
func (t *Task) EffectiveRecurrenceDays() int {
	if t.RecurrenceDays < 1 {
		return DefaultRecurrenceDays
	}
	return t.RecurrenceDays
}

// Clone returns a deep copy of the task
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedDate != nil {
		d := *t.CompletedDate
		c.CompletedDate = &d
	}
	if t.ConfidenceScore != nil {
		s := *t.ConfidenceScore
		c.ConfidenceScore = &s
	}
	if t.SourceReference != nil {
		ref := *t.SourceReference
		c.SourceReference = &ref
	}
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	return &c
}

// UpdatePolicy decides what happens to an optimistic local mutation when
// persisting it fails
type UpdatePolicy int

const (
	// RollbackOnFailure restores the pre-mutation value
	RollbackOnFailure UpdatePolicy = iota
	// KeepOptimistic leaves the mutated value in place
	KeepOptimistic
)

func (p UpdatePolicy) String() string {
	if p == KeepOptimistic {
		return "keep_optimistic"
	}
	return "rollback"
}
