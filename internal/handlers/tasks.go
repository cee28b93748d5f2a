package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/recurrence"
	"github.com/benvon/smart-todo-capture/internal/tasks"
	"github.com/benvon/smart-todo-capture/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TaskStore is the slice of the task repository the handler needs
type TaskStore interface {
	List(ctx context.Context) ([]*models.Task, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Upsert(ctx context.Context, task *models.Task) (*models.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TaskUpdater runs two-phase updates
type TaskUpdater interface {
	Apply(ctx context.Context, task *models.Task, mutate func(*models.Task) error, policy models.UpdatePolicy) error
}

var _ TaskUpdater = (*tasks.Service)(nil)

// TaskHandler handles task-related requests
type TaskHandler struct {
	store   TaskStore
	updater TaskUpdater
	logger  *zap.Logger
	now     func() time.Time
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(store TaskStore, updater TaskUpdater, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{
		store:   store,
		updater: updater,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes registers task routes on the given router
// The router should already have the /tasks prefix
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PUT")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/{id}/status", h.UpdateStatus).Methods("PATCH")
}

// CreateTaskRequest represents a create task request
type CreateTaskRequest struct {
	Title             string     `json:"title" validate:"required,max=500"`
	Description       string     `json:"description" validate:"max=10000"`
	Status            string     `json:"status" validate:"omitempty,task_status"`
	Priority          string     `json:"priority" validate:"omitempty,task_priority"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	Tags              []string   `json:"tags" validate:"max=20,dive,max=50"`
	RecurrenceEnabled *bool      `json:"recurrence_enabled,omitempty"`
	RecurrenceDays    *int       `json:"recurrence_days,omitempty" validate:"omitempty,min=1,max=365"`
}

// UpdateTaskRequest represents a full task update; absent fields keep their value
type UpdateTaskRequest struct {
	Title             *string    `json:"title,omitempty" validate:"omitempty,max=500"`
	Description       *string    `json:"description,omitempty" validate:"omitempty,max=10000"`
	Status            *string    `json:"status,omitempty" validate:"omitempty,task_status"`
	Priority          *string    `json:"priority,omitempty" validate:"omitempty,task_priority"`
	DueDate           *time.Time `json:"due_date,omitempty"`
	Tags              []string   `json:"tags,omitempty" validate:"max=20,dive,max=50"`
	RecurrenceEnabled *bool      `json:"recurrence_enabled,omitempty"`
	RecurrenceDays    *int       `json:"recurrence_days,omitempty" validate:"omitempty,min=1,max=365"`
}

// UpdateStatusRequest represents a status transition request
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,task_status"`
}

// ListTasksResponse represents the response for listing tasks
type ListTasksResponse struct {
	Tasks []*models.Task `json:"tasks"`
	Total int            `json:"total"`
}

// ListTasks lists tasks, optionally filtered by status and source
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	var status models.TaskStatus
	if s := r.URL.Query().Get("status"); s != "" {
		if err := validation.ValidateTaskStatus(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		status = models.TaskStatus(s)
	}

	var source models.TaskSource
	if s := r.URL.Query().Get("source"); s != "" {
		if err := validation.ValidateTaskSource(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		source = models.TaskSource(s)
	}

	all, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed_to_list_tasks", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve tasks")
		return
	}

	filtered := make([]*models.Task, 0, len(all))
	for _, t := range all {
		if status != "" && t.Status != status {
			continue
		}
		if source != "" && t.Source != source {
			continue
		}
		filtered = append(filtered, t)
	}

	respondJSON(w, http.StatusOK, ListTasksResponse{Tasks: filtered, Total: len(filtered)})
}

// CreateTask creates a manual task
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	title := validation.SanitizeText(req.Title)
	if title == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "title is required and cannot be empty after sanitization")
		return
	}

	task := models.NewTask(title, models.TaskSourceManual)
	task.Status = models.TaskStatusTodo
	task.Description = validation.SanitizeText(req.Description)
	task.DueDate = req.DueDate
	task.Tags = req.Tags
	if req.Priority != "" {
		task.Priority = models.TaskPriority(req.Priority)
	}
	if req.RecurrenceEnabled != nil {
		task.RecurrenceEnabled = *req.RecurrenceEnabled
	}
	if req.RecurrenceDays != nil {
		task.RecurrenceDays = *req.RecurrenceDays
	}
	if req.Status != "" {
		if err := recurrence.Transition(task, models.TaskStatus(req.Status), h.now()); err != nil {
			respondServiceError(w, h.logger, err)
			return
		}
	}

	saved, err := h.store.Upsert(r.Context(), task)
	if err != nil {
		h.logger.Error("failed_to_create_task", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create task")
		return
	}

	h.logger.Info("task_created", zap.String("task_id", saved.ID.String()), zap.String("source", string(saved.Source)))
	respondJSON(w, http.StatusCreated, saved)
}

// GetTask retrieves a single task
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, task)
}

// UpdateTask replaces the supplied fields of a task
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Title != nil && validation.SanitizeText(*req.Title) == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "title cannot be empty")
		return
	}

	now := h.now()
	err := h.updater.Apply(r.Context(), task, func(t *models.Task) error {
		if req.Title != nil {
			t.Title = validation.SanitizeText(*req.Title)
		}
		if req.Description != nil {
			t.Description = validation.SanitizeText(*req.Description)
		}
		if req.Priority != nil {
			t.Priority = models.TaskPriority(*req.Priority)
		}
		if req.DueDate != nil {
			t.DueDate = req.DueDate
		}
		if req.Tags != nil {
			t.Tags = req.Tags
		}
		if req.RecurrenceEnabled != nil {
			t.RecurrenceEnabled = *req.RecurrenceEnabled
		}
		if req.RecurrenceDays != nil {
			t.RecurrenceDays = *req.RecurrenceDays
		}
		t.UpdatedAt = now
		if req.Status != nil {
			return recurrence.Transition(t, models.TaskStatus(*req.Status), now)
		}
		return nil
	}, models.RollbackOnFailure)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateStatus moves a task through the status state machine
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	task, ok := h.loadTask(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	from := task.Status
	err := h.updater.Apply(r.Context(), task, func(t *models.Task) error {
		return recurrence.Transition(t, models.TaskStatus(req.Status), h.now())
	}, models.RollbackOnFailure)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("task_status_changed",
		zap.String("task_id", task.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(task.Status)),
	)
	respondJSON(w, http.StatusOK, task)
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *TaskHandler) loadTask(w http.ResponseWriter, r *http.Request) (*models.Task, bool) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return nil, false
	}

	task, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return nil, false
	}
	return task, true
}

func parseTaskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}
