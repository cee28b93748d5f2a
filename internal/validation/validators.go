package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	custom := map[string]validator.Func{
		"task_status":   validateTaskStatus,
		"task_priority": validateTaskPriority,
		"task_source":   validateTaskSource,
	}
	for tag, fn := range custom {
		if err := Validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
		}
	}
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	return models.TaskStatus(fl.Field().String()).Valid()
}

func validateTaskPriority(fl validator.FieldLevel) bool {
	switch models.TaskPriority(fl.Field().String()) {
	case models.TaskPriorityLow, models.TaskPriorityMedium, models.TaskPriorityHigh:
		return true
	default:
		return false
	}
}

func validateTaskSource(fl validator.FieldLevel) bool {
	return models.TaskSource(fl.Field().String()).Valid()
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	// Remove control characters except newline and tab
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateTaskStatus validates a TaskStatus string value
func ValidateTaskStatus(value string) error {
	if models.TaskStatus(value).Valid() {
		return nil
	}
	return fmt.Errorf("invalid status: %s (must be 'incoming', 'ai_captured', 'todo', or 'done')", value)
}

// ValidateTaskSource validates a TaskSource string value
func ValidateTaskSource(value string) error {
	if models.TaskSource(value).Valid() {
		return nil
	}
	return fmt.Errorf("invalid source: %s", value)
}

// Describe turns the first failing field of a validator error into a short
// client-facing message
func Describe(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return "Validation failed"
	}
	fe := validationErrors[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param())
	case "task_status", "task_priority", "task_source":
		return fmt.Sprintf("%s has an invalid value %q", field, fe.Value())
	default:
		return fmt.Sprintf("Validation failed: %s", fe.Error())
	}
}
