package validation

import (
	"errors"
	"strings"
	"testing"
)

type taskFields struct {
	Title    string `validate:"required,max=10"`
	Status   string `validate:"omitempty,task_status"`
	Priority string `validate:"omitempty,task_priority"`
	Source   string `validate:"omitempty,task_source"`
}

func TestCustomValidators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   taskFields
		wantErr bool
		message string
	}{
		{name: "all valid", input: taskFields{Title: "x", Status: "todo", Priority: "high", Source: "zoom"}},
		{name: "empty optional enums", input: taskFields{Title: "x"}},
		{name: "bad status", input: taskFields{Title: "x", Status: "pending"}, wantErr: true, message: `status has an invalid value "pending"`},
		{name: "bad priority", input: taskFields{Title: "x", Priority: "urgent"}, wantErr: true, message: `priority has an invalid value "urgent"`},
		{name: "bad source", input: taskFields{Title: "x", Source: "fax"}, wantErr: true, message: `source has an invalid value "fax"`},
		{name: "missing title", input: taskFields{}, wantErr: true, message: "title is required"},
		{name: "long title", input: taskFields{Title: strings.Repeat("a", 11)}, wantErr: true, message: "title must satisfy max=10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate.Struct(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate.Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if got := Describe(err); got != tt.message {
					t.Errorf("Describe() = %q, want %q", got, tt.message)
				}
			}
		})
	}
}

func TestDescribe_NonValidatorError(t *testing.T) {
	t.Parallel()

	if got := Describe(errors.New("boom")); got != "Validation failed" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "  hello  ", want: "hello"},
		{in: "a\x00b\x07c", want: "abc"},
		{in: "line1\nline2\tend", want: "line1\nline2\tend"},
		{in: "\x1b[31m", want: "[31m"},
	}

	for _, tt := range tests {
		if got := SanitizeText(tt.in); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateEnums(t *testing.T) {
	t.Parallel()

	if err := ValidateTaskStatus("done"); err != nil {
		t.Errorf("ValidateTaskStatus(done) error = %v", err)
	}
	if err := ValidateTaskStatus("completed"); err == nil {
		t.Error("expected error for unknown status")
	}
	if err := ValidateTaskSource("bot_recall"); err != nil {
		t.Errorf("ValidateTaskSource(bot_recall) error = %v", err)
	}
	if err := ValidateTaskSource(""); err == nil {
		t.Error("expected error for empty source")
	}
}
