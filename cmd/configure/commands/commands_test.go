package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/spf13/cobra"
)

func TestNormalizeOrigins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "single", raw: "https://app.example.com", want: "https://app.example.com"},
		{name: "trims and drops empties", raw: " https://a.example.com/ , ,http://localhost:3000", want: "https://a.example.com,http://localhost:3000"},
		{name: "wildcard", raw: "*", want: "*"},
		{name: "empty", raw: " , ", wantErr: true},
		{name: "missing scheme", raw: "app.example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := normalizeOrigins(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("normalizeOrigins() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("normalizeOrigins() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "5-S", want: "5-S"},
		{raw: " 100-m ", want: "100-M"},
		{raw: "", wantErr: true},
		{raw: "fast", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseRate(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRate(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseRate(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestPrintHelpers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	printCors(cmd, nil)
	printRatelimit(cmd, &models.RatelimitConfig{Rate: "20-S"})
	printRuns(cmd, []*models.AgentRun{{
		AgentName:    "gmail",
		Status:       models.AgentRunCompleted,
		TasksCreated: 3,
		StartedAt:    time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}})

	out := buf.String()
	for _, want := range []string{"not configured", "Rate limit: 20-S", "gmail", "completed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestReadTranscript_Stdin(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("Alice: ship it"))
	got, err := readTranscript(cmd, "-")
	if err != nil || got != "Alice: ship it" {
		t.Errorf("readTranscript() = %q, %v", got, err)
	}

	if _, err := readTranscript(cmd, "/nonexistent/transcript.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}
