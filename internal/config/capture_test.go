package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benvon/smart-todo-capture/internal/capture"
	"github.com/benvon/smart-todo-capture/internal/models"
)

func TestLoadCapturePolicies_YAML(t *testing.T) {
	t.Parallel()

	content := []byte(`
channels:
  zoom:
    interval: 45s
  slack:
    silence: 10s
    min_fragment_length: 3
  gmail:
    flush_on_end: true
`)

	envMutex.Lock()
	policies, err := loadCapturePolicies(content)
	envMutex.Unlock()
	if err != nil {
		t.Fatalf("loadCapturePolicies() error = %v", err)
	}

	zoom := policies.For(models.TaskSourceZoom)
	if zoom.Interval != 45*time.Second {
		t.Errorf("zoom Interval = %v, want 45s", zoom.Interval)
	}
	// Unset fields keep the built-in values
	if zoom.Silence != 5*time.Second || zoom.MinFragmentLength != 4 {
		t.Errorf("zoom = %+v, want built-in silence and min length kept", zoom)
	}

	slack := policies.For(models.TaskSourceSlack)
	if slack.Interval != 2*time.Minute || slack.Silence != 10*time.Second || slack.MinFragmentLength != 3 {
		t.Errorf("slack = %+v", slack)
	}

	gmail := policies.For(models.TaskSourceGmail)
	if !gmail.FlushOnEnd || gmail.Interval != capture.DefaultInterval {
		t.Errorf("gmail = %+v, want FlushOnEnd on the default interval", gmail)
	}

	if got := policies.For(models.TaskSourceBotRecall); !got.FlushOnEnd {
		t.Error("untouched channels must keep their built-in policy")
	}
}

func TestLoadCapturePolicies_Env(t *testing.T) {
	t.Parallel()

	envMutex.Lock()
	defer envMutex.Unlock()

	vars := map[string]string{
		"CAPTURE_BOT_RECALL_INTERVAL":      "1m",
		"CAPTURE_ZOOM_FLUSH_ON_END":        "true",
		"CAPTURE_MEET_MIN_FRAGMENT_LENGTH": "2",
		"CAPTURE_CONFIG_FILE":              "/etc/capture.yaml",
	}
	for k, v := range vars {
		_ = os.Setenv(k, v) // Ignore error in test setup
	}
	defer func() {
		for k := range vars {
			_ = os.Unsetenv(k) // Ignore error in test cleanup
		}
	}()

	policies, err := loadCapturePolicies([]byte("channels:\n  bot_recall:\n    interval: 10s\n"))
	if err != nil {
		t.Fatalf("loadCapturePolicies() error = %v", err)
	}

	bot := policies.For(models.TaskSourceBotRecall)
	if bot.Interval != time.Minute {
		t.Errorf("bot_recall Interval = %v, want env to override the file", bot.Interval)
	}
	if !bot.FlushOnEnd {
		t.Error("bot_recall FlushOnEnd lost")
	}
	if !policies.For(models.TaskSourceZoom).FlushOnEnd {
		t.Error("zoom FlushOnEnd not applied from env")
	}
	if got := policies.For(models.TaskSourceMeet).MinFragmentLength; got != 2 {
		t.Errorf("meet MinFragmentLength = %d, want 2", got)
	}
}

func TestLoadCapturePolicies_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown channel", content: "channels:\n  fax:\n    interval: 1m\n"},
		{name: "negative interval", content: "channels:\n  zoom:\n    interval: -1s\n"},
		{name: "malformed yaml", content: "channels: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			envMutex.Lock()
			_, err := loadCapturePolicies([]byte(tt.content))
			envMutex.Unlock()
			if err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadCapturePolicies_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "capture.yaml")
	if err := os.WriteFile(path, []byte("channels:\n  linkedin:\n    interval: 5m\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	envMutex.Lock()
	policies, err := LoadCapturePolicies(path)
	envMutex.Unlock()
	if err != nil {
		t.Fatalf("LoadCapturePolicies() error = %v", err)
	}
	if got := policies.For(models.TaskSourceLinkedIn).Interval; got != 5*time.Minute {
		t.Errorf("linkedin Interval = %v, want 5m", got)
	}

	if _, err := LoadCapturePolicies(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestLoadCapturePolicies_NoSources(t *testing.T) {
	t.Parallel()

	envMutex.Lock()
	policies, err := LoadCapturePolicies("")
	envMutex.Unlock()
	if err != nil {
		t.Fatalf("LoadCapturePolicies() error = %v", err)
	}
	if len(policies) != len(capture.DefaultPolicies()) {
		t.Errorf("got %d policies, want the %d defaults", len(policies), len(capture.DefaultPolicies()))
	}
}

func TestCaptureEnvKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want string
	}{
		{key: "CAPTURE_ZOOM_INTERVAL", want: "channels.zoom.interval"},
		{key: "CAPTURE_GOOGLE_MEET_SILENCE", want: "channels.google_meet.silence"},
		{key: "CAPTURE_BOT_RECALL_FLUSH_ON_END", want: "channels.bot_recall.flush_on_end"},
		{key: "CAPTURE_SLACK_MIN_FRAGMENT_LENGTH", want: "channels.slack.min_fragment_length"},
		{key: "CAPTURE_CONFIG_FILE", want: ""},
		{key: "CAPTURE_INTERVAL", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			if got := captureEnvKey(tt.key); got != tt.want {
				t.Errorf("captureEnvKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
