package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/smart-todo-capture/internal/config"
	"go.uber.org/zap"
)

func TestProviderConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		AIModel:             "gpt-4o-mini",
		AIBaseURL:           "https://llm.internal/v1",
		AIRequestTimeout:    10 * time.Second,
		AIRequestsPerMinute: 20,
		OpenAIKey:           "sk-openai",
		AnthropicKey:        "sk-ant",
		AnthropicModel:      "claude-test",
	}

	openai := providerConfig(cfg, "openai", nil, false)
	if openai.APIKey != "sk-openai" || openai.Model != "gpt-4o-mini" || openai.BaseURL != "https://llm.internal/v1" {
		t.Errorf("openai config = %+v", openai)
	}
	if openai.Timeout != 10*time.Second || openai.RequestsPerMinute != 20 {
		t.Errorf("openai limits = %+v", openai)
	}

	anthropic := providerConfig(cfg, "anthropic", nil, true)
	if anthropic.APIKey != "sk-ant" || anthropic.Model != "claude-test" || anthropic.BaseURL != "" || !anthropic.DebugMode {
		t.Errorf("anthropic config = %+v", anthropic)
	}
}

func TestNewExtractor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.Config
		wantErr bool
	}{
		{name: "primary without key", cfg: config.Config{AIProvider: "openai"}, wantErr: true},
		{name: "unknown primary", cfg: config.Config{AIProvider: "fax", OpenAIKey: "k"}, wantErr: true},
		{name: "primary only", cfg: config.Config{AIProvider: "openai", OpenAIKey: "k", ConfidenceFloor: 55}},
		{name: "broken fallback skipped", cfg: config.Config{AIProvider: "openai", OpenAIKey: "k", AIFallbackProvider: "anthropic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			o, err := NewExtractor(&cfg, zap.NewNop(), false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewExtractor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg.ConfidenceFloor > 0 && o.ConfidenceFloor() != cfg.ConfidenceFloor {
				t.Errorf("ConfidenceFloor() = %d, want %d", o.ConfidenceFloor(), cfg.ConfidenceFloor)
			}
		})
	}
}

func TestConnectWithRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := connectWithRetry(context.Background(), zap.NewNop(), 3, time.Millisecond, func() (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection refused")
		}
		return "conn", nil
	})
	if err != nil || got != "conn" || calls != 3 {
		t.Errorf("got %q, err %v after %d calls", got, err, calls)
	}
}

func TestConnectWithRetry_GivesUp(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := connectWithRetry(context.Background(), zap.NewNop(), 2, time.Millisecond, func() (int, error) {
		calls++
		return 0, errors.New("connection refused")
	})
	if err == nil || calls != 2 {
		t.Errorf("err = %v after %d calls", err, calls)
	}
}

func TestConnectWithRetry_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := connectWithRetry(ctx, zap.NewNop(), 5, time.Hour, func() (int, error) {
		return 0, errors.New("connection refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
