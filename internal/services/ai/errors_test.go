package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestExtractAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantNil   bool
		status    int
		permanent bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "unrelated", err: errors.New("connection refused"), wantNil: true},
		{
			name:   "rate limited",
			err:    errors.New(`POST "https://api.openai.com/v1/chat/completions": 429 Too Many Requests {"message":"slow down","type":"requests","code":"rate_limit_exceeded"}`),
			status: 429,
		},
		{
			name:      "quota",
			err:       errors.New(`429 {"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`),
			status:    429,
			permanent: true,
		},
		{
			name:   "overloaded",
			err:    errors.New(`anthropic: overloaded_error`),
			status: 529,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractAPIError(tt.err)
			if tt.wantNil {
				if got != nil {
					t.Errorf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected APIError")
			}
			if got.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", got.StatusCode, tt.status)
			}
			if got.IsPermanent != tt.permanent {
				t.Errorf("IsPermanent = %v, want %v", got.IsPermanent, tt.permanent)
			}
		})
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	rateLimited := fmt.Errorf("failed: %w", &APIError{StatusCode: 429})
	quota := fmt.Errorf("failed: %w", &APIError{StatusCode: 429, IsPermanent: true})

	if !IsRateLimitError(rateLimited) || IsQuotaError(rateLimited) {
		t.Error("transient 429 misclassified")
	}
	if IsRateLimitError(quota) || !IsQuotaError(quota) {
		t.Error("quota error misclassified")
	}
	if !IsTimeoutError(fmt.Errorf("call: %w", context.DeadlineExceeded)) {
		t.Error("deadline exceeded should be a timeout")
	}
	if IsTimeoutError(errors.New("boom")) {
		t.Error("plain error should not be a timeout")
	}
}

func TestGetRetryDelay(t *testing.T) {
	t.Parallel()

	quota := &APIError{StatusCode: 429, IsPermanent: true}
	if got := GetRetryDelay(quota, 0); got != time.Hour {
		t.Errorf("quota delay = %v, want 1h", got)
	}
	if got := GetRetryDelay(quota, 50); got != 24*time.Hour {
		t.Errorf("quota delay cap = %v, want 24h", got)
	}
	if got := GetRetryDelay(&APIError{StatusCode: 429}, 0); got != time.Minute {
		t.Errorf("rate limit delay = %v, want 1m", got)
	}
	if got := GetRetryDelay(errors.New("boom"), 1); got != 10*time.Second {
		t.Errorf("default delay = %v, want 10s", got)
	}
	if got := GetRetryDelay(errors.New("boom"), -3); got != 5*time.Second {
		t.Errorf("negative attempt delay = %v, want 5s", got)
	}
}

func TestSanitizePrompt(t *testing.T) {
	t.Parallel()

	long := make([]byte, MaxPreviewLength+10)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizePrompt(string(long), false); len(got) != MaxPreviewLength+3 {
		t.Errorf("preview length = %d", len(got))
	}
	if got := SanitizePrompt("a\x00b", true); got != "ab" {
		t.Errorf("control characters not removed: %q", got)
	}
	if got := SanitizeAPIKey("sk-1234567890"); got != "sk-1"+RedactedValue+"7890" {
		t.Errorf("SanitizeAPIKey = %q", got)
	}
}
