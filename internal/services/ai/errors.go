package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIError represents an error returned by a text-generation provider
type APIError struct {
	Provider    string
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool // true for quota exhaustion, false for transient limits
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError checks if an error is a transient rate limit
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return (apiErr.StatusCode == 429 || apiErr.StatusCode == 529) && !apiErr.IsPermanent
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsQuotaError checks if an error is quota or billing exhaustion
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsPermanent || apiErr.Code == "insufficient_quota"
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "insufficient_quota") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "billing")
}

// IsTimeoutError checks if a call gave up waiting for the provider
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// ExtractAPIError recognizes throttling responses embedded in provider errors.
// It returns nil for any other error.
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	errStr := err.Error()

	var status int
	switch {
	case strings.Contains(errStr, "429"):
		status = 429
	case strings.Contains(errStr, "529"), strings.Contains(errStr, "overloaded_error"):
		status = 529
	default:
		return nil
	}

	apiErr := &APIError{
		StatusCode: status,
		Message:    errStr,
		Type:       "rate_limit_error",
	}
	if status == 529 {
		apiErr.Type = "overloaded_error"
	}

	if body := embeddedJSON(errStr); body != "" {
		var payload struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
			Error   *struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(body), &payload) == nil {
			if payload.Error != nil {
				payload.Message, payload.Type, payload.Code = payload.Error.Message, payload.Error.Type, payload.Error.Code
			}
			if payload.Message != "" {
				apiErr.Message = payload.Message
			}
			if payload.Type != "" {
				apiErr.Type = payload.Type
			}
			apiErr.Code = payload.Code
			if payload.Code == "insufficient_quota" {
				apiErr.IsPermanent = true
			}
		}
	}

	retryAfter := 60 * time.Second
	if apiErr.IsPermanent {
		retryAfter = time.Hour
	}
	apiErr.RetryAfter = &retryAfter
	return apiErr
}

func embeddedJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// GetRetryDelay returns the backoff before a failed job is retried
func GetRetryDelay(err error, attempt int) time.Duration {
	shift := attempt
	if shift < 0 {
		shift = 0
	}
	if shift > 10 {
		shift = 10
	}
	factor := time.Duration(1 << uint(shift))

	switch {
	case IsQuotaError(err):
		return min(time.Hour*factor, 24*time.Hour)
	case IsRateLimitError(err):
		delay := min(60*time.Second*factor, 15*time.Minute)
		if apiErr := ExtractAPIError(err); apiErr != nil && apiErr.RetryAfter != nil && *apiErr.RetryAfter > delay {
			delay = *apiErr.RetryAfter
		}
		return delay
	default:
		return min(5*time.Second*factor, 5*time.Minute)
	}
}
