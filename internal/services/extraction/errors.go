package extraction

import (
	"errors"
	"fmt"
)

// ErrNothingToExtract means the input was too short to be worth a generation call
var ErrNothingToExtract = errors.New("nothing to extract")

// ValidationError reports input rejected before any network call
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid extraction input: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrNothingToExtract
}

// UpstreamServiceError reports a failed or timed out generation call.
// Fallback holds the secondary provider's error when one was tried.
type UpstreamServiceError struct {
	Provider string
	Err      error
	Fallback error
}

func (e *UpstreamServiceError) Error() string {
	if e.Fallback != nil {
		return fmt.Sprintf("text generation failed (%s): %v; fallback failed: %v", e.Provider, e.Err, e.Fallback)
	}
	return fmt.Sprintf("text generation failed (%s): %v", e.Provider, e.Err)
}

func (e *UpstreamServiceError) Unwrap() []error {
	if e.Fallback != nil {
		return []error{e.Err, e.Fallback}
	}
	return []error{e.Err}
}

// MalformedResponseError describes a reply with no JSON array in it.
// It is reported as a diagnostic, never returned as a failure.
type MalformedResponseError struct {
	Provider string
	Preview  string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("no JSON array in %s response: %q", e.Provider, e.Preview)
}

// ResponseParseError reports a JSON array that could not be decoded
type ResponseParseError struct {
	Provider string
	Err      error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("failed to parse %s response: %v", e.Provider, e.Err)
}

func (e *ResponseParseError) Unwrap() error {
	return e.Err
}

// IsNothingToExtract reports whether err means the input was skipped, not failed
func IsNothingToExtract(err error) bool {
	return errors.Is(err, ErrNothingToExtract)
}
