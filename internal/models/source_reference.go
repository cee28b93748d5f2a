package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// MaxSnippetLength bounds the provenance snippet stored with a task
const MaxSnippetLength = 200

// SourceReference records where a task came from
type SourceReference struct {
	EmailID      string `json:"email_id,omitempty"`
	ThreadID     string `json:"thread_id,omitempty"`
	MeetingID    string `json:"meeting_id,omitempty"`
	TranscriptID string `json:"transcript_id,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	OriginalURL  string `json:"original_url,omitempty"`
	Snippet      string `json:"snippet,omitempty"`
}

// Snippet truncates text to MaxSnippetLength runes
func Snippet(text string) string {
	r := []rune(text)
	if len(r) <= MaxSnippetLength {
		return text
	}
	return string(r[:MaxSnippetLength])
}

// Value implements driver.Valuer for the JSONB column
func (s *SourceReference) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal source reference: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner for the JSONB column
func (s *SourceReference) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported source reference type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, s)
}
