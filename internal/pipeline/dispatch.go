package pipeline

import (
	"context"
	"time"

	"github.com/benvon/smart-todo-capture/internal/capture"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/services/ai"
	"github.com/benvon/smart-todo-capture/internal/services/extraction"
)

var _ capture.Dispatcher = (*Processor)(nil)

// Dispatch processes a capture flush. It runs synchronously so the session's
// in-flight guard covers the whole chain.
func (p *Processor) Dispatch(ctx context.Context, flush capture.Flush) capture.DispatchResult {
	in := TranscriptInput{
		Content: flush.Transcript,
		Source:  flush.SourceType,
		Metadata: extraction.Metadata{
			Subject:      flush.MeetingTitle,
			Date:         flush.Timestamp.Format(time.RFC3339),
			Participants: flush.Speakers,
		},
		Reference: models.SourceReference{
			SessionID: flush.SessionID,
			MeetingID: flush.SessionID,
		},
	}

	outcome, err := p.ProcessTranscript(ai.WithSessionID(ctx, flush.SessionID), in)
	if err != nil {
		return capture.DispatchResult{Success: false, Error: err.Error()}
	}
	return capture.DispatchResult{Success: true, TasksCreated: len(outcome.Created)}
}
