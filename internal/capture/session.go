package capture

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/benvon/smart-todo-capture/internal/metrics"
	"github.com/benvon/smart-todo-capture/internal/models"
	"go.uber.org/zap"
)

var speakerGuessPattern = regexp.MustCompile(`([A-Z][a-z]+ [A-Z][a-z]+):`)

// Flush is the payload handed to a Dispatcher
type Flush struct {
	SessionID    string            `json:"session_id"`
	MeetingTitle string            `json:"meeting_title"`
	Transcript   string            `json:"transcript"`
	Speakers     []string          `json:"speakers"`
	Timestamp    time.Time         `json:"timestamp"`
	SourceType   models.TaskSource `json:"source_type"`
}

// DispatchResult is what the downstream stage reports back for a flush
type DispatchResult struct {
	Success      bool   `json:"success"`
	TasksCreated int    `json:"tasks_created"`
	Error        string `json:"error,omitempty"`
}

// Dispatcher receives flushed transcripts
type Dispatcher interface {
	Dispatch(ctx context.Context, flush Flush) DispatchResult
}

// DispatcherFunc adapts a function to Dispatcher
type DispatcherFunc func(ctx context.Context, flush Flush) DispatchResult

// Dispatch calls f
func (f DispatcherFunc) Dispatch(ctx context.Context, flush Flush) DispatchResult {
	return f(ctx, flush)
}

// FlushOutcome describes what a flush request did
type FlushOutcome int

const (
	// FlushDispatched means the buffer was handed to the dispatcher
	FlushDispatched FlushOutcome = iota
	// FlushEmpty means there was nothing buffered
	FlushEmpty
	// FlushDropped means a previous flush was still in flight
	FlushDropped
)

func (o FlushOutcome) String() string {
	switch o {
	case FlushDispatched:
		return "dispatched"
	case FlushEmpty:
		return "empty"
	case FlushDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// FlushReport is the result of a flush request
type FlushReport struct {
	Outcome FlushOutcome   `json:"-"`
	Result  DispatchResult `json:"result"`
}

// SessionInfo is a snapshot of a session's state
type SessionInfo struct {
	ID        string            `json:"id"`
	Channel   models.TaskSource `json:"channel"`
	Title     string            `json:"title"`
	Buffered  int               `json:"buffered"`
	StartedAt time.Time         `json:"started_at"`
	LastFlush *time.Time        `json:"last_flush,omitempty"`
}

// Session buffers fragments from one live conversation
type Session struct {
	id         string
	channel    models.TaskSource
	title      string
	policy     FlushPolicy
	dispatcher Dispatcher
	logger     *zap.Logger
	baseCtx    context.Context
	startedAt  time.Time

	// dispatching is held for the whole dispatch call; TryLock failing means in flight
	dispatching sync.Mutex

	mu        sync.Mutex
	fragments []string
	lastFlush time.Time
	silence   *time.Timer
	stop      chan struct{}
	closed    bool
}

func newSession(ctx context.Context, id string, channel models.TaskSource, title string, policy FlushPolicy, dispatcher Dispatcher, logger *zap.Logger) *Session {
	s := &Session{
		id:         id,
		channel:    channel,
		title:      title,
		policy:     policy,
		dispatcher: dispatcher,
		logger:     logger.With(zap.String("session_id", id), zap.String("channel", string(channel))),
		baseCtx:    ctx,
		startedAt:  time.Now().UTC(),
		stop:       make(chan struct{}),
	}
	if policy.Interval > 0 {
		go s.runTicker(policy.Interval)
	}
	return s
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Channel returns the session's channel
func (s *Session) Channel() models.TaskSource { return s.channel }

// Append buffers a fragment and reports whether it was accepted. Blank,
// too-short and immediately repeated fragments are ignored.
func (s *Session) Append(fragment string) bool {
	text := strings.TrimSpace(fragment)
	if text == "" || utf8.RuneCountInString(text) < s.policy.MinFragmentLength {
		metrics.FragmentsTotal.WithLabelValues(string(s.channel), "ignored").Inc()
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if n := len(s.fragments); n > 0 && s.fragments[n-1] == text {
		metrics.FragmentsTotal.WithLabelValues(string(s.channel), "repeated").Inc()
		return false
	}

	s.fragments = append(s.fragments, text)
	metrics.FragmentsTotal.WithLabelValues(string(s.channel), "accepted").Inc()

	if s.policy.Silence > 0 {
		if s.silence == nil {
			s.silence = time.AfterFunc(s.policy.Silence, s.onSilence)
		} else {
			s.silence.Reset(s.policy.Silence)
		}
	}
	return true
}

// Buffered returns the number of fragments waiting for the next flush
func (s *Session) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fragments)
}

// Flush hands the buffered fragments to the dispatcher. A request made while
// an earlier flush is still being dispatched is dropped; the buffer is kept.
func (s *Session) Flush(ctx context.Context) FlushReport {
	if !s.dispatching.TryLock() {
		metrics.FlushesTotal.WithLabelValues(string(s.channel), FlushDropped.String()).Inc()
		s.logger.Debug("capture_flush_dropped_in_flight")
		return FlushReport{Outcome: FlushDropped}
	}
	defer s.dispatching.Unlock()

	return s.flushLocked(ctx)
}

func (s *Session) flushLocked(ctx context.Context) FlushReport {
	s.mu.Lock()
	if len(s.fragments) == 0 {
		s.mu.Unlock()
		metrics.FlushesTotal.WithLabelValues(string(s.channel), FlushEmpty.String()).Inc()
		return FlushReport{Outcome: FlushEmpty}
	}
	text := strings.Join(s.fragments, " ")
	s.fragments = nil
	s.lastFlush = time.Now().UTC()
	payload := Flush{
		SessionID:    s.id,
		MeetingTitle: s.title,
		Transcript:   text,
		Speakers:     GuessSpeakers(text),
		Timestamp:    s.lastFlush,
		SourceType:   s.channel,
	}
	s.mu.Unlock()

	result := s.dispatcher.Dispatch(ctx, payload)
	metrics.FlushesTotal.WithLabelValues(string(s.channel), FlushDispatched.String()).Inc()

	if !result.Success {
		s.logger.Warn("capture_dispatch_failed",
			zap.Int("transcript_length", len(text)),
			zap.String("error", result.Error),
		)
	} else {
		s.logger.Info("capture_flush_dispatched",
			zap.Int("transcript_length", len(text)),
			zap.Int("tasks_created", result.TasksCreated),
		)
	}
	return FlushReport{Outcome: FlushDispatched, Result: result}
}

// end stops the timers. The remaining buffer is dispatched when the policy
// asks for it, after any in-flight flush returns; otherwise it is discarded.
func (s *Session) end(ctx context.Context) FlushReport {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return FlushReport{Outcome: FlushEmpty}
	}
	s.closed = true
	close(s.stop)
	if s.silence != nil {
		s.silence.Stop()
	}
	s.mu.Unlock()

	if s.policy.FlushOnEnd {
		s.dispatching.Lock()
		defer s.dispatching.Unlock()
		return s.flushLocked(ctx)
	}

	s.mu.Lock()
	discarded := len(s.fragments)
	s.fragments = nil
	s.mu.Unlock()
	if discarded > 0 {
		s.logger.Info("capture_session_discarded_fragments", zap.Int("fragments", discarded))
	}
	return FlushReport{Outcome: FlushEmpty}
}

func (s *Session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := SessionInfo{
		ID:        s.id,
		Channel:   s.channel,
		Title:     s.title,
		Buffered:  len(s.fragments),
		StartedAt: s.startedAt,
	}
	if !s.lastFlush.IsZero() {
		last := s.lastFlush
		info.LastFlush = &last
	}
	return info
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) onSilence() {
	if s.isClosed() {
		return
	}
	s.Flush(s.baseCtx)
}

func (s *Session) runTicker(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
			s.Flush(s.baseCtx)
		}
	}
}

// GuessSpeakers returns the distinct "First Last:" names in text, in order of appearance
func GuessSpeakers(text string) []string {
	matches := speakerGuessPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]bool, len(matches))
	speakers := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		speakers = append(speakers, m[1])
	}
	return speakers
}
