package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benvon/smart-todo-capture/internal/models"
)

// recordingDispatcher collects flushes and optionally blocks until released
type recordingDispatcher struct {
	mu      sync.Mutex
	flushes []Flush
	entered chan struct{}
	release chan struct{}
	result  DispatchResult
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{
		entered: make(chan struct{}, 16),
		result:  DispatchResult{Success: true},
	}
}

func (d *recordingDispatcher) Dispatch(_ context.Context, f Flush) DispatchResult {
	d.mu.Lock()
	d.flushes = append(d.flushes, f)
	d.mu.Unlock()
	d.entered <- struct{}{}
	if d.release != nil {
		<-d.release
	}
	return d.result
}

func (d *recordingDispatcher) Flushes() []Flush {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Flush(nil), d.flushes...)
}

func newTestSession(t *testing.T, policy FlushPolicy, d Dispatcher) *Session {
	t.Helper()
	m := NewManager(d, WithPolicies(Policies{models.TaskSourceMeet: policy}))
	t.Cleanup(func() { m.Close(context.Background()) })
	s, created := m.Start("s-1", models.TaskSourceMeet, "Weekly sync")
	if !created {
		t.Fatal("expected a new session")
	}
	return s
}

func TestSession_Append(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		policy    FlushPolicy
		fragments []string
		want      int
	}{
		{"repeated fragment suppressed", FlushPolicy{}, []string{"Alice: hi", "Alice: hi"}, 1},
		{"non-adjacent repeat kept", FlushPolicy{}, []string{"a", "b", "a"}, 3},
		{"blank ignored", FlushPolicy{}, []string{"", "   ", "\t"}, 0},
		{"repeat after trimming", FlushPolicy{}, []string{"hello", " hello  "}, 1},
		{"short fragments ignored", FlushPolicy{MinFragmentLength: 4}, []string{"ok", "yes", "sure thing"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestSession(t, tt.policy, newRecordingDispatcher())
			for _, f := range tt.fragments {
				s.Append(f)
			}
			if got := s.Buffered(); got != tt.want {
				t.Errorf("Buffered() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSession_Flush(t *testing.T) {
	t.Parallel()

	d := newRecordingDispatcher()
	s := newTestSession(t, FlushPolicy{}, d)

	if report := s.Flush(context.Background()); report.Outcome != FlushEmpty {
		t.Fatalf("empty flush outcome = %v, want empty", report.Outcome)
	}
	if len(d.Flushes()) != 0 {
		t.Fatal("empty flush must not dispatch")
	}

	s.Append("Alice Smith: I'll send the deck by Friday.")
	s.Append("Bob Jones: sounds good.")
	report := s.Flush(context.Background())
	if report.Outcome != FlushDispatched || !report.Result.Success {
		t.Fatalf("unexpected report %+v", report)
	}

	flushes := d.Flushes()
	if len(flushes) != 1 {
		t.Fatalf("flushes = %d, want 1", len(flushes))
	}
	f := flushes[0]
	if f.Transcript != "Alice Smith: I'll send the deck by Friday. Bob Jones: sounds good." {
		t.Errorf("transcript = %q", f.Transcript)
	}
	if f.MeetingTitle != "Weekly sync" || f.SourceType != models.TaskSourceMeet || f.SessionID != "s-1" {
		t.Errorf("unexpected payload %+v", f)
	}
	if len(f.Speakers) != 2 || f.Speakers[0] != "Alice Smith" || f.Speakers[1] != "Bob Jones" {
		t.Errorf("speakers = %v", f.Speakers)
	}
	if s.Buffered() != 0 {
		t.Error("buffer should be cleared after flush")
	}
	if s.info().LastFlush == nil {
		t.Error("last flush should be stamped")
	}
}

func TestSession_FlushDroppedWhileInFlight(t *testing.T) {
	t.Parallel()

	d := newRecordingDispatcher()
	d.release = make(chan struct{})
	s := newTestSession(t, FlushPolicy{}, d)

	s.Append("first batch of words")
	done := make(chan FlushReport)
	go func() { done <- s.Flush(context.Background()) }()

	select {
	case <-d.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher was not called")
	}

	s.Append("second batch of words")
	if report := s.Flush(context.Background()); report.Outcome != FlushDropped {
		t.Errorf("outcome while in flight = %v, want dropped", report.Outcome)
	}
	if s.Buffered() != 1 {
		t.Errorf("dropped flush must keep the buffer, got %d", s.Buffered())
	}

	close(d.release)
	if report := <-done; report.Outcome != FlushDispatched {
		t.Errorf("first flush outcome = %v", report.Outcome)
	}

	if report := s.Flush(context.Background()); report.Outcome != FlushDispatched {
		t.Errorf("flush after completion = %v, want dispatched", report.Outcome)
	}
	if got := len(d.Flushes()); got != 2 {
		t.Errorf("flushes = %d, want 2", got)
	}
}

func TestSession_SilenceTimerFlushes(t *testing.T) {
	t.Parallel()

	d := newRecordingDispatcher()
	s := newTestSession(t, FlushPolicy{Silence: 20 * time.Millisecond}, d)

	s.Append("Can you book the room?")

	select {
	case <-d.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("silence timer did not flush")
	}
	flushes := d.Flushes()
	if len(flushes) != 1 || flushes[0].Transcript != "Can you book the room?" {
		t.Errorf("unexpected flushes %+v", flushes)
	}
}

func TestSession_IntervalFlushes(t *testing.T) {
	t.Parallel()

	d := newRecordingDispatcher()
	s := newTestSession(t, FlushPolicy{Interval: 20 * time.Millisecond}, d)

	s.Append("Please send the minutes")

	select {
	case <-d.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("interval ticker did not flush")
	}
}

func TestGuessSpeakers(t *testing.T) {
	t.Parallel()

	got := GuessSpeakers("Alice Smith: hi. Bob Jones: hello. Alice Smith: bye. bob: lower")
	if len(got) != 2 || got[0] != "Alice Smith" || got[1] != "Bob Jones" {
		t.Errorf("GuessSpeakers() = %v", got)
	}
	if got := GuessSpeakers("no speakers here"); len(got) != 0 {
		t.Errorf("expected none, got %v", got)
	}
}
