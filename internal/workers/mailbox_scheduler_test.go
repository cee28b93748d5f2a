package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benvon/smart-todo-capture/internal/queue"
)

func TestMailboxScheduler_ScheduleScan(t *testing.T) {
	t.Parallel()

	jq := &mockJobQueue{}
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s := NewMailboxScheduler(jq, 30*time.Minute, queue.ScanMailboxPayload{Days: 2}, nil)
	s.now = func() time.Time { return now }

	job, err := s.ScheduleScan(context.Background())
	if err != nil {
		t.Fatalf("ScheduleScan() error = %v", err)
	}
	if len(jq.enqueued) != 1 || jq.enqueued[0] != job {
		t.Fatalf("enqueued = %v, want the scheduled job", jq.enqueued)
	}
	if job.Type != queue.JobTypeScanMailbox {
		t.Errorf("Type = %q, want %q", job.Type, queue.JobTypeScanMailbox)
	}
	if job.NotBefore == nil || !job.NotBefore.Equal(now) {
		t.Errorf("NotBefore = %v, want %v", job.NotBefore, now)
	}
	if job.NotAfter == nil || !job.NotAfter.Equal(now.Add(30*time.Minute)) {
		t.Errorf("NotAfter = %v, want one interval later", job.NotAfter)
	}

	var payload queue.ScanMailboxPayload
	if err := job.DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	if payload.Days != 2 {
		t.Errorf("Days = %d, want 2", payload.Days)
	}
}

func TestMailboxScheduler_EnqueueError(t *testing.T) {
	t.Parallel()

	jq := &mockJobQueue{
		enqueueFunc: func(ctx context.Context, job *queue.Job) error {
			return errors.New("broker down")
		},
	}
	s := NewMailboxScheduler(jq, 0, queue.ScanMailboxPayload{}, nil)

	if _, err := s.ScheduleScan(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.interval != DefaultMailboxScanInterval {
		t.Errorf("interval = %v, want default", s.interval)
	}
}

func TestMailboxScheduler_Start(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	count := 0
	scheduled := make(chan struct{}, 10)
	jq := &mockJobQueue{
		enqueueFunc: func(ctx context.Context, job *queue.Job) error {
			mu.Lock()
			count++
			mu.Unlock()
			scheduled <- struct{}{}
			return nil
		},
	}
	s := NewMailboxScheduler(jq, 10*time.Millisecond, queue.ScanMailboxPayload{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-scheduled:
		case <-time.After(time.Second):
			t.Fatal("scan not scheduled")
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if count < 2 {
		t.Errorf("scheduled %d scans, want at least 2", count)
	}
}
