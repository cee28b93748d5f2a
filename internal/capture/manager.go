// Package capture buffers live conversation fragments per session and flushes
// them downstream on a timer, after silence, or on demand.
package capture

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/benvon/smart-todo-capture/internal/metrics"
	"github.com/benvon/smart-todo-capture/internal/models"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for operations on an unknown session id
var ErrSessionNotFound = errors.New("capture session not found")

// Manager owns the set of live capture sessions
type Manager struct {
	dispatcher Dispatcher
	policies   Policies
	logger     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithPolicies replaces the default flush policies
func WithPolicies(p Policies) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.policies = p
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a session manager. Timer-driven flushes run with a
// context that is cancelled by Close.
func NewManager(dispatcher Dispatcher, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		dispatcher: dispatcher,
		policies:   DefaultPolicies(),
		logger:     zap.NewNop(),
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens a session. Starting an id that is already open returns the
// existing session and false.
func (m *Manager) Start(id string, channel models.TaskSource, title string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, false
	}

	s := newSession(m.ctx, id, channel, title, m.policies.For(channel), m.dispatcher, m.logger)
	m.sessions[id] = s
	metrics.ActiveSessions.Inc()
	m.logger.Info("capture_session_started",
		zap.String("session_id", id),
		zap.String("channel", string(channel)),
		zap.String("title", title),
	)
	return s, true
}

// Get returns the session for id
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Append buffers fragments in order and returns how many were accepted
func (m *Manager) Append(id string, fragments ...string) (int, error) {
	s, err := m.Get(id)
	if err != nil {
		return 0, err
	}
	accepted := 0
	for _, f := range fragments {
		if s.Append(f) {
			accepted++
		}
	}
	return accepted, nil
}

// Flush flushes the session on demand
func (m *Manager) Flush(ctx context.Context, id string) (FlushReport, error) {
	s, err := m.Get(id)
	if err != nil {
		return FlushReport{}, err
	}
	return s.Flush(ctx), nil
}

// End stops and removes a session
func (m *Manager) End(ctx context.Context, id string) (FlushReport, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return FlushReport{}, ErrSessionNotFound
	}

	metrics.ActiveSessions.Dec()
	report := s.end(ctx)
	m.logger.Info("capture_session_ended",
		zap.String("session_id", id),
		zap.String("outcome", report.Outcome.String()),
	)
	return report, nil
}

// Sessions returns a snapshot of the open sessions ordered by start time
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.Unlock()

	infos := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		infos = append(infos, s.info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Close ends every session and cancels timer-driven flushes
func (m *Manager) Close(ctx context.Context) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if _, err := m.End(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.logger.Warn("capture_session_end_failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	m.cancel()
}
