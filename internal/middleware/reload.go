package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultReloadInterval is how often DB-backed middleware re-reads its settings
const DefaultReloadInterval = time.Minute

// hotSwap serves requests through a handler that is rebuilt from stored
// settings on an interval. A failed rebuild keeps the previous handler.
type hotSwap struct {
	name     string
	build    func(ctx context.Context, next http.Handler) (http.Handler, error)
	interval time.Duration
	log      *zap.Logger

	mu      sync.RWMutex
	next    http.Handler
	current http.Handler
}

func (h *hotSwap) wrap(next http.Handler) http.Handler {
	h.mu.Lock()
	h.next = next
	h.mu.Unlock()
	h.reload(context.Background())
	return h
}

func (h *hotSwap) reload(ctx context.Context) {
	h.mu.RLock()
	next := h.next
	h.mu.RUnlock()
	if next == nil {
		return
	}

	handler, err := h.build(ctx, next)
	if err != nil {
		h.log.Warn("failed_to_reload_middleware", zap.String("middleware", h.name), zap.Error(err))
		return
	}

	h.mu.Lock()
	h.current = handler
	h.mu.Unlock()
}

func (h *hotSwap) run(ctx context.Context) {
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.reload(ctx)
		}
	}
}

func (h *hotSwap) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	handler := h.current
	if handler == nil {
		handler = h.next
	}
	h.mu.RUnlock()
	if handler != nil {
		handler.ServeHTTP(w, r)
	}
}
