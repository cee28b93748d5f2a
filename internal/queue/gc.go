package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-todo-capture/internal/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultDLQRetention keeps dead-lettered jobs around for a week of inspection
	DefaultDLQRetention = 7 * 24 * time.Hour
	defaultGCInterval   = time.Hour
	purgeTimeout        = 2 * time.Minute
)

// GarbageCollector drops dead-lettered jobs once they are older than the
// retention window
type GarbageCollector struct {
	purger    DLQPurger
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewGarbageCollector creates a collector. Non-positive durations fall back
// to an hourly sweep and DefaultDLQRetention.
func NewGarbageCollector(purger DLQPurger, interval time.Duration, retention time.Duration, logger *zap.Logger) *GarbageCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultGCInterval
	}
	if retention <= 0 {
		retention = DefaultDLQRetention
	}
	return &GarbageCollector{
		purger:    purger,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

// Start sweeps once immediately and then every interval until ctx is done
func (gc *GarbageCollector) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gc.logger.Info("dlq_gc_started",
		zap.Duration("interval", gc.interval),
		zap.Duration("retention", gc.retention),
	)
	gc.sweep(ctx)

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			gc.sweep(ctx)
		}
	}
}

func (gc *GarbageCollector) sweep(ctx context.Context) {
	if err := gc.collect(ctx); err != nil {
		gc.logger.Error("dlq_gc_failed", zap.Error(err))
	}
}

func (gc *GarbageCollector) collect(ctx context.Context) error {
	if gc.purger == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, purgeTimeout)
	defer cancel()

	n, err := gc.purger.PurgeOlderThan(ctx, gc.retention)
	if err != nil {
		return fmt.Errorf("failed to purge dead-letter queue: %w", err)
	}
	if n > 0 {
		metrics.DLQPurged.Add(float64(n))
		gc.logger.Info("dlq_gc_purged", zap.Int("purged", n), zap.Duration("retention", gc.retention))
	}
	return nil
}
