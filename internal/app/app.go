// Package app assembles the extraction pipeline and its connections for the
// server, worker and CLI binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-todo-capture/internal/config"
	"github.com/benvon/smart-todo-capture/internal/database"
	"github.com/benvon/smart-todo-capture/internal/dedup"
	"github.com/benvon/smart-todo-capture/internal/pipeline"
	"github.com/benvon/smart-todo-capture/internal/queue"
	"github.com/benvon/smart-todo-capture/internal/services/ai"
	"github.com/benvon/smart-todo-capture/internal/services/extraction"
	"go.uber.org/zap"
)

const (
	queueMaxRetries   = 10
	queueInitialDelay = 2 * time.Second
	queueMaxDelay     = 30 * time.Second
)

// providerConfig returns the generator settings for the named provider
func providerConfig(cfg *config.Config, name string, logger *zap.Logger, debugMode bool) ai.ProviderConfig {
	pc := ai.ProviderConfig{
		Timeout:           cfg.AIRequestTimeout,
		RequestsPerMinute: cfg.AIRequestsPerMinute,
		Logger:            logger,
		DebugMode:         debugMode,
	}
	switch name {
	case "anthropic":
		pc.APIKey = cfg.AnthropicKey
		pc.Model = cfg.AnthropicModel
	default:
		pc.APIKey = cfg.OpenAIKey
		pc.Model = cfg.AIModel
		pc.BaseURL = cfg.AIBaseURL
	}
	return pc
}

// NewExtractor builds the extraction orchestrator from the configured
// primary provider and optional fallback. A fallback that cannot be built is
// logged and skipped.
func NewExtractor(cfg *config.Config, logger *zap.Logger, debugMode bool) (*extraction.Orchestrator, error) {
	registry := ai.NewDefaultRegistry()

	primaryName := cfg.AIProvider
	if primaryName == "" {
		primaryName = "openai"
	}
	primary, err := registry.GetProvider(primaryName, providerConfig(cfg, primaryName, logger, debugMode))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", primaryName, err)
	}

	opts := []extraction.Option{
		extraction.WithConfidenceFloor(cfg.ConfidenceFloor),
		extraction.WithLogger(logger),
	}
	if name := cfg.AIFallbackProvider; name != "" && name != primaryName {
		secondary, err := registry.GetProvider(name, providerConfig(cfg, name, logger, debugMode))
		if err != nil {
			logger.Warn("fallback_provider_unavailable",
				zap.String("provider", name),
				zap.Error(err),
			)
		} else {
			opts = append(opts, extraction.WithSecondary(secondary))
		}
	}

	logger.Info("initialized_ai_providers",
		zap.String("primary", primaryName),
		zap.String("fallback", cfg.AIFallbackProvider),
		zap.Int("confidence_floor", cfg.ConfidenceFloor),
	)
	return extraction.NewOrchestrator(primary, opts...), nil
}

// NewProcessor wires the pipeline to the task and agent run repositories
func NewProcessor(cfg *config.Config, db *database.DB, extractor pipeline.Extractor, logger *zap.Logger, dryRun bool) *pipeline.Processor {
	return pipeline.NewProcessor(
		extractor,
		dedup.New(cfg.SimilarityThreshold),
		database.NewTaskRepository(db),
		pipeline.WithRunRecorder(database.NewAgentRunRepository(db)),
		pipeline.WithLogger(logger),
		pipeline.WithDryRun(dryRun),
	)
}

// ConnectQueue dials RabbitMQ with exponential backoff so the binaries
// tolerate the broker starting after them
func ConnectQueue(ctx context.Context, url string, logger *zap.Logger) (*queue.RabbitMQQueue, error) {
	return connectWithRetry(ctx, logger, queueMaxRetries, queueInitialDelay, func() (*queue.RabbitMQQueue, error) {
		return queue.NewRabbitMQQueue(url, logger)
	})
}

func connectWithRetry[T any](ctx context.Context, logger *zap.Logger, maxRetries int, initialDelay time.Duration, dial func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		conn, err := dial()
		if err == nil {
			logger.Info("connected_to_rabbitmq", zap.Int("attempt", attempt+1))
			return conn, nil
		}
		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := initialDelay * time.Duration(1<<uint(attempt))
		if delay > queueMaxDelay {
			delay = queueMaxDelay
		}
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", maxRetries, lastErr)
}
