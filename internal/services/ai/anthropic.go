package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/smart-todo-capture/internal/metrics"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultAnthropicModel is the default fallback model
	DefaultAnthropicModel = "claude-3-5-sonnet-20241022"
	// DefaultAnthropicMaxTokens caps the fallback response length
	DefaultAnthropicMaxTokens = 2000
)

// AnthropicProvider implements TextGenerator on top of langchaingo's Anthropic client
type AnthropicProvider struct {
	llm       llms.Model
	model     string
	maxTokens int
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *zap.Logger
	debugMode bool
}

// RegisterAnthropic adds the Anthropic provider to a registry
func RegisterAnthropic(r *ProviderRegistry) {
	r.Register("anthropic", func(cfg ProviderConfig) (TextGenerator, error) {
		return NewAnthropicProvider(cfg)
	})
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(cfg ProviderConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("Anthropic API key not configured")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	opts := []anthropic.Option{
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(model),
		anthropic.WithHTTPClient(&http.Client{Timeout: cfg.timeout()}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	llm, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create anthropic client: %w", err)
	}

	return &AnthropicProvider{
		llm:       llm,
		model:     model,
		maxTokens: DefaultAnthropicMaxTokens,
		limiter:   cfg.limiter(),
		timeout:   cfg.timeout(),
		logger:    cfg.logger(),
		debugMode: cfg.DebugMode,
	}, nil
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate sends the prompt as a single user message
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	// The deadline covers the limiter wait as well as the request
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}
	}

	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("provider", p.Name()),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePrompt(prompt, true)),
			zap.String("session_id", ExtractSessionID(ctx)),
		)
	}

	start := time.Now()
	content, err := llms.GenerateFromSinglePrompt(ctx, p.llm, prompt,
		llms.WithMaxTokens(p.maxTokens),
		llms.WithTemperature(extractionTemperature),
	)
	latency := time.Since(start)
	metrics.ProviderLatency.WithLabelValues(p.Name()).Observe(latency.Seconds())
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		if p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("provider", p.Name()),
				zap.Error(err),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			apiErr.Provider = p.Name()
			return "", fmt.Errorf("failed to generate completion: %w", apiErr)
		}
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	metrics.ProviderCalls.WithLabelValues(p.Name(), "success").Inc()

	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("provider", p.Name()),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return content, nil
}
