package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/smart-todo-capture/internal/metrics"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"

	extractionSystemPrompt = "You extract actionable tasks from business communication. Respond with a JSON array only."
	extractionTemperature  = 0.3
)

// OpenAIProvider implements TextGenerator using OpenAI's chat completions API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *zap.Logger
	debugMode bool
}

// RegisterOpenAI adds the OpenAI provider to a registry
func RegisterOpenAI(r *ProviderRegistry) {
	r.Register("openai", func(cfg ProviderConfig) (TextGenerator, error) {
		return NewOpenAIProvider(cfg)
	})
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key not configured")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: cfg.timeout(),
	}

	// a failed call falls back to the secondary provider instead of retrying
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		limiter:   cfg.limiter(),
		timeout:   cfg.timeout(),
		logger:    cfg.logger(),
		debugMode: cfg.DebugMode,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate sends the prompt as a single chat completion
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	// The deadline covers the limiter wait as well as the request
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter error: %w", err)
		}
	}

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(extractionSystemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(extractionTemperature),
	}

	requestID := ExtractRequestID(ctx)
	sessionID := ExtractSessionID(ctx)
	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("provider", p.Name()),
			zap.String("model", p.model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePrompt(prompt, true)),
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	metrics.ProviderLatency.WithLabelValues(p.Name()).Observe(latency.Seconds())
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		if p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("provider", p.Name()),
				zap.String("model", p.model),
				zap.Error(err),
				zap.String("session_id", sessionID),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			apiErr.Provider = p.Name()
			return "", fmt.Errorf("failed to generate completion: %w", apiErr)
		}
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.ProviderCalls.WithLabelValues(p.Name(), "error").Inc()
		return "", errors.New(ErrNoChoicesInResponse)
	}
	metrics.ProviderCalls.WithLabelValues(p.Name(), "success").Inc()

	content := resp.Choices[0].Message.Content
	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("provider", p.Name()),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("session_id", sessionID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}
	return content, nil
}
