// Package extraction turns normalized text into vetted task candidates using
// a text-generation service.
package extraction

import (
	"context"
	"errors"

	"github.com/benvon/smart-todo-capture/internal/metrics"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/services/ai"
	"github.com/benvon/smart-todo-capture/internal/telemetry"
	"github.com/benvon/smart-todo-capture/internal/transcript"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// DefaultConfidenceFloor is the minimum confidence a candidate needs to survive
const DefaultConfidenceFloor = 40

// Result is the vetted output of one extraction call
type Result struct {
	Tasks []models.ExtractedTaskCandidate
	// Provider is the name of the generator that produced the reply
	Provider string
	// BelowFloor counts candidates dropped by the confidence floor
	BelowFloor int
	// Diagnostic is set when the reply carried no JSON array
	Diagnostic string
}

// Orchestrator builds the prompt, calls the primary generator with a single
// fallback, and filters the reply
type Orchestrator struct {
	primary   ai.TextGenerator
	secondary ai.TextGenerator
	floor     int
	logger    *zap.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithSecondary sets the fallback generator
func WithSecondary(g ai.TextGenerator) Option {
	return func(o *Orchestrator) {
		o.secondary = g
	}
}

// WithConfidenceFloor overrides DefaultConfidenceFloor
func WithConfidenceFloor(floor int) Option {
	return func(o *Orchestrator) {
		if floor > 0 {
			o.floor = floor
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewOrchestrator creates an orchestrator around a primary generator
func NewOrchestrator(primary ai.TextGenerator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		primary: primary,
		floor:   DefaultConfidenceFloor,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ConfidenceFloor returns the configured floor
func (o *Orchestrator) ConfidenceFloor() int {
	return o.floor
}

// Extract returns the candidates found in src. A reply without a JSON array
// yields zero tasks and a diagnostic; a reply whose array does not decode is
// an error.
func (o *Orchestrator) Extract(ctx context.Context, src Source) (result *Result, err error) {
	if !transcript.IsValid(src.Content) {
		return nil, &ValidationError{Reason: "content shorter than minimum length"}
	}

	ctx, span := telemetry.StartSpan(ctx, "extraction.extract",
		attribute.String("source", string(src.Type)),
		attribute.Int("content_length", len(src.Content)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	prompt := BuildPrompt(src)
	reply, provider, err := o.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("provider", provider))

	raw, ok := locateArray(reply)
	if !ok {
		diag := &MalformedResponseError{Provider: provider, Preview: ai.SanitizeResponse(reply, false)}
		metrics.CandidatesTotal.WithLabelValues("malformed").Inc()
		o.logger.Warn("extraction_response_without_json_array",
			zap.String("provider", provider),
			zap.String("source", string(src.Type)),
			zap.String("diagnostic", diag.Error()),
		)
		return &Result{Tasks: []models.ExtractedTaskCandidate{}, Provider: provider, Diagnostic: diag.Error()}, nil
	}

	candidates, err := decodeCandidates(raw)
	if err != nil {
		return nil, &ResponseParseError{Provider: provider, Err: err}
	}

	result = &Result{Tasks: make([]models.ExtractedTaskCandidate, 0, len(candidates)), Provider: provider}
	for _, c := range candidates {
		if c.Confidence < o.floor {
			result.BelowFloor++
			continue
		}
		result.Tasks = append(result.Tasks, c)
	}
	metrics.CandidatesTotal.WithLabelValues("below_floor").Add(float64(result.BelowFloor))
	span.SetAttributes(attribute.Int("candidates", len(result.Tasks)))

	o.logger.Debug("extraction_completed",
		zap.String("provider", provider),
		zap.String("source", string(src.Type)),
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(result.Tasks)),
		zap.Int("below_floor", result.BelowFloor),
	)
	return result, nil
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, string, error) {
	if o.primary == nil {
		return "", "", &UpstreamServiceError{Provider: "none", Err: errors.New("no text generator configured")}
	}

	reply, err := o.primary.Generate(ctx, prompt)
	if err == nil {
		return reply, o.primary.Name(), nil
	}

	if o.secondary == nil {
		return "", "", &UpstreamServiceError{Provider: o.primary.Name(), Err: err}
	}

	o.logger.Warn("primary_generation_failed_trying_fallback",
		zap.String("primary", o.primary.Name()),
		zap.String("secondary", o.secondary.Name()),
		zap.Error(err),
	)

	reply, fallbackErr := o.secondary.Generate(ctx, prompt)
	if fallbackErr != nil {
		metrics.FallbacksTotal.WithLabelValues("error").Inc()
		return "", "", &UpstreamServiceError{Provider: o.primary.Name(), Err: err, Fallback: fallbackErr}
	}
	metrics.FallbacksTotal.WithLabelValues("success").Inc()
	return reply, o.secondary.Name(), nil
}
