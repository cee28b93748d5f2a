// Package pipeline runs normalized text through extraction, deduplication and
// persistence, one transcript at a time or in batches.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/benvon/smart-todo-capture/internal/dedup"
	"github.com/benvon/smart-todo-capture/internal/metrics"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/benvon/smart-todo-capture/internal/services/extraction"
	"github.com/benvon/smart-todo-capture/internal/telemetry"
	"github.com/benvon/smart-todo-capture/internal/transcript"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Agent names recorded on agent runs
const (
	AgentMeet    = "meet"
	AgentGmail   = "gmail"
	AgentCapture = "capture"
)

// Extractor produces vetted candidates from normalized text
type Extractor interface {
	Extract(ctx context.Context, src extraction.Source) (*extraction.Result, error)
}

// TaskStore is the slice of the task repository the pipeline needs
type TaskStore interface {
	List(ctx context.Context) ([]*models.Task, error)
	Upsert(ctx context.Context, task *models.Task) (*models.Task, error)
	ExistsBySourceReference(ctx context.Context, key, value string) (bool, error)
}

// RunRecorder records agent runs
type RunRecorder interface {
	Start(ctx context.Context, agentName string) (*models.AgentRun, error)
	Complete(ctx context.Context, run *models.AgentRun) error
	Fail(ctx context.Context, run *models.AgentRun, runErr error) error
}

// TranscriptInput is one piece of text to turn into tasks
type TranscriptInput struct {
	Content   string                 `json:"content"`
	Source    models.TaskSource      `json:"source"`
	Metadata  extraction.Metadata    `json:"-"`
	Reference models.SourceReference `json:"-"`
	// KnownContacts boosts confidence for candidates involving these people
	KnownContacts []string `json:"-"`
}

// Outcome is the result of processing one transcript
type Outcome struct {
	Created          []*models.Task    `json:"created"`
	Duplicates       []dedup.Duplicate `json:"-"`
	Candidates       int               `json:"candidates"`
	BelowFloor       int               `json:"below_floor"`
	Provider         string            `json:"provider,omitempty"`
	Diagnostic       string            `json:"diagnostic,omitempty"`
	NothingToExtract bool              `json:"nothing_to_extract"`

	// FailedWrites counts kept candidates that could not be persisted
	FailedWrites int `json:"failed_writes,omitempty"`
}

// BatchResult counts what a batch pass did
type BatchResult struct {
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// add folds one item's outcome into the batch totals. Tasks persisted before
// a failed write still count as created; each failed write counts as an error.
func (r *BatchResult) add(agent string, outcome *Outcome, err error) {
	created := 0
	if outcome != nil {
		created = len(outcome.Created)
	}
	r.Created += created

	switch {
	case err != nil:
		n := 1
		if outcome != nil && outcome.FailedWrites > 0 {
			n = outcome.FailedWrites
		}
		r.Errors += n
		metrics.BatchItems.WithLabelValues(agent, "error").Inc()
	case created == 0:
		r.Skipped++
		metrics.BatchItems.WithLabelValues(agent, "skipped").Inc()
	default:
		metrics.BatchItems.WithLabelValues(agent, "created").Inc()
	}
}

// Processor wires the pipeline stages together
type Processor struct {
	extractor Extractor
	dedup     *dedup.Deduplicator
	store     TaskStore
	runs      RunRecorder
	parser    *transcript.Parser
	logger    *zap.Logger
	dryRun    bool
}

// Option configures a Processor
type Option func(*Processor)

// WithRunRecorder records an agent run per call
func WithRunRecorder(r RunRecorder) Option {
	return func(p *Processor) { p.runs = r }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithDryRun builds tasks without persisting them
func WithDryRun(dryRun bool) Option {
	return func(p *Processor) { p.dryRun = dryRun }
}

// NewProcessor creates a pipeline processor
func NewProcessor(extractor Extractor, deduplicator *dedup.Deduplicator, store TaskStore, opts ...Option) *Processor {
	if deduplicator == nil {
		deduplicator = dedup.New(dedup.DefaultThreshold)
	}
	p := &Processor{
		extractor: extractor,
		dedup:     deduplicator,
		store:     store,
		parser:    transcript.NewParser(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessTranscript runs a single transcript through the pipeline. Input that
// is too short yields an outcome with NothingToExtract set and no error. An
// upstream or parse error is returned as is. Failed task writes do not stop
// the remaining candidates; they are joined into the returned error and the
// outcome still lists what was persisted.
func (p *Processor) ProcessTranscript(ctx context.Context, in TranscriptInput) (*Outcome, error) {
	run := p.startRun(ctx, agentFor(in.Source))

	outcome, err := p.process(ctx, in)

	if run != nil {
		run.ItemsProcessed = 1
		if outcome != nil {
			run.TasksCreated = len(outcome.Created)
			run.TasksSkipped = len(outcome.Duplicates) + outcome.BelowFloor
		}
		if err != nil {
			run.Errors = 1
			if outcome != nil && outcome.FailedWrites > 0 {
				run.Errors = outcome.FailedWrites
			}
		}
		p.finishRun(ctx, run, err)
	}
	return outcome, err
}

// ProcessBatch processes each input independently. Failures are counted and
// the batch moves on.
func (p *Processor) ProcessBatch(ctx context.Context, inputs []TranscriptInput) BatchResult {
	run := p.startRun(ctx, AgentMeet)
	var result BatchResult

	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("batch_cancelled", zap.Int("remaining", len(inputs)-i), zap.Error(err))
			break
		}
		result.Processed++

		outcome, err := p.process(ctx, in)
		if err != nil {
			p.logger.Warn("batch_item_failed",
				zap.Int("index", i),
				zap.String("source", string(in.Source)),
				zap.Error(err),
			)
		}
		result.add(AgentMeet, outcome, err)
	}

	if run != nil {
		run.ItemsProcessed = result.Processed
		run.TasksCreated = result.Created
		run.TasksSkipped = result.Skipped
		run.Errors = result.Errors
		p.finishRun(ctx, run, nil)
	}

	p.logger.Info("batch_completed",
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)
	return result
}

func (p *Processor) process(ctx context.Context, in TranscriptInput) (outcome *Outcome, err error) {
	if in.Source == "" {
		in.Source = models.TaskSourceManual
	}
	cleaned := transcript.Clean(in.Content)
	if !transcript.IsValid(cleaned) {
		p.logger.Debug("transcript_too_short", zap.String("source", string(in.Source)))
		return &Outcome{NothingToExtract: true}, nil
	}

	ctx, span := telemetry.StartSpan(ctx, "pipeline.process_transcript",
		attribute.String("source", string(in.Source)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	parsed := p.parser.Parse(cleaned)
	meta := in.Metadata
	if len(meta.Participants) == 0 {
		meta.Participants = parsed.Participants()
	}

	result, err := p.extractor.Extract(ctx, extraction.Source{Content: cleaned, Type: in.Source, Metadata: meta})
	if err != nil {
		if extraction.IsNothingToExtract(err) {
			return &Outcome{NothingToExtract: true}, nil
		}
		return nil, err
	}

	outcome = &Outcome{
		Candidates: len(result.Tasks) + result.BelowFloor,
		BelowFloor: result.BelowFloor,
		Provider:   result.Provider,
		Diagnostic: result.Diagnostic,
	}
	if len(result.Tasks) == 0 {
		return outcome, nil
	}

	candidates := rankCandidates(result.Tasks, parsed, in.KnownContacts)

	existing, err := p.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list existing tasks: %w", err)
	}

	kept, dropped := p.dedup.Dedupe(candidates, existing)
	outcome.Duplicates = dropped
	metrics.CandidatesTotal.WithLabelValues("duplicate").Add(float64(len(dropped)))
	metrics.CandidatesTotal.WithLabelValues("accepted").Add(float64(len(kept)))
	for _, d := range dropped {
		p.logger.Debug("candidate_duplicate_dropped",
			zap.String("title", d.Candidate.Title),
			zap.String("existing_id", d.ExistingID.String()),
			zap.Float64("similarity", d.Similarity),
		)
	}

	var writeErrs []error
	for _, c := range kept {
		task := buildTask(c, in, cleaned)
		if p.dryRun {
			outcome.Created = append(outcome.Created, task)
			continue
		}
		saved, err := p.store.Upsert(ctx, task)
		if err != nil {
			outcome.FailedWrites++
			p.logger.Warn("task_persist_failed",
				zap.String("source", string(in.Source)),
				zap.String("title", task.Title),
				zap.Error(err),
			)
			writeErrs = append(writeErrs, fmt.Errorf("failed to persist task %q: %w", task.Title, err))
			continue
		}
		outcome.Created = append(outcome.Created, saved)
		metrics.TasksCreated.WithLabelValues(string(in.Source)).Inc()
	}
	if len(writeErrs) > 0 {
		return outcome, errors.Join(writeErrs...)
	}

	p.logger.Info("transcript_processed",
		zap.String("source", string(in.Source)),
		zap.String("provider", outcome.Provider),
		zap.Int("candidates", outcome.Candidates),
		zap.Int("created", len(outcome.Created)),
		zap.Int("duplicates", len(outcome.Duplicates)),
		zap.Int("below_floor", outcome.BelowFloor),
		zap.Bool("dry_run", p.dryRun),
	)
	return outcome, nil
}

func (p *Processor) startRun(ctx context.Context, agent string) *models.AgentRun {
	if p.runs == nil || p.dryRun {
		return nil
	}
	run, err := p.runs.Start(ctx, agent)
	if err != nil {
		p.logger.Warn("agent_run_start_failed", zap.String("agent", agent), zap.Error(err))
		return nil
	}
	return run
}

func (p *Processor) finishRun(ctx context.Context, run *models.AgentRun, runErr error) {
	var err error
	if runErr != nil {
		err = p.runs.Fail(ctx, run, runErr)
	} else {
		err = p.runs.Complete(ctx, run)
	}
	if err != nil {
		p.logger.Warn("agent_run_finish_failed", zap.String("run_id", run.ID.String()), zap.Error(err))
	}
}

func agentFor(source models.TaskSource) string {
	switch {
	case source == models.TaskSourceGmail:
		return AgentGmail
	case source.IsMeeting():
		return AgentMeet
	default:
		return AgentCapture
	}
}

// rankCandidates orders candidates by their signal-adjusted confidence,
// highest first. The stored confidence stays the model's own score.
func rankCandidates(tasks []models.ExtractedTaskCandidate, parsed *transcript.ParsedTranscript, knownContacts []string) []models.ExtractedTaskCandidate {
	type scored struct {
		candidate models.ExtractedTaskCandidate
		score     int
	}
	all := make([]scored, len(tasks))
	for i, c := range tasks {
		all[i] = scored{candidate: c, score: extraction.AdjustConfidence(c.Confidence, signalsFor(c, parsed, knownContacts))}
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })

	ranked := make([]models.ExtractedTaskCandidate, len(all))
	for i, s := range all {
		ranked[i] = s.candidate
	}
	return ranked
}

// signalsFor derives confidence boosts from what the text itself shows
func signalsFor(c models.ExtractedTaskCandidate, parsed *transcript.ParsedTranscript, knownContacts []string) extraction.Signals {
	s := extraction.Signals{
		HasDeadline: c.DueDate != "" || (c.Context != nil && c.Context.Deadline != ""),
	}

	if c.Context != nil && len(knownContacts) > 0 {
		for _, participant := range c.Context.Participants {
			if containsFold(knownContacts, participant) {
				s.KnownContact = true
				break
			}
		}
	}

	title := strings.ToLower(c.Title)
	for _, st := range parsed.ActionItems {
		if strings.Contains(strings.ToLower(st.Text), title) {
			s.ExplicitAction = true
			break
		}
	}
	return s
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), strings.TrimSpace(v)) {
			return true
		}
	}
	return false
}

func buildTask(c models.ExtractedTaskCandidate, in TranscriptInput, cleaned string) *models.Task {
	task := models.NewTask(c.Title, in.Source)
	task.Description = c.Description
	task.Priority = c.Priority
	confidence := c.Confidence
	task.ConfidenceScore = &confidence

	if due, ok := parseDueDate(c.DueDate); ok {
		task.DueDate = &due
	}

	ref := in.Reference
	if ref.Snippet == "" {
		ref.Snippet = models.Snippet(cleaned)
	}
	task.SourceReference = &ref

	var tags []string
	switch {
	case in.Source.IsMeeting():
		tags = append(tags, "meeting")
	case in.Source == models.TaskSourceGmail:
		tags = append(tags, "email")
	}
	if c.Context != nil {
		tags = append(tags, c.Context.Tags...)
	}
	task.Tags = tags
	return task
}

var dueDateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// IsUpstream reports whether err came from the text-generation service
func IsUpstream(err error) bool {
	var upErr *extraction.UpstreamServiceError
	return errors.As(err, &upErr)
}
