// Package taskgen runs the adaptive task-generation pipeline: it gathers a
// student's progress, recent mistakes, progress delta and homework state,
// assembles a prompt and asks the LLM for a personalized study task.
package taskgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mathprep/taskforge/internal/catalog"
	"github.com/mathprep/taskforge/internal/failures"
	"github.com/mathprep/taskforge/internal/homework"
	"github.com/mathprep/taskforge/internal/llm"
	"github.com/mathprep/taskforge/internal/logger"
	"github.com/mathprep/taskforge/internal/progress"
	"github.com/mathprep/taskforge/internal/prompt"
	"github.com/mathprep/taskforge/internal/snapdiff"
	"github.com/mathprep/taskforge/internal/store"
)

// PurposeTaskGeneration labels task-generation LLM events.
const PurposeTaskGeneration = "task-generation"

// Config tunes the pipeline.
type Config struct {
	Temperature float64
	MaxTokens   int

	// CaptureSnapshot diffs the current vector against the newest stored
	// snapshot and, once a task was generated, stores the vector as a new
	// snapshot. When off, the two newest stored snapshots are diffed.
	CaptureSnapshot bool

	// Structured asks the model for a schema-checked JSON envelope holding
	// the task and the topic codes it focuses on.
	Structured bool

	// DiffLimit caps the diff entries returned. Zero uses snapdiff.MaxEntries.
	DiffLimit int

	Progress progress.Config
	Prompt   prompt.Config
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		Temperature:     0.9,
		MaxTokens:       40000,
		CaptureSnapshot: true,
		Progress:        progress.DefaultConfig(),
		Prompt:          prompt.DefaultConfig(),
	}
}

// Metadata describes how a task was produced.
type Metadata struct {
	Model            string           `json:"model"`
	InputTokens      int              `json:"input_tokens"`
	OutputTokens     int              `json:"output_tokens"`
	EstimatedCostUSD float64          `json:"estimated_cost_usd,omitempty"`
	LatencyMs        int64            `json:"latency_ms"`
	Window           *failures.Window `json:"error_window"`
	SnapshotID       int64            `json:"snapshot_id,omitempty"`
	TaskID           int64            `json:"task_id,omitempty"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// Result is the response of a generation run.
type Result struct {
	Task                   string                `json:"task"`
	FocusTopics            []string              `json:"focus_topics,omitempty"`
	HardcodeTask           string                `json:"hardcode_task"`
	PreviouslyFailedTopics []failures.TopicTally `json:"previously_failed_topics"`
	FailedSkills           []failures.SkillTally `json:"failed_skills"`
	Metadata               Metadata              `json:"metadata"`
	ProgressDiff           snapdiff.Result       `json:"progress_diff"`
	Progress               progress.Vector       `json:"progress"`
	Homework               homework.Report       `json:"homework"`
}

// Assembly is the gathered data and the prompt built from it.
type Assembly struct {
	Prompt   prompt.Prompt
	Progress progress.Vector
	Failures failures.Result
	Diff     snapdiff.Result
	Homework homework.Report

	// progressErr is set when Progress is a degraded empty vector.
	progressErr error
}

// Pipeline wires the pipeline stages together.
type Pipeline struct {
	aggregator *progress.Aggregator
	extractor  *failures.Extractor
	differ     *snapdiff.Differ
	reconciler *homework.Reconciler
	assembler  *prompt.Assembler
	catalog    *catalog.Catalog
	tasks      store.TaskRepo
	provider   llm.Provider
	cfg        Config
	log        *logger.Logger
	now        func() time.Time
}

// New builds a pipeline over st. The provider is used as given; wrap it
// with llm.Wrap for retries and event logging.
func New(st *store.Store, provider llm.Provider, cfg Config, log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		aggregator: progress.NewAggregator(st.Activity(), st.Snapshots(), nil, cfg.Progress, log),
		extractor:  failures.NewExtractor(st.Tasks(), st.Activity(), st.QuestionBank(), nil, log),
		differ:     snapdiff.NewDiffer(st.Snapshots(), cfg.DiffLimit, log),
		reconciler: homework.NewReconciler(st.Profiles(), st.Homework(), st.QuestionBank(), log),
		assembler:  prompt.NewAssembler(cfg.Prompt, nil),
		catalog:    catalog.Default(),
		tasks:      st.Tasks(),
		provider:   provider,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// Progress returns the student's current vector without storing it.
func (p *Pipeline) Progress(ctx context.Context, userID, courseID string) (progress.Vector, error) {
	return p.aggregator.Compute(ctx, userID, courseID)
}

// Snapshot computes and stores the student's current vector.
func (p *Pipeline) Snapshot(ctx context.Context, userID, courseID string) (*store.MasterySnapshot, progress.Vector, error) {
	return p.aggregator.Capture(ctx, userID, courseID)
}

// ProgressDiff diffs the student's two most recent snapshots.
func (p *Pipeline) ProgressDiff(ctx context.Context, userID, courseID string) snapdiff.Result {
	return p.differ.Latest(ctx, userID, courseID)
}

// Assemble gathers the pipeline data and builds the prompt Generate would
// send, without storing anything or calling the LLM.
func (p *Pipeline) Assemble(ctx context.Context, req Request) (*Assembly, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return p.gather(ctx, req), nil
}

// Generate runs the full pipeline. Only validation and LLM failures are
// returned; every other stage degrades to empty data.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	userID, courseID := req.UserID, req.CourseID.String()
	log := p.log.With("user_id", userID, "course_id", courseID)

	a := p.gather(ctx, req)

	llmReq := llm.Request{
		System:      a.Prompt.System,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: a.Prompt.User}},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
	if p.cfg.Structured {
		llmReq.System += envelopeInstruction
		llmReq.Schema = envelopeSchema
	}

	start := p.now()
	llmCtx := llm.WithUser(llm.WithPurpose(ctx, PurposeTaskGeneration), userID)
	resp, err := p.provider.Generate(llmCtx, llmReq)
	latency := p.now().Sub(start)
	if err != nil {
		log.Error("task generation failed", "error", err, "transient", llm.Transient(err))
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	text, focus, err := p.completion(resp)
	if err != nil {
		log.Error("task completion unreadable", "model", resp.Model, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if text == "" {
		log.Error("task generation returned empty text", "model", resp.Model)
		return nil, fmt.Errorf("%w: empty completion", ErrGeneration)
	}

	meta := Metadata{
		Model:        resp.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		LatencyMs:    latency.Milliseconds(),
		Window:       a.Failures.Window,
		GeneratedAt:  p.now().UTC(),
	}
	if meta.Model == "" {
		meta.Model = p.provider.ModelID()
	}
	if cost := llm.LookupCost(meta.Model); cost != nil {
		meta.EstimatedCostUSD = cost.Cost(meta.InputTokens, meta.OutputTokens)
	}

	// The snapshot and the task row are written only after a usable
	// completion.
	if p.cfg.CaptureSnapshot && a.progressErr == nil {
		if snap, err := p.aggregator.Store(context.WithoutCancel(ctx), a.Progress); err != nil {
			log.Warn("mastery snapshot not stored", "stage", "snapshot", "error", err)
		} else {
			meta.SnapshotID = snap.ID
		}
	}

	rec := &store.TaskRecord{
		UserID:       userID,
		CourseID:     courseID,
		HardcodeTask: a.Prompt.User,
		Task:         text,
	}
	// The caller gets the task even if it cannot be recorded.
	if err := p.tasks.Append(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("task row not stored", "stage", "store_task", "error", err)
	} else {
		meta.TaskID = rec.ID
	}

	log.Info("task generated",
		"model", meta.Model,
		"input_tokens", meta.InputTokens,
		"output_tokens", meta.OutputTokens,
		"latency_ms", meta.LatencyMs,
		"task_id", meta.TaskID,
		"snapshot_id", meta.SnapshotID,
	)

	return &Result{
		Task:                   text,
		FocusTopics:            focus,
		HardcodeTask:           a.Prompt.User,
		PreviouslyFailedTopics: a.Failures.Topics,
		FailedSkills:           a.Failures.Skills,
		Metadata:               meta,
		ProgressDiff:           a.Diff,
		Progress:               a.Progress,
		Homework:               a.Homework,
	}, nil
}

// completion extracts the task text, and with Structured the focus topics,
// from a successful response.
func (p *Pipeline) completion(resp *llm.Response) (string, []string, error) {
	if !p.cfg.Structured {
		return strings.TrimSpace(resp.Text), nil, nil
	}
	env, err := decodeEnvelope(resp.Content, p.catalog)
	if err != nil {
		return "", nil, err
	}
	return env.Task, env.FocusTopics, nil
}

// gather runs the read stages. Progress is computed first, then failures,
// diff and homework run concurrently. Nothing is written.
func (p *Pipeline) gather(ctx context.Context, req Request) *Assembly {
	userID, courseID := req.UserID, req.CourseID.String()
	log := p.log.With("user_id", userID, "course_id", courseID)
	a := &Assembly{}

	a.Progress, a.progressErr = p.aggregator.Compute(ctx, userID, courseID)
	if a.progressErr != nil {
		log.Warn("progress degraded", "stage", "progress", "error", a.progressErr)
	}

	// Stages degrade to empty data and never return an error.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Failures = p.extractor.Extract(gctx, userID, courseID)
		return nil
	})
	g.Go(func() error {
		a.Diff = p.progressDiff(gctx, userID, courseID, a.Progress, a.progressErr)
		return nil
	})
	g.Go(func() error {
		a.Homework = p.reconciler.Reconcile(gctx, userID)
		return nil
	})
	_ = g.Wait()

	a.Prompt = p.assembler.Build(prompt.Input{
		Params:   req.Params(),
		Progress: a.Progress,
		Failures: a.Failures,
		Diff:     a.Diff,
		Homework: a.Homework,
	})
	return a
}

// progressDiff compares the current vector with the newest stored snapshot.
// Without snapshot capture, or when the vector is unusable, it falls back
// to diffing the two newest stored snapshots.
func (p *Pipeline) progressDiff(ctx context.Context, userID, courseID string, current progress.Vector, progressErr error) snapdiff.Result {
	if !p.cfg.CaptureSnapshot || progressErr != nil {
		return p.differ.Latest(ctx, userID, courseID)
	}
	raw, err := current.RawData()
	if err != nil {
		p.log.Warn("current progress not diffable", "user_id", userID, "stage", "snapdiff", "error", err)
		return p.differ.Latest(ctx, userID, courseID)
	}
	return p.differ.Against(ctx, userID, courseID, raw, current.ComputedAt)
}

// IsInvalidRequest reports whether err was caused by a bad request.
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
