// Package pipeline owns the deep-analysis state machine: stage sequencing,
// the bounded correction loop, and retry bookkeeping. The original control
// flow lived in a graph-orchestration framework; here it is an explicit
// enumerated-state transition loop driven by plain function calls.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/db-inlee/paper-digest-agent/internal/artifact"
	"github.com/db-inlee/paper-digest-agent/internal/model"
	"github.com/db-inlee/paper-digest-agent/internal/parse"
	"github.com/db-inlee/paper-digest-agent/internal/report"
	"github.com/db-inlee/paper-digest-agent/internal/resilience"
	"github.com/db-inlee/paper-digest-agent/internal/stage"
)

// State enumerates the machine's states.
type State string

const (
	StateParse   State = "PARSE"
	StateExtract State = "EXTRACT"
	StateDelta   State = "DELTA"
	StateScore   State = "SCORE"
	StateVerify  State = "VERIFY"
	StateCorrect State = "CORRECT"
	StateDone    State = "DONE"
	StateFailed  State = "FAILED"
)

// Defaults for the two retry policies: the correction loop bound and the
// per-stage transient retry bound.
const (
	DefaultMaxRetries    = 2
	DefaultStageAttempts = 3
)

// StageInvoker is the slice of the stage runner the machine drives.
// *stage.Runner satisfies it; tests substitute fakes.
type StageInvoker interface {
	Extract(ctx context.Context, in stage.ExtractInput) (*model.Extraction, error)
	Delta(ctx context.Context, extraction *model.Extraction) (*model.Delta, error)
	Score(ctx context.Context, in stage.ScoreInput) (*model.Scoring, error)
	Verify(ctx context.Context, in stage.VerifyInput) (*model.Verification, error)
	Correct(ctx context.Context, in stage.CorrectInput) (*stage.CorrectOutput, error)
}

// Result is the terminal record of one pipeline run.
type Result struct {
	Paper        model.Paper
	Slug         string
	State        State
	RetryCount   int
	Degraded     bool
	Extraction   *model.Extraction
	Delta        *model.Delta
	Scoring      *model.Scoring
	Verification *model.Verification
	StageErr     *stage.Error
}

// Machine runs the deep pipeline for single papers.
type Machine struct {
	runner        StageInvoker
	parser        parse.Parser
	store         *artifact.Store
	maxRetries    int
	stageAttempts int
	retryCfg      resilience.RetryConfig
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithMaxRetries bounds the correction loop.
func WithMaxRetries(n int) MachineOption {
	return func(m *Machine) {
		if n >= 0 {
			m.maxRetries = n
		}
	}
}

// WithStageAttempts bounds transient re-invocations of a single stage.
func WithStageAttempts(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.stageAttempts = n
		}
	}
}

// WithRetryBackoff overrides backoff timing, mainly for tests.
func WithRetryBackoff(cfg resilience.RetryConfig) MachineOption {
	return func(m *Machine) {
		m.retryCfg = cfg
	}
}

// NewMachine wires a Machine.
func NewMachine(runner StageInvoker, parser parse.Parser, store *artifact.Store, opts ...MachineOption) *Machine {
	m := &Machine{
		runner:        runner,
		parser:        parser,
		store:         store,
		maxRetries:    DefaultMaxRetries,
		stageAttempts: DefaultStageAttempts,
		retryCfg:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// invokeStage runs one stage with the bounded transient-retry policy.
// Only stage errors marked retryable (Unavailable with a transient cause)
// are re-invoked; SchemaViolation escalates immediately.
func invokeStage[T any](ctx context.Context, m *Machine, stageName string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := m.retryCfg
	cfg.MaxAttempts = m.stageAttempts
	cfg.ShouldRetry = stage.IsRetryable
	cfg.OnRetry = resilience.RetryLogger("pipeline", stageName)
	return resilience.DoVal(ctx, cfg, fn)
}

// Run executes the full stage sequence for one paper. The returned Result
// always carries the terminal state; err is non-nil only when that state
// is FAILED.
func (m *Machine) Run(ctx context.Context, paper model.Paper) (*Result, error) {
	log := zap.L().With(zap.String("arxiv_id", paper.ArxivID))
	log.Info("pipeline: starting deep analysis", zap.String("title", paper.Title))

	res := &Result{Paper: paper, State: StateParse}

	var (
		doc         *model.ParsedDoc
		revised     *model.Extraction
		corrections []string
	)

	fail := func(err error) (*Result, error) {
		res.State = StateFailed
		if se, ok := stage.AsError(err); ok {
			res.StageErr = se
		}
		log.Error("pipeline: failed", zap.Error(err))
		return res, err
	}

	for {
		switch res.State {
		case StateParse:
			parsed, err := m.parser.Parse(ctx, paper)
			if err != nil {
				return fail(eris.Wrap(err, "pipeline: parse"))
			}
			doc = parsed
			log.Info("pipeline: parsed", zap.String("mode", string(doc.Mode)))
			res.State = StateExtract

		case StateExtract:
			extraction, err := invokeStage(ctx, m, stage.StageExtract, func(ctx context.Context) (*model.Extraction, error) {
				return m.runner.Extract(ctx, stage.ExtractInput{
					Paper:        paper,
					Doc:          doc,
					RevisedDraft: revised,
					Corrections:  corrections,
				})
			})
			if err != nil {
				return fail(err)
			}
			res.Extraction = extraction
			if err := m.store.Put(paper.ArxivID, extraction.Title, artifact.StageExtraction, extraction); err != nil {
				return fail(err)
			}
			res.State = StateDelta

		case StateDelta:
			delta, err := invokeStage(ctx, m, stage.StageDelta, func(ctx context.Context) (*model.Delta, error) {
				return m.runner.Delta(ctx, res.Extraction)
			})
			if err != nil {
				return fail(err)
			}
			res.Delta = delta
			if err := m.store.Put(paper.ArxivID, "", artifact.StageDelta, delta); err != nil {
				return fail(err)
			}
			res.State = StateScore

		case StateScore:
			scoring, err := invokeStage(ctx, m, stage.StageScore, func(ctx context.Context) (*model.Scoring, error) {
				return m.runner.Score(ctx, stage.ScoreInput{Extraction: res.Extraction, Delta: res.Delta})
			})
			if err != nil {
				return fail(err)
			}
			res.Scoring = scoring
			if err := m.store.Put(paper.ArxivID, "", artifact.StageScoring, scoring); err != nil {
				return fail(err)
			}
			res.State = StateVerify

		case StateVerify:
			verification, err := invokeStage(ctx, m, stage.StageVerify, func(ctx context.Context) (*model.Verification, error) {
				return m.runner.Verify(ctx, stage.VerifyInput{Paper: paper, Doc: doc, Extraction: res.Extraction})
			})
			if err != nil {
				return fail(err)
			}
			res.Verification = verification
			if err := m.store.Put(paper.ArxivID, "", artifact.StageVerification, verification); err != nil {
				return fail(err)
			}

			switch {
			case verification.OverallReliability == model.ReliabilityHigh:
				res.State = StateDone
			case res.RetryCount < m.maxRetries:
				log.Info("pipeline: verification below threshold, entering correction",
					zap.String("reliability", string(verification.OverallReliability)),
					zap.Int("retry_count", res.RetryCount),
				)
				res.State = StateCorrect
			default:
				// Retries exhausted: complete anyway, visibly flagged,
				// rather than loop without bound.
				res.Degraded = true
				log.Warn("pipeline: completing degraded after exhausting retries",
					zap.String("reliability", string(verification.OverallReliability)),
					zap.Int("retry_count", res.RetryCount),
				)
				res.State = StateDone
			}

		case StateCorrect:
			corrected, err := invokeStage(ctx, m, stage.StageCorrect, func(ctx context.Context) (*stage.CorrectOutput, error) {
				return m.runner.Correct(ctx, stage.CorrectInput{
					Paper:        paper,
					Doc:          doc,
					Extraction:   res.Extraction,
					Delta:        res.Delta,
					Verification: res.Verification,
				})
			})
			if err != nil {
				return fail(err)
			}
			// The revised draft replaces the prior extraction input so the
			// next loop iteration starts from corrected material.
			revised = &corrected.Extraction
			corrections = res.Verification.CorrectionsNeeded
			res.RetryCount++
			res.State = StateExtract

		case StateDone:
			md := report.Render(report.Input{
				Paper:        paper,
				Extraction:   res.Extraction,
				Delta:        res.Delta,
				Scoring:      res.Scoring,
				Verification: res.Verification,
				Degraded:     res.Degraded,
				RetryCount:   res.RetryCount,
			})
			if err := m.store.PutReport(paper.ArxivID, res.Extraction.Title, md); err != nil {
				return fail(err)
			}
			res.Slug, _ = m.store.ResolveSlug(paper.ArxivID)
			log.Info("pipeline: done",
				zap.String("slug", res.Slug),
				zap.Bool("degraded", res.Degraded),
				zap.Int("retry_count", res.RetryCount),
			)
			return res, nil

		default:
			return fail(eris.Errorf("pipeline: unexpected state %s", res.State))
		}
	}
}
