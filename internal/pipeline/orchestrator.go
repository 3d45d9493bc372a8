package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/db-inlee/paper-digest-agent/internal/artifact"
	"github.com/db-inlee/paper-digest-agent/internal/model"
	"github.com/db-inlee/paper-digest-agent/internal/registry"
)

// Runner is what the orchestrator drives per paper; *Machine satisfies it.
type Runner interface {
	Run(ctx context.Context, paper model.Paper) (*Result, error)
}

// JobArchiver persists finished jobs for history queries. Optional: a nil
// archiver disables persistence.
type JobArchiver interface {
	SaveJob(ctx context.Context, job model.PipelineJob) error
}

// DefaultBatchConcurrency bounds parallel paper runs in a batch.
const DefaultBatchConcurrency = 3

// BatchOptions tunes one batch run.
type BatchOptions struct {
	Date  string // label for job records, e.g. "2026-08-30"
	Force bool   // rerun papers that already have a report
}

// BatchSummary aggregates the outcome of a batch run.
type BatchSummary struct {
	Total     int
	Completed int
	Degraded  int
	Failed    int
	Skipped   int
	Results   []*Result
}

// Orchestrator fans a batch of papers through the pipeline with bounded
// concurrency, claiming each paper's scope so a batch and a single-paper
// trigger never analyze the same paper at once.
type Orchestrator struct {
	runner      Runner
	registry    *registry.Registry
	artifacts   *artifact.Store
	history     JobArchiver
	concurrency int
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithConcurrency caps parallel paper runs.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithJobArchiver enables job-history persistence.
func WithJobArchiver(h JobArchiver) OrchestratorOption {
	return func(o *Orchestrator) {
		o.history = h
	}
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(runner Runner, reg *registry.Registry, artifacts *artifact.Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		runner:      runner,
		registry:    reg,
		artifacts:   artifacts,
		concurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunBatch analyzes papers with bounded concurrency. A paper that already
// has a report is skipped unless Force; a paper whose scope is claimed
// elsewhere is skipped, never queued. Stage failures are recorded per
// paper and do not abort the rest of the batch.
func (o *Orchestrator) RunBatch(ctx context.Context, papers []model.Paper, opts BatchOptions) (*BatchSummary, error) {
	log := zap.L().With(zap.String("date", opts.Date))
	log.Info("orchestrator: starting batch",
		zap.Int("papers", len(papers)),
		zap.Int("concurrency", o.concurrency),
		zap.Bool("force", opts.Force),
	)

	summary := &BatchSummary{Total: len(papers)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for _, paper := range papers {
		paper := paper
		if !opts.Force && o.artifacts.HasReport(paper.ArxivID) {
			log.Info("orchestrator: report exists, skipping", zap.String("arxiv_id", paper.ArxivID))
			mu.Lock()
			summary.Skipped++
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			res := o.runOne(gctx, paper, opts.Date)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case res == nil:
				summary.Skipped++
			case res.State == StateFailed:
				summary.Failed++
				summary.Results = append(summary.Results, res)
			default:
				summary.Completed++
				if res.Degraded {
					summary.Degraded++
				}
				summary.Results = append(summary.Results, res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, eris.Wrap(err, "orchestrator: batch")
	}
	log.Info("orchestrator: batch finished",
		zap.Int("completed", summary.Completed),
		zap.Int("degraded", summary.Degraded),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// StartBatch claims the global scope and runs the batch in the background,
// surviving cancellation of the triggering request. Returns the job record
// for status polling, or registry.ErrAlreadyRunning.
func (o *Orchestrator) StartBatch(ctx context.Context, papers []model.Paper, opts BatchOptions) (*model.PipelineJob, error) {
	job, err := o.registry.TryStart(model.GlobalScope, model.Paper{}, opts.Date)
	if err != nil {
		return nil, err
	}
	go func() {
		bctx := context.WithoutCancel(ctx)
		summary, err := o.RunBatch(bctx, papers, opts)
		state := model.JobCompleted
		if err == nil && summary.Failed > 0 {
			err = eris.Errorf("orchestrator: %d of %d papers failed", summary.Failed, summary.Total)
		}
		if err != nil {
			state = model.JobError
		}
		o.registry.Finish(model.GlobalScope, state, 0, err)
	}()
	return job, nil
}

// StartOne claims the paper's scope and runs its pipeline in the
// background. Returns the job record, or registry.ErrAlreadyRunning.
func (o *Orchestrator) StartOne(ctx context.Context, paper model.Paper, date string) (*model.PipelineJob, error) {
	job, err := o.registry.TryStart(paper.ArxivID, paper, date)
	if err != nil {
		return nil, err
	}
	go o.runClaimed(context.WithoutCancel(ctx), paper, date)
	return job, nil
}

// RunOne runs a single paper end to end under its scope claim. Returns
// registry.ErrAlreadyRunning unchanged when the scope is busy so callers
// can map it to a conflict response.
func (o *Orchestrator) RunOne(ctx context.Context, paper model.Paper, date string) (*Result, error) {
	if _, err := o.registry.TryStart(paper.ArxivID, paper, date); err != nil {
		return nil, err
	}
	res, err := o.runClaimed(ctx, paper, date)
	return res, err
}

// runOne is the batch worker: skips silently on a scope conflict.
func (o *Orchestrator) runOne(ctx context.Context, paper model.Paper, date string) *Result {
	if _, err := o.registry.TryStart(paper.ArxivID, paper, date); err != nil {
		zap.L().Info("orchestrator: scope busy, skipping",
			zap.String("arxiv_id", paper.ArxivID))
		return nil
	}
	res, _ := o.runClaimed(ctx, paper, date)
	return res
}

// runClaimed runs the machine for an already-claimed scope and always
// releases it, archiving the terminal job when a history store is wired.
func (o *Orchestrator) runClaimed(ctx context.Context, paper model.Paper, date string) (*Result, error) {
	res, err := o.runner.Run(ctx, paper)

	state := model.JobCompleted
	retryCount := 0
	if res != nil {
		retryCount = res.RetryCount
	}
	if err != nil {
		state = model.JobError
	}
	o.registry.Finish(paper.ArxivID, state, retryCount, err)

	if o.history != nil {
		if job, jerr := o.registry.Status(paper.ArxivID); jerr == nil && job.State.Terminal() {
			if serr := o.history.SaveJob(ctx, job); serr != nil {
				zap.L().Warn("orchestrator: job archive failed",
					zap.String("arxiv_id", paper.ArxivID),
					zap.Error(serr),
				)
			}
		}
	}
	return res, err
}
