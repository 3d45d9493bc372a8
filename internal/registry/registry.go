// Package registry enforces at-most-one in-flight pipeline job per scope.
// A scope is either the global run token or a single arxiv id. Status
// polling is the only way to observe progress; terminal entries are retired
// on finish so a later trigger can start fresh.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/db-inlee/paper-digest-agent/internal/model"
)

// ErrAlreadyRunning is a control signal, not a failure: a job for the
// scope is already in flight and the caller should reject the trigger.
var ErrAlreadyRunning = eris.New("registry: job already running for scope")

// ErrNotFound means no job, running or retired, is known for the scope.
var ErrNotFound = eris.New("registry: no job for scope")

// maxRetired bounds the retired-job ring kept for status listings.
const maxRetired = 50

// Registry tracks in-flight jobs by scope and a bounded history of
// finished ones.
type Registry struct {
	mu      sync.Mutex
	running map[string]*model.PipelineJob
	retired []model.PipelineJob // newest last
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{running: make(map[string]*model.PipelineJob)}
}

// TryStart claims the scope and returns the new job. Exactly one of two
// concurrent calls for the same scope succeeds; the other gets
// ErrAlreadyRunning with no state mutated.
func (r *Registry) TryStart(scope string, paper model.Paper, date string) (*model.PipelineJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.running[scope]; ok {
		return nil, ErrAlreadyRunning
	}

	job := &model.PipelineJob{
		JobID:     uuid.New().String(),
		Scope:     scope,
		ArxivID:   paper.ArxivID,
		Title:     paper.Title,
		Date:      date,
		State:     model.JobRunning,
		StartedAt: time.Now().UTC(),
	}
	r.running[scope] = job

	zap.L().Info("registry: job started",
		zap.String("scope", scope),
		zap.String("job_id", job.JobID),
	)
	return job, nil
}

// Status returns a copy of the scope's job: the running one if in flight,
// otherwise the most recently retired one.
func (r *Registry) Status(scope string) (model.PipelineJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.running[scope]; ok {
		return *job, nil
	}
	for i := len(r.retired) - 1; i >= 0; i-- {
		if r.retired[i].Scope == scope {
			return r.retired[i], nil
		}
	}
	return model.PipelineJob{}, ErrNotFound
}

// Finish moves the scope's job to a terminal state and releases the scope.
// A historical failure never blocks resubmission; only concurrency does.
func (r *Registry) Finish(scope string, state model.JobState, retryCount int, jobErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.running[scope]
	if !ok {
		zap.L().Warn("registry: finish for unknown scope", zap.String("scope", scope))
		return
	}
	delete(r.running, scope)

	job.State = state
	job.RetryCount = retryCount
	job.FinishedAt = time.Now().UTC()
	if jobErr != nil {
		job.Error = jobErr.Error()
	}

	r.retired = append(r.retired, *job)
	if len(r.retired) > maxRetired {
		r.retired = r.retired[len(r.retired)-maxRetired:]
	}

	zap.L().Info("registry: job finished",
		zap.String("scope", scope),
		zap.String("job_id", job.JobID),
		zap.String("state", string(state)),
	)
}

// Running lists copies of all in-flight jobs.
func (r *Registry) Running() []model.PipelineJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.PipelineJob, 0, len(r.running))
	for _, job := range r.running {
		out = append(out, *job)
	}
	return out
}

// Recent lists retired jobs, newest first.
func (r *Registry) Recent() []model.PipelineJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.PipelineJob, 0, len(r.retired))
	for i := len(r.retired) - 1; i >= 0; i-- {
		out = append(out, r.retired[i])
	}
	return out
}

// Clear drops a running entry without archiving it, the operator escape
// hatch for a stuck job.
func (r *Registry) Clear(scope string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[scope]; !ok {
		return false
	}
	delete(r.running, scope)
	zap.L().Warn("registry: job cleared by operator", zap.String("scope", scope))
	return true
}
