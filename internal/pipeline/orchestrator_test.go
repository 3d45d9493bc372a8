package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/db-inlee/paper-digest-agent/internal/artifact"
	"github.com/db-inlee/paper-digest-agent/internal/model"
	"github.com/db-inlee/paper-digest-agent/internal/registry"
	"github.com/db-inlee/paper-digest-agent/internal/stage"
)

// fakeRunner scripts terminal results per arxiv id.
type fakeRunner struct {
	mu       sync.Mutex
	ran      []string
	failing  map[string]bool
	degraded map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, paper model.Paper) (*Result, error) {
	f.mu.Lock()
	f.ran = append(f.ran, paper.ArxivID)
	f.mu.Unlock()

	if f.failing[paper.ArxivID] {
		se := stage.NewSchemaViolation(stage.StageDelta, eris.New("no core deltas"))
		return &Result{Paper: paper, State: StateFailed, StageErr: se}, se
	}
	return &Result{
		Paper:    paper,
		State:    StateDone,
		Degraded: f.degraded[paper.ArxivID],
	}, nil
}

type fakeArchiver struct {
	mu   sync.Mutex
	jobs []model.PipelineJob
}

func (f *fakeArchiver) SaveJob(_ context.Context, job model.PipelineJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func papers(ids ...string) []model.Paper {
	out := make([]model.Paper, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Paper{ArxivID: id, Title: "Paper " + id})
	}
	return out
}

func newTestOrchestrator(t *testing.T, runner Runner, opts ...OrchestratorOption) (*Orchestrator, *registry.Registry, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	reg := registry.New()
	return NewOrchestrator(runner, reg, store, opts...), reg, store
}

func TestRunBatchAggregates(t *testing.T) {
	runner := &fakeRunner{
		failing:  map[string]bool{"2602.00002": true},
		degraded: map[string]bool{"2602.00003": true},
	}
	o, reg, _ := newTestOrchestrator(t, runner, WithConcurrency(2))

	summary, err := o.RunBatch(context.Background(), papers("2602.00001", "2602.00002", "2602.00003"), BatchOptions{Date: "2026-08-30"})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Degraded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)

	// Every scope released after the batch.
	assert.Empty(t, reg.Running())
	assert.Len(t, reg.Recent(), 3)
}

func TestRunBatchSkipsExistingReports(t *testing.T) {
	runner := &fakeRunner{}
	o, _, store := newTestOrchestrator(t, runner)
	require.NoError(t, store.PutReport("2602.00001", "Paper 2602.00001", "# done\n"))

	summary, err := o.RunBatch(context.Background(), papers("2602.00001", "2602.00002"), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Completed)
	assert.Equal(t, []string{"2602.00002"}, runner.ran)
}

func TestRunBatchForceReruns(t *testing.T) {
	runner := &fakeRunner{}
	o, _, store := newTestOrchestrator(t, runner)
	require.NoError(t, store.PutReport("2602.00001", "Paper 2602.00001", "# done\n"))

	summary, err := o.RunBatch(context.Background(), papers("2602.00001"), BatchOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, []string{"2602.00001"}, runner.ran)
}

func TestRunBatchSkipsClaimedScope(t *testing.T) {
	runner := &fakeRunner{}
	o, reg, _ := newTestOrchestrator(t, runner)
	_, err := reg.TryStart("2602.00001", model.Paper{ArxivID: "2602.00001"}, "2026-08-30")
	require.NoError(t, err)

	summary, err := o.RunBatch(context.Background(), papers("2602.00001", "2602.00002"), BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"2602.00002"}, runner.ran)
}

func TestRunOneConflict(t *testing.T) {
	runner := &fakeRunner{}
	o, reg, _ := newTestOrchestrator(t, runner)
	_, err := reg.TryStart("2602.00001", model.Paper{ArxivID: "2602.00001"}, "2026-08-30")
	require.NoError(t, err)

	_, err = o.RunOne(context.Background(), model.Paper{ArxivID: "2602.00001"}, "2026-08-30")
	assert.ErrorIs(t, err, registry.ErrAlreadyRunning)
	assert.Empty(t, runner.ran)
}

func TestRunOneReleasesScopeAndArchives(t *testing.T) {
	runner := &fakeRunner{failing: map[string]bool{"2602.00002": true}}
	archiver := &fakeArchiver{}
	o, reg, _ := newTestOrchestrator(t, runner, WithJobArchiver(archiver))

	_, err := o.RunOne(context.Background(), model.Paper{ArxivID: "2602.00001"}, "2026-08-30")
	require.NoError(t, err)
	_, err = o.RunOne(context.Background(), model.Paper{ArxivID: "2602.00002"}, "2026-08-30")
	require.Error(t, err)

	// Both scopes released; failure never blocks resubmission.
	assert.Empty(t, reg.Running())
	_, err = o.RunOne(context.Background(), model.Paper{ArxivID: "2602.00002"}, "2026-08-30")
	require.Error(t, err)
	assert.NotErrorIs(t, err, registry.ErrAlreadyRunning)

	require.GreaterOrEqual(t, len(archiver.jobs), 2)
	states := map[string]model.JobState{}
	for _, j := range archiver.jobs {
		states[j.ArxivID] = j.State
	}
	assert.Equal(t, model.JobCompleted, states["2602.00001"])
	assert.Equal(t, model.JobError, states["2602.00002"])
}
