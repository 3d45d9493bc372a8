package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/db-inlee/paper-digest-agent/internal/artifact"
	"github.com/db-inlee/paper-digest-agent/internal/model"
	"github.com/db-inlee/paper-digest-agent/internal/resilience"
	"github.com/db-inlee/paper-digest-agent/internal/stage"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testPaper = model.Paper{
	ArxivID:  "2602.04521",
	Title:    "Test Paper on Agent Memory",
	Abstract: "We study memory for agents.",
	Date:     "2026-08-30",
}

// stubParser returns a fixed full-mode doc.
type stubParser struct{}

func (stubParser) Parse(_ context.Context, p model.Paper) (*model.ParsedDoc, error) {
	return &model.ParsedDoc{
		ArxivID:  p.ArxivID,
		Title:    p.Title,
		Abstract: p.Abstract,
		Sections: []model.Section{{Title: "Introduction", Text: "Agents need memory."}},
		Mode:     model.ParseModeFull,
	}, nil
}

// fakeStages scripts per-stage behavior and records the call sequence.
type fakeStages struct {
	mu    sync.Mutex
	calls []string

	extractErrs   []error             // consumed per Extract call, nil entry = success
	reliabilities []model.Reliability // consumed per Verify call, default high

	extractInputs []stage.ExtractInput
	verifyCount   int
	correctCount  int
}

func (f *fakeStages) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeStages) popExtractErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.extractErrs) == 0 {
		return nil
	}
	err := f.extractErrs[0]
	f.extractErrs = f.extractErrs[1:]
	return err
}

func (f *fakeStages) extraction(title string) *model.Extraction {
	return &model.Extraction{
		ArxivID: testPaper.ArxivID,
		Title:   title,
		ProblemDefinition: model.ProblemDefinition{
			Statement: "Agents forget.",
			Evidence:  []model.Evidence{},
		},
		Claims: []model.Claim{
			{ClaimID: "c1", Text: "Memory helps.", ClaimType: model.ClaimResult, Confidence: 0.8, Evidence: []model.Evidence{}},
		},
		ExtractionMode: model.ExtractionFull,
	}
}

func (f *fakeStages) Extract(_ context.Context, in stage.ExtractInput) (*model.Extraction, error) {
	f.record("extract")
	f.mu.Lock()
	f.extractInputs = append(f.extractInputs, in)
	f.mu.Unlock()
	if err := f.popExtractErr(); err != nil {
		return nil, err
	}
	if in.RevisedDraft != nil {
		return f.extraction(in.RevisedDraft.Title), nil
	}
	return f.extraction("Draft v1"), nil
}

func (f *fakeStages) Delta(_ context.Context, extraction *model.Extraction) (*model.Delta, error) {
	f.record("delta")
	return &model.Delta{
		ArxivID:         extraction.ArxivID,
		OneLineTakeaway: "Memory beats no memory.",
		CoreDeltas:      []model.CoreDelta{{Axis: "memory_structure", OldApproach: "none", NewApproach: "tiered", WhyBetter: "recall"}},
		Tradeoffs:       []model.Tradeoff{},
	}, nil
}

func (f *fakeStages) Score(_ context.Context, in stage.ScoreInput) (*model.Scoring, error) {
	f.record("score")
	return &model.Scoring{
		ArxivID: in.Extraction.ArxivID, Practicality: 4, Codeability: 4, Signal: 4,
		Recommendation: model.RecommendMustRead, Reasoning: "solid",
	}, nil
}

func (f *fakeStages) Verify(_ context.Context, in stage.VerifyInput) (*model.Verification, error) {
	f.record("verify")
	f.mu.Lock()
	rel := model.ReliabilityHigh
	if f.verifyCount < len(f.reliabilities) {
		rel = f.reliabilities[f.verifyCount]
	}
	f.verifyCount++
	f.mu.Unlock()

	v := &model.Verification{
		ArxivID:            in.Extraction.ArxivID,
		TotalClaims:        1,
		OverallReliability: rel,
		Results: []model.VerificationResult{
			{ClaimID: "c1", ClaimText: "Memory helps.", Confidence: 0.9},
		},
		CorrectionsNeeded: []string{},
	}
	if rel == model.ReliabilityHigh {
		v.VerifiedCount = 1
		v.Results[0].Status = model.ClaimVerified
	} else {
		v.UnverifiedCount = 1
		v.Results[0].Status = model.ClaimUnverified
		v.CorrectionsNeeded = []string{"tighten claim c1"}
	}
	return v, nil
}

func (f *fakeStages) Correct(_ context.Context, in stage.CorrectInput) (*stage.CorrectOutput, error) {
	f.record("correct")
	f.mu.Lock()
	f.correctCount++
	n := f.correctCount
	f.mu.Unlock()
	return &stage.CorrectOutput{
		Extraction: *f.extraction(fmt.Sprintf("Corrected v%d", n)),
		Delta:      *must(f.Delta(context.Background(), in.Extraction)),
	}, nil
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func fastRetry() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return cfg
}

func newTestMachine(t *testing.T, fake *fakeStages, opts ...MachineOption) (*Machine, *artifact.Store) {
	t.Helper()
	store, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	opts = append([]MachineOption{WithRetryBackoff(fastRetry())}, opts...)
	return NewMachine(fake, stubParser{}, store, opts...), store
}

func TestRunHappyPath(t *testing.T) {
	fake := &fakeStages{}
	m, store := newTestMachine(t, fake)

	res, err := m.Run(context.Background(), testPaper)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 0, res.RetryCount)
	assert.False(t, res.Degraded)
	assert.Equal(t, []string{"extract", "delta", "score", "verify"}, fake.calls)

	extraction, err := store.Extraction(testPaper.ArxivID)
	require.NoError(t, err)
	assert.Equal(t, "Draft v1", extraction.Title)
	assert.True(t, store.HasReport(testPaper.ArxivID))

	md, err := store.Report(testPaper.ArxivID)
	require.NoError(t, err)
	assert.Contains(t, md, "# Deep Analysis: Draft v1")
	assert.NotContains(t, md, "Degraded result")
}

func TestRunCorrectionLoopRecovers(t *testing.T) {
	fake := &fakeStages{reliabilities: []model.Reliability{model.ReliabilityLow, model.ReliabilityHigh}}
	m, store := newTestMachine(t, fake)

	res, err := m.Run(context.Background(), testPaper)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, res.RetryCount)
	assert.False(t, res.Degraded)
	assert.Equal(t,
		[]string{"extract", "delta", "score", "verify", "correct", "extract", "delta", "score", "verify"},
		fake.calls)

	// Second extract receives the revised draft and the verifier's
	// corrections, not the original prompt context.
	require.Len(t, fake.extractInputs, 2)
	assert.Nil(t, fake.extractInputs[0].RevisedDraft)
	require.NotNil(t, fake.extractInputs[1].RevisedDraft)
	assert.Equal(t, "Corrected v1", fake.extractInputs[1].RevisedDraft.Title)
	assert.Equal(t, []string{"tighten claim c1"}, fake.extractInputs[1].Corrections)

	// Loop re-entry overwrites artifacts in place: one extraction file,
	// holding the corrected draft.
	extraction, err := store.Extraction(testPaper.ArxivID)
	require.NoError(t, err)
	assert.Equal(t, "Corrected v1", extraction.Title)
}

func TestRunDegradedAfterExhaustedRetries(t *testing.T) {
	fake := &fakeStages{reliabilities: []model.Reliability{
		model.ReliabilityLow, model.ReliabilityMedium, model.ReliabilityLow,
	}}
	m, store := newTestMachine(t, fake, WithMaxRetries(2))

	res, err := m.Run(context.Background(), testPaper)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.True(t, res.Degraded)
	assert.Equal(t, 2, res.RetryCount)

	// max_retries+1 verification passes, then completion without another
	// correction.
	assert.Equal(t, 3, fake.verifyCount)
	assert.Equal(t, 2, fake.correctCount)

	md, err := store.Report(testPaper.ArxivID)
	require.NoError(t, err)
	assert.Contains(t, md, "Degraded result")
}

func TestRunZeroRetriesDegradesImmediately(t *testing.T) {
	fake := &fakeStages{reliabilities: []model.Reliability{model.ReliabilityMedium}}
	m, _ := newTestMachine(t, fake, WithMaxRetries(0))

	res, err := m.Run(context.Background(), testPaper)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.True(t, res.Degraded)
	assert.Equal(t, 0, res.RetryCount)
	assert.Equal(t, 0, fake.correctCount)
}

func TestRunSchemaViolationFailsWithoutRetry(t *testing.T) {
	fake := &fakeStages{extractErrs: []error{
		stage.NewSchemaViolation(stage.StageExtract, eris.New("duplicate claim_id")),
	}}
	m, store := newTestMachine(t, fake)

	res, err := m.Run(context.Background(), testPaper)
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	require.NotNil(t, res.StageErr)
	assert.Equal(t, stage.SchemaViolation, res.StageErr.Kind)
	assert.Equal(t, stage.StageExtract, res.StageErr.Stage)

	// Not retried, and nothing persisted for the failed stage.
	assert.Equal(t, []string{"extract"}, fake.calls)
	_, err = store.Extraction(testPaper.ArxivID)
	assert.ErrorIs(t, err, artifact.ErrNotFound)
}

func TestRunTransientRetriesThenSucceeds(t *testing.T) {
	transient := stage.NewUnavailable(stage.StageExtract, &resilience.TransientError{Err: eris.New("overloaded"), StatusCode: 529})
	fake := &fakeStages{extractErrs: []error{transient, transient}}
	m, _ := newTestMachine(t, fake, WithStageAttempts(3))

	res, err := m.Run(context.Background(), testPaper)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{"extract", "extract", "extract", "delta", "score", "verify"}, fake.calls)
}

func TestRunTransientExhaustsAttempts(t *testing.T) {
	transient := stage.NewUnavailable(stage.StageExtract, &resilience.TransientError{Err: eris.New("bad gateway"), StatusCode: 502})
	fake := &fakeStages{extractErrs: []error{transient, transient, transient}}
	m, _ := newTestMachine(t, fake, WithStageAttempts(3))

	res, err := m.Run(context.Background(), testPaper)
	require.Error(t, err)
	assert.Equal(t, StateFailed, res.State)
	require.NotNil(t, res.StageErr)
	assert.Equal(t, stage.Unavailable, res.StageErr.Kind)
	assert.Equal(t, 3, len(fake.calls))
}
