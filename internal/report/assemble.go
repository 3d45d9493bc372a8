package report

import (
	"github.com/rotisserie/eris"

	"github.com/db-inlee/paper-digest-agent/internal/artifact"
	"github.com/db-inlee/paper-digest-agent/internal/model"
)

// Assembler joins the latest per-stage artifacts into one detail record.
type Assembler struct {
	store *artifact.Store
}

// NewAssembler wires an Assembler over an artifact store.
func NewAssembler(store *artifact.Store) *Assembler {
	return &Assembler{store: store}
}

// Assemble builds the denormalized view for one paper. A stage whose
// artifact is missing yields a nil section; only a paper with no artifacts
// at all returns artifact.ErrNotFound. The degraded flag is derived from
// the persisted verification: a completed run whose reliability stayed
// below high.
func (a *Assembler) Assemble(arxivID string) (*model.DetailRecord, error) {
	slug, ok := a.store.ResolveSlug(arxivID)
	if !ok {
		return nil, eris.Wrapf(artifact.ErrNotFound, "report: no artifacts for %s", arxivID)
	}

	rec := &model.DetailRecord{ArxivID: arxivID, Slug: slug}

	if extraction, err := a.store.Extraction(arxivID); err == nil {
		rec.Extraction = extraction
	} else if !eris.Is(err, artifact.ErrNotFound) {
		return nil, err
	}
	if delta, err := a.store.Delta(arxivID); err == nil {
		rec.Delta = delta
	} else if !eris.Is(err, artifact.ErrNotFound) {
		return nil, err
	}
	if scoring, err := a.store.Scoring(arxivID); err == nil {
		rec.Scoring = scoring
	} else if !eris.Is(err, artifact.ErrNotFound) {
		return nil, err
	}
	if verification, err := a.store.Verification(arxivID); err == nil {
		rec.Verification = verification
	} else if !eris.Is(err, artifact.ErrNotFound) {
		return nil, err
	}

	rec.Degraded = rec.Verification != nil &&
		rec.Verification.OverallReliability != model.ReliabilityHigh &&
		a.store.HasReport(arxivID)

	return rec, nil
}
