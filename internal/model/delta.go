package model

import "github.com/rotisserie/eris"

// CoreDelta states one structural change the paper makes over prior work.
type CoreDelta struct {
	Axis        string   `json:"axis"` // e.g. control_paradigm, memory_structure
	OldApproach string   `json:"old_approach"`
	NewApproach string   `json:"new_approach"`
	WhyBetter   string   `json:"why_better"`
	Evidence    Evidence `json:"evidence"`
}

// Tradeoff records what the new approach gives up in exchange for its benefit.
type Tradeoff struct {
	Aspect         string   `json:"aspect"` // e.g. latency, accuracy, cost
	Benefit        string   `json:"benefit"`
	Cost           string   `json:"cost"`
	WhenAcceptable string   `json:"when_acceptable,omitempty"`
	Evidence       Evidence `json:"evidence"`
}

// Delta is the differentiation record: how the paper departs from the
// baselines named in its Extraction, keyed by the same arxiv id.
type Delta struct {
	ArxivID         string      `json:"arxiv_id"`
	OneLineTakeaway string      `json:"one_line_takeaway"`
	CoreDeltas      []CoreDelta `json:"core_deltas"`
	Tradeoffs       []Tradeoff  `json:"tradeoffs"`
	WhenToUse       string      `json:"when_to_use"`
	WhenNotToUse    string      `json:"when_not_to_use"`
}

// Validate enforces the delta schema invariants and, when an extraction is
// supplied, referential consistency with it.
func (d *Delta) Validate(extraction *Extraction) error {
	if d.ArxivID == "" {
		return eris.New("delta: missing arxiv_id")
	}
	if len(d.CoreDeltas) == 0 {
		return eris.New("delta: needs at least one core delta")
	}
	if d.Tradeoffs == nil {
		d.Tradeoffs = []Tradeoff{}
	}
	if extraction != nil && extraction.ArxivID != d.ArxivID {
		return eris.Errorf("delta: arxiv_id %q does not match extraction %q", d.ArxivID, extraction.ArxivID)
	}
	return nil
}
