package model

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// EvidenceType classifies where in the source a piece of evidence points.
type EvidenceType string

const (
	EvidenceQuote    EvidenceType = "quote"
	EvidenceTable    EvidenceType = "table"
	EvidenceFigure   EvidenceType = "figure"
	EvidenceEquation EvidenceType = "equation"
)

// Evidence is a locator into the source text, attached to extracted facts
// for auditability. It has no identity of its own; it is owned by the
// claim, baseline, or component that carries it.
type Evidence struct {
	Page    int          `json:"page,omitempty"`
	Section string       `json:"section,omitempty"`
	Quote   string       `json:"quote,omitempty"`
	Type    EvidenceType `json:"type"`
}

// Pointer renders a short human-readable locator like "(p.3 §Method)".
func (e Evidence) Pointer() string {
	switch {
	case e.Page > 0 && e.Section != "":
		return fmt.Sprintf("(p.%d §%s)", e.Page, e.Section)
	case e.Page > 0:
		return fmt.Sprintf("(p.%d)", e.Page)
	case e.Section != "":
		return fmt.Sprintf("(§%s)", e.Section)
	default:
		return ""
	}
}

// ClaimType tags what kind of statement a claim makes.
type ClaimType string

const (
	ClaimMethod       ClaimType = "method"
	ClaimResult       ClaimType = "result"
	ClaimComparison   ClaimType = "comparison"
	ClaimLimitation   ClaimType = "limitation"
	ClaimArchitecture ClaimType = "architecture"
	ClaimEfficiency   ClaimType = "efficiency"
	ClaimAblation     ClaimType = "ablation"
)

// Claim is a single extracted statement with supporting evidence.
type Claim struct {
	ClaimID    string     `json:"claim_id"`
	Text       string     `json:"text"`
	ClaimType  ClaimType  `json:"claim_type"`
	Confidence float64    `json:"confidence"`
	Evidence   []Evidence `json:"evidence"`
}

// ProblemDefinition captures what the paper sets out to solve.
type ProblemDefinition struct {
	Statement            string     `json:"statement"`
	BaselineMethods      []string   `json:"baseline_methods,omitempty"`
	StructuralLimitation string     `json:"structural_limitation,omitempty"`
	Evidence             []Evidence `json:"evidence"`
}

// Baseline describes one prior method the paper compares against.
type Baseline struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Limitation  string     `json:"limitation,omitempty"`
	Evidence    []Evidence `json:"evidence"`
}

// MethodComponent is one building block of the proposed method.
type MethodComponent struct {
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	Inputs             []string   `json:"inputs,omitempty"`
	Outputs            []string   `json:"outputs,omitempty"`
	ImplementationHint string     `json:"implementation_hint,omitempty"`
	Role               string     `json:"role,omitempty"` // novel, adapted, standard
	Evidence           []Evidence `json:"evidence"`
}

// Benchmark records a dataset, its metrics, and headline numbers.
type Benchmark struct {
	Dataset         string            `json:"dataset"`
	Metrics         []string          `json:"metrics,omitempty"`
	BaselineResults map[string]string `json:"baseline_results,omitempty"`
	ProposedResults map[string]string `json:"proposed_results,omitempty"`
	Evidence        []Evidence        `json:"evidence"`
}

// ExtractionMode records whether extraction saw full text or only the abstract.
type ExtractionMode string

const (
	ExtractionFull ExtractionMode = "full"
	ExtractionLite ExtractionMode = "lite"
)

// Extraction is the structured read of one paper: problem, baselines,
// method components, benchmarks, and evidence-backed claims.
type Extraction struct {
	ArxivID           string            `json:"arxiv_id"`
	Title             string            `json:"title"`
	ProblemDefinition ProblemDefinition `json:"problem_definition"`
	Baselines         []Baseline        `json:"baselines"`
	MethodComponents  []MethodComponent `json:"method_components"`
	Benchmark         *Benchmark        `json:"benchmark,omitempty"`
	Claims            []Claim           `json:"claims"`
	ExtractionMode    ExtractionMode    `json:"extraction_mode"`
}

// ClaimIDs returns the set of claim ids present in the extraction.
func (e *Extraction) ClaimIDs() map[string]bool {
	ids := make(map[string]bool, len(e.Claims))
	for _, c := range e.Claims {
		ids[c.ClaimID] = true
	}
	return ids
}

// Validate enforces the extraction schema invariants: non-empty arxiv id,
// unique claim ids, confidence within [0,1]. Evidence slices are normalized
// to empty (never nil) as a side effect so serialized records always carry
// a list.
func (e *Extraction) Validate() error {
	if e.ArxivID == "" {
		return eris.New("extraction: missing arxiv_id")
	}
	seen := make(map[string]bool, len(e.Claims))
	for i := range e.Claims {
		c := &e.Claims[i]
		if c.ClaimID == "" {
			return eris.Errorf("extraction: claim %d missing claim_id", i)
		}
		if seen[c.ClaimID] {
			return eris.Errorf("extraction: duplicate claim_id %q", c.ClaimID)
		}
		seen[c.ClaimID] = true
		if c.Confidence < 0 || c.Confidence > 1 {
			return eris.Errorf("extraction: claim %s confidence %.2f outside [0,1]", c.ClaimID, c.Confidence)
		}
		if c.Evidence == nil {
			c.Evidence = []Evidence{}
		}
	}
	if e.ProblemDefinition.Evidence == nil {
		e.ProblemDefinition.Evidence = []Evidence{}
	}
	for i := range e.Baselines {
		if e.Baselines[i].Evidence == nil {
			e.Baselines[i].Evidence = []Evidence{}
		}
	}
	for i := range e.MethodComponents {
		if e.MethodComponents[i].Evidence == nil {
			e.MethodComponents[i].Evidence = []Evidence{}
		}
	}
	if e.Benchmark != nil && e.Benchmark.Evidence == nil {
		e.Benchmark.Evidence = []Evidence{}
	}
	return nil
}
