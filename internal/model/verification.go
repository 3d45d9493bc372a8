package model

import "github.com/rotisserie/eris"

// Reliability is the verifier's overall confidence level.
type Reliability string

const (
	ReliabilityHigh   Reliability = "high"
	ReliabilityMedium Reliability = "medium"
	ReliabilityLow    Reliability = "low"
)

// Valid reports whether r is one of the three defined levels.
func (r Reliability) Valid() bool {
	switch r {
	case ReliabilityHigh, ReliabilityMedium, ReliabilityLow:
		return true
	}
	return false
}

// VerificationStatus is the per-claim verdict.
type VerificationStatus string

const (
	ClaimVerified     VerificationStatus = "verified"
	ClaimUnverified   VerificationStatus = "unverified"
	ClaimContradicted VerificationStatus = "contradicted"
)

// VerificationResult is the verdict for a single extracted claim.
type VerificationResult struct {
	ClaimID        string             `json:"claim_id"`
	ClaimText      string             `json:"claim_text"`
	Status         VerificationStatus `json:"status"`
	Confidence     float64            `json:"confidence"`
	EvidenceFound  string             `json:"evidence_found,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	CorrectionHint string             `json:"correction_hint,omitempty"`
}

// Verification is the output of checking an Extraction's claims against the
// source text.
type Verification struct {
	ArxivID            string               `json:"arxiv_id"`
	TotalClaims        int                  `json:"total_claims"`
	VerifiedCount      int                  `json:"verified_count"`
	UnverifiedCount    int                  `json:"unverified_count"`
	ContradictedCount  int                  `json:"contradicted_count"`
	OverallReliability Reliability          `json:"overall_reliability"`
	Results            []VerificationResult `json:"results"`
	Summary            string               `json:"summary,omitempty"`
	CorrectionsNeeded  []string             `json:"corrections_needed"`
}

// VerificationRate is the share of claims that verified, 1.0 when there
// were no claims to check.
func (v *Verification) VerificationRate() float64 {
	if v.TotalClaims == 0 {
		return 1.0
	}
	return float64(v.VerifiedCount) / float64(v.TotalClaims)
}

// Validate enforces the count identity
// verified + unverified + contradicted == total == len(results),
// a defined reliability level, and, when an extraction is supplied, that
// every result's claim id exists in that extraction.
func (v *Verification) Validate(extraction *Extraction) error {
	if v.ArxivID == "" {
		return eris.New("verification: missing arxiv_id")
	}
	if !v.OverallReliability.Valid() {
		return eris.Errorf("verification: unknown reliability %q", v.OverallReliability)
	}
	sum := v.VerifiedCount + v.UnverifiedCount + v.ContradictedCount
	if sum != v.TotalClaims {
		return eris.Errorf("verification: counts %d+%d+%d != total %d",
			v.VerifiedCount, v.UnverifiedCount, v.ContradictedCount, v.TotalClaims)
	}
	if len(v.Results) != v.TotalClaims {
		return eris.Errorf("verification: %d results but total_claims %d", len(v.Results), v.TotalClaims)
	}
	if extraction != nil {
		known := extraction.ClaimIDs()
		for _, r := range v.Results {
			if !known[r.ClaimID] {
				return eris.Errorf("verification: result for unknown claim_id %q", r.ClaimID)
			}
		}
	}
	if v.CorrectionsNeeded == nil {
		v.CorrectionsNeeded = []string{}
	}
	return nil
}
