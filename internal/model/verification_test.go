package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleExtraction() *Extraction {
	return &Extraction{
		ArxivID: "2601.12345",
		Title:   "Test Paper",
		ProblemDefinition: ProblemDefinition{
			Statement: "slow inference",
		},
		MethodComponents: []MethodComponent{
			{Name: "router", Description: "routes tokens"},
			{Name: "cache", Description: "reuses activations"},
		},
		Claims: []Claim{
			{ClaimID: "c1", Text: "2x faster", ClaimType: ClaimResult, Confidence: 0.9},
			{ClaimID: "c2", Text: "no accuracy loss", ClaimType: ClaimComparison, Confidence: 0.8},
		},
		ExtractionMode: ExtractionFull,
	}
}

func sampleVerification() *Verification {
	return &Verification{
		ArxivID:            "2601.12345",
		TotalClaims:        2,
		VerifiedCount:      1,
		UnverifiedCount:    1,
		ContradictedCount:  0,
		OverallReliability: ReliabilityMedium,
		Results: []VerificationResult{
			{ClaimID: "c1", Status: ClaimVerified, Confidence: 0.95},
			{ClaimID: "c2", Status: ClaimUnverified, Confidence: 0.5},
		},
		CorrectionsNeeded: []string{"c2: soften comparison claim"},
	}
}

func TestVerificationValidate_CountIdentity(t *testing.T) {
	v := sampleVerification()
	require.NoError(t, v.Validate(sampleExtraction()))

	v.VerifiedCount = 2 // 2+1+0 != 2
	err := v.Validate(sampleExtraction())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "counts")
}

func TestVerificationValidate_ResultsLengthMustMatchTotal(t *testing.T) {
	v := sampleVerification()
	v.Results = v.Results[:1]
	err := v.Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "results")
}

func TestVerificationValidate_UnknownClaimID(t *testing.T) {
	v := sampleVerification()
	v.Results[1].ClaimID = "c999"
	err := v.Validate(sampleExtraction())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c999")
}

func TestVerificationValidate_UnknownReliability(t *testing.T) {
	v := sampleVerification()
	v.OverallReliability = "excellent"
	require.Error(t, v.Validate(nil))
}

func TestVerificationValidate_NormalizesCorrections(t *testing.T) {
	v := sampleVerification()
	v.CorrectionsNeeded = nil
	require.NoError(t, v.Validate(nil))
	assert.NotNil(t, v.CorrectionsNeeded)
}

func TestVerificationRate(t *testing.T) {
	v := sampleVerification()
	assert.InDelta(t, 0.5, v.VerificationRate(), 1e-9)

	empty := &Verification{ArxivID: "x", OverallReliability: ReliabilityHigh, Results: []VerificationResult{}}
	assert.Equal(t, 1.0, empty.VerificationRate())
}

func TestExtractionValidate_DuplicateClaimID(t *testing.T) {
	e := sampleExtraction()
	e.Claims[1].ClaimID = "c1"
	err := e.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestExtractionValidate_ConfidenceRange(t *testing.T) {
	e := sampleExtraction()
	e.Claims[0].Confidence = 1.5
	require.Error(t, e.Validate())
}

func TestExtractionValidate_NormalizesNilEvidence(t *testing.T) {
	e := sampleExtraction()
	require.NoError(t, e.Validate())
	for _, c := range e.Claims {
		assert.NotNil(t, c.Evidence)
	}
	assert.NotNil(t, e.ProblemDefinition.Evidence)
	for _, mc := range e.MethodComponents {
		assert.NotNil(t, mc.Evidence)
	}
}

func TestDeltaValidate_ReferentialConsistency(t *testing.T) {
	d := &Delta{
		ArxivID:         "2601.12345",
		OneLineTakeaway: "replaces X with Y",
		CoreDeltas: []CoreDelta{
			{Axis: "control_paradigm", OldApproach: "X", NewApproach: "Y", WhyBetter: "cheaper"},
		},
	}
	require.NoError(t, d.Validate(sampleExtraction()))
	assert.NotNil(t, d.Tradeoffs)

	other := sampleExtraction()
	other.ArxivID = "2601.99999"
	require.Error(t, d.Validate(other))
}

func TestDeltaValidate_RequiresCoreDelta(t *testing.T) {
	d := &Delta{ArxivID: "2601.12345", OneLineTakeaway: "x"}
	require.Error(t, d.Validate(nil))
}
