package model

import "github.com/rotisserie/eris"

// Recommendation is the fixed reading-priority enumeration.
type Recommendation string

const (
	RecommendMustRead     Recommendation = "must_read"
	RecommendWorthReading Recommendation = "worth_reading"
	RecommendSkim         Recommendation = "skim"
	RecommendSkip         Recommendation = "skip"
)

// recommendationLabels maps enum values to display labels.
var recommendationLabels = map[Recommendation]string{
	RecommendMustRead:     "Must Read",
	RecommendWorthReading: "Worth Reading",
	RecommendSkim:         "Skim",
	RecommendSkip:         "Skip",
}

// Known reports whether r is a member of the fixed enumeration.
func (r Recommendation) Known() bool {
	_, ok := recommendationLabels[r]
	return ok
}

// Label returns a display label, degrading unknown values to "Unrated"
// rather than failing rendering.
func (r Recommendation) Label() string {
	if label, ok := recommendationLabels[r]; ok {
		return label
	}
	return "Unrated"
}

// Score thresholds for deriving a recommendation from the 15-point total.
const (
	scoreMustRead     = 12
	scoreWorthReading = 8
	scoreSkim         = 5
)

// RecommendationFromTotal maps a 0-15 total onto the enumeration.
func RecommendationFromTotal(total int) Recommendation {
	switch {
	case total >= scoreMustRead:
		return RecommendMustRead
	case total >= scoreWorthReading:
		return RecommendWorthReading
	case total >= scoreSkim:
		return RecommendSkim
	default:
		return RecommendSkip
	}
}

// Scoring rates a paper on three fixed 0-5 axes.
type Scoring struct {
	ArxivID        string         `json:"arxiv_id"`
	Practicality   int            `json:"practicality"` // 0-5
	Codeability    int            `json:"codeability"`  // 0-5
	Signal         int            `json:"signal"`       // 0-5
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
	KeyStrength    string         `json:"key_strength,omitempty"`
	MainConcern    string         `json:"main_concern,omitempty"`
}

// Total is the combined 0-15 score.
func (s *Scoring) Total() int {
	return s.Practicality + s.Codeability + s.Signal
}

// Validate enforces the axis ranges. An unknown recommendation is not an
// error; it degrades at render time via Label.
func (s *Scoring) Validate() error {
	if s.ArxivID == "" {
		return eris.New("scoring: missing arxiv_id")
	}
	for name, v := range map[string]int{
		"practicality": s.Practicality,
		"codeability":  s.Codeability,
		"signal":       s.Signal,
	} {
		if v < 0 || v > 5 {
			return eris.Errorf("scoring: %s %d outside [0,5]", name, v)
		}
	}
	return nil
}
