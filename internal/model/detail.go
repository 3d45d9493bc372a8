package model

// DetailRecord is the denormalized per-paper view assembled from the latest
// stage artifacts. Any section may be nil while the pipeline is mid-flight
// or after a partial failure; consumers render absent sections as empty.
type DetailRecord struct {
	ArxivID      string        `json:"arxiv_id"`
	Slug         string        `json:"slug"`
	Extraction   *Extraction   `json:"extraction"`
	Delta        *Delta        `json:"delta"`
	Scoring      *Scoring      `json:"scoring"`
	Verification *Verification `json:"verification"`
	Degraded     bool          `json:"degraded"` // verification stayed below high after exhausting retries
}
