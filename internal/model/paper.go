package model

// Paper is the metadata handed to the deep pipeline by the discovery layer.
type Paper struct {
	ArxivID  string `json:"arxiv_id"`
	Title    string `json:"title"`
	Abstract string `json:"abstract,omitempty"`
	PDFURL   string `json:"pdf_url,omitempty"`
	Date     string `json:"date,omitempty"` // YYYY-MM-DD run date
}

// ParseMode records which parser produced the structured text.
type ParseMode string

const (
	ParseModeFull ParseMode = "full" // structured section-level parse
	ParseModeText ParseMode = "text" // plain text fallback
	ParseModeLite ParseMode = "lite" // abstract only, no full text
)

// ParsedDoc is the structured text the document parser hands to extraction.
type ParsedDoc struct {
	ArxivID  string    `json:"arxiv_id"`
	Title    string    `json:"title"`
	Abstract string    `json:"abstract"`
	Sections []Section `json:"sections,omitempty"`
	Mode     ParseMode `json:"mode"`
}

// Section is one titled block of parsed body text.
type Section struct {
	Title string `json:"title"`
	Text  string `json:"text"`
	Page  int    `json:"page,omitempty"`
}

// FullText joins the parsed sections into a single prompt-ready string.
// Returns "" in lite mode so callers can fall back to the abstract.
func (d *ParsedDoc) FullText() string {
	if d == nil || len(d.Sections) == 0 {
		return ""
	}
	var out string
	for i, s := range d.Sections {
		if i > 0 {
			out += "\n\n"
		}
		if s.Title != "" {
			out += "## " + s.Title + "\n"
		}
		out += s.Text
	}
	return out
}
