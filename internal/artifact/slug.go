package artifact

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxTitleSlug caps the title part of a paper slug.
const maxTitleSlug = 30

var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug builds the per-paper directory name from an arxiv id and title,
// e.g. "2601.18491-agentdog-behavior-aware". Diacritics are folded and
// anything outside [a-z0-9 ] is dropped before hyphenation.
func Slug(arxivID, title string) string {
	folded, _, err := transform.String(deaccent, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}

	titleSlug := strings.Join(strings.Fields(b.String()), "-")
	if len(titleSlug) > maxTitleSlug {
		titleSlug = strings.TrimRight(titleSlug[:maxTitleSlug], "-")
	}
	if titleSlug == "" {
		return arxivID
	}
	return arxivID + "-" + titleSlug
}
