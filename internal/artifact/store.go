// Package artifact persists per-paper, per-stage analysis results as JSON
// files under a reports directory, one subdirectory per paper slug. Writes
// are last-writer-wins per (paper, stage) key and atomic, so readers never
// observe a partial record.
package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/db-inlee/paper-digest-agent/internal/model"
)

// Stage names the per-paper artifact kinds.
type Stage string

const (
	StageExtraction   Stage = "extraction"
	StageDelta        Stage = "delta"
	StageScoring      Stage = "scoring"
	StageVerification Stage = "verification"
)

// ReportFile is the rendered markdown summary stored next to the JSON
// artifacts.
const ReportFile = "deep.md"

// ErrNotFound is returned by Get when the (paper, stage) artifact has not
// been produced. Collaborators treat it as "absent", not as a failure.
var ErrNotFound = eris.New("artifact: not found")

// Store is the file-backed artifact store.
type Store struct {
	reportsDir string
}

// NewStore creates the reports directory if needed.
func NewStore(baseDir string) (*Store, error) {
	dir := filepath.Join(baseDir, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "artifact: create %s", dir)
	}
	return &Store{reportsDir: dir}, nil
}

// Dir returns the reports directory path.
func (s *Store) Dir() string {
	return s.reportsDir
}

// ResolveSlug finds the existing directory for an arxiv id. The second
// return is false when no artifacts exist for the paper yet.
func (s *Store) ResolveSlug(arxivID string) (string, bool) {
	entries, err := os.ReadDir(s.reportsDir)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		if name == arxivID || strings.HasPrefix(name, arxivID+"-") {
			return name, true
		}
	}
	return "", false
}

// paperDir resolves (or, when title is non-empty, creates the name for)
// the paper's directory.
func (s *Store) paperDir(arxivID, title string) string {
	if slug, ok := s.ResolveSlug(arxivID); ok {
		return filepath.Join(s.reportsDir, slug)
	}
	return filepath.Join(s.reportsDir, Slug(arxivID, title))
}

// Put writes one stage artifact for a paper, overwriting any previous
// record for the same (arxiv id, stage) key. title is only used to name
// the paper directory on first write; pass "" when unknown.
func (s *Store) Put(arxivID, title string, stg Stage, record any) error {
	if arxivID == "" {
		return eris.New("artifact: empty arxiv id")
	}
	dir := s.paperDir(arxivID, title)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "artifact: create %s", dir)
	}

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "artifact: marshal %s/%s", arxivID, stg)
	}
	return writeAtomic(filepath.Join(dir, string(stg)+".json"), raw)
}

// Get reads one stage artifact into out. Returns ErrNotFound when the
// paper or stage has no record.
func (s *Store) Get(arxivID string, stg Stage, out any) error {
	slug, ok := s.ResolveSlug(arxivID)
	if !ok {
		return ErrNotFound
	}
	raw, err := os.ReadFile(filepath.Join(s.reportsDir, slug, string(stg)+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return eris.Wrapf(err, "artifact: read %s/%s", arxivID, stg)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return eris.Wrapf(err, "artifact: decode %s/%s", arxivID, stg)
	}
	return nil
}

// Extraction loads the extraction artifact for a paper.
func (s *Store) Extraction(arxivID string) (*model.Extraction, error) {
	var out model.Extraction
	if err := s.Get(arxivID, StageExtraction, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delta loads the delta artifact for a paper.
func (s *Store) Delta(arxivID string) (*model.Delta, error) {
	var out model.Delta
	if err := s.Get(arxivID, StageDelta, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Scoring loads the scoring artifact for a paper.
func (s *Store) Scoring(arxivID string) (*model.Scoring, error) {
	var out model.Scoring
	if err := s.Get(arxivID, StageScoring, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verification loads the verification artifact for a paper.
func (s *Store) Verification(arxivID string) (*model.Verification, error) {
	var out model.Verification
	if err := s.Get(arxivID, StageVerification, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutReport writes the rendered deep.md for a paper.
func (s *Store) PutReport(arxivID, title, markdown string) error {
	dir := s.paperDir(arxivID, title)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "artifact: create %s", dir)
	}
	return writeAtomic(filepath.Join(dir, ReportFile), []byte(markdown))
}

// Report reads the rendered deep.md for a paper.
func (s *Store) Report(arxivID string) (string, error) {
	slug, ok := s.ResolveSlug(arxivID)
	if !ok {
		return "", ErrNotFound
	}
	raw, err := os.ReadFile(filepath.Join(s.reportsDir, slug, ReportFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", eris.Wrapf(err, "artifact: read report %s", arxivID)
	}
	return string(raw), nil
}

// HasReport reports whether a paper already has a rendered report, used to
// skip already-processed papers in the daily run.
func (s *Store) HasReport(arxivID string) bool {
	_, err := s.Report(arxivID)
	return err == nil
}

// ListSlugs returns all paper slugs with at least one artifact, newest id
// first.
func (s *Store) ListSlugs() []string {
	entries, err := os.ReadDir(s.reportsDir)
	if err != nil {
		return nil
	}
	var slugs []string
	for _, e := range entries {
		if e.IsDir() {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(slugs)))
	return slugs
}

// writeAtomic writes via a temp file and rename so concurrent readers see
// either the old or the new record, never a torn one.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "artifact: temp file for %s", path)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrapf(err, "artifact: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "artifact: close %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "artifact: rename %s", path)
	}
	return nil
}
