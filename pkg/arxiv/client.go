// Package arxiv resolves paper metadata from the arXiv Atom API.
package arxiv

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/db-inlee/paper-digest-agent/internal/model"
	"github.com/db-inlee/paper-digest-agent/internal/resilience"
)

// DefaultBaseURL is the public arXiv query endpoint.
const DefaultBaseURL = "https://export.arxiv.org/api/query"

// ErrNotFound means the id resolved to no entry.
var ErrNotFound = eris.New("arxiv: paper not found")

// idPattern matches new-style arXiv identifiers with an optional version.
var idPattern = regexp.MustCompile(`(\d{4}\.\d{4,5})(v\d+)?`)

// Client fetches paper metadata by arXiv id or URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL overrides the query endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// NewClient creates an arXiv client. The default limiter honors the API's
// one-request-per-3-seconds guideline.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(3*time.Second), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeID extracts the bare arXiv id from an id, abs/pdf URL, or
// versioned id. Returns an error when no id is recognizable.
func NormalizeID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", eris.New("arxiv: empty reference")
	}
	m := idPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", eris.Errorf("arxiv: no id in %q", ref)
	}
	return m[1], nil
}

// atom mirrors the subset of the Atom feed the client reads.
type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Summary   string     `xml:"summary"`
	Published string     `xml:"published"`
	Links     []atomLink `xml:"link"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

// Resolve fetches metadata for one paper by id or URL.
func (c *Client) Resolve(ctx context.Context, ref string) (*model.Paper, error) {
	id, err := NormalizeID(ref)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "arxiv: rate limit wait")
	}

	q := url.Values{}
	q.Set("id_list", id)
	q.Set("max_results", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &resilience.TransientError{Err: eris.Wrap(err, "arxiv: query")}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("arxiv: query returned %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, &resilience.TransientError{Err: err, StatusCode: resp.StatusCode}
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "arxiv: read response")
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, eris.Wrap(err, "arxiv: decode feed")
	}
	if len(feed.Entries) == 0 {
		return nil, ErrNotFound
	}
	entry := feed.Entries[0]
	// A feed can answer an unknown id with a stub entry carrying no id link.
	if !strings.Contains(entry.ID, id) {
		return nil, ErrNotFound
	}

	return entryToPaper(id, entry), nil
}

func entryToPaper(id string, entry atomEntry) *model.Paper {
	paper := &model.Paper{
		ArxivID:  id,
		Title:    collapseWhitespace(entry.Title),
		Abstract: collapseWhitespace(entry.Summary),
	}
	if len(entry.Published) >= 10 {
		paper.Date = entry.Published[:10]
	}
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			paper.PDFURL = link.Href
			break
		}
	}
	if paper.PDFURL == "" {
		paper.PDFURL = "https://arxiv.org/pdf/" + id
	}
	return paper
}

// collapseWhitespace flattens the newline-wrapped text arXiv feeds carry.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
