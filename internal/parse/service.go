package parse

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/db-inlee/paper-digest-agent/internal/model"
	"github.com/db-inlee/paper-digest-agent/internal/resilience"
)

// ServiceParser calls an HTTP document-parsing service (GROBID behind a
// thin JSON shim) that returns section-level structured text.
type ServiceParser struct {
	baseURL string
	client  *http.Client
}

// Option configures a ServiceParser.
type Option func(*ServiceParser)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *ServiceParser) {
		p.client = c
	}
}

// NewServiceParser points at the parse service base URL.
func NewServiceParser(baseURL string, opts ...Option) *ServiceParser {
	p := &ServiceParser{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type parseRequest struct {
	ArxivID string `json:"arxiv_id"`
	PDFURL  string `json:"pdf_url"`
}

type parseResponse struct {
	Success  bool            `json:"success"`
	Title    string          `json:"title"`
	Abstract string          `json:"abstract"`
	Sections []model.Section `json:"sections"`
}

func (p *ServiceParser) Parse(ctx context.Context, paper model.Paper) (*model.ParsedDoc, error) {
	if p.baseURL == "" {
		return nil, eris.New("parse: service url not configured")
	}

	pdfURL := paper.PDFURL
	if pdfURL == "" {
		pdfURL = "https://arxiv.org/pdf/" + paper.ArxivID + ".pdf"
	}

	body, err := json.Marshal(parseRequest{ArxivID: paper.ArxivID, PDFURL: pdfURL})
	if err != nil {
		return nil, eris.Wrap(err, "parse: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/parse", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "parse: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "parse: call service")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.Errorf("parse: service returned %d: %s", resp.StatusCode, raw)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var out parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "parse: decode response")
	}
	if !out.Success || len(out.Sections) == 0 {
		return nil, eris.Errorf("parse: service produced no sections for %s", paper.ArxivID)
	}

	title := out.Title
	if title == "" {
		title = paper.Title
	}
	abstract := out.Abstract
	if abstract == "" {
		abstract = paper.Abstract
	}

	return &model.ParsedDoc{
		ArxivID:  paper.ArxivID,
		Title:    title,
		Abstract: abstract,
		Sections: out.Sections,
		Mode:     model.ParseModeFull,
	}, nil
}
