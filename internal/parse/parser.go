// Package parse models the external document-parser boundary. The pipeline
// only needs a ParsedDoc; how it is produced (structured parse service,
// plain-text extraction, or abstract-only lite mode) is a fallback chain
// hidden behind the Parser interface.
package parse

import (
	"context"

	"go.uber.org/zap"

	"github.com/db-inlee/paper-digest-agent/internal/model"
)

// Parser converts paper metadata plus its PDF into structured text.
type Parser interface {
	Parse(ctx context.Context, paper model.Paper) (*model.ParsedDoc, error)
}

// Chain tries each parser in order and falls back to a lite document
// (abstract only) when all of them fail. Parsing therefore never fails the
// pipeline; it only degrades the extraction mode.
type Chain struct {
	parsers []Parser
}

// NewChain builds the fallback chain.
func NewChain(parsers ...Parser) *Chain {
	return &Chain{parsers: parsers}
}

func (c *Chain) Parse(ctx context.Context, paper model.Paper) (*model.ParsedDoc, error) {
	for _, p := range c.parsers {
		doc, err := p.Parse(ctx, paper)
		if err == nil && doc != nil {
			return doc, nil
		}
		if err != nil {
			zap.L().Warn("parse: parser failed, falling back",
				zap.String("arxiv_id", paper.ArxivID),
				zap.Error(err),
			)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	zap.L().Info("parse: no full text available, using lite mode",
		zap.String("arxiv_id", paper.ArxivID),
	)
	return &model.ParsedDoc{
		ArxivID:  paper.ArxivID,
		Title:    paper.Title,
		Abstract: paper.Abstract,
		Mode:     model.ParseModeLite,
	}, nil
}
