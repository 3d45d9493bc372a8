// Package store persists pipeline job history so terminal runs survive
// process restarts, unlike the in-memory registry which only tracks the
// live process.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/db-inlee/paper-digest-agent/internal/model"
)

// ErrNotFound means no job row matches the query.
var ErrNotFound = eris.New("store: job not found")

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	State   model.JobState `json:"state,omitempty"`
	ArxivID string         `json:"arxiv_id,omitempty"`
	Date    string         `json:"date,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Offset  int            `json:"offset,omitempty"`
}

// Store defines the job-history persistence interface.
type Store interface {
	// SaveJob upserts a job by its id; finishing a job overwrites the
	// running row it wrote at start.
	SaveJob(ctx context.Context, job model.PipelineJob) error
	GetJob(ctx context.Context, jobID string) (*model.PipelineJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.PipelineJob, error)
	// LatestJob returns the most recently started job for a paper.
	LatestJob(ctx context.Context, arxivID string) (*model.PipelineJob, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store backend.
type Config struct {
	Driver string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// New opens the configured backend and runs migrations.
func New(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "jobs.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DSN)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
