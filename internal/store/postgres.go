package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/db-inlee/paper-digest-agent/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, extracted so tests
// can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pipeline_jobs (
	job_id      TEXT PRIMARY KEY,
	scope       TEXT NOT NULL,
	arxiv_id    TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	run_date    TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_pipeline_jobs_arxiv_id ON pipeline_jobs(arxiv_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_jobs_state ON pipeline_jobs(state);
CREATE INDEX IF NOT EXISTS idx_pipeline_jobs_run_date ON pipeline_jobs(run_date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveJob(ctx context.Context, job model.PipelineJob) error {
	var finished any
	if !job.FinishedAt.IsZero() {
		finished = job.FinishedAt.UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_jobs (job_id, scope, arxiv_id, title, run_date, state, retry_count, error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (job_id) DO UPDATE SET
		   state = EXCLUDED.state,
		   retry_count = EXCLUDED.retry_count,
		   error = EXCLUDED.error,
		   finished_at = EXCLUDED.finished_at`,
		job.JobID, job.Scope, job.ArxivID, job.Title, job.Date,
		string(job.State), job.RetryCount, job.Error, job.StartedAt.UTC(), finished,
	)
	return eris.Wrapf(err, "postgres: save job %s", job.JobID)
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.PipelineJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT job_id, scope, arxiv_id, title, run_date, state, retry_count, error, started_at, finished_at
		 FROM pipeline_jobs WHERE job_id = $1`, jobID)
	job, err := scanPgJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	return job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.PipelineJob, error) {
	query, args := buildListQuery(filter, "$")
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var out []model.PipelineJob
	for rows.Next() {
		job, err := scanPgJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		out = append(out, *job)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list jobs")
}

func (s *PostgresStore) LatestJob(ctx context.Context, arxivID string) (*model.PipelineJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT job_id, scope, arxiv_id, title, run_date, state, retry_count, error, started_at, finished_at
		 FROM pipeline_jobs WHERE arxiv_id = $1 ORDER BY started_at DESC LIMIT 1`, arxivID)
	job, err := scanPgJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: latest job for %s", arxivID)
	}
	return job, nil
}

func scanPgJob(row pgx.Row) (*model.PipelineJob, error) {
	var (
		job      model.PipelineJob
		state    string
		finished *time.Time
	)
	err := row.Scan(&job.JobID, &job.Scope, &job.ArxivID, &job.Title, &job.Date,
		&state, &job.RetryCount, &job.Error, &job.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	job.State = model.JobState(state)
	if finished != nil {
		job.FinishedAt = *finished
	}
	return &job, nil
}
