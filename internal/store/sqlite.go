package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/db-inlee/paper-digest-agent/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS pipeline_jobs (
	job_id      TEXT PRIMARY KEY,
	scope       TEXT NOT NULL,
	arxiv_id    TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL DEFAULT '',
	run_date    TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_pipeline_jobs_arxiv_id ON pipeline_jobs(arxiv_id);
CREATE INDEX IF NOT EXISTS idx_pipeline_jobs_state ON pipeline_jobs(state);
CREATE INDEX IF NOT EXISTS idx_pipeline_jobs_run_date ON pipeline_jobs(run_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveJob(ctx context.Context, job model.PipelineJob) error {
	var finished any
	if !job.FinishedAt.IsZero() {
		finished = job.FinishedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_jobs (job_id, scope, arxiv_id, title, run_date, state, retry_count, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
		   state = excluded.state,
		   retry_count = excluded.retry_count,
		   error = excluded.error,
		   finished_at = excluded.finished_at`,
		job.JobID, job.Scope, job.ArxivID, job.Title, job.Date,
		string(job.State), job.RetryCount, job.Error, job.StartedAt.UTC(), finished,
	)
	return eris.Wrapf(err, "sqlite: save job %s", job.JobID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.PipelineJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, scope, arxiv_id, title, run_date, state, retry_count, error, started_at, finished_at
		 FROM pipeline_jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}
	return job, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.PipelineJob, error) {
	query, args := buildListQuery(filter, "?")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var out []model.PipelineJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		out = append(out, *job)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list jobs")
}

func (s *SQLiteStore) LatestJob(ctx context.Context, arxivID string) (*model.PipelineJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, scope, arxiv_id, title, run_date, state, retry_count, error, started_at, finished_at
		 FROM pipeline_jobs WHERE arxiv_id = ? ORDER BY started_at DESC LIMIT 1`, arxivID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: latest job for %s", arxivID)
	}
	return job, nil
}

// scannable covers both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanJob(row scannable) (*model.PipelineJob, error) {
	var (
		job      model.PipelineJob
		state    string
		finished sql.NullTime
	)
	err := row.Scan(&job.JobID, &job.Scope, &job.ArxivID, &job.Title, &job.Date,
		&state, &job.RetryCount, &job.Error, &job.StartedAt, &finished)
	if err != nil {
		return nil, err
	}
	job.State = model.JobState(state)
	if finished.Valid {
		job.FinishedAt = finished.Time
	}
	return &job, nil
}

// buildListQuery assembles the filtered listing query. placeholder is "?"
// for sqlite and "$" for postgres positional parameters.
func buildListQuery(filter JobFilter, placeholder string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	next := func() string {
		if placeholder == "?" {
			return "?"
		}
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		conds = append(conds, "state = "+next())
	}
	if filter.ArxivID != "" {
		args = append(args, filter.ArxivID)
		conds = append(conds, "arxiv_id = "+next())
	}
	if filter.Date != "" {
		args = append(args, filter.Date)
		conds = append(conds, "run_date = "+next())
	}

	query := `SELECT job_id, scope, arxiv_id, title, run_date, state, retry_count, error, started_at, finished_at FROM pipeline_jobs`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY started_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += " LIMIT " + next()
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += " OFFSET " + next()
	}
	return query, args
}
