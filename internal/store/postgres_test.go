package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/db-inlee/paper-digest-agent/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit
// testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_SaveJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	job := sampleJob("2602.00001", model.JobCompleted)

	mock.ExpectExec(`INSERT INTO pipeline_jobs`).
		WithArgs(job.JobID, job.Scope, job.ArxivID, job.Title, job.Date,
			string(job.State), job.RetryCount, job.Error, job.StartedAt.UTC(), job.FinishedAt.UTC()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveJob(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT job_id, scope, arxiv_id, title, run_date, state, retry_count, error, started_at, finished_at\s+FROM pipeline_jobs WHERE job_id = \$1`).
		WithArgs("missing-job").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetJob(context.Background(), "missing-job")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Now().UTC().Truncate(time.Second)
	finished := started.Add(time.Minute)

	mock.ExpectQuery(`SELECT job_id, .* FROM pipeline_jobs WHERE job_id = \$1`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"job_id", "scope", "arxiv_id", "title", "run_date", "state",
			"retry_count", "error", "started_at", "finished_at",
		}).AddRow("job-1", "2602.00001", "2602.00001", "Paper", "2026-08-30",
			"completed", 2, "", started, &finished))

	got, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobCompleted, got.State)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, finished, got.FinishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListJobs_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	started := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(`SELECT .* FROM pipeline_jobs WHERE state = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("error", 100).
		WillReturnRows(pgxmock.NewRows([]string{
			"job_id", "scope", "arxiv_id", "title", "run_date", "state",
			"retry_count", "error", "started_at", "finished_at",
		}).AddRow("job-2", "2602.00002", "2602.00002", "Paper", "2026-08-30",
			"error", 0, "stage extract: unavailable", started, (*time.Time)(nil)))

	jobs, err := s.ListJobs(context.Background(), JobFilter{State: model.JobError})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "2602.00002", jobs[0].ArxivID)
	assert.True(t, jobs[0].FinishedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM pipeline_jobs WHERE arxiv_id = \$1 ORDER BY started_at DESC LIMIT 1`).
		WithArgs("9999.00000").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestJob(context.Background(), "9999.00000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
