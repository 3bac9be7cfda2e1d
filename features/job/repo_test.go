package job_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragline/features/job"
	"ragline/internal/rag"
)

var jobColumns = []string{"id", "document_id", "stage", "error", "indexed", "retries", "created_at"}

func TestPostgresRepo_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO failed_jobs (document_id, stage, error, indexed) VALUES ($1, $2, $3, $4) RETURNING id, created_at, retries")).
		WithArgs("doc-1", "embedding", "boom", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "retries"}).AddRow("job-1", now, 0))

	j := &job.Job{DocumentID: "doc-1", Stage: "embedding", Error: "boom", Indexed: 2}
	require.NoError(t, job.NewPostgresRepo(db).Save(context.Background(), j))
	assert.Equal(t, "job-1", j.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, document_id, stage, error, indexed, retries, created_at FROM failed_jobs ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(jobColumns).
			AddRow("job-2", "doc-2", "index", "down", 0, 0, time.Now()).
			AddRow("job-1", "doc-1", "embedding", "boom", 3, 1, time.Now()))

	jobs, err := job.NewPostgresRepo(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, 3, jobs[1].Indexed)
}

func TestPostgresRepo_GetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM failed_jobs WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = job.NewPostgresRepo(db).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, rag.ErrNotFound)
}

func TestPostgresRepo_DeleteAndCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := job.NewPostgresRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM failed_jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "job-1"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM failed_jobs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
