package taskstore

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestStore_CreateTask(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectExec("INSERT INTO crawl_tasks").
		WithArgs("ab12cd34", "https://example.com", "queued").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewStore(mock)
	require.NoError(t, store.CreateTask(context.Background(), "ab12cd34", "https://example.com"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateTaskStatus(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectExec("UPDATE crawl_tasks").
		WithArgs("ab12cd34", "running", 7).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewStore(mock)
	require.NoError(t, store.UpdateTaskStatus(context.Background(), "ab12cd34", "running", 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateTaskStatus_UnknownTask(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectExec("UPDATE crawl_tasks").
		WithArgs("missing", "running", 0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewStore(mock)
	err := store.UpdateTaskStatus(context.Background(), "missing", "running", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetTask(t *testing.T) {
	t.Parallel()

	now := time.Now()
	mock := newMock(t)
	mock.ExpectQuery("SELECT id, base_url, status, pages_crawled").
		WithArgs("ab12cd34").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "base_url", "status", "pages_crawled", "created_at", "updated_at",
		}).AddRow("ab12cd34", "https://example.com", "completed", 42, now, now))

	store := NewStore(mock)
	task, err := store.GetTask(context.Background(), "ab12cd34")
	require.NoError(t, err)
	require.Equal(t, "completed", task.Status)
	require.Equal(t, 42, task.PagesCrawled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetTask_NotFound(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.ExpectQuery("SELECT id, base_url, status, pages_crawled").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "base_url", "status", "pages_crawled", "created_at", "updated_at",
		}))

	store := NewStore(mock)
	_, err := store.GetTask(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
