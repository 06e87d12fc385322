// Package taskstore records crawl task status in Postgres. The pipeline works
// without it; it exists so operators can answer "what is task X doing" without
// reading broker queues.
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Task is one crawl task's persisted status row.
type Task struct {
	ID           string
	BaseURL      string
	Status       string
	PagesCrawled int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ErrNotFound is returned by GetTask for an unknown task id.
var ErrNotFound = errors.New("task not found")

// DB is the slice of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists tasks in a crawl_tasks table.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS crawl_tasks (
	id            TEXT PRIMARY KEY,
	base_url      TEXT NOT NULL,
	status        TEXT NOT NULL,
	pages_crawled INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the crawl_tasks table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create crawl_tasks table: %w", err)
	}
	return nil
}

// CreateTask inserts a queued task row. Re-inserting the same id is a no-op so
// duplicate init messages stay harmless.
func (s *Store) CreateTask(ctx context.Context, taskID, baseURL string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO crawl_tasks (id, base_url, status) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		taskID, baseURL, "queued",
	)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", taskID, err)
	}
	return nil
}

// UpdateTaskStatus moves a task to the given status. A pagesCrawled of zero
// leaves the stored count alone, since batch handlers do not always know it.
func (s *Store) UpdateTaskStatus(ctx context.Context, taskID, status string, pagesCrawled int) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE crawl_tasks
		 SET status = $2,
		     pages_crawled = GREATEST(pages_crawled, $3),
		     updated_at = now()
		 WHERE id = $1`,
		taskID, status, pagesCrawled,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", taskID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update task %s: %w", taskID, ErrNotFound)
	}
	return nil
}

// GetTask loads one task row.
func (s *Store) GetTask(ctx context.Context, taskID string) (Task, error) {
	var t Task
	err := s.db.QueryRow(ctx,
		`SELECT id, base_url, status, pages_crawled, created_at, updated_at
		 FROM crawl_tasks WHERE id = $1`,
		taskID,
	).Scan(&t.ID, &t.BaseURL, &t.Status, &t.PagesCrawled, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("select task %s: %w", taskID, err)
	}
	return t, nil
}
