// Package store records batch runs in PostgreSQL.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Run is one recorded CLI invocation.
type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Commands   int             `json:"commands"`
	Steps      int             `json:"steps"`
	Failed     bool            `json:"failed"`
	Result     json.RawMessage `json:"result"`
}

const (
	sqlCreateRuns = `
        CREATE TABLE IF NOT EXISTS runs (
            id          UUID PRIMARY KEY,
            started_at  TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL,
            commands    INTEGER NOT NULL,
            steps       INTEGER NOT NULL,
            failed      BOOLEAN NOT NULL,
            result      JSONB NOT NULL
        );
    `
	sqlInsertRun = `
        INSERT INTO runs (id, started_at, finished_at, commands, steps, failed, result)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	sqlListRuns = `
        SELECT id, started_at, finished_at, commands, steps, failed, result
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1;
    `
)

// Store provides a PostgreSQL run history.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Connect opens a pool for url, wraps it in a Store and makes sure the
// schema exists. The returned func closes the pool.
func Connect(ctx context.Context, url string, logger *zap.Logger) (*Store, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	s, err := New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// EnsureSchema creates the runs table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateRuns); err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}
	return nil
}

// SaveRun inserts r.
func (s *Store) SaveRun(ctx context.Context, r Run) error {
	result := r.Result
	if len(result) == 0 || string(result) == "null" {
		result = json.RawMessage("{}")
	}

	tag, err := s.pool.Exec(ctx, sqlInsertRun,
		r.ID, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.Commands, r.Steps, r.Failed, []byte(result),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("failed to insert run %s: %d rows affected", r.ID, tag.RowsAffected())
	}
	s.log.Debug("Recorded run", zap.String("run_id", r.ID), zap.Bool("failed", r.Failed))
	return nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, sqlListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var result []byte
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Commands, &r.Steps, &r.Failed, &result); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Result = json.RawMessage(result)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}
