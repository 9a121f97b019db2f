package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements Store and Reader for PostgreSQL.
type PostgreSQLStore struct {
	pool          *pgxpool.Pool
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewPostgreSQLStore creates the interactions table and starts retention cleanup.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, errors.New("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS interactions (
			id UUID PRIMARY KEY,
			request_id TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			feature TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			score DOUBLE PRECISION,
			cached BOOLEAN NOT NULL DEFAULT FALSE,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create interactions table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_interactions_timestamp ON interactions(timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_interactions_feature ON interactions(feature, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_interactions_request_id ON interactions(request_id)",
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &PostgreSQLStore{
		pool:          pool,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}
	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, store.cleanup)
	}
	return store, nil
}

const pgInsert = `INSERT INTO interactions (id, request_id, timestamp, feature, provider, model,
	outcome, error_kind, source, score, cached, duration_ms, input_tokens, output_tokens)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (id) DO NOTHING`

// WriteBatch sends all inserts in one pgx batch inside a transaction.
func (s *PostgreSQLStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(pgInsert, e.ID, e.RequestID, e.Timestamp, e.Feature, e.Provider, e.Model,
			e.Outcome, e.ErrorKind, e.Source, e.Score, e.Cached, e.DurationMs, e.InputTokens, e.OutputTokens)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert %d history entries: %w", len(entries), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Flush is a no-op, writes are synchronous.
func (s *PostgreSQLStore) Flush(_ context.Context) error { return nil }

// Close stops the cleanup goroutine. The pool belongs to the storage layer.
func (s *PostgreSQLStore) Close() error {
	if s.retentionDays > 0 {
		s.closeOnce.Do(func() { close(s.stopCleanup) })
	}
	return nil
}

// List returns entries newest first.
func (s *PostgreSQLStore) List(ctx context.Context, q Query) ([]Entry, error) {
	var where []string
	var args []any
	if q.Feature != "" {
		args = append(args, q.Feature)
		where = append(where, fmt.Sprintf("feature = $%d", len(args)))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since.UTC())
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}

	query := `SELECT id::text, request_id, timestamp, feature, provider, model, outcome, error_kind,
		source, score, cached, duration_ms, input_tokens, output_tokens FROM interactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, q.limit())
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	result := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Timestamp, &e.Feature, &e.Provider, &e.Model, &e.Outcome,
			&e.ErrorKind, &e.Source, &e.Score, &e.Cached, &e.DurationMs, &e.InputTokens, &e.OutputTokens); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return result, nil
}

// Summary aggregates per feature.
func (s *PostgreSQLStore) Summary(ctx context.Context, since time.Time) ([]FeatureSummary, error) {
	query := `SELECT feature, COUNT(*), COUNT(*) FILTER (WHERE outcome = 'error'),
		COALESCE(AVG(duration_ms), 0)::float8, AVG(score) FROM interactions`
	var args []any
	if !since.IsZero() {
		query += " WHERE timestamp >= $1"
		args = append(args, since.UTC())
	}
	query += " GROUP BY feature ORDER BY feature"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history summary: %w", err)
	}
	defer rows.Close()

	result := make([]FeatureSummary, 0)
	for rows.Next() {
		var fs FeatureSummary
		if err := rows.Scan(&fs.Feature, &fs.Requests, &fs.Errors, &fs.AvgDurationMs, &fs.AvgScore); err != nil {
			return nil, fmt.Errorf("failed to scan history summary row: %w", err)
		}
		result = append(result, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history summary rows: %w", err)
	}
	return result, nil
}

func (s *PostgreSQLStore) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	result, err := s.pool.Exec(ctx, "DELETE FROM interactions WHERE timestamp < $1", cutoff)
	if err != nil {
		slog.Error("failed to cleanup old history entries", "error", err)
		return
	}
	if result.RowsAffected() > 0 {
		slog.Info("cleaned up old history entries", "deleted", result.RowsAffected())
	}
}
