package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// SQLite allows 999 bound parameters per statement.
const (
	maxSQLiteParams    = 999
	columnsPerEntry    = 15
	maxEntriesPerBatch = maxSQLiteParams / columnsPerEntry
)

// sqliteTimeFormat is fixed width so timestamps compare correctly as text
const sqliteTimeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements Store and Reader for SQLite.
type SQLiteStore struct {
	db            *sql.DB
	retentionDays int
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

// NewSQLiteStore creates the interactions table and starts retention cleanup.
func NewSQLiteStore(db *sql.DB, retentionDays int) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("database connection is required")
	}

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS interactions (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			feature TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			score REAL,
			cached INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
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
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	store := &SQLiteStore{
		db:            db,
		retentionDays: retentionDays,
		stopCleanup:   make(chan struct{}),
	}
	if retentionDays > 0 {
		go RunCleanupLoop(store.stopCleanup, store.cleanup)
	}
	return store, nil
}

// WriteBatch inserts entries in chunks that fit the parameter limit.
func (s *SQLiteStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	for i := 0; i < len(entries); i += maxEntriesPerBatch {
		end := min(i+maxEntriesPerBatch, len(entries))
		chunk := entries[i:end]

		placeholders := make([]string, len(chunk))
		values := make([]any, 0, len(chunk)*columnsPerEntry)
		for j, e := range chunk {
			placeholders[j] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
			var score any
			if e.Score != nil {
				score = *e.Score
			}
			values = append(values,
				e.ID,
				e.RequestID,
				e.Timestamp.UTC().Format(sqliteTimeFormat),
				e.Feature,
				e.Provider,
				e.Model,
				e.Outcome,
				e.ErrorKind,
				e.Source,
				score,
				e.Cached,
				e.DurationMs,
				e.InputTokens,
				e.OutputTokens,
				time.Now().UTC().Format(sqliteTimeFormat),
			)
		}

		query := `INSERT OR IGNORE INTO interactions (id, request_id, timestamp, feature, provider, model,
			outcome, error_kind, source, score, cached, duration_ms, input_tokens, output_tokens, created_at) VALUES ` +
			strings.Join(placeholders, ",")

		if _, err := s.db.ExecContext(ctx, query, values...); err != nil {
			return fmt.Errorf("failed to insert history batch %d: %w", i/maxEntriesPerBatch, err)
		}
	}
	return nil
}

// Flush is a no-op, writes are synchronous.
func (s *SQLiteStore) Flush(_ context.Context) error { return nil }

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *SQLiteStore) Close() error {
	if s.retentionDays > 0 {
		s.closeOnce.Do(func() { close(s.stopCleanup) })
	}
	return nil
}

// List returns entries newest first.
func (s *SQLiteStore) List(ctx context.Context, q Query) ([]Entry, error) {
	var where []string
	var args []any
	if q.Feature != "" {
		where = append(where, "feature = ?")
		args = append(args, q.Feature)
	}
	if !q.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, q.Since.UTC().Format(sqliteTimeFormat))
	}

	query := `SELECT id, request_id, timestamp, feature, provider, model, outcome, error_kind,
		source, score, cached, duration_ms, input_tokens, output_tokens FROM interactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, q.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	result := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var ts string
		var score sql.NullFloat64
		if err := rows.Scan(&e.ID, &e.RequestID, &ts, &e.Feature, &e.Provider, &e.Model, &e.Outcome,
			&e.ErrorKind, &e.Source, &score, &e.Cached, &e.DurationMs, &e.InputTokens, &e.OutputTokens); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Timestamp, err = time.Parse(sqliteTimeFormat, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse history timestamp %q: %w", ts, err)
		}
		if score.Valid {
			v := score.Float64
			e.Score = &v
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}
	return result, nil
}

// Summary aggregates per feature.
func (s *SQLiteStore) Summary(ctx context.Context, since time.Time) ([]FeatureSummary, error) {
	query := `SELECT feature, COUNT(*), SUM(CASE WHEN outcome = 'error' THEN 1 ELSE 0 END),
		COALESCE(AVG(duration_ms), 0), AVG(score) FROM interactions`
	var args []any
	if !since.IsZero() {
		query += " WHERE timestamp >= ?"
		args = append(args, since.UTC().Format(sqliteTimeFormat))
	}
	query += " GROUP BY feature ORDER BY feature"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history summary: %w", err)
	}
	defer rows.Close()

	result := make([]FeatureSummary, 0)
	for rows.Next() {
		var fs FeatureSummary
		var avgScore sql.NullFloat64
		if err := rows.Scan(&fs.Feature, &fs.Requests, &fs.Errors, &fs.AvgDurationMs, &avgScore); err != nil {
			return nil, fmt.Errorf("failed to scan history summary row: %w", err)
		}
		if avgScore.Valid {
			v := avgScore.Float64
			fs.AvgScore = &v
		}
		result = append(result, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history summary rows: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays).UTC().Format(sqliteTimeFormat)

	result, err := s.db.Exec("DELETE FROM interactions WHERE timestamp < ?", cutoff)
	if err != nil {
		slog.Error("failed to cleanup old history entries", "error", err)
		return
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		slog.Info("cleaned up old history entries", "deleted", n)
	}
}
