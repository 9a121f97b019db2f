package history

import (
	"context"
	"fmt"

	"ascendfit/config"
	"ascendfit/internal/storage"
)

// Result holds the history recorder and, when enabled, the reader behind it.
type Result struct {
	Logger Recorder
	// Reader is nil when history is disabled
	Reader Reader
}

// Close flushes and stops the logger. The storage connection is closed by its owner.
func (r *Result) Close() error {
	if r.Logger == nil {
		return nil
	}
	return r.Logger.Close()
}

// New builds the history logger on a shared storage connection.
// When history is disabled it returns a NoopLogger and a nil Reader.
func New(ctx context.Context, cfg config.HistoryConfig, store storage.Storage) (*Result, error) {
	if !cfg.Enabled {
		return &Result{Logger: NoopLogger{}}, nil
	}
	if store == nil {
		return nil, fmt.Errorf("storage is required when history is enabled")
	}

	s, err := createStore(ctx, store, cfg.RetentionDays)
	if err != nil {
		return nil, err
	}

	return &Result{
		Logger: NewLogger(s, Config{BufferSize: cfg.BufferSize, FlushInterval: cfg.FlushInterval}),
		Reader: s,
	}, nil
}

type readStore interface {
	Store
	Reader
}

func createStore(ctx context.Context, store storage.Storage, retentionDays int) (readStore, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(store.SQLiteDB(), retentionDays)
	case storage.TypePostgreSQL:
		return NewPostgreSQLStore(ctx, store.PostgreSQLPool(), retentionDays)
	case storage.TypeMongoDB:
		return NewMongoDBStore(ctx, store.MongoDatabase(), retentionDays)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}
