// Package storage opens the database backing interaction history.
// Exactly one backend is active per process; the accessors for the others return nil.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"ascendfit/config"
)

// Type constants for storage backends
const (
	TypeSQLite     = "sqlite"
	TypePostgreSQL = "postgresql"
	TypeMongoDB    = "mongodb"
)

// Storage is an open database connection.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Type returns the storage type ("sqlite", "postgresql", or "mongodb")
	Type() string

	// SQLiteDB returns the SQLite handle, or nil for other backends.
	SQLiteDB() *sql.DB

	// PostgreSQLPool returns the pgx pool, or nil for other backends.
	PostgreSQLPool() *pgxpool.Pool

	// MongoDatabase returns the Mongo database, or nil for other backends.
	MongoDatabase() *mongo.Database

	// Ping checks the connection is alive.
	Ping(ctx context.Context) error

	// Close releases all resources held by the storage.
	Close() error
}

// New opens the backend selected by cfg.Type.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case TypeSQLite:
		return NewSQLite(cfg.SQLite)
	case TypePostgreSQL:
		return NewPostgreSQL(ctx, cfg.PostgreSQL)
	case TypeMongoDB:
		return NewMongoDB(ctx, cfg.MongoDB)
	default:
		return nil, fmt.Errorf("unknown storage type: %s (valid: sqlite, postgresql, mongodb)", cfg.Type)
	}
}

// base provides nil accessors; each backend overrides its own.
type base struct{}

func (base) SQLiteDB() *sql.DB              { return nil }
func (base) PostgreSQLPool() *pgxpool.Pool  { return nil }
func (base) MongoDatabase() *mongo.Database { return nil }
