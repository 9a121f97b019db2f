// Package history records one entry per feature request and serves them back
// for the client's analysis history view.
package history

import (
	"context"
	"time"
)

// Outcome values
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Entry is one completed feature request.
type Entry struct {
	// ID is a UUID assigned at creation
	ID        string    `json:"id" bson:"_id"`
	RequestID string    `json:"request_id" bson:"request_id"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	Feature  string `json:"feature" bson:"feature"`
	Provider string `json:"provider" bson:"provider"`
	Model    string `json:"model" bson:"model"`

	Outcome   string `json:"outcome" bson:"outcome"`
	ErrorKind string `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	// Source is the extraction path (tool_call, text, fallback) for structured features
	Source string `json:"source,omitempty" bson:"source,omitempty"`
	// Score is the form or posture score when the feature produces one
	Score  *float64 `json:"score,omitempty" bson:"score,omitempty"`
	Cached bool     `json:"cached" bson:"cached"`

	DurationMs   int64 `json:"duration_ms" bson:"duration_ms"`
	InputTokens  int   `json:"input_tokens" bson:"input_tokens"`
	OutputTokens int   `json:"output_tokens" bson:"output_tokens"`
}

// Store persists entries. Implementations must be safe for concurrent use.
type Store interface {
	// WriteBatch writes multiple entries. Called by the Logger on flush.
	WriteBatch(ctx context.Context, entries []*Entry) error

	// Flush forces any pending writes to complete.
	Flush(ctx context.Context) error

	// Close releases resources. The underlying connection belongs to the storage layer.
	Close() error
}

// Query filters a history listing.
type Query struct {
	// Feature restricts to one feature. Empty means all.
	Feature string
	// Since excludes entries older than this. Zero means no bound.
	Since time.Time
	// Limit caps the result size. Values <= 0 use DefaultListLimit.
	Limit int
}

// FeatureSummary aggregates entries for one feature.
type FeatureSummary struct {
	Feature       string   `json:"feature"`
	Requests      int      `json:"requests"`
	Errors        int      `json:"errors"`
	AvgDurationMs float64  `json:"avg_duration_ms"`
	AvgScore      *float64 `json:"avg_score,omitempty"`
}

// Reader provides read access for the history endpoint.
type Reader interface {
	// List returns entries newest first.
	List(ctx context.Context, q Query) ([]Entry, error)

	// Summary aggregates entries per feature, ordered by feature name.
	Summary(ctx context.Context, since time.Time) ([]FeatureSummary, error)
}

const (
	// DefaultListLimit applies when Query.Limit is unset
	DefaultListLimit = 50
	// MaxListLimit bounds Query.Limit
	MaxListLimit = 500
)

func (q Query) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultListLimit
	case q.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return q.Limit
	}
}
