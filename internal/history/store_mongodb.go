package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrPartialWrite indicates that a batch write only partially succeeded.
var ErrPartialWrite = errors.New("partial write failure")

// PartialWriteError reports how many entries of a bulk insert failed.
type PartialWriteError struct {
	TotalEntries int
	FailedCount  int
	Cause        mongo.BulkWriteException
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial history insert: %d of %d entries failed: %v",
		e.FailedCount, e.TotalEntries, e.Cause.Error())
}

func (e *PartialWriteError) Unwrap() error {
	return ErrPartialWrite
}

var historyPartialWriteFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "ascendfit_history_partial_write_failures_total",
		Help: "Total number of partial write failures when inserting history entries to MongoDB",
	},
)

// MongoDBStore implements Store and Reader for MongoDB.
// Retention is handled by a TTL index.
type MongoDBStore struct {
	collection *mongo.Collection
}

// NewMongoDBStore creates the collection indexes.
func NewMongoDBStore(ctx context.Context, database *mongo.Database, retentionDays int) (*MongoDBStore, error) {
	if database == nil {
		return nil, errors.New("database is required")
	}

	collection := database.Collection("interactions")

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "request_id", Value: 1}}},
		{Keys: bson.D{{Key: "feature", Value: 1}, {Key: "timestamp", Value: -1}}},
	}
	// a TTL index and a plain index cannot share a field
	if retentionDays > 0 {
		ttlSeconds := int32(int64(retentionDays) * 24 * 60 * 60)
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
		})
	} else {
		indexes = append(indexes, mongo.IndexModel{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		})
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		slog.Warn("failed to create some MongoDB indexes for history", "error", err)
	}

	return &MongoDBStore{collection: collection}, nil
}

// WriteBatch inserts entries unordered so one bad document does not stop the rest.
func (s *MongoDBStore) WriteBatch(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	docs := make([]any, len(entries))
	for i, e := range entries {
		docs[i] = e
	}

	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		var bulkErr mongo.BulkWriteException
		if errors.As(err, &bulkErr) {
			failed := len(bulkErr.WriteErrors)
			slog.Warn("partial history insert failure",
				"total", len(entries),
				"failed", failed,
				"succeeded", len(entries)-failed,
			)
			historyPartialWriteFailures.Inc()
			return &PartialWriteError{
				TotalEntries: len(entries),
				FailedCount:  failed,
				Cause:        bulkErr,
			}
		}
		return fmt.Errorf("failed to insert history entries: %w", err)
	}
	return nil
}

// Flush is a no-op, writes are synchronous.
func (s *MongoDBStore) Flush(_ context.Context) error { return nil }

// Close is a no-op, the client belongs to the storage layer.
func (s *MongoDBStore) Close() error { return nil }

// List returns entries newest first.
func (s *MongoDBStore) List(ctx context.Context, q Query) ([]Entry, error) {
	filter := bson.D{}
	if q.Feature != "" {
		filter = append(filter, bson.E{Key: "feature", Value: q.Feature})
	}
	if !q.Since.IsZero() {
		filter = append(filter, bson.E{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: q.Since.UTC()}}})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(q.limit()))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]Entry, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode history entries: %w", err)
	}
	for i := range result {
		result[i].Timestamp = result[i].Timestamp.UTC()
	}
	return result, nil
}

// Summary aggregates per feature.
func (s *MongoDBStore) Summary(ctx context.Context, since time.Time) ([]FeatureSummary, error) {
	pipeline := bson.A{}
	if !since.IsZero() {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.D{
			{Key: "timestamp", Value: bson.D{{Key: "$gte", Value: since.UTC()}}},
		}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$feature"},
			{Key: "requests", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "errors", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{bson.D{{Key: "$eq", Value: bson.A{"$outcome", OutcomeError}}}, 1, 0}},
			}}}},
			{Key: "avg_duration_ms", Value: bson.D{{Key: "$avg", Value: "$duration_ms"}}},
			{Key: "avg_score", Value: bson.D{{Key: "$avg", Value: "$score"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	)

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate history summary: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]FeatureSummary, 0)
	for cursor.Next(ctx) {
		var row struct {
			Feature       string   `bson:"_id"`
			Requests      int      `bson:"requests"`
			Errors        int      `bson:"errors"`
			AvgDurationMs float64  `bson:"avg_duration_ms"`
			AvgScore      *float64 `bson:"avg_score"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, fmt.Errorf("failed to decode history summary row: %w", err)
		}
		result = append(result, FeatureSummary{
			Feature:       row.Feature,
			Requests:      row.Requests,
			Errors:        row.Errors,
			AvgDurationMs: row.AvgDurationMs,
			AvgScore:      row.AvgScore,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history summary cursor: %w", err)
	}
	return result, nil
}
