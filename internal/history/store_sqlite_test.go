package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascendfit/config"
	"ascendfit/internal/storage"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := storage.NewSQLite(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	store, err := NewSQLiteStore(st.SQLiteDB(), 0)
	require.NoError(t, err)
	return store
}

func score(v float64) *float64 { return &v }

func TestSQLiteStore_ListAndSummary(t *testing.T) {
	ctx := context.Background()
	store := newSQLite(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{ID: "a", RequestID: "r1", Timestamp: base, Feature: "analyze-video", Outcome: OutcomeSuccess, Source: "tool_call", Score: score(82), DurationMs: 4000},
		{ID: "b", RequestID: "r2", Timestamp: base.Add(time.Minute), Feature: "analyze-video", Outcome: OutcomeError, ErrorKind: "processing_timeout", DurationMs: 30000},
		{ID: "c", RequestID: "r3", Timestamp: base.Add(2 * time.Minute), Feature: "generate-workout", Outcome: OutcomeSuccess, Cached: true, DurationMs: 2},
		{ID: "d", RequestID: "r4", Timestamp: base.Add(500 * time.Millisecond), Feature: "analyze-video", Outcome: OutcomeSuccess, Score: score(60), DurationMs: 2000},
	}
	require.NoError(t, store.WriteBatch(ctx, entries))
	// duplicate IDs are ignored
	require.NoError(t, store.WriteBatch(ctx, entries[:1]))

	all, err := store.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"c", "b", "d", "a"}, []string{all[0].ID, all[1].ID, all[2].ID, all[3].ID})
	assert.True(t, all[0].Cached)
	assert.Equal(t, base.Add(time.Minute), all[1].Timestamp)
	assert.Equal(t, "processing_timeout", all[1].ErrorKind)
	assert.Nil(t, all[1].Score)
	require.NotNil(t, all[3].Score)
	assert.InDelta(t, 82, *all[3].Score, 0.001)

	video, err := store.List(ctx, Query{Feature: "analyze-video", Since: base.Add(time.Second), Limit: 10})
	require.NoError(t, err)
	require.Len(t, video, 1)
	assert.Equal(t, "b", video[0].ID)

	limited, err := store.List(ctx, Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	summary, err := store.Summary(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "analyze-video", summary[0].Feature)
	assert.Equal(t, 3, summary[0].Requests)
	assert.Equal(t, 1, summary[0].Errors)
	require.NotNil(t, summary[0].AvgScore)
	assert.InDelta(t, 71, *summary[0].AvgScore, 0.001)
	assert.Nil(t, summary[1].AvgScore)
}

func TestSQLiteStore_LargeBatchIsChunked(t *testing.T) {
	ctx := context.Background()
	store := newSQLite(t)

	entries := make([]*Entry, maxEntriesPerBatch*2+5)
	for i := range entries {
		e := entry(i)
		e.Timestamp = time.Now()
		entries[i] = e
	}
	require.NoError(t, store.WriteBatch(ctx, entries))

	got, err := store.List(ctx, Query{Limit: MaxListLimit})
	require.NoError(t, err)
	assert.Len(t, got, len(entries))
}

func TestSQLiteStore_Cleanup(t *testing.T) {
	ctx := context.Background()
	store := newSQLite(t)
	store.retentionDays = 30

	old := entry(1)
	old.Timestamp = time.Now().AddDate(0, 0, -31)
	fresh := entry(2)
	fresh.Timestamp = time.Now()
	require.NoError(t, store.WriteBatch(ctx, []*Entry{old, fresh}))

	store.cleanup()

	got, err := store.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, fresh.ID, got[0].ID)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	res, err := New(ctx, config.HistoryConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, NoopLogger{}, res.Logger)
	assert.Nil(t, res.Reader)

	_, err = New(ctx, config.HistoryConfig{Enabled: true}, nil)
	assert.Error(t, err)

	st, err := storage.NewSQLite(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "h.db")})
	require.NoError(t, err)
	defer st.Close()

	res, err = New(ctx, config.HistoryConfig{Enabled: true, FlushInterval: 10 * time.Millisecond}, st)
	require.NoError(t, err)
	require.NotNil(t, res.Reader)

	e := entry(1)
	e.Timestamp = time.Now()
	res.Logger.Write(e)
	require.NoError(t, res.Close())

	got, err := res.Reader.List(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
