package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/opsdash/internal/model"
)

func openTest(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	recs := []Record{
		{ID: "b", Position: 0, Payload: []byte(`{"id":"b"}`), Dirty: true},
		{ID: "a", Position: 1, Payload: []byte(`{"id":"a"}`), Dirty: true},
	}
	require.NoError(t, c.Upsert(ctx, model.KindNotes, recs))
	first, err := c.ReadAll(ctx, model.KindNotes)
	require.NoError(t, err)

	require.NoError(t, c.Upsert(ctx, model.KindNotes, recs))
	second, err := c.ReadAll(ctx, model.KindNotes)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"b", "a"}, ids(second))
	assert.JSONEq(t, `{"id":"b"}`, string(second[0].Payload))
	assert.True(t, second[0].Dirty)
}

func TestUpsertOverwritesPayload(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	require.NoError(t, c.Upsert(ctx, model.KindBudgets, []Record{{ID: "x", Payload: []byte(`{"v":1}`)}}))
	require.NoError(t, c.Upsert(ctx, model.KindBudgets, []Record{{ID: "x", Payload: []byte(`{"v":2}`)}}))

	got, err := c.ReadAll(ctx, model.KindBudgets)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"v":2}`, string(got[0].Payload))
}

func TestReplaceDropsMissingRows(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	require.NoError(t, c.Upsert(ctx, model.KindCustomers, []Record{
		{ID: "1", Payload: []byte(`{}`)},
		{ID: "2", Payload: []byte(`{}`)},
	}))
	require.NoError(t, c.Replace(ctx, model.KindCustomers, []Record{{ID: "3", Payload: []byte(`{}`)}}))

	got, err := c.ReadAll(ctx, model.KindCustomers)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(got))

	require.NoError(t, c.Replace(ctx, model.KindCustomers, nil))
	got, err = c.ReadAll(ctx, model.KindCustomers)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteAndDirtyTracking(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	require.NoError(t, c.Upsert(ctx, model.KindExpenses, []Record{
		{ID: "e1", Position: 0, Payload: []byte(`{}`), Dirty: true},
		{ID: "e2", Position: 1, Payload: []byte(`{}`), Dirty: true},
		{ID: "e3", Position: 2, Payload: []byte(`{}`)},
	}))

	dirty, err := c.Dirty(ctx, model.KindExpenses)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e2"}, ids(dirty))

	require.NoError(t, c.MarkClean(ctx, model.KindExpenses, "e1"))
	require.NoError(t, c.Delete(ctx, model.KindExpenses, "e2", "missing"))

	dirty, err = c.Dirty(ctx, model.KindExpenses)
	require.NoError(t, err)
	assert.Empty(t, dirty)

	all, err := c.ReadAll(ctx, model.KindExpenses)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e3"}, ids(all))
}

func TestPendingDeletes(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	require.NoError(t, c.AddPendingDelete(ctx, model.KindNotes, "n1"))
	require.NoError(t, c.AddPendingDelete(ctx, model.KindNotes, "n1"))
	require.NoError(t, c.AddPendingDelete(ctx, model.KindBudgets, "b1"))

	pending, err := c.PendingDeletes(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []PendingDelete{
		{Kind: model.KindNotes, ID: "n1"},
		{Kind: model.KindBudgets, ID: "b1"},
	}, pending)

	require.NoError(t, c.ClearPendingDelete(ctx, model.KindNotes, "n1"))
	pending, err = c.PendingDeletes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []PendingDelete{{Kind: model.KindBudgets, ID: "b1"}}, pending)
}

func TestStatsAndClear(t *testing.T) {
	ctx := context.Background()
	c := openTest(t)

	require.NoError(t, c.Upsert(ctx, model.KindCustomers, []Record{
		{ID: "1", Payload: []byte(`{}`), Dirty: true},
		{ID: "2", Payload: []byte(`{}`)},
	}))
	require.NoError(t, c.AddPendingDelete(ctx, model.KindProjects, "p9"))

	s, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, s.Tables, len(model.Kinds))
	assert.Equal(t, TableStats{Kind: model.KindCustomers, Rows: 2, Dirty: 1}, s.Tables[0])
	assert.Equal(t, 1, s.DirtyTotal())
	assert.Equal(t, 1, s.PendingDeletes)

	require.NoError(t, c.Clear(ctx))
	s, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, s.DirtyTotal())
	assert.Equal(t, 0, s.PendingDeletes)
	assert.Equal(t, 0, s.Tables[0].Rows)
}

func TestUnknownKindRejected(t *testing.T) {
	c := openTest(t)
	_, err := c.ReadAll(context.Background(), "widgets; DROP TABLE customers")
	assert.ErrorIs(t, err, model.ErrUnknownKind)
}

func TestCachePathHonorsXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	assert.Equal(t, "/tmp/xdg/opsdash/cache.db", CachePath())
}
