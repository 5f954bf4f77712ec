package syncer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/remote"
	"github.com/theirongolddev/opsdash/internal/store"
	"github.com/theirongolddev/opsdash/internal/transform"
)

func customers(names ...string) []model.Customer {
	out := make([]model.Customer, len(names))
	for i, n := range names {
		out[i] = model.Customer{
			ID:                    "id-" + n,
			CompanyName:           n,
			Status:                model.StatusActive,
			ServiceType:           model.ServiceWebsite,
			MonthlyRevenue:        100,
			MaintenancePaidMonths: []string{},
		}
	}
	return out
}

func customerItems(t *testing.T, list []model.Customer) []transform.Item {
	t.Helper()
	items, err := transform.Encode(list, transform.CustomerToRow)
	require.NoError(t, err)
	return items
}

func cachedIDs(t *testing.T, c *store.Cache, kind model.Kind) []string {
	t.Helper()
	recs, err := c.ReadAll(context.Background(), kind)
	require.NoError(t, err)
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestLoadAll_LocalOnlyWhenUnconfigured(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()
	rc.configured = false

	seed := New(cache, remote.Disabled{}, nil, nil)
	require.NoError(t, Sync(ctx, seed, model.KindCustomers, customers("a", "b", "c"), transform.CustomerToRow))

	o := New(cache, rc, nil, nil)
	got, src, err := o.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, src)
	require.Len(t, got.Customers, 3)
	assert.Equal(t, customers("a", "b", "c"), got.Customers)
	assert.Empty(t, rc.Calls(), "remote store must not be touched")
}

func TestLoadAll_RemoteOverwritesLocal(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()

	// stale local record that the remote no longer has
	require.NoError(t, cache.Upsert(ctx, model.KindNotes, []store.Record{
		{ID: "stale", Payload: []byte(`{"id":"stale","content":"old"}`)},
	}))
	rc.tables["customers"] = map[string]json.RawMessage{
		"c1": json.RawMessage(`{"id":"c1","company_name":"Acme","status":"Active","monthly_revenue":"1000.00"}`),
	}
	rc.tables["payment_history"] = map[string]json.RawMessage{
		"p1": json.RawMessage(`{"id":"p1","payment_type":"project","amount":10,"date":"2025-01-01"}`),
		"p2": json.RawMessage(`{"id":"p2","payment_type":"project","amount":20,"date":"2025-03-01"}`),
	}

	o := New(cache, rc, nil, nil)
	got, src, err := o.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, src)
	require.Len(t, got.Customers, 1)
	assert.Equal(t, 1000.0, got.Customers[0].MonthlyRevenue)
	assert.Empty(t, got.Notes)
	require.Len(t, got.PaymentHistory, 2)
	assert.Equal(t, "p2", got.PaymentHistory[0].ID, "newest payment first")

	assert.Empty(t, cachedIDs(t, cache, model.KindNotes))
	assert.Equal(t, []string{"c1"}, cachedIDs(t, cache, model.KindCustomers))
	assert.Equal(t, []string{"p2", "p1"}, cachedIDs(t, cache, model.KindPaymentHistory))
}

func TestLoadAll_FallsBackWithoutPartialData(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()
	rc.reachable = false

	o := New(cache, rc, nil, nil)
	require.NoError(t, Sync(ctx, o, model.KindCustomers, customers("local"), transform.CustomerToRow))

	rc.setReachable(true)
	rc.tables["customers"] = map[string]json.RawMessage{
		"remote": json.RawMessage(`{"id":"remote","company_name":"Remote"}`),
	}
	rc.failFetch["budgets"] = true
	rc.failUpsert = true // reconcile cannot push the dirty local record either

	got, src, err := o.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, src)
	assert.Equal(t, customers("local"), got.Customers)
	assert.Equal(t, []string{"id-local"}, cachedIDs(t, cache, model.KindCustomers))
}

func TestLoadAll_FetchFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()
	require.NoError(t, cache.Upsert(ctx, model.KindBudgets, []store.Record{
		{ID: "b1", Payload: []byte(`{"id":"b1","category":"Ads","monthlyTarget":5,"month":"2025-01"}`)},
	}))
	rc.tables["budgets"] = map[string]json.RawMessage{
		"b9": json.RawMessage(`{"id":"b9","category":"Other","monthly_target":1,"month":"2025-01"}`),
	}
	rc.failFetch["notes"] = true

	got, src, err := New(cache, rc, nil, nil).LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, src)
	require.Len(t, got.Budgets, 1)
	assert.Equal(t, "b1", got.Budgets[0].ID)
	assert.Equal(t, []string{"b1"}, cachedIDs(t, cache, model.KindBudgets), "cache untouched")
}

func TestLoadAll_ReconcilesBeforeOverwrite(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()
	rc.reachable = false

	o := New(cache, rc, nil, nil)
	require.NoError(t, Sync(ctx, o, model.KindCustomers, customers("offline"), transform.CustomerToRow))
	o.Remove(ctx, model.KindCustomers, "id-gone")
	rc.tables["customers"] = map[string]json.RawMessage{
		"id-gone": json.RawMessage(`{"id":"id-gone","company_name":"Gone"}`),
	}

	rc.setReachable(true)
	got, src, err := o.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, src)
	require.Len(t, got.Customers, 1)
	assert.Equal(t, "id-offline", got.Customers[0].ID)
	assert.Equal(t, []string{"id-offline"}, rc.ids("customers"))

	pending, err := cache.PendingDeletes(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLoadAll_UnpushableKindStaysLocal(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()
	rc.reachable = false

	o := New(cache, rc, nil, nil)
	require.NoError(t, Sync(ctx, o, model.KindCustomers, customers("local"), transform.CustomerToRow))

	rc.setReachable(true)
	rc.failUpsert = true
	rc.tables["customers"] = map[string]json.RawMessage{
		"remote": json.RawMessage(`{"id":"remote","company_name":"Remote"}`),
	}
	rc.tables["notes"] = map[string]json.RawMessage{
		"n1": json.RawMessage(`{"id":"n1","content":"from remote"}`),
	}

	for range 2 {
		got, src, err := o.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, SourceRemote, src)
		assert.Equal(t, customers("local"), got.Customers)
		require.Len(t, got.Notes, 1)
		assert.Equal(t, "from remote", got.Notes[0].Content)
	}

	assert.Equal(t, []string{"n1"}, cachedIDs(t, cache, model.KindNotes))
	dirty, err := cache.Dirty(ctx, model.KindCustomers)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "id-local", dirty[0].ID)
}

func TestSyncCollection_Idempotent(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()
	o := New(cache, rc, nil, nil)
	items := customerItems(t, customers("a", "b"))

	o.SyncCollection(ctx, model.KindCustomers, items)
	localOnce, err := cache.ReadAll(ctx, model.KindCustomers)
	require.NoError(t, err)
	remoteOnce := rc.snapshot()

	o.SyncCollection(ctx, model.KindCustomers, items)
	localTwice, err := cache.ReadAll(ctx, model.KindCustomers)
	require.NoError(t, err)

	assert.Equal(t, localOnce, localTwice)
	assert.Equal(t, remoteOnce, rc.snapshot())
	for _, r := range localTwice {
		assert.False(t, r.Dirty)
	}
}

func TestSyncCollection_RemoteFailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()
	rc.failUpsert = true
	o := New(cache, rc, nil, nil)

	o.SyncCollection(ctx, model.KindCustomers, customerItems(t, customers("a")))

	dirty, err := cache.Dirty(ctx, model.KindCustomers)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "id-a", dirty[0].ID)

	rc.failUpsert = false
	res, err := o.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Pushed)
	assert.Equal(t, []string{"id-a"}, rc.ids("customers"))

	dirty, err = cache.Dirty(ctx, model.KindCustomers)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func TestSyncCollection_LocalFailureStillPushesRemote(t *testing.T) {
	ctx := context.Background()
	rc := newFakeRemote()
	o := New(failingLocal{openCache(t)}, rc, nil, nil)

	o.SyncCollection(ctx, model.KindCustomers, customerItems(t, customers("a")))
	assert.Equal(t, []string{"id-a"}, rc.ids("customers"))
}

func TestSyncCollection_UnavailableSkipsRemote(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()
	rc.reachable = false
	o := New(cache, rc, nil, nil)

	o.SyncCollection(ctx, model.KindCustomers, customerItems(t, customers("a")))
	assert.Equal(t, []string{"id-a"}, cachedIDs(t, cache, model.KindCustomers))
	assert.Empty(t, rc.Calls())
}

func TestDeleteEntity(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()
	rc.tables["notes"] = map[string]json.RawMessage{"n1": json.RawMessage(`{"id":"n1"}`), "n2": json.RawMessage(`{"id":"n2"}`)}
	o := New(cache, rc, nil, nil)

	o.DeleteEntity(ctx, model.KindNotes, "n1")
	assert.Equal(t, []string{"n2"}, rc.ids("notes"))

	rc.failDelete = true
	o.DeleteEntity(ctx, model.KindNotes, "n2")
	pending, err := cache.PendingDeletes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.PendingDelete{{Kind: model.KindNotes, ID: "n2"}}, pending)

	rc.failDelete = false
	res, err := o.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Empty(t, rc.ids("notes"))
}

func TestDeleteEntity_LocalOnlyRecordsNothing(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	o := New(cache, remote.Disabled{}, nil, nil)

	o.DeleteEntity(ctx, model.KindNotes, "n1")
	pending, err := cache.PendingDeletes(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconcile_SkippedWhenUnavailable(t *testing.T) {
	rc := newFakeRemote()
	rc.reachable = false
	res, err := New(openCache(t), rc, nil, nil).Reconcile(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestDiff(t *testing.T) {
	prev := customerItems(t, customers("a", "b", "c"))

	t.Run("removal detected alongside edits", func(t *testing.T) {
		next := customers("a", "c")
		next[0].MonthlyRevenue = 999
		next[1].Notes = "edited"
		next = append(next, customers("d")...)

		d := Diff(prev, customerItems(t, next))
		assert.Equal(t, []string{"id-b"}, d.Removed)
		assert.Equal(t, []string{"id-a", "id-c"}, d.Updated)
		assert.Equal(t, []string{"id-d"}, d.Added)
	})

	t.Run("no change", func(t *testing.T) {
		assert.True(t, Diff(prev, prev).Empty())
	})

	t.Run("removed equals set difference", func(t *testing.T) {
		d := Diff(prev, nil)
		assert.Equal(t, []string{"id-a", "id-b", "id-c"}, d.Removed)
		d = Diff(nil, prev)
		assert.Empty(t, d.Removed)
		assert.Len(t, d.Added, 3)
	})
}

func TestQueue_RunsInOrderAndPropagatesRemovals(t *testing.T) {
	ctx := context.Background()
	cache := openCache(t)
	rc := newFakeRemote()
	o := New(cache, rc, nil, nil)
	q := NewQueue(o, time.Second)
	defer q.Close()

	first := customerItems(t, customers("a", "b", "c"))
	second := customerItems(t, customers("a", "c"))

	require.True(t, q.Enqueue(Task{Kind: model.KindCustomers, Items: first}))
	require.True(t, q.Enqueue(Task{Kind: model.KindCustomers, Items: second, Removed: Diff(first, second).Removed}))

	flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(flushCtx))

	assert.Equal(t, []string{"id-a", "id-c"}, cachedIDs(t, cache, model.KindCustomers))
	assert.Equal(t, []string{"id-a", "id-c"}, rc.ids("customers"))

	var deletes []string
	for _, c := range rc.Calls() {
		if c == "delete customers/id-b" {
			deletes = append(deletes, c)
		}
	}
	assert.Len(t, deletes, 1)
}

func TestQueue_KindsDoNotBlockEachOther(t *testing.T) {
	cache := openCache(t)
	rc := newFakeRemote()
	rc.upsertBlock = make(chan struct{})
	o := New(cache, rc, nil, nil)
	q := NewQueue(o, 5*time.Second)

	require.True(t, q.Enqueue(Task{Kind: model.KindCustomers, Items: customerItems(t, customers("a"))}))

	// The customers worker is parked inside the remote upsert; a notes task
	// with no rows never reaches the remote store and must still finish.
	require.True(t, q.Enqueue(Task{Kind: model.KindNotes}))
	require.Eventually(t, func() bool {
		select {
		case <-q.lanes[model.KindNotes].idleCh():
			return true
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	close(rc.upsertBlock)
	q.Close()
	assert.False(t, q.Enqueue(Task{Kind: model.KindNotes}), "closed queue rejects tasks")
}

func TestQueue_FlushHonorsContext(t *testing.T) {
	rc := newFakeRemote()
	rc.upsertBlock = make(chan struct{})
	q := NewQueue(New(openCache(t), rc, nil, nil), 5*time.Second)

	require.True(t, q.Enqueue(Task{Kind: model.KindBudgets, Items: []transform.Item{{ID: "b", Entity: []byte(`{"id":"b"}`), Row: []byte(`{"id":"b"}`)}}}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Flush(ctx), context.DeadlineExceeded)

	close(rc.upsertBlock)
	q.Close()
}

func TestQueue_HungRemoteTimesOutPerTask(t *testing.T) {
	cache := openCache(t)
	rc := newFakeRemote()
	rc.upsertHang = true
	q := NewQueue(New(cache, rc, nil, nil), 100*time.Millisecond)
	defer q.Close()

	first := customerItems(t, customers("a"))
	second := customerItems(t, customers("a", "b"))
	require.True(t, q.Enqueue(Task{Kind: model.KindCustomers, Items: first}))
	require.True(t, q.Enqueue(Task{Kind: model.KindCustomers, Items: second}))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))

	var upserts int
	for _, c := range rc.Calls() {
		if c == "upsert customers" {
			upserts++
		}
	}
	assert.Equal(t, 2, upserts)
	assert.Equal(t, []string{"id-a", "id-b"}, cachedIDs(t, cache, model.KindCustomers))

	stats, err := cache.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DirtyTotal())
}
