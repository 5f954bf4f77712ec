package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/opsdash/internal/metrics"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/remote"
	"github.com/theirongolddev/opsdash/internal/state"
	"github.com/theirongolddev/opsdash/internal/store"
	"github.com/theirongolddev/opsdash/internal/syncer"
)

func newService(t *testing.T, buffer int) (*Service, *state.Container, *store.Cache) {
	t.Helper()
	cache, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	m := metrics.New()
	o := syncer.New(cache, remote.Disabled{}, nil, m)
	st := state.New(o, state.Options{
		Now: func() time.Time { return time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC) },
	})
	t.Cleanup(st.Close)
	_, err = st.Load(context.Background())
	require.NoError(t, err)

	return New(Config{Interval: 10 * time.Second, EventsBuffer: buffer}, st, cache, m, nil), st, cache
}

func TestDiffSnapshots(t *testing.T) {
	prev := Snapshot{ActiveCustomers: 2, MRR: 700, MonthlyExpenses: 100, NetProfit: 600}
	curr := Snapshot{ActiveCustomers: 3, MRR: 1000, MonthlyExpenses: 150, NetProfit: 850}

	delta := diffSnapshots(prev, curr)
	assert.Equal(t, 1, delta.ActiveCustomers)
	assert.InDelta(t, 300, delta.MRR, 1e-9)
	assert.InDelta(t, 50, delta.MonthlyExpenses, 1e-9)
	assert.InDelta(t, 250, delta.NetProfit, 1e-9)
	assert.False(t, delta.isZero())
	assert.True(t, diffSnapshots(curr, curr).isZero())
}

func TestPublishEventRingBuffer(t *testing.T) {
	s, _, _ := newService(t, 2)

	s.publishEvent(EventSnapshot, "", nil)
	s.publishEvent(EventSnapshot, "", nil)
	s.publishEvent(EventSnapshot, "", nil)

	s.mu.RLock()
	defer s.mu.RUnlock()
	require.Len(t, s.events, 2)
	assert.Equal(t, int64(2), s.events[0].ID)
	assert.Equal(t, int64(3), s.events[1].ID)
}

func TestRefreshEventOnlyWhenNumbersMove(t *testing.T) {
	s, st, _ := newService(t, 10)

	s.publishEvent(EventRefresh, "", nil)
	assert.Equal(t, 0, s.snapshotStatus().EventCount)

	require.NoError(t, st.SetCustomers([]model.Customer{
		{ID: "a", CompanyName: "A", Status: model.StatusActive, MonthlyRevenue: 400},
	}))
	s.publishEvent(EventRefresh, "", nil)

	status := s.snapshotStatus()
	require.Equal(t, 1, status.EventCount)
	assert.InDelta(t, 400, status.Summary.MRR, 1e-9)
	assert.Equal(t, 1, status.Summary.Counts[model.KindCustomers])
}

func TestOnChangeCarriesIDs(t *testing.T) {
	s, _, _ := newService(t, 10)

	s.onChange(state.Change{
		Reason: state.ReasonUpdate,
		Kind:   model.KindNotes,
		Delta:  syncer.Delta{Removed: []string{"n1"}},
	})

	s.mu.RLock()
	defer s.mu.RUnlock()
	require.Len(t, s.events, 1)
	ev := s.events[0]
	assert.Equal(t, EventCollection, ev.Type)
	assert.Equal(t, model.KindNotes, ev.Kind)
	require.NotNil(t, ev.Changes)
	assert.Equal(t, []string{"n1"}, ev.Changes.Removed)
}

func TestTickRecordsBacklog(t *testing.T) {
	s, st, _ := newService(t, 10)
	require.NoError(t, st.SetNotes([]model.Note{{ID: "n1", Content: "call back", Type: model.NoteTodo}}))
	require.NoError(t, st.Flush(context.Background()))

	s.tick(context.Background())

	status := s.snapshotStatus()
	assert.Equal(t, int64(1), status.TickCount)
	assert.Equal(t, 1, status.DirtyRecords, "local-only writes stay dirty")
	assert.Empty(t, status.LastError)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndStatus(t *testing.T) {
	s, _, _ := newService(t, 10)
	h := s.Handler()

	rec := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = get(t, h, "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, syncer.SourceLocal, status.Source)
	assert.Equal(t, 10, status.TickIntervalSec)

	rec = get(t, h, "/v1/aggregates")
	require.Equal(t, http.StatusOK, rec.Code)
	var agg model.Aggregates
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agg))
	assert.Len(t, agg.Charts.RevenueExpenses, 6)
}

func TestPutThenGetCollection(t *testing.T) {
	s, st, _ := newService(t, 10)
	h := s.Handler()

	body := `[{"id":"c1","companyName":"Acme","serviceType":"Website","status":"Active","monthlyRevenue":250}]`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/collections/customers", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"kind":"customers","count":1}`, rec.Body.String())

	assert.InDelta(t, 250, st.Aggregates().KPIs.MonthlyRevenue, 1e-9)

	rec = get(t, h, "/v1/collections/customers")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []model.Customer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Acme", got[0].CompanyName)
	assert.Equal(t, []string{}, got[0].MaintenancePaidMonths)
}

func TestCollectionErrors(t *testing.T) {
	s, _, _ := newService(t, 10)
	h := s.Handler()

	assert.Equal(t, http.StatusNotFound, get(t, h, "/v1/collections/invoices").Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/collections/notes", strings.NewReader(`{"id":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/collections/notes", strings.NewReader(`[]`)))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPutRejectsInvalidCollections(t *testing.T) {
	s, st, _ := newService(t, 10)
	h := s.Handler()

	tests := []struct {
		name string
		kind string
		body string
	}{
		{"repeated budget pair", "budgets", `[{"id":"b1","category":"Office","monthlyTarget":100,"month":"2026-03"},{"id":"b2","category":"Office","monthlyTarget":200,"month":"2026-03"}]`},
		{"bad budget month", "budgets", `[{"id":"b1","category":"Office","monthlyTarget":100,"month":"March"}]`},
		{"repeated note id", "notes", `[{"id":"n1","content":"first"},{"id":"n1","content":"second"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/v1/collections/"+tt.kind, strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	c := st.Collections()
	assert.Empty(t, c.Budgets)
	assert.Empty(t, c.Notes)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newService(t, 10)

	rec := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "opsdash_loads_total")
}
