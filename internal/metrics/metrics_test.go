package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilSyncIsNoop(t *testing.T) {
	var m *Sync
	m.Op("customers", TargetRemote, ResultOK)
	m.ObserveTask("customers", time.Second)
	m.QueueDepth("customers", 3)
	m.Backlog(1, 2)
	m.Load("remote")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()
	m.Op("notes", TargetLocal, ResultOK)
	m.Op("notes", TargetLocal, ResultOK)
	m.Op("notes", TargetRemote, ResultError)
	m.Backlog(4, 1)
	m.QueueDepth("notes", 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ops.WithLabelValues("notes", TargetLocal, ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("notes", TargetRemote, ResultError)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.dirty))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pending))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("notes")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Load("local")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `opsdash_loads_total{source="local"} 1`)
}
