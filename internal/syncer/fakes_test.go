package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/store"
)

// fakeRemote is an in-memory remote store keyed by table and id.
type fakeRemote struct {
	mu          sync.Mutex
	configured  bool
	reachable   bool
	failFetch   map[string]bool
	failUpsert  bool
	failDelete  bool
	tables      map[string]map[string]json.RawMessage
	calls       []string
	upsertBlock chan struct{}
	upsertHang  bool // Upsert waits for its context to end
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		configured: true,
		reachable:  true,
		failFetch:  map[string]bool{},
		tables:     map[string]map[string]json.RawMessage{},
	}
}

func (f *fakeRemote) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) Configured() bool { return f.configured }

func (f *fakeRemote) Reachable(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reachable
}

func (f *fakeRemote) setReachable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reachable = v
}

func (f *fakeRemote) FetchTable(_ context.Context, table string) ([]byte, error) {
	f.record("fetch " + table)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFetch[table] {
		return nil, errors.New("fetch failed")
	}
	rows := f.tables[table]
	ids := make([]string, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, rows[id])
	}
	return json.Marshal(out)
}

func (f *fakeRemote) Upsert(ctx context.Context, table string, _ []string, rows []byte) error {
	f.record("upsert " + table)
	if f.upsertHang {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.upsertBlock != nil {
		<-f.upsertBlock
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpsert {
		return errors.New("upsert failed")
	}
	var list []json.RawMessage
	if err := json.Unmarshal(rows, &list); err != nil {
		return err
	}
	if f.tables[table] == nil {
		f.tables[table] = map[string]json.RawMessage{}
	}
	for _, r := range list {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(r, &head); err != nil {
			return err
		}
		f.tables[table][head.ID] = r
	}
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, table, id string) error {
	f.record("delete " + table + "/" + id)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("delete failed")
	}
	delete(f.tables[table], id)
	return nil
}

func (f *fakeRemote) ids(table string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id := range f.tables[table] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (f *fakeRemote) snapshot() map[string]map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]map[string]string{}
	for t, rows := range f.tables {
		out[t] = map[string]string{}
		for id, r := range rows {
			out[t][id] = string(r)
		}
	}
	return out
}

// failingLocal wraps a cache and fails every write.
type failingLocal struct {
	*store.Cache
}

func (failingLocal) Upsert(context.Context, model.Kind, []store.Record) error {
	return errors.New("disk full")
}

func openCache(t *testing.T) *store.Cache {
	t.Helper()
	c, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
