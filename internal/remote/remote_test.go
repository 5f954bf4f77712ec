package remote

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/opsdash/internal/transform"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

func newRESTServer(t *testing.T, status int, body string) (*REST, *[]recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone(), Body: string(b),
		})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return NewREST(srv.URL, "anon-key", time.Second), &reqs
}

func TestRESTFetchTable(t *testing.T) {
	c, reqs := newRESTServer(t, http.StatusOK, `[{"id":"c1","monthly_revenue":"1000"}]`)

	body, err := c.FetchTable(context.Background(), "customers")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"c1","monthly_revenue":"1000"}]`, string(body))

	require.Len(t, *reqs, 1)
	r := (*reqs)[0]
	assert.Equal(t, http.MethodGet, r.Method)
	assert.Equal(t, "/rest/v1/customers", r.Path)
	assert.Equal(t, "limit=1000&offset=0&order=id.asc&select=%2A", r.Query)
	assert.Equal(t, "anon-key", r.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
}

func TestRESTFetchTablePages(t *testing.T) {
	rows := []string{`{"id":"a"}`, `{"id":"b"}`, `{"id":"c"}`, `{"id":"d"}`, `{"id":"e"}`}
	var mu sync.Mutex
	var offsets, limits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mu.Lock()
		offsets = append(offsets, q.Get("offset"))
		limits = append(limits, q.Get("limit")+" "+q.Get("order"))
		mu.Unlock()

		var off int
		_, _ = fmt.Sscan(q.Get("offset"), &off)
		off = min(off, len(rows))
		end := min(off+2, len(rows))
		_, _ = io.WriteString(w, "["+strings.Join(rows[off:end], ",")+"]")
	}))
	t.Cleanup(srv.Close)

	c := NewREST(srv.URL, "anon-key", time.Second)
	c.pageSize = 2

	body, err := c.FetchTable(context.Background(), "notes")
	require.NoError(t, err)
	assert.JSONEq(t, "["+strings.Join(rows, ",")+"]", string(body))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"0", "2", "4"}, offsets)
	assert.Equal(t, []string{"2 id.asc", "2 id.asc", "2 id.asc"}, limits)
}

func TestRESTFetchTableFullLastPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("offset") == "0" {
			_, _ = io.WriteString(w, `[{"id":"a"},{"id":"b"}]`)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	t.Cleanup(srv.Close)

	c := NewREST(srv.URL, "anon-key", time.Second)
	c.pageSize = 2

	body, err := c.FetchTable(context.Background(), "notes")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"},{"id":"b"}]`, string(body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestRESTUpsert(t *testing.T) {
	c, reqs := newRESTServer(t, http.StatusCreated, ``)
	cols := transform.Tables["budgets"].Columns

	err := c.Upsert(context.Background(), "budgets", cols, []byte(`[{"id":"b1"}]`))
	require.NoError(t, err)

	require.Len(t, *reqs, 1)
	r := (*reqs)[0]
	assert.Equal(t, http.MethodPost, r.Method)
	assert.Contains(t, r.Query, "on_conflict=id")
	assert.Contains(t, r.Query, "columns=id%2Ccategory%2Cmonthly_target%2Cmonth")
	assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
	assert.Equal(t, `[{"id":"b1"}]`, r.Body)
}

func TestRESTUpsertEmptyIsNoop(t *testing.T) {
	c, reqs := newRESTServer(t, http.StatusOK, ``)
	require.NoError(t, c.Upsert(context.Background(), "notes", nil, []byte(`[]`)))
	assert.Empty(t, *reqs)
}

func TestRESTDelete(t *testing.T) {
	c, reqs := newRESTServer(t, http.StatusNoContent, ``)
	require.NoError(t, c.Delete(context.Background(), "payment_history", "ph-1"))

	require.Len(t, *reqs, 1)
	assert.Equal(t, http.MethodDelete, (*reqs)[0].Method)
	assert.Equal(t, "/rest/v1/payment_history", (*reqs)[0].Path)
	assert.Equal(t, "id=eq.ph-1", (*reqs)[0].Query)
}

func TestRESTStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newRESTServer(t, tt.status, `{}`)
			_, err := c.FetchTable(context.Background(), "notes")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	c, _ := newRESTServer(t, http.StatusInternalServerError, `{"message":"boom"}`)
	_, err := c.FetchTable(context.Background(), "notes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")
}

func TestRESTRejectsUnknownTable(t *testing.T) {
	c, reqs := newRESTServer(t, http.StatusOK, `[]`)
	_, err := c.FetchTable(context.Background(), "users")
	assert.ErrorIs(t, err, ErrUnknownTable)
	assert.Empty(t, *reqs)
}

func TestRESTReachable(t *testing.T) {
	c, _ := newRESTServer(t, http.StatusOK, `[]`)
	assert.True(t, c.Reachable(context.Background()))
	assert.True(t, Available(context.Background(), c))

	c.WithDial(func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("offline")
	})
	assert.False(t, c.Reachable(context.Background()))
	assert.False(t, Available(context.Background(), c))
}

func TestNewProbeDefaultsPort(t *testing.T) {
	assert.Equal(t, "abc.supabase.co:443", NewProbe("https://abc.supabase.co", "443", 0).Addr)
	assert.Equal(t, "localhost:80", NewProbe("http://localhost", "443", 0).Addr)
	assert.Equal(t, "db:5432", NewProbe("postgres://u@db/app", "5432", 0).Addr)
	assert.Equal(t, "db:6543", NewProbe("postgres://u@db:6543/app", "5432", 0).Addr)
	assert.Equal(t, "", NewProbe("::bad", "443", 0).Addr)
	assert.Equal(t, defaultProbeTimeout, NewProbe("https://x", "443", 0).Timeout)
}

func TestNewSelectsBackend(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, c)
	assert.False(t, Available(context.Background(), c))
	_, err = c.FetchTable(context.Background(), "notes")
	assert.ErrorIs(t, err, ErrNotConfigured)

	c, err = New(Config{URL: "https://abc.supabase.co"})
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, c, "key missing forces local-only")

	c, err = New(Config{URL: "https://abc.supabase.co", Key: "k"})
	require.NoError(t, err)
	assert.IsType(t, &REST{}, c)

	db, _ := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	c, err = New(Config{URL: "postgres://app@db/app", Key: "secret"})
	require.NoError(t, err)
	assert.IsType(t, &Postgres{}, c)

	_, err = New(Config{URL: "ftp://x", Key: "k"})
	assert.Error(t, err)
}

func TestWithPassword(t *testing.T) {
	assert.Equal(t, "postgres://app:secret@db/app", withPassword("postgres://app@db/app", "secret"))
	assert.Equal(t, "postgres://app:pw@db/app", withPassword("postgres://app:pw@db/app", "secret"))
	assert.Equal(t, "postgres://postgres:secret@db/app", withPassword("postgres://db/app", "secret"))
	assert.Equal(t, "postgres://db/app", withPassword("postgres://db/app", ""))
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL("budgets", []string{"id", "category", "monthly_target", "month"})
	assert.Equal(t, `INSERT INTO "budgets" ("id", "category", "monthly_target", "month") `+
		`SELECT "id", "category", "monthly_target", "month" FROM json_populate_recordset(NULL::"budgets", $1::json) `+
		`ON CONFLICT (id) DO UPDATE SET "category" = EXCLUDED."category", "monthly_target" = EXCLUDED."monthly_target", "month" = EXCLUDED."month"`,
		got)
}

func TestPostgresOperations(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB()
	conn.queryResult = `[{"id":"n1","content":"hi"}]`
	restore := OverrideSQLOpen(func(_, dsn string) (*sql.DB, error) {
		assert.Equal(t, "postgres://app:secret@db/app", dsn)
		return db, nil
	})
	defer restore()

	pg, err := NewPostgres("postgres://app@db/app", "secret", time.Second)
	require.NoError(t, err)
	assert.True(t, pg.Configured())

	body, err := pg.FetchTable(ctx, "notes")
	require.NoError(t, err)
	assert.JSONEq(t, conn.queryResult, string(body))
	assert.Contains(t, conn.lastQuery(), `json_agg(t)`)
	assert.Contains(t, conn.lastQuery(), `FROM "notes" t`)

	require.NoError(t, pg.Upsert(ctx, "notes", transform.Tables["notes"].Columns, []byte(`[{"id":"n1"}]`)))
	assert.Contains(t, conn.lastExec(), `ON CONFLICT (id) DO UPDATE`)
	assert.Equal(t, []any{`[{"id":"n1"}]`}, conn.lastArgs())
	assert.Equal(t, 1, conn.commits)

	require.NoError(t, pg.Delete(ctx, "notes", "n1"))
	assert.Equal(t, `DELETE FROM "notes" WHERE id = $1`, conn.lastExec())
	assert.Equal(t, []any{"n1"}, conn.lastArgs())

	require.NoError(t, pg.EnsureSchema(ctx))
	var creates int
	for _, q := range conn.execs {
		if strings.HasPrefix(q, "CREATE TABLE IF NOT EXISTS") {
			creates++
		}
	}
	assert.Equal(t, 7, creates)

	_, err = pg.FetchTable(ctx, "pg_user")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestPostgresUpsertRollsBackOnFailure(t *testing.T) {
	db, conn := newStubDB()
	conn.failExec = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	pg, err := NewPostgres("postgres://app:pw@db/app", "", time.Second)
	require.NoError(t, err)
	err = pg.Upsert(context.Background(), "notes", []string{"id"}, []byte(`[{"id":"n1"}]`))
	require.Error(t, err)
	assert.Equal(t, 0, conn.commits)
	assert.Equal(t, 1, conn.rollbacks)
}

// stub database/sql driver recording statements.

type stubDriver struct{ conn *stubConn }

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

type stubConn struct {
	mu          sync.Mutex
	execs       []string
	queries     []string
	args        [][]any
	queryResult string
	failExec    bool
	commits     int
	rollbacks   int
}

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{queryResult: "[]"}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error)           { return &stubTx{conn: c}, nil }

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a.Value
	}
	c.args = append(c.args, vals)
	if c.failExec {
		return nil, errors.New("exec fail")
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	return &stubRows{values: []string{c.queryResult}}, nil
}

func (c *stubConn) lastExec() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execs[len(c.execs)-1]
}

func (c *stubConn) lastArgs() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.args[len(c.args)-1]
}

func (c *stubConn) lastQuery() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queries[len(c.queries)-1]
}

type stubTx struct{ conn *stubConn }

func (t *stubTx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.commits++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.rollbacks++
	return nil
}

type stubRows struct {
	values []string
	pos    int
}

func (r *stubRows) Columns() []string { return []string{"json_agg"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.pos >= len(r.values) {
		return io.EOF
	}
	dest[0] = r.values[r.pos]
	r.pos++
	return nil
}
