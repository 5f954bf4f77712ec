package remote

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const pgDriver = "pgx"

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Postgres writes directly to a Postgres database holding the entity tables.
type Postgres struct {
	db    *sql.DB
	probe Probe
}

// NewPostgres opens a pool for dsn. When the DSN has no password the access
// key is used as one.
func NewPostgres(dsn, key string, probeTimeout time.Duration) (*Postgres, error) {
	dsn = withPassword(strings.TrimSpace(dsn), strings.TrimSpace(key))
	openMu.Lock()
	db, err := sqlOpen(pgDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Postgres{db: db, probe: NewProbe(dsn, "5432", probeTimeout)}, nil
}

func withPassword(dsn, key string) string {
	if key == "" {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	if u.User == nil {
		u.User = url.UserPassword("postgres", key)
		return u.String()
	}
	if _, ok := u.User.Password(); ok {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), key)
	return u.String()
}

// WithDial replaces the dialer used by the reachability probe.
func (p *Postgres) WithDial(dial DialFunc) *Postgres {
	p.probe.Dial = dial
	return p
}

// Close closes the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) Configured() bool { return p.db != nil }

func (p *Postgres) Reachable(ctx context.Context) bool {
	return p.probe.Reachable(ctx)
}

// FetchTable aggregates the whole table into one JSON array server-side.
func (p *Postgres) FetchTable(ctx context.Context, table string) ([]byte, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	var out string
	q := fmt.Sprintf(`SELECT coalesce(json_agg(t), '[]'::json)::text FROM %s t`, pgx.Identifier{table}.Sanitize())
	if err := p.db.QueryRowContext(ctx, q).Scan(&out); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	return []byte(out), nil
}

// Upsert expands the JSON rows with json_populate_recordset and resolves
// conflicts on id in favor of the incoming row.
func (p *Postgres) Upsert(ctx context.Context, table string, columns []string, rows []byte) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if isEmptyArray(rows) {
		return nil
	}
	if len(columns) == 0 {
		return fmt.Errorf("upsert %s: no columns", table)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, upsertSQL(table, columns), string(rows)); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func upsertSQL(table string, columns []string) string {
	ident := pgx.Identifier{table}.Sanitize()
	cols := make([]string, len(columns))
	var sets []string
	for i, c := range columns {
		cols[i] = pgx.Identifier{c}.Sanitize()
		if c != "id" {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", cols[i], cols[i]))
		}
	}
	list := strings.Join(cols, ", ")
	conflict := "DO NOTHING"
	if len(sets) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf(`INSERT INTO %s (%s) SELECT %s FROM json_populate_recordset(NULL::%s, $1::json) ON CONFLICT (id) %s`,
		ident, list, list, ident, conflict)
}

// Delete removes one row by id.
func (p *Postgres) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	q := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pgx.Identifier{table}.Sanitize())
	if _, err := p.db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}

// EnsureSchema creates the entity tables when they do not exist. It does not
// alter existing tables.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schemaDDL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS customers (
    id                                      TEXT PRIMARY KEY,
    company_name                            TEXT NOT NULL DEFAULT '',
    country                                 TEXT NOT NULL DEFAULT '',
    service_type                            TEXT NOT NULL DEFAULT '',
    status                                  TEXT NOT NULL DEFAULT '',
    maintenance                             BOOLEAN NOT NULL DEFAULT false,
    monthly_revenue                         NUMERIC NOT NULL DEFAULT 0,
    notes                                   TEXT,
    business_start_date                     TEXT,
    closing_date                            TEXT,
    project_payment_estimated_cost          NUMERIC NOT NULL DEFAULT 0,
    project_payment_amount_paid             NUMERIC NOT NULL DEFAULT 0,
    maintenance_payment_estimated_cost      NUMERIC NOT NULL DEFAULT 0,
    maintenance_payment_amount_paid         NUMERIC NOT NULL DEFAULT 0,
    new_requirement_payment_estimated_cost  NUMERIC NOT NULL DEFAULT 0,
    new_requirement_payment_amount_paid     NUMERIC NOT NULL DEFAULT 0,
    maintenance_due_date                    TEXT,
    maintenance_paid_months                 TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS automations (
    id                   TEXT PRIMARY KEY,
    client_name          TEXT NOT NULL DEFAULT '',
    automation_name      TEXT NOT NULL DEFAULT '',
    runtime              BIGINT NOT NULL DEFAULT 0,
    execution_count      BIGINT NOT NULL DEFAULT 0,
    status               TEXT NOT NULL DEFAULT '',
    manual_intervention  BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS projects (
    id                   TEXT PRIMARY KEY,
    client_name          TEXT NOT NULL DEFAULT '',
    project_name         TEXT NOT NULL DEFAULT '',
    status               TEXT NOT NULL DEFAULT '',
    maintenance          BOOLEAN NOT NULL DEFAULT false,
    revenue              NUMERIC NOT NULL DEFAULT 0,
    notes                TEXT,
    type                 TEXT NOT NULL DEFAULT '',
    start_date           TEXT
);

CREATE TABLE IF NOT EXISTS expenses (
    id                   TEXT PRIMARY KEY,
    category             TEXT NOT NULL DEFAULT '',
    description          TEXT NOT NULL DEFAULT '',
    amount               NUMERIC NOT NULL DEFAULT 0,
    recurring            BOOLEAN NOT NULL DEFAULT false,
    due_date             TEXT,
    is_paid              BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS notes (
    id                   TEXT PRIMARY KEY,
    content              TEXT NOT NULL DEFAULT '',
    type                 TEXT NOT NULL DEFAULT 'note',
    completed            BOOLEAN NOT NULL DEFAULT false,
    date                 TEXT
);

CREATE TABLE IF NOT EXISTS payment_history (
    id                   TEXT PRIMARY KEY,
    customer_id          TEXT NOT NULL DEFAULT '',
    customer_name        TEXT NOT NULL DEFAULT '',
    payment_type         TEXT NOT NULL DEFAULT '',
    amount               NUMERIC NOT NULL DEFAULT 0,
    date                 TEXT NOT NULL DEFAULT '',
    notes                TEXT
);

CREATE TABLE IF NOT EXISTS budgets (
    id                   TEXT PRIMARY KEY,
    category             TEXT NOT NULL DEFAULT '',
    monthly_target       NUMERIC NOT NULL DEFAULT 0,
    month                TEXT NOT NULL DEFAULT ''
);
`
