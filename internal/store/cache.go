// Package store provides the SQLite-backed local cache that mirrors every
// entity collection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/theirongolddev/opsdash/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Record is one cached entity.
type Record struct {
	ID       string
	Position int
	Payload  []byte // camelCase entity JSON
	Dirty    bool   // not yet confirmed by the remote store
}

// PendingDelete is a removal that has not reached the remote store.
type PendingDelete struct {
	Kind model.Kind
	ID   string
}

// TableStats describes one entity table.
type TableStats struct {
	Kind  model.Kind
	Rows  int
	Dirty int
}

// Stats summarizes the whole cache.
type Stats struct {
	Tables         []TableStats
	PendingDeletes int
}

// DirtyTotal returns the number of dirty records across all tables.
func (s Stats) DirtyTotal() int {
	n := 0
	for _, t := range s.Tables {
		n += t.Dirty
	}
	return n
}

// Cache is the local mirror of all entity collections.
type Cache struct {
	db   *sql.DB
	path string
}

// Open opens or creates the cache database at the given path.
func Open(dbPath string) (*Cache, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; queue workers for different kinds share it

	if _, err := db.Exec(schemaSQL()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Cache{db: db, path: dbPath}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

func table(kind model.Kind) (string, error) {
	for _, k := range model.Kinds {
		if k == kind {
			return string(k), nil
		}
	}
	return "", fmt.Errorf("%w: %q", model.ErrUnknownKind, kind)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Upsert inserts or replaces records by id. Repeating the same call leaves
// the table unchanged.
func (c *Cache) Upsert(ctx context.Context, kind model.Kind, records []Record) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertRecords(ctx, tx, t, records); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRecords(ctx context.Context, tx *sql.Tx, t string, records []Record) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+t+` (id, position, payload, dirty, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			position = excluded.position,
			payload = excluded.payload,
			dirty = excluded.dirty,
			updated_at = excluded.updated_at`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	ts := now()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ID, r.Position, string(r.Payload), boolInt(r.Dirty), ts); err != nil {
			return fmt.Errorf("upserting %s/%s: %w", t, r.ID, err)
		}
	}
	return nil
}

// Replace overwrites a whole table in one transaction.
func (c *Cache) Replace(ctx context.Context, kind model.Kind, records []Record) error {
	t, err := table(kind)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
		return err
	}
	if len(records) > 0 {
		if err := insertRecords(ctx, tx, t, records); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReadAll returns every record of a kind in collection order.
func (c *Cache) ReadAll(ctx context.Context, kind model.Kind) ([]Record, error) {
	return c.query(ctx, kind, "")
}

// Dirty returns the records not yet confirmed by the remote store.
func (c *Cache) Dirty(ctx context.Context, kind model.Kind) ([]Record, error) {
	return c.query(ctx, kind, "WHERE dirty = 1")
}

func (c *Cache) query(ctx context.Context, kind model.Kind, where string) ([]Record, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, "SELECT id, position, payload, dirty FROM "+t+" "+where+" ORDER BY position, id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		var payload string
		var dirty int
		if err := rows.Scan(&r.ID, &r.Position, &payload, &dirty); err != nil {
			return nil, err
		}
		r.Payload = []byte(payload)
		r.Dirty = dirty != 0
		records = append(records, r)
	}
	return records, rows.Err()
}

// Delete removes records by id. Unknown ids are ignored.
func (c *Cache) Delete(ctx context.Context, kind model.Kind, ids ...string) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM "+t+" WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting %s/%s: %w", t, id, err)
		}
	}
	return nil
}

// MarkClean clears the dirty flag on the given records.
func (c *Cache) MarkClean(ctx context.Context, kind model.Kind, ids ...string) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := c.db.ExecContext(ctx, "UPDATE "+t+" SET dirty = 0 WHERE id = ?", id); err != nil {
			return err
		}
	}
	return nil
}

// AddPendingDelete records a removal the remote store has not seen.
func (c *Cache) AddPendingDelete(ctx context.Context, kind model.Kind, id string) error {
	if _, err := table(kind); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, `INSERT OR REPLACE INTO pending_deletes (kind, id, recorded_at)
		VALUES (?, ?, ?)`, string(kind), id, now())
	return err
}

// PendingDeletes lists unreplayed removals, oldest first.
func (c *Cache) PendingDeletes(ctx context.Context) ([]PendingDelete, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT kind, id FROM pending_deletes ORDER BY recorded_at, kind, id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []PendingDelete
	for rows.Next() {
		var pd PendingDelete
		var kind string
		if err := rows.Scan(&kind, &pd.ID); err != nil {
			return nil, err
		}
		pd.Kind = model.Kind(kind)
		out = append(out, pd)
	}
	return out, rows.Err()
}

// ClearPendingDelete drops a replayed removal.
func (c *Cache) ClearPendingDelete(ctx context.Context, kind model.Kind, id string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM pending_deletes WHERE kind = ? AND id = ?", string(kind), id)
	return err
}

// Stats returns row and dirty counts per table.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	for _, k := range model.Kinds {
		ts := TableStats{Kind: k}
		err := c.db.QueryRowContext(ctx,
			"SELECT COUNT(*), COALESCE(SUM(dirty), 0) FROM "+string(k)).Scan(&ts.Rows, &ts.Dirty)
		if err != nil {
			return Stats{}, err
		}
		s.Tables = append(s.Tables, ts)
	}
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_deletes").Scan(&s.PendingDeletes); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// Clear empties every table, including the pending delete log.
func (c *Cache) Clear(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range model.Kinds {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+string(k)); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM pending_deletes"); err != nil {
		return err
	}
	return tx.Commit()
}

// CacheDir returns the platform-appropriate cache directory.
func CacheDir() string {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "opsdash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "opsdash")
}

// CachePath returns the default path of the cache database.
func CachePath() string {
	return filepath.Join(CacheDir(), "cache.db")
}
