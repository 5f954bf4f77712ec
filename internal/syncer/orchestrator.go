// Package syncer mirrors entity collections to the local cache and the
// remote store, and loads them back with offline fallback.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/opsdash/internal/metrics"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/remote"
	"github.com/theirongolddev/opsdash/internal/store"
	"github.com/theirongolddev/opsdash/internal/transform"
)

// Local is the local cache contract. *store.Cache implements it.
type Local interface {
	Upsert(ctx context.Context, kind model.Kind, records []store.Record) error
	Replace(ctx context.Context, kind model.Kind, records []store.Record) error
	ReadAll(ctx context.Context, kind model.Kind) ([]store.Record, error)
	Delete(ctx context.Context, kind model.Kind, ids ...string) error
	MarkClean(ctx context.Context, kind model.Kind, ids ...string) error
	Dirty(ctx context.Context, kind model.Kind) ([]store.Record, error)
	AddPendingDelete(ctx context.Context, kind model.Kind, id string) error
	PendingDeletes(ctx context.Context) ([]store.PendingDelete, error)
	ClearPendingDelete(ctx context.Context, kind model.Kind, id string) error
}

// Source names the store a load was served from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Orchestrator mirrors collections to both stores.
type Orchestrator struct {
	local   Local
	remote  remote.Client
	log     *slog.Logger
	metrics *metrics.Sync
	guards  map[model.Kind]*sync.Mutex
}

// New creates an orchestrator. rc may be remote.Disabled{} for local-only
// mode; m may be nil.
func New(local Local, rc remote.Client, log *slog.Logger, m *metrics.Sync) *Orchestrator {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if rc == nil {
		rc = remote.Disabled{}
	}
	guards := make(map[model.Kind]*sync.Mutex, len(model.Kinds))
	for _, k := range model.Kinds {
		guards[k] = &sync.Mutex{}
	}
	return &Orchestrator{local: local, remote: rc, log: log, metrics: m, guards: guards}
}

func (o *Orchestrator) guard(kind model.Kind) *sync.Mutex {
	if g, ok := o.guards[kind]; ok {
		return g
	}
	return &sync.Mutex{}
}

// RemoteAvailable reports whether the remote store can be used right now.
func (o *Orchestrator) RemoteAvailable(ctx context.Context) bool {
	return remote.Available(ctx, o.remote)
}

// LoadAll returns all seven collections. When the remote store is available
// it is reconciled, read in full and written over the local cache, except for
// kinds whose local changes could not be pushed. A failed remote read falls
// back to the local cache without mixing in partial remote data.
func (o *Orchestrator) LoadAll(ctx context.Context) (model.Collections, Source, error) {
	if o.RemoteAvailable(ctx) {
		c, err := o.loadRemote(ctx)
		if err == nil {
			o.metrics.Load(string(SourceRemote))
			return c, SourceRemote, nil
		}
		o.log.Warn("remote load failed, using local cache", "err", err)
	} else {
		o.log.Debug("remote store unavailable, using local cache")
	}

	c, err := o.loadLocal(ctx)
	if err != nil {
		return model.Collections{}, SourceLocal, fmt.Errorf("loading local cache: %w", err)
	}
	o.metrics.Load(string(SourceLocal))
	return c, SourceLocal, nil
}

func (o *Orchestrator) loadRemote(ctx context.Context) (model.Collections, error) {
	// Unconfirmed local edits would be lost by the overwrite below. Kinds
	// that still hold them after reconciling are served from the cache.
	if _, err := o.Reconcile(ctx); err != nil {
		o.log.Warn("reconcile before load incomplete", "err", err)
	}
	held, err := o.unsyncedKinds(ctx)
	if err != nil {
		return model.Collections{}, err
	}

	fetched := make([][]transform.Item, len(model.Kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range model.Kinds {
		g.Go(func() error {
			data, err := o.remote.FetchTable(gctx, transform.Tables[k].Name)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", k, err)
			}
			items, err := transform.DecodeRows(k, data)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", k, err)
			}
			fetched[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Collections{}, err
	}

	var c model.Collections
	for i, k := range model.Kinds {
		payloads := entities(fetched[i])
		if held[k] {
			if payloads, err = o.localPayloads(ctx, k); err != nil {
				return model.Collections{}, err
			}
			o.log.Warn("kind has unsynced local changes, kept local copy", "kind", k)
		}
		if err := transform.Assign(&c, k, payloads); err != nil {
			return model.Collections{}, err
		}
	}
	if !held[model.KindPaymentHistory] {
		sortPayments(c.PaymentHistory)
	}

	for _, k := range model.Kinds {
		if held[k] {
			continue
		}
		items, err := transform.Items(c, k)
		if err != nil {
			return model.Collections{}, err
		}
		if err := o.local.Replace(ctx, k, records(items, false)); err != nil {
			o.log.Error("overwriting local cache", "kind", k, "err", err)
			o.metrics.Op(string(k), metrics.TargetLocal, metrics.ResultError)
		}
	}
	return c, nil
}

// sortPayments orders payments newest first, keeping input order for ties.
func sortPayments(p []model.PaymentHistory) {
	sort.SliceStable(p, func(i, j int) bool { return p[i].Date > p[j].Date })
}

// unsyncedKinds reports kinds with dirty records or pending deletes.
func (o *Orchestrator) unsyncedKinds(ctx context.Context) (map[model.Kind]bool, error) {
	held := map[model.Kind]bool{}
	for _, k := range model.Kinds {
		dirty, err := o.local.Dirty(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("listing dirty %s: %w", k, err)
		}
		if len(dirty) > 0 {
			held[k] = true
		}
	}
	pending, err := o.local.PendingDeletes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending deletes: %w", err)
	}
	for _, pd := range pending {
		held[pd.Kind] = true
	}
	return held, nil
}

func (o *Orchestrator) localPayloads(ctx context.Context, k model.Kind) ([][]byte, error) {
	recs, err := o.local.ReadAll(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", k, err)
	}
	payloads := make([][]byte, len(recs))
	for i, r := range recs {
		payloads[i] = r.Payload
	}
	return payloads, nil
}

func (o *Orchestrator) loadLocal(ctx context.Context) (model.Collections, error) {
	var c model.Collections
	for _, k := range model.Kinds {
		payloads, err := o.localPayloads(ctx, k)
		if err != nil {
			return model.Collections{}, err
		}
		if err := transform.Assign(&c, k, payloads); err != nil {
			return model.Collections{}, err
		}
	}
	return c, nil
}

func entities(items []transform.Item) [][]byte {
	out := make([][]byte, len(items))
	for i, it := range items {
		out[i] = it.Entity
	}
	return out
}

func records(items []transform.Item, dirty bool) []store.Record {
	out := make([]store.Record, len(items))
	for i, it := range items {
		out[i] = store.Record{ID: it.ID, Position: i, Payload: it.Entity, Dirty: dirty}
	}
	return out
}

func rowsArray(rows [][]byte) []byte {
	var b bytes.Buffer
	b.WriteByte('[')
	for i, r := range rows {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(r)
	}
	b.WriteByte(']')
	return b.Bytes()
}

// SyncCollection mirrors one whole collection. The local cache is always
// written, with records marked dirty until the remote store confirms them.
// Remote failures are logged and swallowed; the local write is kept.
func (o *Orchestrator) SyncCollection(ctx context.Context, kind model.Kind, items []transform.Item) {
	g := o.guard(kind)
	g.Lock()
	defer g.Unlock()

	start := time.Now()
	defer func() { o.metrics.ObserveTask(string(kind), time.Since(start)) }()

	if err := o.local.Upsert(ctx, kind, records(items, true)); err != nil {
		o.log.Error("writing local cache", "kind", kind, "err", err)
		o.metrics.Op(string(kind), metrics.TargetLocal, metrics.ResultError)
	} else {
		o.metrics.Op(string(kind), metrics.TargetLocal, metrics.ResultOK)
	}

	if len(items) == 0 {
		return
	}
	if !o.RemoteAvailable(ctx) {
		o.log.Debug("remote store unavailable, kept local only", "kind", kind, "count", len(items))
		o.metrics.Op(string(kind), metrics.TargetRemote, metrics.ResultSkipped)
		return
	}

	rows := make([][]byte, len(items))
	ids := make([]string, len(items))
	for i, it := range items {
		rows[i] = it.Row
		ids[i] = it.ID
	}
	tbl := transform.Tables[kind]
	if err := o.remote.Upsert(ctx, tbl.Name, tbl.Columns, rowsArray(rows)); err != nil {
		o.log.Warn("remote sync failed, records left dirty", "kind", kind, "count", len(items), "err", err)
		o.metrics.Op(string(kind), metrics.TargetRemote, metrics.ResultError)
		return
	}
	o.metrics.Op(string(kind), metrics.TargetRemote, metrics.ResultOK)
	o.log.Debug("synced collection", "kind", kind, "count", len(items))

	if err := o.local.MarkClean(ctx, kind, ids...); err != nil {
		o.log.Error("clearing dirty markers", "kind", kind, "err", err)
	}
}

// Sync encodes entities with toRow and mirrors them with SyncCollection.
func Sync[T model.Entity, R any](ctx context.Context, o *Orchestrator, kind model.Kind, list []T, toRow func(T) R) error {
	items, err := transform.Encode(list, toRow)
	if err != nil {
		return err
	}
	o.SyncCollection(ctx, kind, items)
	return nil
}

// DeleteEntity removes one record from the remote store. When the remote
// store is configured but the delete cannot happen now, the id is kept as a
// pending delete for Reconcile.
func (o *Orchestrator) DeleteEntity(ctx context.Context, kind model.Kind, id string) {
	if !o.remote.Configured() {
		return
	}
	if o.RemoteAvailable(ctx) {
		err := o.remote.Delete(ctx, transform.Tables[kind].Name, id)
		if err == nil {
			o.metrics.Op(string(kind), metrics.TargetRemote, metrics.ResultOK)
			return
		}
		o.log.Warn("remote delete failed, queued for reconcile", "kind", kind, "id", id, "err", err)
		o.metrics.Op(string(kind), metrics.TargetRemote, metrics.ResultError)
	}
	if err := o.local.AddPendingDelete(ctx, kind, id); err != nil {
		o.log.Error("recording pending delete", "kind", kind, "id", id, "err", err)
	}
}

// Remove deletes ids from the local cache and the remote store.
func (o *Orchestrator) Remove(ctx context.Context, kind model.Kind, ids ...string) {
	if len(ids) == 0 {
		return
	}
	g := o.guard(kind)
	g.Lock()
	defer g.Unlock()

	if err := o.local.Delete(ctx, kind, ids...); err != nil {
		o.log.Error("deleting from local cache", "kind", kind, "err", err)
		o.metrics.Op(string(kind), metrics.TargetLocal, metrics.ResultError)
	}
	for _, id := range ids {
		o.DeleteEntity(ctx, kind, id)
	}
}

// ReconcileResult counts what a reconcile pass replayed.
type ReconcileResult struct {
	Pushed  int
	Deleted int
	Skipped bool
}

// Reconcile re-pushes dirty local records and replays pending deletes. It is
// a no-op when the remote store is unavailable.
func (o *Orchestrator) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	if !o.RemoteAvailable(ctx) {
		res.Skipped = true
		return res, nil
	}

	var errs []error
	for _, k := range model.Kinds {
		n, err := o.pushDirty(ctx, k)
		res.Pushed += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	pending, err := o.local.PendingDeletes(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("listing pending deletes: %w", err))
	}
	for _, pd := range pending {
		if err := o.remote.Delete(ctx, transform.Tables[pd.Kind].Name, pd.ID); err != nil {
			errs = append(errs, fmt.Errorf("replaying delete %s/%s: %w", pd.Kind, pd.ID, err))
			continue
		}
		if err := o.local.ClearPendingDelete(ctx, pd.Kind, pd.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Deleted++
	}

	if res.Pushed > 0 || res.Deleted > 0 {
		o.log.Info("reconciled with remote store", "pushed", res.Pushed, "deleted", res.Deleted)
	}
	return res, errors.Join(errs...)
}

func (o *Orchestrator) pushDirty(ctx context.Context, kind model.Kind) (int, error) {
	g := o.guard(kind)
	g.Lock()
	defer g.Unlock()

	dirty, err := o.local.Dirty(ctx, kind)
	if err != nil {
		return 0, fmt.Errorf("listing dirty %s: %w", kind, err)
	}
	if len(dirty) == 0 {
		return 0, nil
	}

	rows := make([][]byte, 0, len(dirty))
	ids := make([]string, 0, len(dirty))
	for _, r := range dirty {
		row, err := transform.RowFromEntity(kind, r.Payload)
		if err != nil {
			o.log.Error("skipping undecodable cached record", "kind", kind, "id", r.ID, "err", err)
			continue
		}
		rows = append(rows, row)
		ids = append(ids, r.ID)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tbl := transform.Tables[kind]
	if err := o.remote.Upsert(ctx, tbl.Name, tbl.Columns, rowsArray(rows)); err != nil {
		o.metrics.Op(string(kind), metrics.TargetRemote, metrics.ResultError)
		return 0, fmt.Errorf("pushing dirty %s: %w", kind, err)
	}
	o.metrics.Op(string(kind), metrics.TargetRemote, metrics.ResultOK)
	if err := o.local.MarkClean(ctx, kind, ids...); err != nil {
		return len(ids), fmt.Errorf("clearing dirty %s: %w", kind, err)
	}
	return len(ids), nil
}
