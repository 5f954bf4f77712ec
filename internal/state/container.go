// Package state owns the in-memory collections and derived aggregates and
// turns every whole-collection replacement into a sync task.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/pipeline"
	"github.com/theirongolddev/opsdash/internal/syncer"
	"github.com/theirongolddev/opsdash/internal/transform"
)

var (
	// ErrNotLoaded is returned by mutations issued before Load succeeded.
	ErrNotLoaded = errors.New("state not loaded")
	// ErrClosed is returned by mutations issued after Close.
	ErrClosed = errors.New("state container closed")
)

// Reason says what produced a Change.
type Reason string

const (
	ReasonLoad   Reason = "load"
	ReasonUpdate Reason = "update"
)

// Change is delivered to subscribers after the in-memory state changed.
type Change struct {
	Reason Reason
	Kind   model.Kind // empty for ReasonLoad
	Delta  syncer.Delta
	At     time.Time
}

// Options configures a Container.
type Options struct {
	Logger      *slog.Logger
	TaskTimeout time.Duration
	// Now is the clock used for aggregates and dated records.
	Now func() time.Time
}

// Container holds the seven base collections and their aggregates. Reads
// return copies. Mutations update memory and aggregates synchronously and
// hand persistence to the per-kind sync queue.
type Container struct {
	mu     sync.RWMutex
	data   model.Collections
	snap   map[model.Kind][]transform.Item
	agg    model.Aggregates
	source syncer.Source
	loaded bool
	closed bool

	orch  *syncer.Orchestrator
	queue *syncer.Queue
	log   *slog.Logger
	now   func() time.Time

	subMu  sync.Mutex
	subs   map[int]chan Change
	nextID int
}

// New creates a container on top of an orchestrator and starts its sync
// queue. Call Load before any mutation and Close when done.
func New(o *syncer.Orchestrator, opts Options) *Container {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Container{
		snap:  make(map[model.Kind][]transform.Item, len(model.Kinds)),
		orch:  o,
		queue: syncer.NewQueue(o, opts.TaskTimeout),
		log:   log,
		now:   now,
		subs:  make(map[int]chan Change),
	}
}

// Load reads all collections through the orchestrator and replaces the
// in-memory state. Loading does not enqueue any sync task.
func (c *Container) Load(ctx context.Context) (syncer.Source, error) {
	data, src, err := c.orch.LoadAll(ctx)
	if err != nil {
		return src, fmt.Errorf("loading collections: %w", err)
	}

	snap := make(map[model.Kind][]transform.Item, len(model.Kinds))
	for _, k := range model.Kinds {
		items, err := transform.Items(data, k)
		if err != nil {
			return src, fmt.Errorf("encoding %s: %w", k, err)
		}
		snap[k] = items
	}

	now := c.now()
	c.mu.Lock()
	c.data = data
	c.snap = snap
	c.source = src
	c.loaded = true
	c.agg = pipeline.Compute(data, now)
	c.mu.Unlock()

	c.log.Info("state loaded", "source", src, "customers", len(data.Customers), "payments", len(data.PaymentHistory))
	c.publish(Change{Reason: ReasonLoad, At: now})
	return src, nil
}

// Source reports where the last Load read from.
func (c *Container) Source() syncer.Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// Collections returns a copy of every collection.
func (c *Container) Collections() model.Collections {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Clone()
}

// Aggregates returns the aggregates computed at the last change.
func (c *Container) Aggregates() model.Aggregates {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneAggregates(c.agg)
}

// Snapshot returns collections and aggregates read under one lock.
func (c *Container) Snapshot() (model.Collections, model.Aggregates) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Clone(), cloneAggregates(c.agg)
}

// Refresh recomputes the aggregates against the current clock, so month
// boundaries are picked up without a mutation.
func (c *Container) Refresh() model.Aggregates {
	now := c.now()
	c.mu.Lock()
	c.agg = pipeline.Compute(c.data, now)
	agg := cloneAggregates(c.agg)
	c.mu.Unlock()
	return agg
}

func cloneAggregates(a model.Aggregates) model.Aggregates {
	a.Charts.RevenueExpenses = append([]model.MonthPoint(nil), a.Charts.RevenueExpenses...)
	a.Charts.ServiceDistribution = append([]model.ShareSlice(nil), a.Charts.ServiceDistribution...)
	a.Charts.CustomerStatus = append([]model.StatusCount(nil), a.Charts.CustomerStatus...)
	return a
}

// mutate applies fn to a copy of the collections. For every kind listed it
// diffs against the last snapshot, then commits the copy, recomputes
// aggregates and enqueues one sync task per changed kind. Enqueueing under
// the lock keeps queue order equal to mutation order.
func (c *Container) mutate(fn func(*model.Collections) error, kinds ...model.Kind) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.loaded {
		c.mu.Unlock()
		return ErrNotLoaded
	}

	next := c.data.Clone()
	if err := fn(&next); err != nil {
		c.mu.Unlock()
		return err
	}

	type pending struct {
		kind  model.Kind
		items []transform.Item
		delta syncer.Delta
	}
	var changed []pending
	for _, k := range kinds {
		items, err := transform.Items(next, k)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("encoding %s: %w", k, err)
		}
		if id, ok := repeatedID(items); ok {
			c.mu.Unlock()
			return fmt.Errorf("%s: %w: %s", k, model.ErrDuplicateID, id)
		}
		d := syncer.Diff(c.snap[k], items)
		if d.Empty() {
			continue
		}
		changed = append(changed, pending{kind: k, items: items, delta: d})
	}
	if len(changed) == 0 {
		c.mu.Unlock()
		return nil
	}

	now := c.now()
	c.data = next
	for _, p := range changed {
		c.snap[p.kind] = p.items
		if !c.queue.Enqueue(syncer.Task{Kind: p.kind, Items: p.items, Removed: p.delta.Removed}) {
			c.log.Error("sync queue rejected task", "kind", p.kind)
		}
	}
	c.agg = pipeline.Compute(c.data, now)
	c.mu.Unlock()

	for _, p := range changed {
		c.log.Debug("collection changed", "kind", p.kind,
			"added", len(p.delta.Added), "updated", len(p.delta.Updated), "removed", len(p.delta.Removed))
		c.publish(Change{Reason: ReasonUpdate, Kind: p.kind, Delta: p.delta, At: now})
	}
	return nil
}

func repeatedID(items []transform.Item) (string, bool) {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ID]; dup {
			return it.ID, true
		}
		seen[it.ID] = struct{}{}
	}
	return "", false
}

// Flush waits until every enqueued sync task has finished.
func (c *Container) Flush(ctx context.Context) error {
	return c.queue.Flush(ctx)
}

// Reconcile re-pushes dirty records and replays pending deletes.
func (c *Container) Reconcile(ctx context.Context) (syncer.ReconcileResult, error) {
	return c.orch.Reconcile(ctx)
}

// Close rejects further mutations, drains the sync queue and closes every
// subscription.
func (c *Container) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.queue.Close()

	c.subMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subMu.Unlock()
}
