// Package daemon provides the long-running sync service and its HTTP API.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/theirongolddev/opsdash/internal/metrics"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/state"
	"github.com/theirongolddev/opsdash/internal/store"
	"github.com/theirongolddev/opsdash/internal/syncer"
	"github.com/theirongolddev/opsdash/internal/transform"
)

const maxBodyBytes = 8 << 20

// Config controls the daemon runtime behavior.
type Config struct {
	Addr         string
	Interval     time.Duration
	EventsBuffer int
}

// StatsReader reports local cache bookkeeping. *store.Cache implements it.
type StatsReader interface {
	Stats(ctx context.Context) (store.Stats, error)
}

// Snapshot is the compact dashboard state carried by status and events.
type Snapshot struct {
	At                time.Time          `json:"at"`
	Source            syncer.Source      `json:"source"`
	Counts            map[model.Kind]int `json:"counts"`
	ActiveCustomers   int                `json:"active_customers"`
	MRR               float64            `json:"mrr"`
	MonthlyExpenses   float64            `json:"monthly_expenses"`
	NetProfit         float64            `json:"net_profit"`
	FailedAutomations int                `json:"failed_automations"`
}

// Delta captures how the headline numbers moved between two snapshots.
type Delta struct {
	ActiveCustomers int     `json:"active_customers"`
	MRR             float64 `json:"mrr"`
	MonthlyExpenses float64 `json:"monthly_expenses"`
	NetProfit       float64 `json:"net_profit"`
}

func (d Delta) isZero() bool {
	return d.ActiveCustomers == 0 &&
		d.MRR == 0 &&
		d.MonthlyExpenses == 0 &&
		d.NetProfit == 0
}

// Changes lists the record ids touched by one collection update.
type Changes struct {
	Added   []string `json:"added,omitempty"`
	Updated []string `json:"updated,omitempty"`
	Removed []string `json:"removed,omitempty"`
}

// Event is emitted for loads, collection updates and tick-driven
// aggregate changes.
type Event struct {
	ID        int64      `json:"id"`
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Kind      model.Kind `json:"kind,omitempty"`
	Changes   *Changes   `json:"changes,omitempty"`
	Snapshot  Snapshot   `json:"snapshot"`
	Delta     Delta      `json:"delta"`
}

// Event types.
const (
	EventSnapshot   = "snapshot"
	EventCollection = "collection_update"
	EventRefresh    = "aggregates_refresh"
)

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time     `json:"started_at"`
	LastTickAt      time.Time     `json:"last_tick_at"`
	TickIntervalSec int           `json:"tick_interval_sec"`
	TickCount       int64         `json:"tick_count"`
	Source          syncer.Source `json:"source"`
	Summary         Snapshot      `json:"summary"`
	DirtyRecords    int           `json:"dirty_records"`
	PendingDeletes  int           `json:"pending_deletes"`
	LastPushed      int           `json:"last_reconcile_pushed"`
	LastDeleted     int           `json:"last_reconcile_deleted"`
	LastError       string        `json:"last_error,omitempty"`
	EventCount      int           `json:"event_count"`
	SubscriberCount int           `json:"subscriber_count"`
}

// Service runs the reconcile tick and serves the HTTP API on top of a
// loaded state container.
type Service struct {
	cfg     Config
	state   *state.Container
	cache   StatsReader
	metrics *metrics.Sync
	log     *slog.Logger

	mu          sync.RWMutex
	startedAt   time.Time
	lastTickAt  time.Time
	tickCount   int64
	lastError   string
	stats       store.Stats
	reconciled  syncer.ReconcileResult
	snapshot    Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a daemon service. cache and m may be nil.
func New(cfg Config, st *state.Container, cache StatsReader, m *metrics.Sync, log *slog.Logger) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 60 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	s := &Service{
		cfg:       cfg,
		state:     st,
		cache:     cache,
		metrics:   m,
		log:       log,
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
	s.snapshot = s.currentSnapshot(time.Now())
	return s
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/aggregates", s.handleAggregates)
	mux.HandleFunc("GET /v1/collections/{kind}", s.handleGetCollection)
	mux.HandleFunc("PUT /v1/collections/{kind}", s.handlePutCollection)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.Handle("GET /metrics", s.metrics.Handler())
	return mux
}

// Run serves the API and ticks until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("daemon listening", "addr", s.cfg.Addr, "interval", s.cfg.Interval)

	changes, cancel := s.state.Subscribe(64)
	defer cancel()

	s.publishEvent(EventSnapshot, "", nil)
	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.tick(ctx)
		case ch, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			s.onChange(ch)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) onChange(ch state.Change) {
	if ch.Reason == state.ReasonLoad {
		s.publishEvent(EventSnapshot, "", nil)
		return
	}
	s.publishEvent(EventCollection, ch.Kind, &Changes{
		Added:   ch.Delta.Added,
		Updated: ch.Delta.Updated,
		Removed: ch.Delta.Removed,
	})
}

// tick replays the sync backlog, refreshes month-dependent aggregates and
// updates the backlog gauges.
func (s *Service) tick(ctx context.Context) {
	res, err := s.state.Reconcile(ctx)
	if err != nil {
		s.log.Warn("reconcile failed", "err", err)
	}
	s.state.Refresh()

	var stats store.Stats
	var statsErr error
	if s.cache != nil {
		stats, statsErr = s.cache.Stats(ctx)
		if statsErr != nil {
			s.log.Error("reading cache stats", "err", statsErr)
		} else {
			s.metrics.Backlog(stats.DirtyTotal(), stats.PendingDeletes)
		}
	}

	s.mu.Lock()
	s.lastTickAt = time.Now()
	s.tickCount++
	s.reconciled = res
	if statsErr == nil {
		s.stats = stats
	}
	switch {
	case err != nil:
		s.lastError = err.Error()
	case statsErr != nil:
		s.lastError = statsErr.Error()
	default:
		s.lastError = ""
	}
	s.mu.Unlock()

	s.publishEvent(EventRefresh, "", nil)
}

func (s *Service) currentSnapshot(at time.Time) Snapshot {
	c, agg := s.state.Snapshot()
	counts := make(map[model.Kind]int, len(model.Kinds))
	for _, k := range model.Kinds {
		counts[k] = c.Len(k)
	}
	return Snapshot{
		At:                at,
		Source:            s.state.Source(),
		Counts:            counts,
		ActiveCustomers:   agg.KPIs.ActiveCustomers,
		MRR:               agg.FinancialKPIs.MRR,
		MonthlyExpenses:   agg.KPIs.MonthlyExpenses,
		NetProfit:         agg.KPIs.NetProfit,
		FailedAutomations: agg.AutomationKPIs.FailedCount,
	}
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		ActiveCustomers: curr.ActiveCustomers - prev.ActiveCustomers,
		MRR:             curr.MRR - prev.MRR,
		MonthlyExpenses: curr.MonthlyExpenses - prev.MonthlyExpenses,
		NetProfit:       curr.NetProfit - prev.NetProfit,
	}
}

// publishEvent records an event for the current state. Refresh events are
// only kept when the headline numbers moved.
func (s *Service) publishEvent(typ string, kind model.Kind, changes *Changes) {
	now := time.Now()
	snap := s.currentSnapshot(now)

	s.mu.Lock()
	defer s.mu.Unlock()

	delta := diffSnapshots(s.snapshot, snap)
	s.snapshot = snap
	if typ == EventRefresh && delta.isZero() {
		return
	}

	s.nextEventID++
	s.appendEvent(Event{
		ID:        s.nextEventID,
		Type:      typ,
		Timestamp: now,
		Kind:      kind,
		Changes:   changes,
		Snapshot:  snap,
		Delta:     delta,
	})
}

// appendEvent stores ev in the ring buffer and fans it out. s.mu must be held.
func (s *Service) appendEvent(ev Event) {
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastTickAt:      s.lastTickAt,
		TickIntervalSec: int(s.cfg.Interval.Seconds()),
		TickCount:       s.tickCount,
		Source:          s.snapshot.Source,
		Summary:         s.snapshot,
		DirtyRecords:    s.stats.DirtyTotal(),
		PendingDeletes:  s.stats.PendingDeletes,
		LastPushed:      s.reconciled.Pushed,
		LastDeleted:     s.reconciled.Deleted,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleAggregates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state.Aggregates())
}

func (s *Service) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	items, err := transform.Items(s.state.Collections(), kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		out = append(out, it.Entity)
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePutCollection replaces a whole collection with the JSON array in
// the request body.
func (s *Service) handlePutCollection(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("body must be a JSON array: %w", err))
		return
	}
	payloads := make([][]byte, len(raw))
	for i, p := range raw {
		payloads[i] = p
	}

	var next model.Collections
	if err := transform.Assign(&next, kind, payloads); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.state.Replace(kind, next); err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, state.ErrNotLoaded), errors.Is(err, state.ErrClosed):
			code = http.StatusServiceUnavailable
		case errors.Is(err, model.ErrDuplicateID), errors.Is(err, state.ErrInvalidBudget):
			code = http.StatusBadRequest
		}
		writeError(w, code, err)
		return
	}

	c := s.state.Collections()
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "count": c.Len(kind)})
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      EventSnapshot,
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
