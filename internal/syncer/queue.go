package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/theirongolddev/opsdash/internal/metrics"
	"github.com/theirongolddev/opsdash/internal/model"
	"github.com/theirongolddev/opsdash/internal/transform"
)

// DefaultTaskTimeout bounds one sync task so a hung remote call cannot wedge
// its queue.
const DefaultTaskTimeout = 30 * time.Second

// Task mirrors one collection snapshot and propagates its removals.
type Task struct {
	Kind    model.Kind
	Items   []transform.Item
	Removed []string
}

// lane is a thread-safe FIFO of tasks for one kind.
type lane struct {
	mu      sync.Mutex
	tasks   []Task
	pending int // queued plus running
	closed  bool
	signal  chan struct{} // buffered, size 1
	idle    chan struct{} // closed when pending drops to 0
}

func newLane() *lane {
	idle := make(chan struct{})
	close(idle)
	return &lane{
		tasks:  make([]Task, 0, 8),
		signal: make(chan struct{}, 1),
		idle:   idle,
	}
}

func (l *lane) enqueue(t Task) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, false
	}
	l.tasks = append(l.tasks, t)
	l.pending++
	if l.pending == 1 {
		l.idle = make(chan struct{})
	}

	select {
	case l.signal <- struct{}{}:
	default:
	}
	return len(l.tasks), true
}

// next blocks until a task is available. It returns false once the lane is
// closed and empty.
func (l *lane) next() (Task, int, bool) {
	for {
		l.mu.Lock()
		if len(l.tasks) > 0 {
			t := l.tasks[0]
			l.tasks[0] = Task{}
			l.tasks = l.tasks[1:]
			depth := len(l.tasks)
			l.mu.Unlock()
			return t, depth, true
		}
		if l.closed {
			l.mu.Unlock()
			return Task{}, 0, false
		}
		l.mu.Unlock()
		<-l.signal
	}
}

func (l *lane) done() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending--
	if l.pending == 0 {
		close(l.idle)
	}
}

func (l *lane) idleCh() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.idle
}

func (l *lane) close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// Queue runs sync tasks with one FIFO and one worker per kind. Tasks of the
// same kind run one at a time in the order they were enqueued; different
// kinds proceed independently.
type Queue struct {
	o       *Orchestrator
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Sync
	lanes   map[model.Kind]*lane
	wg      sync.WaitGroup
	once    sync.Once
}

// NewQueue starts one worker per kind. A non-positive timeout uses
// DefaultTaskTimeout.
func NewQueue(o *Orchestrator, timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	q := &Queue{
		o:       o,
		timeout: timeout,
		log:     o.log,
		metrics: o.metrics,
		lanes:   make(map[model.Kind]*lane, len(model.Kinds)),
	}
	for _, k := range model.Kinds {
		l := newLane()
		q.lanes[k] = l
		q.wg.Add(1)
		go q.run(k, l)
	}
	return q
}

func (q *Queue) run(kind model.Kind, l *lane) {
	defer q.wg.Done()
	for {
		t, depth, ok := l.next()
		if !ok {
			return
		}
		q.metrics.QueueDepth(string(kind), depth)
		q.exec(t)
		l.done()
	}
}

func (q *Queue) exec(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("sync task panicked", "kind", t.Kind, "panic", r)
		}
	}()

	q.o.SyncCollection(ctx, t.Kind, t.Items)
	q.o.Remove(ctx, t.Kind, t.Removed...)
}

// Enqueue adds a task without blocking. It returns false if the queue is
// closed or the kind is unknown.
func (q *Queue) Enqueue(t Task) bool {
	l, ok := q.lanes[t.Kind]
	if !ok {
		q.log.Error("dropping sync task for unknown kind", "kind", t.Kind)
		return false
	}
	depth, ok := l.enqueue(t)
	if !ok {
		return false
	}
	q.metrics.QueueDepth(string(t.Kind), depth)
	return true
}

// Flush waits until every queued task has finished or ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	for _, k := range model.Kinds {
		select {
		case <-q.lanes[k].idleCh():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops accepting tasks, drains what is queued and stops the workers.
func (q *Queue) Close() {
	q.once.Do(func() {
		for _, l := range q.lanes {
			l.close()
		}
		q.wg.Wait()
	})
}
