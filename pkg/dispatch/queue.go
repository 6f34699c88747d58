// Package dispatch orders pending work (orders) by a caller-computed
// priority. Lower priority values pop first; equal priorities pop in push
// order. Removal is lazy: a removed entry is tombstoned and skipped when it
// surfaces, and the heap is compacted once tombstones pile up.
package dispatch

import (
	"math"
	"sync"

	"github.com/bastiangx/menuserve/pkg/metrics"
)

// DefaultCompactRatio triggers compaction when more than half the heap is tombstones.
const DefaultCompactRatio = 0.5

// minCompactSize keeps tiny heaps from compacting on every removal.
const minCompactSize = 32

// Entry is one queued item.
type Entry struct {
	ID       string
	Priority float64
	Sequence uint64

	tombstoned bool
}

// Queue is a bounded min-heap with lazy deletion. Safe for concurrent use.
type Queue struct {
	mu           sync.Mutex
	capacity     int
	compactRatio float64

	heap       []*Entry
	live       map[string]*Entry
	tombstones int
	seq        uint64

	notify chan struct{}
}

// Option configures a Queue.
type Option func(*Queue)

// WithCompactRatio sets the tombstone share that triggers a heap rebuild.
// Values outside (0, 1] are ignored.
func WithCompactRatio(ratio float64) Option {
	return func(q *Queue) {
		if ratio > 0 && ratio <= 1 {
			q.compactRatio = ratio
		}
	}
}

// NewQueue creates a queue holding at most capacity live entries.
func NewQueue(capacity int, opts ...Option) (*Queue, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	q := &Queue{
		capacity:     capacity,
		compactRatio: DefaultCompactRatio,
		live:         make(map[string]*Entry),
		notify:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Push queues id at priority in O(log n). Pushing an id that is already
// queued re-prioritizes it: the old entry is tombstoned and the new one
// takes a fresh sequence number.
func (q *Queue) Push(id string, priority float64) error {
	if id == "" {
		return ErrEmptyID
	}
	if math.IsNaN(priority) {
		return ErrInvalidPriority
	}

	q.mu.Lock()
	if old, ok := q.live[id]; ok {
		q.tombstone(old)
	} else if len(q.live) >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}

	q.seq++
	e := &Entry{ID: id, Priority: priority, Sequence: q.seq}
	q.live[id] = e
	q.heap = append(q.heap, e)
	q.siftUp(len(q.heap) - 1)
	q.maybeCompact()
	q.updateDepth()
	q.mu.Unlock()

	metrics.QueueOpsTotal.WithLabelValues("push").Inc()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// PopMin removes and returns the live entry with the lowest priority,
// lowest sequence first among equals. ok is false when nothing is live.
func (q *Queue) PopMin() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) > 0 {
		top := q.popTop()
		if top.tombstoned {
			q.tombstones--
			continue
		}
		delete(q.live, top.ID)
		q.updateDepth()
		metrics.QueueOpsTotal.WithLabelValues("pop").Inc()
		return *top, true
	}
	q.updateDepth()
	return Entry{}, false
}

// Peek returns the next entry PopMin would return without removing it.
func (q *Queue) Peek() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// drop tombstones sitting on top so the answer is O(1) next time
	for len(q.heap) > 0 && q.heap[0].tombstoned {
		q.popTop()
		q.tombstones--
	}
	if len(q.heap) == 0 {
		return Entry{}, false
	}
	return *q.heap[0], true
}

// Remove tombstones id in O(1) without restructuring the heap. It reports
// whether a live entry was found; popped or unknown ids return false.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.live[id]
	if !ok {
		return false
	}
	q.tombstone(e)
	q.maybeCompact()
	q.updateDepth()
	metrics.QueueOpsTotal.WithLabelValues("remove").Inc()
	return true
}

// Contains reports whether id is queued and live.
func (q *Queue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.live[id]
	return ok
}

// Len returns the number of live entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.live)
}

// IsEmpty reports whether no live entries remain.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Notify is signalled after every successful Push. It is buffered by one,
// so a burst of pushes collapses to a single wake-up.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

// Stats returns live, tombstoned and heap slot counts.
func (q *Queue) Stats() map[string]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return map[string]int{
		"live":       len(q.live),
		"tombstoned": q.tombstones,
		"heapSlots":  len(q.heap),
		"capacity":   q.capacity,
	}
}

func (q *Queue) tombstone(e *Entry) {
	e.tombstoned = true
	delete(q.live, e.ID)
	q.tombstones++
}

// maybeCompact rebuilds the heap from live entries once tombstones exceed
// the configured share of heap slots.
func (q *Queue) maybeCompact() {
	n := len(q.heap)
	if n < minCompactSize || float64(q.tombstones) <= q.compactRatio*float64(n) {
		return
	}
	kept := make([]*Entry, 0, len(q.live))
	for _, e := range q.heap {
		if !e.tombstoned {
			kept = append(kept, e)
		}
	}
	q.heap = kept
	q.tombstones = 0
	for i := len(q.heap)/2 - 1; i >= 0; i-- {
		q.siftDown(i)
	}
	metrics.QueueOpsTotal.WithLabelValues("compact").Inc()
}

func (q *Queue) updateDepth() {
	metrics.QueueDepth.WithLabelValues("live").Set(float64(len(q.live)))
	metrics.QueueDepth.WithLabelValues("tombstoned").Set(float64(q.tombstones))
}

func (q *Queue) popTop() *Entry {
	n := len(q.heap)
	top := q.heap[0]
	last := q.heap[n-1]
	q.heap[n-1] = nil
	q.heap = q.heap[:n-1]
	if n-1 > 0 {
		q.heap[0] = last
		q.siftDown(0)
	}
	return top
}

func (q *Queue) less(i, j int) bool {
	a, b := q.heap[i], q.heap[j]
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Sequence < b.Sequence
}

func (q *Queue) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.heap[i], q.heap[p] = q.heap[p], q.heap[i]
		i = p
	}
}

func (q *Queue) siftDown(i int) {
	n := len(q.heap)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.heap[i], q.heap[best] = q.heap[best], q.heap[i]
		i = best
	}
}
