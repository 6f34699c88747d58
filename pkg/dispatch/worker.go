package dispatch

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/bastiangx/menuserve/internal/logger"
	"github.com/charmbracelet/log"
	"github.com/panjf2000/ants/v2"
)

// Handler processes one popped item.
type Handler func(ctx context.Context, e Entry) error

// Worker drains a Queue into a pool of goroutines.
type Worker struct {
	queue   *Queue
	pool    *ants.Pool
	handler Handler
	idle    time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker) error

// WithPoolSize sets the number of concurrent handlers.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) WorkerOption {
	return func(w *Worker) error {
		if size < 1 {
			size = 1
		}
		if w.pool != nil {
			w.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		w.pool = pool
		return nil
	}
}

// WithIdleInterval sets how often an idle worker re-checks the queue
// when no push notification arrives. Default is one second.
func WithIdleInterval(d time.Duration) WorkerOption {
	return func(w *Worker) error {
		if d > 0 {
			w.idle = d
		}
		return nil
	}
}

// WithWorkerLogger sets a custom logger.
func WithWorkerLogger(l *log.Logger) WorkerOption {
	return func(w *Worker) error {
		if l != nil {
			w.logger = l
		}
		return nil
	}
}

// NewWorker creates a worker over q.
func NewWorker(q *Queue, handler Handler, opts ...WorkerOption) (*Worker, error) {
	if q == nil {
		return nil, ErrQueueRequired
	}
	if handler == nil {
		return nil, ErrHandlerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	w := &Worker{
		queue:   q,
		pool:    pool,
		handler: handler,
		idle:    time.Second,
		logger:  logger.New("dispatch"),
	}
	for _, opt := range opts {
		if optErr := opt(w); optErr != nil {
			w.pool.Release()
			return nil, optErr
		}
	}
	return w, nil
}

// Run pops entries and hands them to the pool until ctx is done. Entries
// are popped in priority order; with more than one pool goroutine their
// handlers may finish out of order. Run waits for in-flight handlers before
// returning.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.idle)
	defer ticker.Stop()
	defer w.wg.Wait()

	for {
		if ctx.Err() != nil {
			return nil
		}

		e, ok := w.queue.PopMin()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-w.queue.Notify():
			case <-ticker.C:
			}
			continue
		}

		w.wg.Add(1)
		entry := e
		err := w.pool.Submit(func() {
			defer w.wg.Done()
			if herr := w.handler(ctx, entry); herr != nil {
				w.logger.Error("dispatch handler failed", "id", entry.ID, "priority", entry.Priority, "err", herr)
			}
		})
		if err != nil {
			w.wg.Done()
			w.logger.Warn("pool rejected entry, requeueing", "id", entry.ID, "err", err)
			if perr := w.queue.Push(entry.ID, entry.Priority); perr != nil {
				w.logger.Error("requeue failed", "id", entry.ID, "err", perr)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
}

// Release frees the pool. Call after Run returns.
func (w *Worker) Release() {
	w.pool.Release()
}
