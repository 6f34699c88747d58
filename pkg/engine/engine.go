// Package engine wires the search coordinator, order queue and recommender
// into one owned object with a single teardown, built from config.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bastiangx/menuserve/internal/logger"
	"github.com/bastiangx/menuserve/pkg/catalog"
	"github.com/bastiangx/menuserve/pkg/config"
	"github.com/bastiangx/menuserve/pkg/dispatch"
	"github.com/bastiangx/menuserve/pkg/metrics"
	"github.com/bastiangx/menuserve/pkg/recommend"
	"github.com/bastiangx/menuserve/pkg/search"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrClosed is returned when starting background work on a closed engine.
var ErrClosed = errors.New("engine: closed")

// Engine owns every component. Fields are safe to use directly; lifecycle
// goes through the methods.
type Engine struct {
	Config      *config.Config
	Search      *search.Coordinator
	Queue       *dispatch.Queue
	Recommender *recommend.Recommender
	// Priority scores orders pushed through PushOrder. Its epoch is the
	// engine start time.
	Priority dispatch.OrderPriority

	source   catalog.Source
	registry *prometheus.Registry
	logger   *log.Logger
	clock    func() time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	wg      sync.WaitGroup
	workers []*dispatch.Worker
	closed  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithSource sets the catalog source used by Load, lazy rebuilds and the watcher.
func WithSource(src catalog.Source) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.clock = now
	}
}

// New validates cfg and builds every component from it. A nil cfg means
// defaults. Indexes stay empty until Load or BuildIndexes.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		Config:   cfg,
		registry: metrics.NewRegistry(),
		logger:   logger.New("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	now := e.clock
	if now == nil {
		now = time.Now
	}
	e.Priority = dispatch.DefaultOrderPriority(now())

	searchOpts := []search.Option{
		search.WithTTL(cfg.Search.TTL()),
		search.WithCacheCapacity(cfg.Cache.SearchCapacity),
		search.WithFalsePositiveRate(cfg.Bloom.FalsePositiveRate),
		search.WithLogger(e.logger.WithPrefix("search")),
	}
	if e.source != nil {
		searchOpts = append(searchOpts, search.WithSource(e.source))
	}
	if e.clock != nil {
		searchOpts = append(searchOpts, search.WithClock(e.clock))
	}
	coord, err := search.New(searchOpts...)
	if err != nil {
		return nil, fmt.Errorf("engine: search: %w", err)
	}

	queue, err := dispatch.NewQueue(cfg.Dispatch.Capacity, dispatch.WithCompactRatio(cfg.Dispatch.CompactRatio))
	if err != nil {
		return nil, fmt.Errorf("engine: dispatch: %w", err)
	}

	rec, err := recommend.New(
		recommend.WithMinSimilarity(cfg.Recommend.MinSimilarity),
		recommend.WithMaxNeighbors(cfg.Recommend.MaxNeighbors),
		recommend.WithCacheCapacity(cfg.Cache.RecommendCapacity),
		recommend.WithLogger(e.logger.WithPrefix("recommend")),
	)
	if err != nil {
		return nil, fmt.Errorf("engine: recommend: %w", err)
	}

	e.Search = coord
	e.Queue = queue
	e.Recommender = rec
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e, nil
}

// PushOrder queues an order under the engine's priority policy and returns
// the priority it got. A zero SubmittedAt means now.
func (e *Engine) PushOrder(id string, o dispatch.Order) (float64, error) {
	if o.SubmittedAt.IsZero() {
		o.SubmittedAt = e.now()
	}
	p := e.Priority.Priority(o)
	if err := e.Queue.Push(id, p); err != nil {
		return 0, err
	}
	return p, nil
}

func (e *Engine) now() time.Time {
	if e.clock != nil {
		return e.clock()
	}
	return time.Now()
}

// Load builds the indexes from the configured source.
func (e *Engine) Load(ctx context.Context) error {
	return e.Search.Rebuild(ctx)
}

// Registry returns the registry every menuserve collector is registered on.
func (e *Engine) Registry() *prometheus.Registry {
	return e.registry
}

// StartDispatch runs a dispatch worker over the queue until ctx ends or the
// engine closes.
func (e *Engine) StartDispatch(ctx context.Context, handler dispatch.Handler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	w, err := dispatch.NewWorker(e.Queue, handler,
		dispatch.WithPoolSize(e.Config.Dispatch.Workers),
		dispatch.WithIdleInterval(e.Config.Dispatch.IdleInterval()),
		dispatch.WithWorkerLogger(e.logger.WithPrefix("dispatch")),
	)
	if err != nil {
		return err
	}
	e.workers = append(e.workers, w)

	runCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(e.ctx, cancel)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer stop()
		defer cancel()
		if err := w.Run(runCtx); err != nil {
			e.logger.Error("Dispatch worker stopped", "err", err)
		}
	}()
	e.logger.Debug("Started dispatch worker", "pool", e.Config.Dispatch.Workers)
	return nil
}

// WatchCatalog rebuilds the indexes whenever the file at path changes.
func (e *Engine) WatchCatalog(path string, debounce time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.source == nil {
		return search.ErrNoSource
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		err := catalog.Watch(e.ctx, path, debounce, func() {
			if err := e.Search.Rebuild(e.ctx); err != nil {
				e.logger.Warn("Catalog reload failed", "path", path, "err", err)
				return
			}
			e.logger.Info("Catalog reloaded", "path", path, "generation", e.Search.Generation())
		})
		if err != nil {
			e.logger.Error("Catalog watcher stopped", "path", path, "err", err)
		}
	}()
	return nil
}

// Close stops the watcher and every worker, waiting for in-flight handlers.
// Calling it again is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.cancel()
	workers := e.workers
	e.mu.Unlock()

	e.wg.Wait()
	for _, w := range workers {
		w.Release()
	}
	e.logger.Debug("Engine closed")
	return nil
}
