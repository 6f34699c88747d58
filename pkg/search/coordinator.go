// Package search is the catalog search facade. It owns one prefix index,
// one membership filter and one result cache per entity kind, and swaps in
// freshly built indexes without ever exposing a half-built one.
package search

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/menuserve/internal/logger"
	"github.com/bastiangx/menuserve/internal/utils"
	"github.com/bastiangx/menuserve/pkg/cache"
	"github.com/bastiangx/menuserve/pkg/catalog"
	"github.com/bastiangx/menuserve/pkg/metrics"
	"github.com/charmbracelet/log"
)

const (
	DefaultTTL               = 300 * time.Second
	DefaultCacheCapacity     = 1000
	DefaultFalsePositiveRate = 0.01

	// prewarmPrefixRunes bounds the prefixes cached right after a build.
	prewarmPrefixRunes = 2
)

// State is the coordinator lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateStale
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	default:
		return "uninitialized"
	}
}

// Coordinator serves searches over the active snapshot. Safe for
// concurrent use.
type Coordinator struct {
	active atomic.Pointer[snapshot]
	caches map[catalog.Kind]*cache.LRU[[]catalog.Entity]

	// buildMu serializes builds. Lazy rebuilds only TryLock it so searches
	// never queue behind a build.
	buildMu    sync.Mutex
	generation atomic.Uint64

	source        catalog.Source
	ttl           time.Duration
	cacheCapacity int
	fpRate        float64
	now           func() time.Time
	logger        *log.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithSource sets where Rebuild and lazy rebuilds load entities from.
func WithSource(src catalog.Source) Option {
	return func(c *Coordinator) error {
		c.source = src
		return nil
	}
}

// WithTTL sets how long a snapshot stays fresh. Zero disables staleness.
func WithTTL(ttl time.Duration) Option {
	return func(c *Coordinator) error {
		if ttl < 0 {
			return fmt.Errorf("%w: ttl %v", ErrInvalidParams, ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithCacheCapacity sets the per-domain result cache size.
func WithCacheCapacity(n int) Option {
	return func(c *Coordinator) error {
		if n <= 0 {
			return cache.ErrInvalidCapacity
		}
		c.cacheCapacity = n
		return nil
	}
}

// WithFalsePositiveRate sets the membership filter target rate.
func WithFalsePositiveRate(p float64) Option {
	return func(c *Coordinator) error {
		if p <= 0 || p >= 1 {
			return fmt.Errorf("%w: false positive rate %v", ErrInvalidParams, p)
		}
		c.fpRate = p
		return nil
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) error {
		if l != nil {
			c.logger = l
		}
		return nil
	}
}

// New creates an uninitialized coordinator.
func New(opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		ttl:           DefaultTTL,
		cacheCapacity: DefaultCacheCapacity,
		fpRate:        DefaultFalsePositiveRate,
		now:           time.Now,
		logger:        logger.New("search"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.caches = make(map[catalog.Kind]*cache.LRU[[]catalog.Entity], len(catalog.Kinds))
	for _, kind := range catalog.Kinds {
		lru, err := cache.New[[]catalog.Entity](c.cacheCapacity, cache.WithName(kind.String()))
		if err != nil {
			return nil, err
		}
		c.caches[kind] = lru
	}
	return c, nil
}

// BuildIndexes validates entities, builds new indexes off to the side and
// publishes them in one atomic swap. On error the previous snapshot stays
// live.
func (c *Coordinator) BuildIndexes(entities []catalog.Entity) error {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	return c.build(entities)
}

// Rebuild loads the source and rebuilds from it.
func (c *Coordinator) Rebuild(ctx context.Context) error {
	if c.source == nil {
		return ErrNoSource
	}
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	return c.rebuildLocked(ctx)
}

func (c *Coordinator) rebuildLocked(ctx context.Context) error {
	entities, err := c.source.Load(ctx)
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("failed").Inc()
		c.logger.Warn("Catalog load failed, keeping current indexes", "err", err)
		if catalog.IsDataError(err) {
			return fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
		}
		return fmt.Errorf("search: load catalog: %w", err)
	}
	return c.build(entities)
}

// build runs with buildMu held.
func (c *Coordinator) build(entities []catalog.Entity) error {
	start := time.Now()

	if err := catalog.Validate(entities); err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("failed").Inc()
		c.logger.Warn("Rejected catalog, keeping current indexes", "err", err)
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	domains, err := buildDomains(entities, c.fpRate)
	if err != nil {
		metrics.IndexRebuildsTotal.WithLabelValues("failed").Inc()
		c.logger.Error("Index build failed, keeping current indexes", "err", err)
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	snap := &snapshot{
		generation: c.generation.Add(1),
		builtAt:    c.now(),
		domains:    domains,
	}
	c.active.Store(snap)

	for _, kind := range catalog.Kinds {
		c.caches[kind].Clear()
		c.prewarm(snap, kind)
		metrics.IndexedEntities.WithLabelValues(kind.String()).Set(float64(domains[kind].index.Len()))
	}

	elapsed := time.Since(start)
	metrics.IndexRebuildsTotal.WithLabelValues("ok").Inc()
	metrics.IndexRebuildDuration.Observe(elapsed.Seconds())
	c.logger.Info("Built indexes",
		"generation", snap.generation,
		"restaurants", domains[catalog.KindRestaurant].index.Len(),
		"menuItems", domains[catalog.KindMenuItem].index.Len(),
		"took", elapsed)
	return nil
}

// prewarm caches results for the shortest prefixes, filling at most half
// the cache so live traffic still has room.
func (c *Coordinator) prewarm(snap *snapshot, kind catalog.Kind) {
	d := snap.domain(kind)
	lru := c.caches[kind]
	budget := lru.Capacity() / 2

	seen := utils.NewSeenSet(budget)
	d.index.VisitKeys(func(key string) {
		for _, p := range utils.Prefixes(key) {
			if seen.Len() >= budget || utf8.RuneCountInString(p) > prewarmPrefixRunes {
				return
			}
			if seen.Add(p) {
				lru.Put(cacheKey(snap.generation, p), d.index.SearchPrefix(p))
			}
		}
	})
	c.logger.Debug("Prewarmed cache", "domain", kind, "entries", seen.Len())
}

// SearchRestaurants returns restaurants stored under any key starting with
// the normalized query that pass filters. limit <= 0 returns all matches.
func (c *Coordinator) SearchRestaurants(query string, filters Filters, limit int) []catalog.Entity {
	return filters.apply(c.lookup(catalog.KindRestaurant, query), limit)
}

// SearchMenuItems is SearchRestaurants over menu items, optionally limited
// to one restaurant.
func (c *Coordinator) SearchMenuItems(query, restaurantID string, limit int) []catalog.Entity {
	return Filters{RestaurantID: restaurantID}.apply(c.lookup(catalog.KindMenuItem, query), limit)
}

// GetSuggestions returns up to limit distinct normalized keys starting with
// the query, restaurants first. The query itself is included when it is a key.
func (c *Coordinator) GetSuggestions(query string, limit int) []string {
	c.refreshIfStale()

	key := utils.Normalize(query)
	if key == "" {
		return nil
	}
	snap := c.active.Load()
	if snap == nil {
		return nil
	}

	seen := utils.NewSeenSet(limit)
	var out []string
	for _, kind := range catalog.Kinds {
		d := snap.domain(kind)
		if !d.filter.Contains(key) {
			continue
		}
		for _, s := range d.index.Completions(key, limit) {
			if !seen.Add(s) {
				continue
			}
			out = append(out, s)
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// lookup returns the unfiltered prefix result for kind. The returned slice
// may be shared with the cache and must not be modified.
func (c *Coordinator) lookup(kind catalog.Kind, query string) []catalog.Entity {
	c.refreshIfStale()

	key := utils.Normalize(query)
	if key == "" {
		return nil
	}
	snap := c.active.Load()
	if snap == nil {
		return nil
	}
	d := snap.domain(kind)
	metrics.SearchRequestsTotal.WithLabelValues(kind.String()).Inc()

	if !d.filter.Contains(key) {
		metrics.BloomRejectsTotal.WithLabelValues(kind.String()).Inc()
		return nil
	}

	lru := c.caches[kind]
	ck := cacheKey(snap.generation, key)
	if res, ok := lru.Get(ck); ok {
		return res
	}
	res := d.index.SearchPrefix(key)
	lru.Put(ck, res)
	c.logger.Debug("Prefix search", "domain", kind, "query", key, "hits", len(res))
	return res
}

// refreshIfStale rebuilds from the source when the snapshot is stale, or
// missing with a source configured. Only one caller rebuilds; the others
// carry on with whatever snapshot is live.
func (c *Coordinator) refreshIfStale() {
	if c.source == nil || c.State() == StateReady {
		return
	}
	if !c.buildMu.TryLock() {
		return
	}
	defer c.buildMu.Unlock()

	// a build may have finished between the check and the lock
	if c.State() == StateReady {
		return
	}
	if err := c.rebuildLocked(context.Background()); err != nil {
		c.logger.Debug("Lazy rebuild failed", "state", c.State(), "err", err)
	}
}

// State reports the lifecycle state at the current clock.
func (c *Coordinator) State() State {
	snap := c.active.Load()
	if snap == nil {
		return StateUninitialized
	}
	if c.ttl > 0 && c.now().Sub(snap.builtAt) >= c.ttl {
		return StateStale
	}
	return StateReady
}

// Generation returns the build counter of the live snapshot, 0 before the
// first build.
func (c *Coordinator) Generation() uint64 {
	if snap := c.active.Load(); snap != nil {
		return snap.generation
	}
	return 0
}

// BuiltAt returns when the live snapshot was built.
func (c *Coordinator) BuiltAt() time.Time {
	if snap := c.active.Load(); snap != nil {
		return snap.builtAt
	}
	return time.Time{}
}

// Stats returns index, filter and cache counters for every domain.
func (c *Coordinator) Stats() map[string]int {
	stats := map[string]int{
		"state":      int(c.State()),
		"generation": int(c.Generation()),
	}
	snap := c.active.Load()
	for _, kind := range catalog.Kinds {
		prefix := kind.String() + "."
		lru := c.caches[kind]
		stats[prefix+"cacheEntries"] = lru.Len()
		stats[prefix+"cacheCapacity"] = lru.Capacity()
		if d := snap.domain(kind); d != nil {
			stats[prefix+"entities"] = d.index.Len()
			stats[prefix+"keys"] = d.index.Keys()
			stats[prefix+"filterBits"] = int(d.filter.Bits())
			stats[prefix+"filterHashes"] = d.filter.Hashes()
		}
	}
	return stats
}

func cacheKey(generation uint64, key string) string {
	return strconv.FormatUint(generation, 10) + ":" + key
}
