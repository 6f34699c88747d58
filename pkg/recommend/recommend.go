// Package recommend keeps per-user item ratings and ranks unrated items by
// user-based collaborative filtering. Users without ratings get the global
// popularity ranking instead.
package recommend

import (
	"math"
	"sort"
	"sync"

	"github.com/bastiangx/menuserve/internal/logger"
	"github.com/bastiangx/menuserve/pkg/cache"
	"github.com/bastiangx/menuserve/pkg/metrics"
	"github.com/charmbracelet/log"
)

const (
	DefaultMinSimilarity = 0.3
	DefaultMaxNeighbors  = 20
	DefaultCacheCapacity = 1000

	popularKey = "\x00popular"
)

// Item is one ranked recommendation.
type Item struct {
	ID    string  `msgpack:"i"`
	Score float64 `msgpack:"s"`
}

// ranking is a cached result tagged with the version it was computed at.
type ranking struct {
	version uint64
	items   []Item
}

// Recommender stores preferences and serves cached recommendations.
// Safe for concurrent use. The cache is never touched while mu is held.
type Recommender struct {
	mu    sync.RWMutex
	prefs map[string]map[string]float64
	// versions bump on every update; a cached ranking is served only while
	// its version is current.
	versions   map[string]uint64
	popVersion uint64
	ratings    int

	results       *cache.LRU[ranking]
	// beforeCompute runs between a cache miss and the snapshot. Tests only.
	beforeCompute func()
	cacheCapacity int
	minSimilarity float64
	maxNeighbors  int
	logger        *log.Logger
}

// Option configures a Recommender.
type Option func(*Recommender) error

// WithMinSimilarity sets the similarity a neighbor must exceed. Default 0.3.
func WithMinSimilarity(v float64) Option {
	return func(r *Recommender) error {
		if math.IsNaN(v) || v < -1 || v > 1 {
			return ErrInvalidParams
		}
		r.minSimilarity = v
		return nil
	}
}

// WithMaxNeighbors caps how many similar users contribute. Default 20.
func WithMaxNeighbors(n int) Option {
	return func(r *Recommender) error {
		if n < 1 {
			return ErrInvalidParams
		}
		r.maxNeighbors = n
		return nil
	}
}

// WithCacheCapacity sets how many rankings are cached. Default 1000.
func WithCacheCapacity(n int) Option {
	return func(r *Recommender) error {
		if n < 1 {
			return cache.ErrInvalidCapacity
		}
		r.cacheCapacity = n
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Recommender) error {
		if l != nil {
			r.logger = l
		}
		return nil
	}
}

// New creates an empty Recommender.
func New(opts ...Option) (*Recommender, error) {
	r := &Recommender{
		prefs:         make(map[string]map[string]float64),
		versions:      make(map[string]uint64),
		cacheCapacity: DefaultCacheCapacity,
		minSimilarity: DefaultMinSimilarity,
		maxNeighbors:  DefaultMaxNeighbors,
		logger:        logger.New("recommend"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	results, err := cache.New[ranking](r.cacheCapacity, cache.WithName("recommend"))
	if err != nil {
		return nil, err
	}
	r.results = results
	return r, nil
}

// UpdatePreference records user's rating for item, replacing any earlier
// rating. The user's cached ranking and the popularity ranking are dropped.
func (r *Recommender) UpdatePreference(user, item string, rating float64) error {
	if user == "" || item == "" {
		return ErrEmptyID
	}
	if math.IsNaN(rating) || math.IsInf(rating, 0) {
		return ErrInvalidRating
	}

	r.mu.Lock()
	vec, ok := r.prefs[user]
	if !ok {
		vec = make(map[string]float64)
		r.prefs[user] = vec
	}
	if _, rated := vec[item]; !rated {
		r.ratings++
	}
	vec[item] = rating
	r.versions[user]++
	r.popVersion++
	r.mu.Unlock()

	r.results.Delete(userKey(user))
	r.results.Delete(popularKey)
	r.logger.Debug("preference updated", "user", user, "item", item, "rating", rating)
	return nil
}

// GetRecommendations ranks items user has not rated, best first, ties by
// item id. Users with no ratings get the popularity ranking. limit <= 0
// returns the whole ranking.
func (r *Recommender) GetRecommendations(user string, limit int) []Item {
	r.mu.RLock()
	key, version := r.resultKey(user)
	r.mu.RUnlock()

	if cached, ok := r.results.Get(key); ok && cached.version == version {
		metrics.RecommendationsTotal.WithLabelValues("cached").Inc()
		return truncate(cached.items, limit)
	}

	if r.beforeCompute != nil {
		r.beforeCompute()
	}

	// key and version are re-read with the snapshot so the stored entry
	// always describes the data it was computed from.
	r.mu.RLock()
	snap := r.snapshot()
	key, version = r.resultKey(user)
	r.mu.RUnlock()

	var ranked []Item
	if key == popularKey {
		metrics.RecommendationsTotal.WithLabelValues("cold").Inc()
		ranked = popularity(snap)
	} else {
		metrics.RecommendationsTotal.WithLabelValues("personal").Inc()
		ranked = r.collaborative(user, snap)
	}
	r.results.Put(key, ranking{version: version, items: ranked})

	return truncate(ranked, limit)
}

// resultKey picks the cache slot serving user and its current version.
// Callers hold at least the read lock.
func (r *Recommender) resultKey(user string) (string, uint64) {
	if _, ok := r.prefs[user]; ok {
		return userKey(user), r.versions[user]
	}
	return popularKey, r.popVersion
}

// Preferences returns a copy of user's ratings.
func (r *Recommender) Preferences(user string) map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]float64, len(r.prefs[user]))
	for item, v := range r.prefs[user] {
		out[item] = v
	}
	return out
}

// Users returns every user with at least one rating, sorted.
func (r *Recommender) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.prefs))
	for u := range r.prefs {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// Stats returns user, rating and cache counts.
func (r *Recommender) Stats() map[string]int {
	r.mu.RLock()
	users, ratings := len(r.prefs), r.ratings
	r.mu.RUnlock()

	return map[string]int{
		"users":   users,
		"ratings": ratings,
		"cached":  r.results.Len(),
	}
}

// snapshot deep-copies the preference map. Callers hold at least the read lock.
func (r *Recommender) snapshot() map[string]map[string]float64 {
	snap := make(map[string]map[string]float64, len(r.prefs))
	for u, vec := range r.prefs {
		cp := make(map[string]float64, len(vec))
		for item, v := range vec {
			cp[item] = v
		}
		snap[u] = cp
	}
	return snap
}

type neighbor struct {
	user       string
	similarity float64
}

// collaborative scans every other user, so each call is O(users).
func (r *Recommender) collaborative(user string, snap map[string]map[string]float64) []Item {
	target := snap[user]

	var neighbors []neighbor
	for other, vec := range snap {
		if other == user {
			continue
		}
		if sim := Cosine(target, vec); sim > r.minSimilarity {
			neighbors = append(neighbors, neighbor{other, sim})
		}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].similarity != neighbors[j].similarity {
			return neighbors[i].similarity > neighbors[j].similarity
		}
		return neighbors[i].user < neighbors[j].user
	})
	if len(neighbors) > r.maxNeighbors {
		neighbors = neighbors[:r.maxNeighbors]
	}

	scores := make(map[string]float64)
	for _, n := range neighbors {
		for item, rating := range snap[n.user] {
			if _, rated := target[item]; rated {
				continue
			}
			scores[item] += n.similarity * rating
		}
	}
	r.logger.Debug("ranked recommendations", "user", user, "neighbors", len(neighbors), "candidates", len(scores))
	return rank(scores)
}

func popularity(snap map[string]map[string]float64) []Item {
	totals := make(map[string]float64)
	for _, vec := range snap {
		for item, v := range vec {
			totals[item] += v
		}
	}
	return rank(totals)
}

// Cosine is the cosine similarity of a and b restricted to the items both
// rated. It is 0 when they share no items or either side is all zeros.
func Cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot, na, nb float64
	for item, va := range a {
		vb, ok := b[item]
		if !ok {
			continue
		}
		dot += va * vb
		na += va * va
		nb += vb * vb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func rank(scores map[string]float64) []Item {
	items := make([]Item, 0, len(scores))
	for id, s := range scores {
		items = append(items, Item{ID: id, Score: s})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func truncate(items []Item, limit int) []Item {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

func userKey(user string) string {
	return "u:" + user
}
