package recommend

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/bastiangx/menuserve/internal/logger"
	"github.com/bastiangx/menuserve/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecommender(t *testing.T, opts ...Option) *Recommender {
	t.Helper()
	r, err := New(append([]Option{WithLogger(logger.Discard())}, opts...)...)
	require.NoError(t, err)
	return r
}

func ids(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"similarity above one", WithMinSimilarity(1.5)},
		{"similarity NaN", WithMinSimilarity(math.NaN())},
		{"zero neighbors", WithMaxNeighbors(0)},
		{"zero cache", WithCacheCapacity(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			assert.Error(t, err)
		})
	}
}

func TestRecommender_Scenario(t *testing.T) {
	r := newRecommender(t)
	require.NoError(t, r.UpdatePreference("user1", "item10", 5))
	require.NoError(t, r.UpdatePreference("user2", "item10", 5))
	require.NoError(t, r.UpdatePreference("user2", "item20", 4))

	got := r.GetRecommendations("user1", 10)
	require.Len(t, got, 1)
	assert.Equal(t, "item20", got[0].ID)
	assert.InDelta(t, 4.0, got[0].Score, 1e-9)
}

func TestRecommender_UpdateValidation(t *testing.T) {
	r := newRecommender(t)
	assert.ErrorIs(t, r.UpdatePreference("", "i", 1), ErrEmptyID)
	assert.ErrorIs(t, r.UpdatePreference("u", "", 1), ErrEmptyID)
	assert.ErrorIs(t, r.UpdatePreference("u", "i", math.NaN()), ErrInvalidRating)
	assert.ErrorIs(t, r.UpdatePreference("u", "i", math.Inf(1)), ErrInvalidRating)
	assert.Empty(t, r.Users())
}

func TestRecommender_NeverReturnsRatedItems(t *testing.T) {
	r := newRecommender(t)
	rng := rand.New(rand.NewSource(7))
	for u := 0; u < 40; u++ {
		for k := 0; k < 8; k++ {
			item := fmt.Sprintf("item%d", rng.Intn(30))
			require.NoError(t, r.UpdatePreference(fmt.Sprintf("user%d", u), item, float64(1+rng.Intn(5))))
		}
	}

	for _, user := range r.Users() {
		rated := r.Preferences(user)
		for _, it := range r.GetRecommendations(user, 0) {
			_, ok := rated[it.ID]
			assert.False(t, ok, "%s already rated %s", user, it.ID)
		}
	}
}

func TestRecommender_ColdStartIsPopularity(t *testing.T) {
	r := newRecommender(t)
	require.NoError(t, r.UpdatePreference("a", "pizza", 5))
	require.NoError(t, r.UpdatePreference("b", "pizza", 4))
	require.NoError(t, r.UpdatePreference("b", "sushi", 5))
	require.NoError(t, r.UpdatePreference("c", "tacos", 4))
	require.NoError(t, r.UpdatePreference("c", "curry", 4))

	got := r.GetRecommendations("newcomer", 0)
	assert.Equal(t, []string{"pizza", "sushi", "curry", "tacos"}, ids(got))
	assert.InDelta(t, 9.0, got[0].Score, 1e-9)

	top := r.GetRecommendations("someone-else", 2)
	assert.Equal(t, []string{"pizza", "sushi"}, ids(top))
}

func TestRecommender_FirstRatingDuringComputeKeepsPopularity(t *testing.T) {
	r := newRecommender(t)
	require.NoError(t, r.UpdatePreference("a", "pizza", 5))
	require.NoError(t, r.UpdatePreference("b", "pizza", 4))
	require.NoError(t, r.UpdatePreference("b", "sushi", 5))
	require.NoError(t, r.UpdatePreference("c", "tacos", 4))
	require.NoError(t, r.UpdatePreference("c", "curry", 4))

	var once sync.Once
	r.beforeCompute = func() {
		once.Do(func() {
			require.NoError(t, r.UpdatePreference("newcomer", "pizza", 5))
		})
	}

	// the lookup saw a cold user, the snapshot already holds the rating
	assert.Equal(t, []string{"sushi"}, ids(r.GetRecommendations("newcomer", 0)))
	r.beforeCompute = nil

	assert.Equal(t, []string{"pizza", "sushi", "curry", "tacos"}, ids(r.GetRecommendations("other", 0)))
	assert.Equal(t, []string{"sushi"}, ids(r.GetRecommendations("newcomer", 0)))
}

func TestRecommender_OutdatedCacheEntryIgnored(t *testing.T) {
	r := newRecommender(t)
	require.NoError(t, r.UpdatePreference("u1", "a", 5))
	require.NoError(t, r.UpdatePreference("u2", "a", 5))
	require.NoError(t, r.UpdatePreference("u2", "b", 4))

	// a computation that raced an update stores a ranking for an older version
	r.results.Put(userKey("u1"), ranking{version: 0, items: []Item{{ID: "stale", Score: 99}}})
	r.results.Put(popularKey, ranking{version: 0, items: []Item{{ID: "stale", Score: 99}}})

	assert.Equal(t, []string{"b"}, ids(r.GetRecommendations("u1", 0)))
	assert.Equal(t, []string{"a", "b"}, ids(r.GetRecommendations("nobody", 0)))
}

func TestRecommender_ColdStartEmptyStore(t *testing.T) {
	r := newRecommender(t)
	assert.Empty(t, r.GetRecommendations("nobody", 5))
}

func TestRecommender_NoSimilarUsers(t *testing.T) {
	r := newRecommender(t)
	require.NoError(t, r.UpdatePreference("a", "x", 5))
	require.NoError(t, r.UpdatePreference("b", "y", 5))

	// no items in common, so similarity is 0 and nothing qualifies
	assert.Empty(t, r.GetRecommendations("a", 5))
}

func TestRecommender_UpdateInvalidatesCache(t *testing.T) {
	r := newRecommender(t)
	require.NoError(t, r.UpdatePreference("u1", "a", 5))
	require.NoError(t, r.UpdatePreference("u2", "a", 5))
	require.NoError(t, r.UpdatePreference("u2", "b", 4))
	require.NoError(t, r.UpdatePreference("u2", "c", 3))

	assert.Equal(t, []string{"b", "c"}, ids(r.GetRecommendations("u1", 0)))

	cached := testutil.ToFloat64(metrics.RecommendationsTotal.WithLabelValues("cached"))
	assert.Equal(t, []string{"b", "c"}, ids(r.GetRecommendations("u1", 0)))
	assert.Equal(t, cached+1, testutil.ToFloat64(metrics.RecommendationsTotal.WithLabelValues("cached")))

	require.NoError(t, r.UpdatePreference("u1", "b", 1))
	assert.Equal(t, []string{"c"}, ids(r.GetRecommendations("u1", 0)))
}

func TestRecommender_UpdateInvalidatesPopularity(t *testing.T) {
	r := newRecommender(t)
	require.NoError(t, r.UpdatePreference("a", "x", 2))
	assert.Equal(t, []string{"x"}, ids(r.GetRecommendations("cold", 0)))

	require.NoError(t, r.UpdatePreference("b", "y", 5))
	assert.Equal(t, []string{"y", "x"}, ids(r.GetRecommendations("cold", 0)))
}

func TestRecommender_UpdateOverwrites(t *testing.T) {
	r := newRecommender(t)
	require.NoError(t, r.UpdatePreference("a", "x", 2))
	require.NoError(t, r.UpdatePreference("a", "x", 4))

	assert.Equal(t, map[string]float64{"x": 4}, r.Preferences("a"))
	assert.Equal(t, 1, r.Stats()["ratings"])
	assert.Equal(t, 1, r.Stats()["users"])
}

func TestRecommender_Thresholds(t *testing.T) {
	build := func(opts ...Option) *Recommender {
		r := newRecommender(t, opts...)
		require.NoError(t, r.UpdatePreference("me", "a", 5))
		require.NoError(t, r.UpdatePreference("me", "b", 1))
		require.NoError(t, r.UpdatePreference("close", "a", 5))
		require.NoError(t, r.UpdatePreference("close", "b", 1))
		require.NoError(t, r.UpdatePreference("close", "c", 2))
		require.NoError(t, r.UpdatePreference("far", "a", 1))
		require.NoError(t, r.UpdatePreference("far", "b", 5))
		require.NoError(t, r.UpdatePreference("far", "d", 5))
		return r
	}

	// cosine(me, far) = 10/26 ~ 0.385, above the default cutoff
	assert.Equal(t, []string{"c", "d"}, ids(build().GetRecommendations("me", 0)))
	assert.Equal(t, []string{"c"}, ids(build(WithMinSimilarity(0.5)).GetRecommendations("me", 0)))
	assert.Equal(t, []string{"c"}, ids(build(WithMaxNeighbors(1)).GetRecommendations("me", 0)))
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]float64
		want float64
	}{
		{"identical", map[string]float64{"x": 1, "y": 2}, map[string]float64{"x": 1, "y": 2}, 1},
		{"scaled", map[string]float64{"x": 1, "y": 2}, map[string]float64{"x": 2, "y": 4, "z": 9}, 1},
		{"disjoint", map[string]float64{"x": 1}, map[string]float64{"y": 1}, 0},
		{"zeros", map[string]float64{"x": 0}, map[string]float64{"x": 3}, 0},
		{"opposite", map[string]float64{"x": 1}, map[string]float64{"x": -1}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, Cosine(tt.b, tt.a), 1e-9)
		})
	}
}

func TestRecommender_Concurrent(t *testing.T) {
	r := newRecommender(t, WithCacheCapacity(8))
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				user := fmt.Sprintf("u%d", (w+i)%10)
				_ = r.UpdatePreference(user, fmt.Sprintf("i%d", i%25), float64(i%5+1))
				rated := r.Preferences(user)
				for _, it := range r.GetRecommendations(user, 5) {
					// a concurrent update may rate the item between the two reads
					_ = rated[it.ID]
				}
			}
		}(w)
	}
	wg.Wait()

	for _, user := range r.Users() {
		rated := r.Preferences(user)
		for _, it := range r.GetRecommendations(user, 0) {
			_, ok := rated[it.ID]
			assert.False(t, ok)
		}
	}
}
