package index

import (
	"fmt"
	"testing"

	"github.com/bastiangx/menuserve/internal/utils"
	"github.com/bastiangx/menuserve/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restaurant(id, name string) catalog.Entity {
	return catalog.Entity{ID: id, Kind: catalog.KindRestaurant, Name: name}
}

func ids(entities []catalog.Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}

func TestSearchPrefix_Scenario(t *testing.T) {
	ix := New()
	ix.Insert("Biryani House", restaurant("r1", "Biryani House"))
	ix.Insert("Pizza Corner", restaurant("r2", "Pizza Corner"))

	got := ix.SearchPrefix("bir")
	require.Len(t, got, 1)
	assert.Equal(t, "Biryani House", got[0].Name)
}

func TestSearchPrefix_EveryPrefixFindsEntity(t *testing.T) {
	names := []string{"Biryani House", "Bistro Nine", "Pizza Corner", "Pizzeria Uno", "Dosa Plaza"}
	ix := New()
	for i, n := range names {
		ix.Insert(n, restaurant(fmt.Sprintf("r%d", i), n))
	}

	for i, n := range names {
		key := []rune(utils.Normalize(n))
		for k := 1; k <= len(key); k++ {
			q := string(key[:k])
			assert.Contains(t, ids(ix.SearchPrefix(q)), fmt.Sprintf("r%d", i), "prefix %q", q)
		}
	}
}

func TestSearchPrefix_DedupAcrossFields(t *testing.T) {
	ix := New()
	e := catalog.Entity{
		ID:      "r1",
		Kind:    catalog.KindRestaurant,
		Name:    "Pizza Palace",
		Cuisine: "Pizza",
		Address: "Pizza Street 1",
	}
	ix.InsertEntity(e)

	got := ix.SearchPrefix("piz")
	assert.Equal(t, []string{"r1"}, ids(got))
	assert.Equal(t, 3, ix.Keys())
	assert.Equal(t, 1, ix.Len())
}

func TestInsert_Idempotent(t *testing.T) {
	ix := New()
	e := restaurant("r1", "Taco Bell")
	assert.True(t, ix.Insert("Taco Bell", e))
	assert.False(t, ix.Insert("  taco   BELL ", e))

	assert.Len(t, ix.SearchExact("taco bell"), 1)
	assert.Equal(t, 1, ix.Keys())
}

func TestSearchExact(t *testing.T) {
	ix := New()
	ix.Insert("Pizza", restaurant("r1", "Pizza"))
	ix.Insert("Pizza Corner", restaurant("r2", "Pizza Corner"))
	ix.Insert("pizza", restaurant("r3", "pizza"))

	assert.ElementsMatch(t, []string{"r1", "r3"}, ids(ix.SearchExact(" PIZZA ")))
	assert.Empty(t, ix.SearchExact("pizz"))
	assert.Empty(t, ix.SearchExact("pizza corner house"))
}

func TestEmptyQueries(t *testing.T) {
	ix := New()
	ix.Insert("Pizza", restaurant("r1", "Pizza"))

	for _, q := range []string{"", "   ", "\t\n"} {
		assert.Empty(t, ix.SearchPrefix(q))
		assert.Empty(t, ix.SearchExact(q))
		assert.Empty(t, ix.Completions(q, 5))
		assert.False(t, ix.HasPrefix(q))
	}
	assert.False(t, ix.Insert("  ", restaurant("r2", "")))
}

func TestCompletions_Limit(t *testing.T) {
	ix := New()
	for i, n := range []string{"pad thai", "paneer tikka", "pani puri", "pasta", "burger"} {
		ix.Insert(n, catalog.Entity{ID: fmt.Sprint(i), Kind: catalog.KindMenuItem, RestaurantID: "r"})
	}

	all := ix.Completions("pa", 0)
	assert.ElementsMatch(t, []string{"pad thai", "paneer tikka", "pani puri", "pasta"}, all)

	two := ix.Completions("pa", 2)
	assert.Len(t, two, 2)
	for _, c := range two {
		assert.Contains(t, all, c)
	}
	assert.Empty(t, ix.Completions("zz", 3))
}

func TestSearchPrefix_Stable(t *testing.T) {
	ix := New()
	for i := 0; i < 50; i++ {
		ix.Insert(fmt.Sprintf("dish %02d", i), catalog.Entity{ID: fmt.Sprint(i), Kind: catalog.KindMenuItem, RestaurantID: "r"})
	}
	first := ids(ix.SearchPrefix("dish"))
	require.Len(t, first, 50)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ids(ix.SearchPrefix("dish")))
	}
}

func TestEntityLookup(t *testing.T) {
	ix := New()
	ix.Insert("Pizza", restaurant("r1", "Pizza"))

	e, ok := ix.Entity("r1")
	require.True(t, ok)
	assert.Equal(t, "Pizza", e.Name)
	_, ok = ix.Entity("missing")
	assert.False(t, ok)
	assert.True(t, ix.HasPrefix("Pi"))
}
