package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bastiangx/menuserve/pkg/catalog"
	"github.com/bastiangx/menuserve/pkg/search"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T, noFilter bool) (*InputHandler, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	coord, err := search.New(search.WithLogger(log.NewWithOptions(&out, log.Options{Level: log.FatalLevel})))
	require.NoError(t, err)
	require.NoError(t, coord.BuildIndexes([]catalog.Entity{
		{ID: "r1", Kind: catalog.KindRestaurant, Name: "Taco Town", Cuisine: "Mexican", Rating: 4.2},
		{ID: "m1", Kind: catalog.KindMenuItem, Name: "Taco Supreme", RestaurantID: "r1", Price: 7.5},
	}))

	h := NewInputHandler(coord, 1, 20, 10, noFilter)
	h.logger = log.NewWithOptions(&out, log.Options{})
	return h, &out
}

func TestHandleInput(t *testing.T) {
	h, out := newHandler(t, false)

	// one restaurant, one menu item and two suggestions
	assert.Equal(t, 4, h.handleInput("taco"))
	assert.Contains(t, out.String(), "Taco Town")
	assert.Contains(t, out.String(), "Taco Supreme")

	assert.Equal(t, 1, h.handleInput(":m taco s"))
	assert.Equal(t, 2, h.handleInput(":s TACO"))
	assert.Equal(t, 0, h.handleInput("burrito"))
	assert.Equal(t, 0, h.handleInput("this query is far too long"))
	assert.Equal(t, 0, h.handleInput("ttt"), "repetitive input is filtered")
}

func TestHandleInput_NoFilter(t *testing.T) {
	h, _ := newHandler(t, true)
	assert.Equal(t, 0, h.handleInput("ttt"))
	assert.Equal(t, 2, h.handleInput(":s t"))
}

func TestStart_ReadsUntilEOF(t *testing.T) {
	h, out := newHandler(t, false)
	h.in = strings.NewReader("taco\n\n:s mex")
	require.NoError(t, h.Start())
	assert.Contains(t, out.String(), "Taco Town")
	assert.Contains(t, out.String(), "mexican")
}
