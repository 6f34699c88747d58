/*
Package server implements msgpack IPC for menuserve.

The server reads msgpack-encoded requests from stdin and writes one msgpack
response per request to stdout. Logs go to stderr so the pipe stays clean.
Requests are handled one at a time, in order, with timing in every response.

# IPC

Every request names an op and carries the fields that op needs:

	{"id": "req_001", "op": "search_restaurants", "q": "piz", "l": 10, "f": {"cuisine": "italian"}}
	{"id": "req_002", "op": "search_menu_items", "q": "margh", "r": "r42"}
	{"id": "req_003", "op": "suggest", "q": "bir", "l": 5}
	{"id": "req_004", "op": "rate", "u": "user1", "i": "item10", "v": 5}
	{"id": "req_005", "op": "recommend", "u": "user1", "l": 10}
	{"id": "req_006", "op": "push", "i": "order-9", "p": 1714.5}
	{"id": "req_007", "op": "push", "i": "order-10", "o": {"t": 2, "n": 3, "u": true}}
	{"op": "pop"}

A request without an id gets a generated one, echoed back in the response.

Responses carry the id, a status ("ok" or "error"), the op's payload and
the time taken in microseconds:

	{"id": "req_001", "status": "ok", "results": [{"id": "r2", "n": "Pizza Corner", ...}], "c": 1, "t": 38}

Failures keep the same shape with an error message and an HTTP-style code:

	{"id": "req_006", "status": "error", "error": "dispatch: queue is full", "code": 503, "t": 4}

# Ops

search_restaurants, search_menu_items and suggest query the indexes.
rate and recommend feed and read the recommender.
push, pop and remove drive the order queue. push takes either a raw priority
"p" or an order "o" (tier, item count, urgency) scored by the engine's
priority policy.
reindex reloads the catalog, stats gathers every counter and health reports
the index state with the build time "b" in unix milliseconds.
*/
package server

import (
	"github.com/bastiangx/menuserve/pkg/catalog"
	"github.com/bastiangx/menuserve/pkg/recommend"
	"github.com/bastiangx/menuserve/pkg/search"
)

// Op names.
const (
	OpSearchRestaurants = "search_restaurants"
	OpSearchMenuItems   = "search_menu_items"
	OpSuggest           = "suggest"
	OpRecommend         = "recommend"
	OpRate              = "rate"
	OpPush              = "push"
	OpPop               = "pop"
	OpRemove            = "remove"
	OpReindex           = "reindex"
	OpStats             = "stats"
	OpHealth            = "health"
)

// Request - one IPC request
type Request struct {
	ID           string          `msgpack:"id"`
	Op           string          `msgpack:"op"`
	Query        string          `msgpack:"q,omitempty"`
	Limit        int             `msgpack:"l,omitempty"`
	RestaurantID string          `msgpack:"r,omitempty"`
	Filters      *search.Filters `msgpack:"f,omitempty"`
	User         string          `msgpack:"u,omitempty"`
	Item         string          `msgpack:"i,omitempty"`
	Value        float64         `msgpack:"v,omitempty"`
	Priority     *float64        `msgpack:"p,omitempty"`
	Order        *OrderSpec      `msgpack:"o,omitempty"`
}

// OrderSpec - push input scored by the server's priority policy
type OrderSpec struct {
	Tier   int  `msgpack:"t"`
	Items  int  `msgpack:"n"`
	Urgent bool `msgpack:"u"`
}

// Result - minimal entity in search responses
type Result struct {
	ID           string  `msgpack:"id"`
	Kind         string  `msgpack:"k"`
	Name         string  `msgpack:"n"`
	Cuisine      string  `msgpack:"cu,omitempty"`
	Address      string  `msgpack:"a,omitempty"`
	Rating       float64 `msgpack:"ra,omitempty"`
	Price        float64 `msgpack:"pr,omitempty"`
	RestaurantID string  `msgpack:"r,omitempty"`
}

// QueueEntry - popped order
type QueueEntry struct {
	ID       string  `msgpack:"id"`
	Priority float64 `msgpack:"p"`
}

// Response - every op answers with this shape
type Response struct {
	ID          string             `msgpack:"id"`
	Status      string             `msgpack:"status"`
	Error       string             `msgpack:"error,omitempty"`
	Code        int                `msgpack:"code,omitempty"`
	Results     []Result           `msgpack:"results,omitempty"`
	Suggestions []string           `msgpack:"s,omitempty"`
	Items       []recommend.Item   `msgpack:"items,omitempty"`
	Entry       *QueueEntry        `msgpack:"entry,omitempty"`
	Removed     bool               `msgpack:"removed,omitempty"`
	State       string             `msgpack:"state,omitempty"`
	BuiltAt     int64              `msgpack:"b,omitempty"` // unix ms of the live index build
	Stats       map[string]float64 `msgpack:"stats,omitempty"`
	Count       int                `msgpack:"c"`
	TimeTaken   int64              `msgpack:"t"`
}

func toResults(entities []catalog.Entity) []Result {
	out := make([]Result, len(entities))
	for i, e := range entities {
		out[i] = Result{
			ID:           e.ID,
			Kind:         e.Kind.String(),
			Name:         e.Name,
			Cuisine:      e.Cuisine,
			Address:      e.Address,
			Rating:       e.Rating,
			Price:        e.Price,
			RestaurantID: e.RestaurantID,
		}
	}
	return out
}
