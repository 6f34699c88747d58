// Package index is the prefix index behind catalog search: a patricia trie
// keyed by normalized text, where every key holds the entities inserted
// under it.
//
// An Index is built once and then only read. Readers may share it freely;
// Insert must not run concurrently with anything else.
package index

import (
	"errors"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/bastiangx/menuserve/internal/utils"
	"github.com/bastiangx/menuserve/pkg/catalog"
	"github.com/charmbracelet/log"
	"github.com/tchap/go-patricia/v2/patricia"
)

// errStopWalk ends a subtree visit early once a limit is reached.
var errStopWalk = errors.New("index: stop walk")

// posting holds the entities stored under one normalized key, in insert order.
type posting struct {
	ords    []uint32
	members *roaring.Bitmap
}

func (p *posting) add(ord uint32) bool {
	if !p.members.CheckedAdd(ord) {
		return false
	}
	p.ords = append(p.ords, ord)
	return true
}

// Index maps normalized text to entities.
type Index struct {
	trie     *patricia.Trie
	entities []catalog.Entity
	ords     map[string]uint32
	keys     int
}

// New creates an empty index.
func New() *Index {
	return &Index{
		trie: patricia.NewTrie(),
		ords: make(map[string]uint32),
	}
}

// Insert stores entity under the normalized form of text. Inserting the
// same (text, entity id) pair again is a no-op. Blank text is ignored.
// It reports whether anything new was stored.
func (ix *Index) Insert(text string, entity catalog.Entity) bool {
	key := utils.Normalize(text)
	if key == "" {
		return false
	}

	ord, known := ix.ords[entity.ID]
	if !known {
		ord = uint32(len(ix.entities))
		ix.ords[entity.ID] = ord
		ix.entities = append(ix.entities, entity)
	} else {
		ix.entities[ord] = entity
	}

	if item := ix.trie.Get(patricia.Prefix(key)); item != nil {
		return item.(*posting).add(ord)
	}
	p := &posting{members: roaring.New()}
	p.add(ord)
	ix.trie.Insert(patricia.Prefix(key), p)
	ix.keys++
	return true
}

// InsertEntity indexes entity under each of its searchable fields.
func (ix *Index) InsertEntity(entity catalog.Entity) {
	for _, field := range entity.SearchableFields() {
		ix.Insert(field, entity)
	}
}

// SearchExact returns the entities whose normalized text equals the query.
func (ix *Index) SearchExact(text string) []catalog.Entity {
	key := utils.Normalize(text)
	if key == "" {
		return nil
	}
	item := ix.trie.Get(patricia.Prefix(key))
	if item == nil {
		return nil
	}
	p := item.(*posting)
	out := make([]catalog.Entity, 0, len(p.ords))
	for _, ord := range p.ords {
		out = append(out, ix.entities[ord])
	}
	return out
}

// SearchPrefix returns every entity stored under a key starting with the
// normalized query, each at most once. Cost is the walk to the prefix node
// plus the size of its subtree.
func (ix *Index) SearchPrefix(text string) []catalog.Entity {
	key := utils.Normalize(text)
	if key == "" {
		return nil
	}

	seen := roaring.New()
	var out []catalog.Entity
	err := ix.trie.VisitSubtree(patricia.Prefix(key), func(_ patricia.Prefix, item patricia.Item) error {
		for _, ord := range item.(*posting).ords {
			if seen.CheckedAdd(ord) {
				out = append(out, ix.entities[ord])
			}
		}
		return nil
	})
	if err != nil {
		log.Errorf("Error visiting index subtree: %v", err)
	}
	return out
}

// Completions returns up to limit distinct keys under the normalized query.
// limit <= 0 means all of them.
func (ix *Index) Completions(text string, limit int) []string {
	key := utils.Normalize(text)
	if key == "" {
		return nil
	}

	var out []string
	err := ix.trie.VisitSubtree(patricia.Prefix(key), func(p patricia.Prefix, _ patricia.Item) error {
		out = append(out, string(p))
		if limit > 0 && len(out) >= limit {
			return errStopWalk
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopWalk) {
		log.Errorf("Error visiting index subtree: %v", err)
	}
	return out
}

// HasPrefix reports whether any key starts with the normalized query.
func (ix *Index) HasPrefix(text string) bool {
	key := utils.Normalize(text)
	if key == "" {
		return false
	}
	return ix.trie.MatchSubtree(patricia.Prefix(key))
}

// VisitKeys calls fn for every key in the index.
func (ix *Index) VisitKeys(fn func(key string)) {
	_ = ix.trie.Visit(func(p patricia.Prefix, _ patricia.Item) error {
		fn(string(p))
		return nil
	})
}

// Len returns the number of distinct entities indexed.
func (ix *Index) Len() int {
	return len(ix.entities)
}

// Keys returns the number of distinct normalized texts.
func (ix *Index) Keys() int {
	return ix.keys
}

// Entity looks an entity up by id.
func (ix *Index) Entity(id string) (catalog.Entity, bool) {
	ord, ok := ix.ords[id]
	if !ok {
		return catalog.Entity{}, false
	}
	return ix.entities[ord], true
}
