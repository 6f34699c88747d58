package search

import (
	"time"

	"github.com/bastiangx/menuserve/internal/utils"
	"github.com/bastiangx/menuserve/pkg/bloom"
	"github.com/bastiangx/menuserve/pkg/catalog"
	"github.com/bastiangx/menuserve/pkg/index"
	"golang.org/x/sync/errgroup"
)

// domain is the index and filter pair for one entity kind.
type domain struct {
	kind   catalog.Kind
	index  *index.Index
	filter *bloom.Filter
}

// snapshot is an immutable, fully built set of domains. Readers load it
// once per call and never see a partially built one.
type snapshot struct {
	generation uint64
	builtAt    time.Time
	domains    map[catalog.Kind]*domain
}

func (s *snapshot) domain(kind catalog.Kind) *domain {
	if s == nil {
		return nil
	}
	return s.domains[kind]
}

// buildDomains indexes entities per kind, each kind on its own goroutine.
func buildDomains(entities []catalog.Entity, fpRate float64) (map[catalog.Kind]*domain, error) {
	byKind := make(map[catalog.Kind][]catalog.Entity, len(catalog.Kinds))
	for _, e := range entities {
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	built := make([]*domain, len(catalog.Kinds))
	var g errgroup.Group
	for i, kind := range catalog.Kinds {
		g.Go(func() error {
			d, err := buildDomain(kind, byKind[kind], fpRate)
			if err != nil {
				return err
			}
			built[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[catalog.Kind]*domain, len(built))
	for _, d := range built {
		out[d.kind] = d
	}
	return out, nil
}

// buildDomain fills a fresh index, then sizes the filter for every prefix
// of every key so that prefix queries are never falsely rejected.
func buildDomain(kind catalog.Kind, entities []catalog.Entity, fpRate float64) (*domain, error) {
	ix := index.New()
	for _, e := range entities {
		ix.InsertEntity(e)
	}

	prefixes := utils.NewSeenSet(ix.Keys() * 4)
	var ordered []string
	ix.VisitKeys(func(key string) {
		for _, p := range utils.Prefixes(key) {
			if prefixes.Add(p) {
				ordered = append(ordered, p)
			}
		}
	})

	n := len(ordered)
	if n == 0 {
		n = 1
	}
	filter, err := bloom.New(n, fpRate)
	if err != nil {
		return nil, err
	}
	for _, p := range ordered {
		filter.Add(p)
	}
	return &domain{kind: kind, index: ix, filter: filter}, nil
}
