package catalog

import (
	"context"
	"sync"
)

// Source supplies the full current entity list on demand.
type Source interface {
	Load(ctx context.Context) ([]Entity, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Entity, error)

// Load calls f.
func (f SourceFunc) Load(ctx context.Context) ([]Entity, error) {
	return f(ctx)
}

// FileSource reads a catalog file on every Load.
type FileSource struct {
	Path string
}

// NewFileSource creates a source over a YAML, TOML or msgpack catalog file.
func NewFileSource(path string) (*FileSource, error) {
	if _, err := DetectFormat(path); err != nil {
		return nil, err
	}
	return &FileSource{Path: path}, nil
}

// Load reads and decodes the file.
func (s *FileSource) Load(ctx context.Context) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadFile(s.Path)
}

// StaticSource serves an in-memory entity list that callers can replace.
type StaticSource struct {
	mu       sync.RWMutex
	entities []Entity
}

// NewStaticSource creates a source over entities.
func NewStaticSource(entities []Entity) *StaticSource {
	return &StaticSource{entities: entities}
}

// Set replaces the served list.
func (s *StaticSource) Set(entities []Entity) {
	s.mu.Lock()
	s.entities = entities
	s.mu.Unlock()
}

// Load returns a copy of the current list.
func (s *StaticSource) Load(ctx context.Context) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entity, len(s.entities))
	copy(out, s.entities)
	return out, nil
}
