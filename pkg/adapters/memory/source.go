package memory

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/aretw0/latentscope/pkg/domain"
)

// Source implements ports.ArtifactSource using an in-memory map.
// Safe for concurrent use.
type Source struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewSource creates a new in-memory source with the provided files.
func NewSource(files map[string][]byte) *Source {
	s := &Source{files: make(map[string][]byte)}
	for k, v := range files {
		s.files[k] = append([]byte(nil), v...)
	}
	return s
}

// Add stores (or replaces) a file.
func (s *Source) Add(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path.Clean(name)] = append([]byte(nil), data...)
}

// Remove deletes a file, simulating a missing shard or a 404.
func (s *Source) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, path.Clean(name))
}

// Fetch returns a copy of the stored bytes.
func (s *Source) Fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.files[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

// Resolve places ref in the same directory as base.
func (s *Source) Resolve(base, ref string) string {
	return path.Join(path.Dir(base), ref)
}

// List returns all stored names in deterministic order.
func (s *Source) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.files))
	for k := range s.files {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
