package ports_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/latentscope/pkg/ports"
)

// MockCache is an in-memory implementation of FrameCache for testing purposes.
type MockCache struct {
	mu   sync.Mutex
	data map[string][]float32
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string][]float32),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]float32(nil), v...), true, nil
}

func (m *MockCache) Put(ctx context.Context, key string, pixels []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]float32(nil), pixels...)
	return nil
}

func TestMockCacheContract(t *testing.T) {
	ports.RunFrameCacheContract(t, NewMockCache())
}
