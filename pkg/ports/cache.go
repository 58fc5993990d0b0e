package ports

import "context"

// FrameCache stores decoded frames (raw display intensities) by key.
// A miss is (nil, false, nil); errors are reserved for backend failures.
type FrameCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Put(ctx context.Context, key string, pixels []float32) error
}
