package ports

import (
	"context"

	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/tensor"
)

// ArtifactSource defines how the loader reads the model artifact.
// This allows the transport (file system, HTTP, memory) to be decoupled.
type ArtifactSource interface {
	// Fetch returns the raw bytes stored at path.
	// It returns an error wrapping domain.ErrArtifactNotFound if the resource is
	// missing, unreachable or answered with a non-success status.
	Fetch(ctx context.Context, path string) ([]byte, error)

	// Resolve returns the location of ref relative to the artifact at base.
	// It is used to locate weight shards next to the model file.
	Resolve(base, ref string) string
}

// ModelLoader turns an artifact path into a ready decoder.
type ModelLoader interface {
	// Load fetches and deserializes the decoder. Failures are *domain.LoadError.
	Load(ctx context.Context, path string) (Decoder, error)
}

// Decoder is a loaded, read-only generative decoder.
// Implementations must be safe for concurrent Predict calls.
type Decoder interface {
	// Info describes the network.
	Info() domain.ModelInfo

	// OutputShape is the grid the raw output reshapes to.
	OutputShape() domain.Shape

	// Predict runs one forward pass. input has shape [1, domain.LatentDim].
	// The returned tensor is allocated from alloc and owned by the caller;
	// every intermediate allocated during the pass is released before return.
	Predict(ctx context.Context, alloc *tensor.Allocator, input *tensor.Tensor) (*tensor.Tensor, error)

	// Close releases the weights. Called once on teardown.
	Close() error
}
