package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/ports"
)

// ArtifactSourceContractTest is a reusable test suite that verifies if an adapter complies with ports.ArtifactSource.
// setupData maps paths already present in the source to their content; base is one of those paths.
func ArtifactSourceContractTest(t *testing.T, source ports.ArtifactSource, setupData map[string][]byte, missing string) {
	t.Helper()
	ctx := context.Background()

	// 1. Test Fetch (Success)
	t.Run("Fetch_Success", func(t *testing.T) {
		for path, expected := range setupData {
			content, err := source.Fetch(ctx, path)
			if err != nil {
				t.Fatalf("unexpected error fetching %s: %v", path, err)
			}
			if string(content) != string(expected) {
				t.Errorf("content mismatch for %s. got %q, want %q", path, content, expected)
			}
		}
	})

	// 2. Test Fetch (NotFound)
	t.Run("Fetch_NotFound", func(t *testing.T) {
		_, err := source.Fetch(ctx, missing)
		if err == nil {
			t.Fatal("expected error for missing artifact, got nil")
		}
		if !errors.Is(err, domain.ErrArtifactNotFound) {
			t.Errorf("expected ErrArtifactNotFound, got %v", err)
		}
	})

	// 3. Test Resolve (shard next to the model file)
	t.Run("Resolve_Sibling", func(t *testing.T) {
		for path := range setupData {
			shard := source.Resolve(path, "group1-shard1of1.bin")
			if shard == path || shard == "" {
				t.Errorf("Resolve(%q) returned %q", path, shard)
			}
		}
	})
}
