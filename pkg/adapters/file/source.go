package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aretw0/latentscope/pkg/domain"
)

// Source implements ports.ArtifactSource using the local filesystem.
// Relative paths are resolved against BasePath when it is set.
type Source struct {
	BasePath string
}

// NewSource creates a new Source. basePath may be empty to use paths as given.
func NewSource(basePath ...string) *Source {
	s := &Source{}
	if len(basePath) > 0 {
		s.BasePath = basePath[0]
	}
	return s
}

// Fetch reads the whole file. Any read failure (missing file, permission,
// directory) is reported as domain.ErrArtifactNotFound.
func (s *Source) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full := s.abs(path)
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrArtifactNotFound, full)
		}
		return nil, fmt.Errorf("%w: failed to read %s: %v", domain.ErrArtifactNotFound, full, err)
	}
	return data, nil
}

// Resolve places ref in the directory of base.
func (s *Source) Resolve(base, ref string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(filepath.Dir(base), filepath.FromSlash(ref))
}

func (s *Source) abs(path string) string {
	if s.BasePath == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.BasePath, path)
}
