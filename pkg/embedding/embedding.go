// Package embedding holds the precomputed latent coordinates shown on the
// scatterplot (encoded.json).
package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/ports"
)

// ErrEmpty is returned by queries on a set with no points.
var ErrEmpty = errors.New("embedding set is empty")

// Set is an ordered, read-only list of embedding points.
type Set struct {
	points []domain.EmbeddingPoint
}

// New wraps points. The slice is copied.
func New(points []domain.EmbeddingPoint) *Set {
	return &Set{points: append([]domain.EmbeddingPoint(nil), points...)}
}

// Parse decodes the encoded.json layout: a list of [x, y, label] triples.
func Parse(data []byte) (*Set, error) {
	var rows [][]float64
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse embeddings: %w", err)
	}
	points := make([]domain.EmbeddingPoint, len(rows))
	for i, r := range rows {
		if len(r) != 3 {
			return nil, fmt.Errorf("embedding %d: want [x, y, label], got %d values", i, len(r))
		}
		if r[2] != math.Trunc(r[2]) {
			return nil, fmt.Errorf("embedding %d: label %v is not an integer", i, r[2])
		}
		points[i] = domain.EmbeddingPoint{X: r[0], Y: r[1], Label: int(r[2])}
	}
	return &Set{points: points}, nil
}

// Load fetches and parses an embeddings file through any artifact source.
func Load(ctx context.Context, src ports.ArtifactSource, path string) (*Set, error) {
	data, err := src.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Len is the number of points.
func (s *Set) Len() int {
	return len(s.points)
}

// Points returns a copy of the points in file order.
func (s *Set) Points() []domain.EmbeddingPoint {
	return append([]domain.EmbeddingPoint(nil), s.points...)
}

// Labels returns the distinct labels in ascending order.
func (s *Set) Labels() []int {
	seen := make(map[int]struct{})
	for _, p := range s.points {
		seen[p.Label] = struct{}{}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

// Bounds is the bounding box of all points.
func (s *Set) Bounds() (domain.Bounds, error) {
	if len(s.points) == 0 {
		return domain.Bounds{}, ErrEmpty
	}
	b := domain.Bounds{
		MinX: math.Inf(1), MaxX: math.Inf(-1),
		MinY: math.Inf(1), MaxY: math.Inf(-1),
	}
	for _, p := range s.points {
		b.MinX = math.Min(b.MinX, p.X)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b, nil
}

// Nearest returns the point closest to (x, y). Ties go to the earlier point.
func (s *Set) Nearest(x, y float64) (domain.EmbeddingPoint, error) {
	if len(s.points) == 0 {
		return domain.EmbeddingPoint{}, ErrEmpty
	}
	best, bestDist := 0, math.Inf(1)
	for i, p := range s.points {
		dx, dy := p.X-x, p.Y-y
		if d := dx*dx + dy*dy; d < bestDist {
			best, bestDist = i, d
		}
	}
	return s.points[best], nil
}
