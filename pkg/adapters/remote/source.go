// Package remote reads model artifacts over HTTP(S).
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aretw0/latentscope/pkg/domain"
)

// DefaultMaxBytes caps a single artifact download.
const DefaultMaxBytes = 256 << 20

// Source implements ports.ArtifactSource with plain GET requests.
// There is no retry: a failed fetch is final.
type Source struct {
	client   *http.Client
	maxBytes int64
}

// Option configures the Source.
type Option func(*Source)

// WithClient overrides the HTTP client.
func WithClient(c *http.Client) Option {
	return func(s *Source) {
		if c != nil {
			s.client = c
		}
	}
}

// WithMaxBytes caps the size of a single response body.
func WithMaxBytes(n int64) Option {
	return func(s *Source) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// NewSource creates a remote source with a 30s client timeout.
func NewSource(opts ...Option) *Source {
	s := &Source{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch GETs rawURL. Transport failures and non-2xx statuses wrap
// domain.ErrArtifactNotFound; a body over the size cap was reachable but is
// unusable and wraps domain.ErrArtifactParse.
func (s *Source) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %q: %v", domain.ErrArtifactNotFound, rawURL, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: %s", domain.ErrArtifactNotFound, rawURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrArtifactNotFound, rawURL, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrArtifactParse, rawURL, s.maxBytes)
	}
	return data, nil
}

// Resolve resolves ref against base as a URL reference.
func (s *Source) Resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
