package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/aretw0/latentscope"
	"github.com/aretw0/latentscope/internal/testutils"
	"github.com/aretw0/latentscope/pkg/adapters/mcp"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*mcp.Server, *latentscope.Explorer) {
	t.Helper()
	fx := testutils.BuildDecoder(t, testutils.DecoderSpec{Shape: domain.Shape{Rows: 4, Cols: 4}})
	exp, err := latentscope.New("m/model.json", latentscope.WithSource(fx.Source("m/model.json")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = exp.Close() })
	require.NoError(t, exp.Start(context.Background()))

	set := embedding.New([]domain.EmbeddingPoint{{X: -1, Y: -1, Label: 1}, {X: 1, Y: 1, Label: 8}})
	return mcp.NewServer(exp, set), exp
}

func call(t *testing.T, s *mcp.Server, id int, method string, params any) string {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.MCPServer().HandleMessage(context.Background(), msg)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(out)
}

func TestServer_Tools(t *testing.T) {
	s, exp := newServer(t)

	list := call(t, s, 1, "tools/list", map[string]any{})
	for _, name := range []string{"hover_latent", "decode_latent", "explorer_state", "nearest_embedding"} {
		assert.Contains(t, list, fmt.Sprintf("%q", name))
	}

	hover := call(t, s, 2, "tools/call", map[string]any{
		"name":      "hover_latent",
		"arguments": map[string]any{"x": 0.5, "y": 0.25},
	})
	assert.Contains(t, hover, `"accepted":true`)
	assert.Equal(t, domain.LatentVector{X: 0.5, Y: 0.25}, exp.Latent())

	decoded := call(t, s, 3, "tools/call", map[string]any{
		"name":      "decode_latent",
		"arguments": map[string]any{"x": 2, "y": 2, "size": 16},
	})
	assert.Contains(t, decoded, `"mimeType":"image/png"`)
	// Decoding on the side leaves the displayed latent alone.
	assert.Equal(t, domain.LatentVector{X: 0.5, Y: 0.25}, exp.Latent())

	nearest := call(t, s, 4, "tools/call", map[string]any{
		"name":      "nearest_embedding",
		"arguments": map[string]any{"x": 0.9, "y": 0.7},
	})
	assert.Contains(t, nearest, `\"label\":8`)

	missing := call(t, s, 5, "tools/call", map[string]any{
		"name":      "decode_latent",
		"arguments": map[string]any{"x": 1},
	})
	assert.Contains(t, missing, `"isError":true`)
}

func TestServer_FrameResource(t *testing.T) {
	s, exp := newServer(t)
	_, err := exp.Hover(context.Background(), domain.Cursor{X: 1, Y: 1})
	require.NoError(t, err)

	out := call(t, s, 1, "resources/read", map[string]any{"uri": "latentscope://frame"})
	assert.Contains(t, out, `"mimeType":"image/png"`)
	assert.Contains(t, out, `"blob"`)

	// Reading the frame acknowledged the paint.
	assert.Equal(t, 1, exp.Stats().Disposed)
}
