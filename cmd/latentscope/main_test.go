package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/latentscope"
	"github.com/aretw0/latentscope/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func modelPath(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	return testutils.BuildDecoder(t, testutils.DefaultDecoder()).WriteDir(t)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "latentscope version "+latentscope.Version+"\n", out)
}

func TestInspect(t *testing.T) {
	model := modelPath(t)

	out, err := run(t, "", "inspect", model)
	require.NoError(t, err)
	assert.Contains(t, out, "Params:  13376")
	assert.Contains(t, out, "dense_Dense1")
	assert.Contains(t, out, "sigmoid")

	out, err = run(t, "", "inspect", "--mermaid", "--model", model)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph LR\n"), out)
	assert.Contains(t, out, `output(("28x28"))`)
}

func TestDecode_PNG(t *testing.T) {
	model := modelPath(t)
	path := filepath.Join(t.TempDir(), "frame.png")

	out, err := run(t, "", "decode", "--model", model, "--png", path, "--size", "56", "0.5", "-1")
	require.NoError(t, err)
	assert.Contains(t, out, "(0.500, -1.000)")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 56, img.Bounds().Dx())
}

func TestDecode_NegativeCoordinates(t *testing.T) {
	model := modelPath(t)

	out, err := run(t, "", "decode", "--model", model, "--", "-2.5", "-2.5")
	require.NoError(t, err)
	assert.Contains(t, out, "latent (-2.500, -2.500)")

	out, err = run(t, "", "decode", "--model", model, "1", "-0.75")
	require.NoError(t, err)
	assert.Contains(t, out, "latent (1.000, -0.750)")
}

func TestDecode_BadArgs(t *testing.T) {
	model := modelPath(t)

	_, err := run(t, "", "decode", "--model", model, "x", "1")
	assert.ErrorContains(t, err, "invalid x")

	_, err = run(t, "", "decode", "--model", model, "1")
	assert.Error(t, err)
}

func TestExplore_Headless(t *testing.T) {
	model := modelPath(t)

	out, err := run(t, "1 1\nquit\n", "explore", "--headless", model)
	require.NoError(t, err)
	assert.Equal(t, "latent (-2.500, -2.500)\nlatent (1.000, 1.000)\n", out)
}

func TestConfigFile(t *testing.T) {
	model := modelPath(t)
	require.NoError(t, os.WriteFile("latentscope.yaml", []byte("model: "+model+"\ninitial:\n  x: 0\n  y: 0\n"), 0644))

	out, err := run(t, "quit\n", "explore", "--headless")
	require.NoError(t, err)
	assert.Equal(t, "latent (0.000, 0.000)\n", out)
}

func TestMissingModel(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := run(t, "", "inspect")
	assert.ErrorContains(t, err, "model path is required")

	_, err = run(t, "", "inspect", filepath.Join(t.TempDir(), "model.json"))
	assert.ErrorContains(t, err, "not found")
}

func TestAbout(t *testing.T) {
	out, err := run(t, "", "about")
	require.NoError(t, err)
	assert.Contains(t, out, "latentscope")
	assert.Contains(t, out, "decoder")
}
