package compiler_test

import (
	"testing"

	"github.com/aretw0/latentscope/internal/compiler"
	"github.com/aretw0/latentscope/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_Fixture(t *testing.T) {
	fx := testutils.BuildDecoder(t, testutils.DefaultDecoder())

	art, err := compiler.NewParser().Parse(fx.ModelJSON)
	require.NoError(t, err)

	assert.Equal(t, "layers-model", art.Format)
	assert.Equal(t, "keras v2.1.4", art.GeneratedBy)
	assert.Equal(t, "Sequential", art.Topology.ClassName)
	assert.Equal(t, "generatorjs", art.Topology.Name)
	require.Len(t, art.Topology.Layers, 3)
	assert.Equal(t, "dense_Dense1", art.Topology.Layers[0].Name, "name lifted from config")
	assert.Equal(t, []string{"group1-shard1of1.bin"}, art.ShardPaths())
}

func TestParser_Variants(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		className string
		layers    []string
	}{
		{
			name: "Bare layer list",
			doc: `{"modelTopology": {"class_name": "Sequential", "config": [
				{"class_name": "Dense", "config": {"name": "d", "units": 4}},
				{"class_name": "Flatten", "config": {}}
			]}}`,
			className: "Sequential",
			layers:    []string{"d", "flatten_1"},
		},
		{
			name: "Wrapped in model_config",
			doc: `{"format": "layers-model", "modelTopology": {"keras_version": "2.1.4",
				"model_config": {"class_name": "Sequential", "config": {"name": "gen", "layers": [
					{"class_name": "Dense", "name": "top", "config": {"units": 4}}
				]}}}}`,
			className: "Sequential",
			layers:    []string{"top"},
		},
		{
			name: "Functional",
			doc: `{"modelTopology": {"class_name": "Model", "config": {"layers": [
				{"class_name": "InputLayer", "config": {"name": "in", "batch_input_shape": [null, 2]}}
			]}}}`,
			className: "Model",
			layers:    []string{"in"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			art, err := compiler.NewParser().Parse([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.className, art.Topology.ClassName)

			var names []string
			for _, l := range art.Topology.Layers {
				names = append(names, l.Name)
			}
			assert.Equal(t, tt.layers, names)
		})
	}
}

func TestParser_WeightNames(t *testing.T) {
	art, err := compiler.NewParser().Parse([]byte(`{
		"modelTopology": {"class_name": "Sequential", "config": [{"class_name": "Dense", "config": {"name": "d"}}]},
		"weightsManifest": [{"paths": ["a.bin"], "weights": [{"name": "d/kernel:0", "shape": [2, 1], "dtype": "float32"}]}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "d/kernel", art.Manifest[0].Weights[0].Name)
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"Not JSON", `<html>404</html>`},
		{"Graph model", `{"format": "graph-model", "modelTopology": {}}`},
		{"No topology", `{"format": "layers-model"}`},
		{"Null topology", `{"modelTopology": null}`},
		{"No class", `{"modelTopology": {"config": []}}`},
		{"Unknown class", `{"modelTopology": {"class_name": "Bidirectional", "config": []}}`},
		{"No layers", `{"modelTopology": {"class_name": "Sequential", "config": {"layers": []}}}`},
		{"Group without paths", `{"modelTopology": {"class_name": "Sequential", "config": [{"class_name": "Flatten"}]},
			"weightsManifest": [{"paths": [], "weights": []}]}`},
		{"Nested too deeply", `{"modelTopology": {"model_config": {"model_config": {"model_config": {"model_config": {"model_config": {"model_config": {}}}}}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.NewParser().Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}
