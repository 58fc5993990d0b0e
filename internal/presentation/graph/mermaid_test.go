package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/latentscope/internal/presentation/graph"
	"github.com/aretw0/latentscope/pkg/domain"
)

func decoderInfo() domain.ModelInfo {
	return domain.ModelInfo{
		Name:        "generatorjs",
		InputDim:    2,
		OutputShape: domain.Shape{Rows: 28, Cols: 28},
		Layers: []domain.LayerInfo{
			{Name: "dense_Dense1", Class: "Dense", Activation: "relu", OutputShape: []int{16}, Params: 48},
			{Name: "dropout-1", Class: "Dropout", OutputShape: []int{16}},
			{Name: "dense_Dense2", Class: "Dense", Activation: "sigmoid", OutputShape: []int{784}, Params: 13328},
			{Name: "act", Class: "Activation", Activation: "linear", OutputShape: []int{784}},
			{Name: "reshape_Reshape1", Class: "Reshape", OutputShape: []int{28, 28, 1}},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		overlay  *graph.GraphOverlay
		contains []string
		excludes []string
	}{
		{
			name: "Layer Shapes",
			contains: []string{
				"graph LR",
				`input(("latent 2"))`,
				`l0_dense_Dense1["dense_Dense1 <br/> Dense relu <br/> 48 params"]`,
				`l1_dropout_1{{"dropout-1 <br/> Dropout"}}`,
				`l3_act(["act <br/> Activation"])`,
				`l4_reshape_Reshape1[/"reshape_Reshape1 <br/> Reshape"/]`,
				`output(("28x28"))`,
			},
			excludes: []string{"classDef"},
		},
		{
			name: "Edges Carry Shapes",
			contains: []string{
				`input -- "[2]" --> l0_dense_Dense1`,
				`l0_dense_Dense1 -- "[16]" --> l1_dropout_1`,
				`l2_dense_Dense2 -- "[784]" --> l3_act`,
				`l4_reshape_Reshape1 -- "[28,28,1]" --> output`,
			},
		},
		{
			name: "Overlay",
			overlay: &graph.GraphOverlay{
				Latent:    &domain.LatentVector{X: 0.12345, Y: -2.5},
				Highlight: []string{"dense_Dense2", "missing"},
			},
			contains: []string{
				`input(("latent (0.123, -2.500)"))`,
				"classDef current",
				"class l2_dense_Dense2 current;",
			},
			excludes: []string{"class missing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(decoderInfo(), tt.overlay)
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("expected output to contain %q, got:\n%s", s, got)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("expected output not to contain %q, got:\n%s", s, got)
				}
			}
		})
	}
}

func TestGenerateMermaid_EmptyModel(t *testing.T) {
	got := graph.GenerateMermaid(domain.ModelInfo{InputDim: 2, OutputShape: domain.Shape{Rows: 1, Cols: 2}}, nil)
	if !strings.Contains(got, `input -- "[2]" --> output`) {
		t.Errorf("expected input wired to output, got:\n%s", got)
	}
}
