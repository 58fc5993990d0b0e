package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/latentscope/pkg/domain"
)

// GraphOverlay contains dynamic state data to visualize on the graph.
type GraphOverlay struct {
	// Latent, when set, is printed on the input node.
	Latent *domain.LatentVector
	// Highlight lists layer names to emphasise.
	Highlight []string
}

// GenerateMermaid produces a Mermaid flowchart of the decoder's layer chain,
// from the latent input to the output grid. Shapes follow the layer class:
// - Input/Output: ((Circle))
// - Dense: [Rectangle]
// - Activation, LeakyReLU: ([Stadium])
// - Reshape, Flatten: [/Parallelogram/]
// - Dropout: {{Hexagon}} (inert at inference)
// Edges carry the tensor shape flowing between layers.
func GenerateMermaid(info domain.ModelInfo, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	inputLabel := fmt.Sprintf("latent %d", info.InputDim)
	if overlay != nil && overlay.Latent != nil {
		inputLabel = fmt.Sprintf("latent %s", overlay.Latent.Rounded(3))
	}
	sb.WriteString(fmt.Sprintf("    input((\"%s\"))\n", escape(inputLabel)))

	prev := "input"
	prevShape := []int{info.InputDim}
	for i, layer := range info.Layers {
		id := fmt.Sprintf("l%d_%s", i, sanitizeMermaidID(layer.Name))

		opener, closer := "[", "]"
		switch layer.Class {
		case "Activation", "LeakyReLU":
			opener, closer = "([", "])"
		case "Reshape", "Flatten":
			opener, closer = "[/", "/]"
		case "Dropout":
			opener, closer = "{{", "}}"
		}

		label := fmt.Sprintf("%s <br/> %s", layer.Name, layer.Class)
		if layer.Activation != "" && layer.Activation != "linear" {
			label += " " + layer.Activation
		}
		if layer.Params > 0 {
			label += fmt.Sprintf(" <br/> %d params", layer.Params)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", id, opener, escape(label), closer))
		sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> %s\n", prev, formatShape(prevShape), id))

		prev = id
		if len(layer.OutputShape) > 0 {
			prevShape = layer.OutputShape
		}
	}

	sb.WriteString(fmt.Sprintf("    output((\"%s\"))\n", info.OutputShape))
	sb.WriteString(fmt.Sprintf("    %s -- \"%s\" --> output\n", prev, formatShape(prevShape)))

	if overlay != nil && len(overlay.Highlight) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		want := make(map[string]bool, len(overlay.Highlight))
		for _, name := range overlay.Highlight {
			want[name] = true
		}
		for i, layer := range info.Layers {
			if want[layer.Name] {
				sb.WriteString(fmt.Sprintf("    class l%d_%s current;\n", i, sanitizeMermaidID(layer.Name)))
			}
		}
	}

	return sb.String()
}

func formatShape(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func escape(label string) string {
	return strings.ReplaceAll(label, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
