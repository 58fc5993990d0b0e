package compiler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Artifact is a parsed TF.js layers-model descriptor (model.json).
type Artifact struct {
	Format      string
	GeneratedBy string
	ConvertedBy string
	Topology    Topology
	Manifest    []WeightGroup

	raw []byte
}

// Topology is the layer chain of a Keras Sequential or linear functional model.
type Topology struct {
	ClassName string
	Name      string
	Layers    []LayerSpec
}

// LayerSpec is one entry of the Keras layer list; Config is decoded per class.
type LayerSpec struct {
	ClassName string         `json:"class_name"`
	Name      string         `json:"name"`
	Config    map[string]any `json:"config"`
}

// WeightGroup lists the shard files of a group and the tensors packed in them.
type WeightGroup struct {
	Paths   []string     `json:"paths"`
	Weights []WeightSpec `json:"weights"`
}

// WeightSpec describes one stored tensor.
type WeightSpec struct {
	Name         string        `json:"name"`
	Shape        []int         `json:"shape"`
	DType        string        `json:"dtype"`
	Quantization *Quantization `json:"quantization,omitempty"`
}

// Quantization is the optional storage encoding of a weight.
type Quantization struct {
	DType string  `json:"dtype"`
	Scale float64 `json:"scale"`
	Min   float64 `json:"min"`
}

// Parser is responsible for converting raw model.json bytes into an Artifact.
type Parser struct{}

// NewParser creates a new parser instance.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes a model.json document. It accepts the topology either directly
// or wrapped in "model_config" (older Keras exports), and a Sequential config
// either as a bare layer list or as {"layers": [...]}.
func (p *Parser) Parse(data []byte) (*Artifact, error) {
	var doc struct {
		Format          string          `json:"format"`
		GeneratedBy     string          `json:"generatedBy"`
		ConvertedBy     string          `json:"convertedBy"`
		ModelTopology   json.RawMessage `json:"modelTopology"`
		WeightsManifest []WeightGroup   `json:"weightsManifest"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse model descriptor: %w", err)
	}
	if doc.Format != "" && doc.Format != "layers-model" {
		return nil, fmt.Errorf("unsupported model format %q", doc.Format)
	}
	if len(doc.ModelTopology) == 0 || string(doc.ModelTopology) == "null" {
		return nil, errors.New("model descriptor has no modelTopology")
	}

	top, err := parseTopology(doc.ModelTopology, 0)
	if err != nil {
		return nil, err
	}

	for gi, g := range doc.WeightsManifest {
		if len(g.Paths) == 0 {
			return nil, fmt.Errorf("weight group %d lists no shard paths", gi)
		}
		for wi := range g.Weights {
			g.Weights[wi].Name = normalizeWeightName(g.Weights[wi].Name)
		}
	}

	return &Artifact{
		Format:      doc.Format,
		GeneratedBy: doc.GeneratedBy,
		ConvertedBy: doc.ConvertedBy,
		Topology:    *top,
		Manifest:    doc.WeightsManifest,
		raw:         data,
	}, nil
}

// ShardPaths returns every shard path in manifest order.
func (a *Artifact) ShardPaths() []string {
	var paths []string
	for _, g := range a.Manifest {
		paths = append(paths, g.Paths...)
	}
	return paths
}

const maxTopologyDepth = 4

func parseTopology(raw json.RawMessage, depth int) (*Topology, error) {
	if depth > maxTopologyDepth {
		return nil, errors.New("modelTopology nested too deeply")
	}

	var node struct {
		ClassName   string          `json:"class_name"`
		Config      json.RawMessage `json:"config"`
		ModelConfig json.RawMessage `json:"model_config"`
	}
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("failed to parse modelTopology: %w", err)
	}
	if len(node.ModelConfig) > 0 && string(node.ModelConfig) != "null" {
		return parseTopology(node.ModelConfig, depth+1)
	}

	switch node.ClassName {
	case "Sequential", "Model", "Functional":
	case "":
		return nil, errors.New("modelTopology has no class_name")
	default:
		return nil, fmt.Errorf("unsupported model class %q", node.ClassName)
	}

	top := &Topology{ClassName: node.ClassName}

	// Keras 2.1 serialized Sequential.config as the layer list itself.
	var list []LayerSpec
	if err := json.Unmarshal(node.Config, &list); err == nil {
		top.Layers = list
	} else {
		var cfg struct {
			Name   string      `json:"name"`
			Layers []LayerSpec `json:"layers"`
		}
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s config: %w", node.ClassName, err)
		}
		top.Name = cfg.Name
		top.Layers = cfg.Layers
	}

	if len(top.Layers) == 0 {
		return nil, fmt.Errorf("%s has no layers", node.ClassName)
	}
	for i := range top.Layers {
		l := &top.Layers[i]
		if l.Config == nil {
			l.Config = map[string]any{}
		}
		if l.Name == "" {
			if name, ok := l.Config["name"].(string); ok {
				l.Name = name
			}
		}
		if l.Name == "" {
			l.Name = fmt.Sprintf("%s_%d", strings.ToLower(l.ClassName), i)
		}
	}
	if top.Name == "" {
		top.Name = "decoder"
	}
	return top, nil
}

// normalizeWeightName strips the TensorFlow output index (":0").
func normalizeWeightName(name string) string {
	if i := strings.LastIndex(name, ":"); i > 0 {
		return name[:i]
	}
	return name
}
