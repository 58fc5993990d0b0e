package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/aretw0/latentscope/internal/model"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Options tune compilation.
type Options struct {
	// Shape is the grid used when the network ends in a flat vector.
	// Defaults to domain.DefaultShape.
	Shape domain.Shape
}

// layerConfig is the union of the Keras config keys this compiler reads.
type layerConfig struct {
	Name            string   `mapstructure:"name"`
	Units           int      `mapstructure:"units"`
	Activation      string   `mapstructure:"activation"`
	UseBias         *bool    `mapstructure:"use_bias"`
	BatchInputShape []any    `mapstructure:"batch_input_shape"`
	BatchShape      []any    `mapstructure:"batch_shape"`
	TargetShape     []int    `mapstructure:"target_shape"`
	Alpha           *float64 `mapstructure:"alpha"`
	NegativeSlope   *float64 `mapstructure:"negative_slope"`
}

func decodeLayerConfig(spec LayerSpec) (layerConfig, error) {
	var cfg layerConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, err
	}
	if err := dec.Decode(spec.Config); err != nil {
		return cfg, fmt.Errorf("layer %s (%s): %w", spec.Name, spec.ClassName, err)
	}
	return cfg, nil
}

// inputWidth reads the trailing dimension of a Keras batch shape ([null, 2]).
func (c layerConfig) inputWidth() (int, bool) {
	shape := c.BatchInputShape
	if len(shape) == 0 {
		shape = c.BatchShape
	}
	if len(shape) < 2 {
		return 0, false
	}
	n := 1
	for _, d := range shape[1:] {
		f, ok := d.(float64)
		if !ok || f <= 0 {
			return 0, false
		}
		n *= int(f)
	}
	return n, true
}

// Compile builds an executable network from a parsed artifact and the shard
// bytes of each manifest group (in manifest order).
func Compile(art *Artifact, groups [][]byte, opts Options) (*model.Network, error) {
	if !opts.Shape.Valid() {
		opts.Shape = domain.DefaultShape
	}

	weights, err := DecodeWeights(art.Manifest, groups)
	if err != nil {
		return nil, err
	}

	var (
		layers   []model.Layer
		inputDim int
		cur      []int // per-sample shape flowing between layers
	)
	for i, spec := range art.Topology.Layers {
		cfg, err := decodeLayerConfig(spec)
		if err != nil {
			return nil, err
		}
		if inputDim == 0 {
			if w, ok := cfg.inputWidth(); ok {
				inputDim = w
				cur = []int{w}
			}
		}

		switch spec.ClassName {
		case "InputLayer":
			continue

		case "Dense":
			kernel, ok := weights.Lookup(spec.Name, "kernel")
			if !ok {
				return nil, fmt.Errorf("dense %s: kernel weight missing", spec.Name)
			}
			if len(kernel.Shape) != 2 {
				return nil, fmt.Errorf("dense %s: kernel shape %v is not 2-D", spec.Name, kernel.Shape)
			}
			in, units := kernel.Shape[0], kernel.Shape[1]
			if cfg.Units != 0 && cfg.Units != units {
				return nil, fmt.Errorf("dense %s: config declares %d units, kernel has %d", spec.Name, cfg.Units, units)
			}
			if inputDim == 0 {
				inputDim = in
				cur = []int{in}
			}
			if size(cur) != in {
				return nil, fmt.Errorf("dense %s: expects %d inputs, previous layer yields %v", spec.Name, in, cur)
			}

			var bias []float64
			if cfg.UseBias == nil || *cfg.UseBias {
				b, ok := weights.Lookup(spec.Name, "bias")
				if !ok {
					return nil, fmt.Errorf("dense %s: bias weight missing", spec.Name)
				}
				bias = b.Values
			}
			layer, err := model.NewDense(spec.Name, cfg.Activation, in, units, kernel.Values, bias)
			if err != nil {
				return nil, err
			}
			layers = append(layers, layer)
			cur = []int{units}

		case "Activation":
			act, err := model.ActivationByName(cfg.Activation)
			if err != nil {
				return nil, fmt.Errorf("activation %s: %w", spec.Name, err)
			}
			layers = append(layers, model.NewElementwise(spec.Name, spec.ClassName, cfg.Activation, act, cur))

		case "LeakyReLU":
			alpha := 0.3
			switch {
			case cfg.NegativeSlope != nil:
				alpha = *cfg.NegativeSlope
			case cfg.Alpha != nil:
				alpha = *cfg.Alpha
			}
			layers = append(layers, model.NewElementwise(spec.Name, spec.ClassName, fmt.Sprintf("leaky_relu(%g)", alpha), model.LeakyReLU(alpha), cur))

		case "Dropout", "GaussianNoise", "GaussianDropout":
			layers = append(layers, model.NewReshape(spec.Name, spec.ClassName, nil, cur))

		case "Flatten":
			cur = []int{size(cur)}
			layers = append(layers, model.NewReshape(spec.Name, spec.ClassName, cur, cur))

		case "Reshape":
			if len(cfg.TargetShape) == 0 {
				return nil, fmt.Errorf("reshape %s: no target_shape", spec.Name)
			}
			if cur != nil && size(cfg.TargetShape) != size(cur) {
				return nil, fmt.Errorf("reshape %s: cannot reshape %v into %v", spec.Name, cur, cfg.TargetShape)
			}
			cur = append([]int(nil), cfg.TargetShape...)
			layers = append(layers, model.NewReshape(spec.Name, spec.ClassName, cur, cur))

		default:
			return nil, fmt.Errorf("layer %d (%s): unsupported class %q", i, spec.Name, spec.ClassName)
		}
	}

	if len(layers) == 0 {
		return nil, errors.New("topology has no executable layers")
	}
	if inputDim != domain.LatentDim {
		return nil, fmt.Errorf("decoder takes %d inputs, latent space is %d-D", inputDim, domain.LatentDim)
	}

	grid, err := outputGrid(cur, opts.Shape)
	if err != nil {
		return nil, err
	}

	return model.NewNetwork(domain.ModelInfo{
		Name:        art.Topology.Name,
		Format:      art.Format,
		GeneratedBy: art.GeneratedBy,
		ConvertedBy: art.ConvertedBy,
		Digest:      digest(art.raw, groups),
		InputDim:    inputDim,
		OutputShape: grid,
	}, layers)
}

// outputGrid maps the final per-sample shape onto a display grid. A trailing
// channel axis of 1 ([28, 28, 1]) is accepted.
func outputGrid(out []int, fallback domain.Shape) (domain.Shape, error) {
	switch {
	case len(out) == 1:
		if out[0] != fallback.Size() {
			return domain.Shape{}, fmt.Errorf("%w: %d outputs cannot fill a %s grid", domain.ErrShapeMismatch, out[0], fallback)
		}
		return fallback, nil
	case len(out) >= 2:
		for _, d := range out[2:] {
			if d != 1 {
				return domain.Shape{}, fmt.Errorf("%w: output %v is not a single-channel grid", domain.ErrShapeMismatch, out)
			}
		}
		return domain.Shape{Rows: out[0], Cols: out[1]}, nil
	}
	return domain.Shape{}, fmt.Errorf("%w: output shape unknown", domain.ErrShapeMismatch)
}

func digest(descriptor []byte, groups [][]byte) string {
	h := sha256.New()
	h.Write(descriptor)
	for _, g := range groups {
		h.Write(g)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func size(shape []int) int {
	if shape == nil {
		return 0
	}
	return shapeSize(shape)
}
