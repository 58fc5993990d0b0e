package compiler

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/x448/float16"
)

// Weight is a decoded tensor from the manifest.
type Weight struct {
	Name   string
	Shape  []int
	Values []float64
}

// Size is the element count implied by the shape.
func (w *Weight) Size() int {
	return shapeSize(w.Shape)
}

// WeightSet indexes decoded weights by name.
type WeightSet map[string]*Weight

// Lookup finds the weight "<layer>/<param>", also accepting names prefixed by
// a model scope ("sequential/dense/kernel").
func (ws WeightSet) Lookup(layer, param string) (*Weight, bool) {
	want := layer + "/" + param
	if w, ok := ws[want]; ok {
		return w, true
	}
	for name, w := range ws {
		if strings.HasSuffix(name, "/"+want) {
			return w, true
		}
	}
	return nil, false
}

// DecodeWeights unpacks every group of the manifest. groups[i] holds the
// concatenated shard bytes of manifest group i.
func DecodeWeights(manifest []WeightGroup, groups [][]byte) (WeightSet, error) {
	if len(groups) != len(manifest) {
		return nil, fmt.Errorf("got %d weight groups, manifest lists %d", len(groups), len(manifest))
	}

	set := WeightSet{}
	for gi, g := range manifest {
		data := groups[gi]
		offset := 0
		for _, spec := range g.Weights {
			w, n, err := decodeWeight(spec, data[offset:])
			if err != nil {
				return nil, fmt.Errorf("weight group %d: %w", gi, err)
			}
			if _, dup := set[w.Name]; dup {
				return nil, fmt.Errorf("weight %q listed twice", w.Name)
			}
			set[w.Name] = w
			offset += n
		}
		if offset != len(data) {
			return nil, fmt.Errorf("weight group %d: %d trailing bytes after %d weights", gi, len(data)-offset, len(g.Weights))
		}
	}
	return set, nil
}

// decodeWeight reads one tensor from the front of data and reports how many
// bytes it consumed.
func decodeWeight(spec WeightSpec, data []byte) (*Weight, int, error) {
	for _, d := range spec.Shape {
		if d < 0 {
			return nil, 0, fmt.Errorf("weight %q has negative dimension in %v", spec.Name, spec.Shape)
		}
	}
	n := shapeSize(spec.Shape)

	storage := spec.DType
	if spec.Quantization != nil {
		storage = spec.Quantization.DType
	}
	width, err := dtypeWidth(storage)
	if err != nil {
		return nil, 0, fmt.Errorf("weight %q: %w", spec.Name, err)
	}
	need := n * width
	if len(data) < need {
		return nil, 0, fmt.Errorf("weight %q needs %d bytes, %d left", spec.Name, need, len(data))
	}

	values := make([]float64, n)
	for i := 0; i < n; i++ {
		b := data[i*width:]
		switch storage {
		case "float32":
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		case "int32":
			values[i] = float64(int32(binary.LittleEndian.Uint32(b)))
		case "float16":
			values[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(b)).Float32())
		case "uint16":
			values[i] = float64(binary.LittleEndian.Uint16(b))
		case "uint8", "bool":
			values[i] = float64(b[0])
		}
	}

	if q := spec.Quantization; q != nil && (q.DType == "uint8" || q.DType == "uint16") {
		for i, v := range values {
			values[i] = v*q.Scale + q.Min
		}
	}

	return &Weight{Name: spec.Name, Shape: spec.Shape, Values: values}, need, nil
}

func dtypeWidth(dtype string) (int, error) {
	switch dtype {
	case "float32", "int32":
		return 4, nil
	case "float16", "uint16":
		return 2, nil
	case "uint8", "bool":
		return 1, nil
	}
	return 0, fmt.Errorf("unsupported weight dtype %q", dtype)
}

func shapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
