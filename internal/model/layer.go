package model

import (
	"fmt"

	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/aretw0/latentscope/pkg/tensor"
	"gonum.org/v1/gonum/mat"
)

// Layer is one step of the forward pass. Forward never returns its input:
// the result is always a fresh tensor from alloc, owned by the caller.
type Layer interface {
	Info() domain.LayerInfo
	Forward(alloc *tensor.Allocator, in *tensor.Tensor) (*tensor.Tensor, error)
}

// Dense is a fully connected layer: act(x·kernel + bias).
type Dense struct {
	info   domain.LayerInfo
	kernel *mat.Dense // inputs x units
	bias   []float64  // nil when the layer has no bias
	act    Activation
}

// NewDense builds a dense layer. kernel is row-major [inputs][units].
func NewDense(name, activation string, inputs, units int, kernel, bias []float64) (*Dense, error) {
	if inputs <= 0 || units <= 0 {
		return nil, fmt.Errorf("dense %s: invalid size %dx%d", name, inputs, units)
	}
	if len(kernel) != inputs*units {
		return nil, fmt.Errorf("dense %s: kernel has %d values, want %d", name, len(kernel), inputs*units)
	}
	if bias != nil && len(bias) != units {
		return nil, fmt.Errorf("dense %s: bias has %d values, want %d", name, len(bias), units)
	}
	act, err := ActivationByName(activation)
	if err != nil {
		return nil, fmt.Errorf("dense %s: %w", name, err)
	}
	if activation == "" {
		activation = "linear"
	}

	params := len(kernel) + len(bias)
	return &Dense{
		info: domain.LayerInfo{
			Name:        name,
			Class:       "Dense",
			Activation:  activation,
			OutputShape: []int{units},
			Params:      params,
		},
		kernel: mat.NewDense(inputs, units, kernel),
		bias:   bias,
		act:    act,
	}, nil
}

func (d *Dense) Info() domain.LayerInfo { return d.info }

// Inputs is the width of the expected input row.
func (d *Dense) Inputs() int {
	r, _ := d.kernel.Dims()
	return r
}

func (d *Dense) Forward(alloc *tensor.Allocator, in *tensor.Tensor) (*tensor.Tensor, error) {
	inputs, units := d.kernel.Dims()
	rows := batchRows(in)
	if in.Len() != rows*inputs {
		return nil, fmt.Errorf("dense %s: input %v does not match %d inputs", d.info.Name, in.Shape(), inputs)
	}

	src := in.Data()
	x := mat.NewDense(rows, inputs, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < inputs; c++ {
			x.Set(r, c, float64(src[r*inputs+c]))
		}
	}

	var y mat.Dense
	y.Mul(x, d.kernel)

	out := alloc.New(rows, units)
	dst := out.Data()
	for r := 0; r < rows; r++ {
		for c := 0; c < units; c++ {
			v := y.At(r, c)
			if d.bias != nil {
				v += d.bias[c]
			}
			dst[r*units+c] = float32(d.act(v))
		}
	}
	return out, nil
}

// Elementwise applies an activation to every element (Activation, LeakyReLU).
type Elementwise struct {
	info domain.LayerInfo
	act  Activation
}

// NewElementwise builds an activation layer. shape is the per-sample shape it
// sees, recorded for introspection only.
func NewElementwise(name, class, activation string, act Activation, shape []int) *Elementwise {
	return &Elementwise{
		info: domain.LayerInfo{Name: name, Class: class, Activation: activation, OutputShape: shape},
		act:  act,
	}
}

func (e *Elementwise) Info() domain.LayerInfo { return e.info }

func (e *Elementwise) Forward(alloc *tensor.Allocator, in *tensor.Tensor) (*tensor.Tensor, error) {
	out := alloc.New(in.Shape()...)
	dst := out.Data()
	for i, v := range in.Data() {
		dst[i] = float32(e.act(float64(v)))
	}
	return out, nil
}

// Reshape copies its input under a new per-sample shape. It also stands in for
// Flatten and for inference-time no-ops such as Dropout, with a nil target.
type Reshape struct {
	info   domain.LayerInfo
	target []int
}

// NewReshape builds a reshaping layer. A nil target keeps the input shape;
// shape is the per-sample output shape recorded for introspection.
func NewReshape(name, class string, target, shape []int) *Reshape {
	return &Reshape{
		info:   domain.LayerInfo{Name: name, Class: class, OutputShape: shape},
		target: target,
	}
}

func (s *Reshape) Info() domain.LayerInfo { return s.info }

func (s *Reshape) Forward(alloc *tensor.Allocator, in *tensor.Tensor) (*tensor.Tensor, error) {
	shape := in.Shape()
	if s.target != nil {
		rows := batchRows(in)
		shape = append([]int{rows}, s.target...)
	}
	out, err := alloc.FromSlice(in.Data(), shape...)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", s.info.Class, s.info.Name, err)
	}
	return out, nil
}

// batchRows is the leading dimension of t, or 1 for rank-0/1 tensors.
func batchRows(t *tensor.Tensor) int {
	shape := t.Shape()
	if len(shape) < 2 || shape[0] <= 0 {
		return 1
	}
	return shape[0]
}
