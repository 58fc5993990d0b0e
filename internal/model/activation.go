package model

import (
	"fmt"
	"math"
)

// Activation is an element-wise non-linearity.
type Activation func(float64) float64

const (
	seluAlpha = 1.6732632423543772848170429916717
	seluScale = 1.0507009873554804934193349852946
)

var activations = map[string]Activation{
	"linear":       func(x float64) float64 { return x },
	"relu":         func(x float64) float64 { return math.Max(0, x) },
	"relu6":        func(x float64) float64 { return math.Min(math.Max(0, x), 6) },
	"sigmoid":      sigmoid,
	"hard_sigmoid": func(x float64) float64 { return math.Min(math.Max(0.2*x+0.5, 0), 1) },
	"tanh":         math.Tanh,
	"elu":          func(x float64) float64 { return elu(x, 1) },
	"selu":         func(x float64) float64 { return seluScale * elu(x, seluAlpha) },
	"softplus":     func(x float64) float64 { return math.Log1p(math.Exp(x)) },
	"softsign":     func(x float64) float64 { return x / (1 + math.Abs(x)) },
	"swish":        func(x float64) float64 { return x * sigmoid(x) },
}

// ActivationByName resolves a Keras activation identifier. An empty name is linear.
func ActivationByName(name string) (Activation, error) {
	if name == "" {
		name = "linear"
	}
	act, ok := activations[name]
	if !ok {
		return nil, fmt.Errorf("unsupported activation %q", name)
	}
	return act, nil
}

// LeakyReLU returns the leaky rectifier with the given negative slope.
func LeakyReLU(alpha float64) Activation {
	return func(x float64) float64 {
		if x < 0 {
			return alpha * x
		}
		return x
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func elu(x, alpha float64) float64 {
	if x < 0 {
		return alpha * (math.Exp(x) - 1)
	}
	return x
}
