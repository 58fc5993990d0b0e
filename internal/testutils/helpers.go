package testutils

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path"
	"path/filepath"

	"github.com/aretw0/latentscope/pkg/adapters/memory"
	"github.com/aretw0/latentscope/pkg/domain"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// TB is the subset of testing.TB the fixture builder needs.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	FailNow()
	TempDir() string
}

// NopTB returns a TB for use outside tests (examples, benchmarks setup);
// any failure panics.
func NopTB() TB {
	return panicTB{}
}

type panicTB struct{}

func (panicTB) Helper() {}

func (panicTB) Errorf(format string, args ...any) { panic(fmt.Sprintf(format, args...)) }

func (panicTB) Fatalf(format string, args ...any) { panic(fmt.Sprintf(format, args...)) }

func (panicTB) FailNow() { panic("testutils: FailNow") }

func (panicTB) TempDir() string {
	dir, err := os.MkdirTemp("", "latentscope-")
	if err != nil {
		panic(err)
	}
	return dir
}

// DenseSpec is one hidden layer of a generated decoder.
type DenseSpec struct {
	Units      int
	Activation string
}

// DecoderSpec describes a small TF.js layers-model decoder to generate.
type DecoderSpec struct {
	Name   string
	Shape  domain.Shape
	Hidden []DenseSpec
	// Flat leaves the output as a flat vector instead of ending with a Reshape.
	Flat bool
	// DType is the stored weight dtype: "float32" (default) or "float16".
	DType string
	// Shards splits the single weight group into this many files (default 1).
	Shards int
	// Wrapped nests the topology under "model_config" like old Keras exports.
	Wrapped bool
}

// Fixture is a serialised decoder: the descriptor and its shard files,
// keyed by the names listed in the weights manifest.
type Fixture struct {
	ModelJSON []byte
	Shards    map[string][]byte
	Order     []string
}

// DefaultDecoder returns a two-layer decoder onto a 28x28 grid.
func DefaultDecoder() DecoderSpec {
	return DecoderSpec{
		Name:   "generatorjs",
		Shape:  domain.DefaultShape,
		Hidden: []DenseSpec{{Units: 16, Activation: "relu"}},
	}
}

// BuildDecoder serialises spec into TF.js layers-model format.
// Weights are deterministic so decoded frames are reproducible across runs.
func BuildDecoder(t TB, spec DecoderSpec) Fixture {
	t.Helper()

	if !spec.Shape.Valid() {
		spec.Shape = domain.DefaultShape
	}
	if spec.Name == "" {
		spec.Name = "decoder"
	}
	if spec.DType == "" {
		spec.DType = "float32"
	}
	if spec.Shards <= 0 {
		spec.Shards = 1
	}

	type weightEntry struct {
		Name  string `json:"name"`
		Shape []int  `json:"shape"`
		DType string `json:"dtype"`
	}

	var (
		layers  []map[string]any
		weights []weightEntry
		payload []byte
		inputs  = domain.LatentDim
	)

	denses := append([]DenseSpec(nil), spec.Hidden...)
	denses = append(denses, DenseSpec{Units: spec.Shape.Size(), Activation: "sigmoid"})

	for li, d := range denses {
		name := fmt.Sprintf("dense_Dense%d", li+1)
		cfg := map[string]any{
			"name":       name,
			"units":      d.Units,
			"activation": d.Activation,
			"use_bias":   true,
		}
		if li == 0 {
			cfg["batch_input_shape"] = []any{nil, domain.LatentDim}
		}
		layers = append(layers, map[string]any{"class_name": "Dense", "config": cfg})

		kernel := make([]float64, inputs*d.Units)
		for i := range kernel {
			kernel[i] = 0.5 * math.Sin(float64(i)*0.37+float64(li))
		}
		bias := make([]float64, d.Units)
		for i := range bias {
			bias[i] = 0.1 * math.Cos(float64(i)*0.11+float64(li))
		}

		weights = append(weights,
			weightEntry{Name: name + "/kernel", Shape: []int{inputs, d.Units}, DType: spec.DType},
			weightEntry{Name: name + "/bias", Shape: []int{d.Units}, DType: spec.DType},
		)
		payload = append(payload, encode(t, spec.DType, kernel)...)
		payload = append(payload, encode(t, spec.DType, bias)...)
		inputs = d.Units
	}

	if !spec.Flat {
		layers = append(layers, map[string]any{
			"class_name": "Reshape",
			"config": map[string]any{
				"name":         "reshape_Reshape1",
				"target_shape": []int{spec.Shape.Rows, spec.Shape.Cols, 1},
			},
		})
	}

	shardNames := make([]string, spec.Shards)
	shards := make(map[string][]byte, spec.Shards)
	chunk := (len(payload) + spec.Shards - 1) / spec.Shards
	for i := 0; i < spec.Shards; i++ {
		lo := min(i*chunk, len(payload))
		hi := min(lo+chunk, len(payload))
		name := fmt.Sprintf("group1-shard%dof%d.bin", i+1, spec.Shards)
		shardNames[i] = name
		shards[name] = append([]byte(nil), payload[lo:hi]...)
	}

	var topology any = map[string]any{
		"class_name": "Sequential",
		"config": map[string]any{
			"name":   spec.Name,
			"layers": layers,
		},
	}
	if spec.Wrapped {
		topology = map[string]any{
			"keras_version": "2.1.4",
			"backend":       "tensorflow",
			"model_config":  topology,
		}
	}

	doc := map[string]any{
		"format":        "layers-model",
		"generatedBy":   "keras v2.1.4",
		"convertedBy":   "TensorFlow.js Converter v1.0.0",
		"modelTopology": topology,
		"weightsManifest": []any{
			map[string]any{"paths": shardNames, "weights": weights},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err, "failed to marshal fixture descriptor")

	return Fixture{ModelJSON: data, Shards: shards, Order: shardNames}
}

// Install places the fixture into an in-memory source under modelPath.
func (f Fixture) Install(src *memory.Source, modelPath string) {
	src.Add(modelPath, f.ModelJSON)
	dir := path.Dir(modelPath)
	for name, data := range f.Shards {
		src.Add(path.Join(dir, name), data)
	}
}

// Source returns a fresh in-memory source holding the fixture at modelPath.
func (f Fixture) Source(modelPath string) *memory.Source {
	src := memory.NewSource(nil)
	f.Install(src, modelPath)
	return src
}

// WriteDir writes the fixture into a temporary directory and returns the
// absolute path of model.json.
func (f Fixture) WriteDir(t TB) string {
	t.Helper()

	dir := t.TempDir()
	absPath, err := filepath.Abs(dir)
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	modelPath := filepath.Join(absPath, "model.json")
	require.NoError(t, os.WriteFile(modelPath, f.ModelJSON, 0o644))
	for name, data := range f.Shards {
		require.NoError(t, os.WriteFile(filepath.Join(absPath, name), data, 0o644))
	}
	return modelPath
}

// EmbeddingsJSON renders points in the encoded.json [x, y, label] layout.
func EmbeddingsJSON(t TB, points []domain.EmbeddingPoint) []byte {
	t.Helper()
	rows := make([][3]float64, len(points))
	for i, p := range points {
		rows[i] = [3]float64{p.X, p.Y, float64(p.Label)}
	}
	data, err := json.Marshal(rows)
	require.NoError(t, err)
	return data
}

func encode(t TB, dtype string, values []float64) []byte {
	switch dtype {
	case "float32":
		out := make([]byte, 4*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(float32(v)))
		}
		return out
	case "float16":
		out := make([]byte, 2*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(float32(v)).Bits())
		}
		return out
	}
	t.Fatalf("testutils: unsupported fixture dtype %q", dtype)
	return nil
}
