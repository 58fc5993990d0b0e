package domain

// LayerInfo describes one layer of the loaded decoder.
type LayerInfo struct {
	Name        string `json:"name"`
	Class       string `json:"class"`
	Activation  string `json:"activation,omitempty"`
	OutputShape []int  `json:"output_shape"`
	Params      int    `json:"params"`
}

// ModelInfo describes the loaded decoder.
type ModelInfo struct {
	Name        string      `json:"name"`
	Format      string      `json:"format,omitempty"`
	GeneratedBy string      `json:"generated_by,omitempty"`
	ConvertedBy string      `json:"converted_by,omitempty"`
	Digest      string      `json:"digest"`
	InputDim    int         `json:"input_dim"`
	OutputShape Shape       `json:"output_shape"`
	Layers      []LayerInfo `json:"layers"`
}

// Params is the total number of weights across layers.
func (m ModelInfo) Params() int {
	n := 0
	for _, l := range m.Layers {
		n += l.Params
	}
	return n
}
