package nn

import (
	"fmt"
	"math"
)

// DenseModel is a fitted feed-forward network: every layer computes
// h = x * W + b, with the activation applied to all but the output layer.
type DenseModel struct {
	classifier bool
	activation string

	// Architecture
	inputDim  int
	outputDim int

	// Weights, weights[i] is rows=in, cols=out
	weights [][][]float64
	biases  [][]float64

	classes []float64
}

// LayerSpec holds one dense layer of an exported network
type LayerSpec struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

func newDenseModel(spec Spec, classifier bool) (*DenseModel, error) {
	if len(spec.Layers) == 0 {
		return nil, fmt.Errorf("%s has no layers", spec.Type)
	}

	activation := spec.Activation
	if activation == "" {
		activation = "relu"
	}
	if _, err := activate(activation, 0); err != nil {
		return nil, err
	}

	m := &DenseModel{
		classifier: classifier,
		activation: activation,
		inputDim:   spec.NumFeatures,
		weights:    make([][][]float64, len(spec.Layers)),
		biases:     make([][]float64, len(spec.Layers)),
	}

	in := spec.NumFeatures
	for i, layer := range spec.Layers {
		if len(layer.Weights) != in {
			return nil, fmt.Errorf("layer %d has %d weight rows, want %d", i, len(layer.Weights), in)
		}
		out := len(layer.Bias)
		if out == 0 {
			return nil, fmt.Errorf("layer %d has no units", i)
		}
		for r, row := range layer.Weights {
			if len(row) != out {
				return nil, fmt.Errorf("layer %d row %d has %d columns, want %d", i, r, len(row), out)
			}
		}
		m.weights[i] = layer.Weights
		m.biases[i] = layer.Bias
		in = out
	}
	m.outputDim = in

	if classifier {
		m.classes = spec.Classes
		if len(m.classes) == 0 {
			m.classes = defaultClasses(m.outputDim)
		}
		if len(m.classes) != m.outputDim || m.outputDim < 2 {
			return nil, fmt.Errorf("classifier has %d outputs for %d classes", m.outputDim, len(m.classes))
		}
	} else if m.outputDim != 1 {
		return nil, fmt.Errorf("regressor must have a single output, got %d", m.outputDim)
	}

	return m, nil
}

// Forward performs a forward pass and returns the raw output layer
func (m *DenseModel) Forward(inputData []float64) ([]float64, error) {
	if err := checkRow(inputData, m.inputDim); err != nil {
		return nil, err
	}

	hidden := inputData
	numLayers := len(m.weights)

	for i := 0; i < numLayers; i++ {
		w, b := m.weights[i], m.biases[i]
		next := make([]float64, len(b))
		copy(next, b)

		// Linear: h = x * W + b
		for r, x := range hidden {
			if x == 0 {
				continue
			}
			for c, wv := range w[r] {
				next[c] += x * wv
			}
		}

		// Activation for hidden layers, none for output
		if i < numLayers-1 {
			for c := range next {
				next[c], _ = activate(m.activation, next[c])
			}
		}
		hidden = next
	}

	return hidden, nil
}

// PredictProba applies a softmax over the output layer
func (m *DenseModel) PredictProba(features []float64) ([]float64, error) {
	if !m.classifier {
		return nil, fmt.Errorf("regressor has no class probabilities")
	}
	out, err := m.Forward(features)
	if err != nil {
		return nil, err
	}
	return softmax(out), nil
}

// Predict runs inference on the model
func (m *DenseModel) Predict(features []float64) (float64, error) {
	out, err := m.Forward(features)
	if err != nil {
		return 0, err
	}
	if m.classifier {
		return m.classes[argmax(out)], nil
	}
	return out[0], nil
}

// NumFeatures returns the input width
func (m *DenseModel) NumFeatures() int {
	return m.inputDim
}

// Classes returns the class labels in output order
func (m *DenseModel) Classes() []float64 {
	return append([]float64(nil), m.classes...)
}

// Describe returns the model configuration
func (m *DenseModel) Describe() map[string]interface{} {
	return map[string]interface{}{
		"algorithm":  "MLP",
		"input_dim":  m.inputDim,
		"output_dim": m.outputDim,
		"num_layers": len(m.weights),
		"activation": m.activation,
	}
}

func activate(name string, x float64) (float64, error) {
	switch name {
	case "relu":
		return math.Max(0, x), nil
	case "tanh":
		return math.Tanh(x), nil
	case "logistic":
		return 1 / (1 + math.Exp(-x)), nil
	case "identity":
		return x, nil
	default:
		return 0, fmt.Errorf("unknown activation %q", name)
	}
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[argmax(logits)]
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
