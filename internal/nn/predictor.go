package nn

import (
	"fmt"
	"math"
)

// Predictor is a fitted model that maps one feature row to one value.
// For classifiers the value is the predicted class label.
type Predictor interface {
	Predict(features []float64) (float64, error)
	NumFeatures() int
	Describe() map[string]interface{}
}

// Classifier is a Predictor that also exposes class probabilities.
// PredictProba returns one probability per entry of Classes, in that order.
type Classifier interface {
	Predictor
	PredictProba(features []float64) ([]float64, error)
	Classes() []float64
}

// Spec is the serialized form of a predictor as exported from the training
// environment.
type Spec struct {
	Type        string      `json:"type"`
	NumFeatures int         `json:"n_features"`
	Classes     []float64   `json:"classes,omitempty"`
	Trees       []TreeSpec  `json:"trees,omitempty"`
	Layers      []LayerSpec `json:"layers,omitempty"`
	Activation  string      `json:"activation,omitempty"`
}

// Predictor types understood by FromSpec
const (
	TypeForestClassifier = "random_forest_classifier"
	TypeForestRegressor  = "random_forest_regressor"
	TypeMLPClassifier    = "mlp_classifier"
	TypeMLPRegressor     = "mlp_regressor"
)

// FromSpec builds a predictor from its serialized form.
func FromSpec(spec Spec) (Predictor, error) {
	if spec.NumFeatures <= 0 {
		return nil, fmt.Errorf("n_features must be positive, got %d", spec.NumFeatures)
	}

	switch spec.Type {
	case TypeForestClassifier:
		return newForest(spec, true)
	case TypeForestRegressor:
		return newForest(spec, false)
	case TypeMLPClassifier:
		return newDenseModel(spec, true)
	case TypeMLPRegressor:
		return newDenseModel(spec, false)
	default:
		return nil, fmt.Errorf("unknown predictor type %q", spec.Type)
	}
}

func checkRow(features []float64, n int) error {
	if len(features) != n {
		return fmt.Errorf("feature row has %d values, model expects %d", len(features), n)
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature %d is not finite (%v)", i, v)
		}
	}
	return nil
}

// argmax returns the first index of the largest value
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func defaultClasses(n int) []float64 {
	classes := make([]float64, n)
	for i := range classes {
		classes[i] = float64(i)
	}
	return classes
}
