package inference

import (
	"fmt"
	"math"
	"slices"

	"github.com/harvestlink/advisor/internal/artifacts"
	"github.com/harvestlink/advisor/internal/encoder"
	perrors "github.com/harvestlink/advisor/internal/errors"
)

type feature struct {
	name        string
	num         float64
	raw         string
	categorical bool
}

// featureVector is an ordered list of named model inputs, built per request
type featureVector []feature

func (v featureVector) num(name string, x float64) featureVector {
	return append(v, feature{name: name, num: x})
}

func (v featureVector) cat(name, raw string) featureVector {
	return append(v, feature{name: name, raw: raw, categorical: true})
}

func (v featureVector) names() []string {
	out := make([]string, len(v))
	for i, f := range v {
		out[i] = f.name
	}
	return out
}

// encode turns the vector into a model row. The names and order must match
// layout exactly; categorical values go through their fitted encoder.
func (v featureVector) encode(layout []string, enc encoder.Set) ([]float64, error) {
	if !slices.Equal(v.names(), layout) {
		return nil, &perrors.ComputationError{
			Op:  "build features",
			Err: fmt.Errorf("feature layout %v does not match model layout %v", v.names(), layout),
		}
	}

	row := make([]float64, len(v))
	for i, f := range v {
		if !f.categorical {
			row[i] = f.num
			continue
		}
		code, err := enc.Encode(f.name, f.raw)
		if err != nil {
			return nil, err
		}
		row[i] = float64(code)
	}
	return row, nil
}

// schema is what a pipeline needs from its artifact
type schema struct {
	layout      []string
	categorical []string
	decoders    []string
	regressors  []string
	classifiers []string
}

// check validates an artifact against the schema at load time
func (s schema) check(a *artifacts.Artifact) error {
	if !slices.Equal(a.Features, s.layout) {
		return &perrors.ArtifactLoadError{
			Name: a.Name,
			Err:  fmt.Errorf("recorded features %v, pipeline builds %v", a.Features, s.layout),
		}
	}
	if err := a.Encoders.Require(append(slices.Clone(s.categorical), s.decoders...)...); err != nil {
		return &perrors.ArtifactLoadError{Name: a.Name, Err: err}
	}
	for _, name := range s.regressors {
		if _, err := a.Predictor(name); err != nil {
			return &perrors.ArtifactLoadError{Name: a.Name, Err: err}
		}
	}
	for _, name := range s.classifiers {
		if _, err := a.Classifier(name); err != nil {
			return &perrors.ArtifactLoadError{Name: a.Name, Err: err}
		}
	}
	return nil
}

// predict runs a predictor, reporting failures as ComputationError
func predict(a *artifacts.Artifact, name string, row []float64) (float64, error) {
	p, err := a.Predictor(name)
	if err != nil {
		return 0, &perrors.ComputationError{Op: name, Err: err}
	}
	out, err := p.Predict(row)
	if err != nil {
		return 0, &perrors.ComputationError{Op: name, Err: err}
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, &perrors.ComputationError{Op: name, Err: fmt.Errorf("non-finite output %v", out)}
	}
	return out, nil
}

// decode maps a class output of a predictor back through a fitted encoder
func decode(a *artifacts.Artifact, field string, out float64) (string, error) {
	l, err := a.Encoders.Get(field)
	if err != nil {
		return "", &perrors.ComputationError{Op: "decode " + field, Err: err}
	}
	s, err := l.DecodeFloat(out)
	if err != nil {
		return "", &perrors.ComputationError{Op: "decode " + field, Err: err}
	}
	return s, nil
}
