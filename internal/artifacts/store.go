// Package artifacts loads the fitted models and encoders exported by the
// training runs.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"

	"github.com/harvestlink/advisor/internal/encoder"
	perrors "github.com/harvestlink/advisor/internal/errors"
	"github.com/harvestlink/advisor/internal/nn"
)

// Artifact names
const (
	Crop       = "crop"
	Demand     = "demand"
	PriceCrash = "price_crash"
	Spoilage   = "spoilage"
)

// Names lists every artifact the service needs, in load order
var Names = []string{Crop, Demand, PriceCrash, Spoilage}

type fileNames struct {
	model    string
	encoders string
}

var files = map[string]fileNames{
	Crop:       {"crop_model.json", "crop_encoders.json"},
	Demand:     {"demand_model.json", "demand_encoders.json"},
	PriceCrash: {"price_crash_model.json", "crash_encoders.json"},
	Spoilage:   {"spoilage_model.json", "spoilage_encoders.json"},
}

// ModelFile is the on-disk form of a model artifact
type ModelFile struct {
	Name       string             `json:"name"`
	Features   []string           `json:"features"`
	Predictors map[string]nn.Spec `json:"predictors"`
}

// EncoderFile maps each categorical field to its fitted classes, in code order
type EncoderFile map[string][]string

// Artifact is a loaded model artifact: a named set of predictors sharing
// one feature layout, plus the encoders fitted alongside them.
type Artifact struct {
	Name       string
	Features   []string
	Predictors map[string]nn.Predictor
	Encoders   encoder.Set
}

// Predictor returns the named predictor
func (a *Artifact) Predictor(name string) (nn.Predictor, error) {
	p, ok := a.Predictors[name]
	if !ok {
		return nil, fmt.Errorf("artifact %s has no predictor %q", a.Name, name)
	}
	return p, nil
}

// Classifier returns the named predictor, which must expose probabilities
func (a *Artifact) Classifier(name string) (nn.Classifier, error) {
	p, err := a.Predictor(name)
	if err != nil {
		return nil, err
	}
	c, ok := p.(nn.Classifier)
	if !ok {
		return nil, fmt.Errorf("predictor %q of artifact %s is not a classifier", name, a.Name)
	}
	return c, nil
}

// PredictorNames returns the predictor names, sorted
func (a *Artifact) PredictorNames() []string {
	out := make([]string, 0, len(a.Predictors))
	for n := range a.Predictors {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Store reads artifacts from a directory
type Store struct {
	dir string
}

// NewStore creates a store over dir, which must exist
func NewStore(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &perrors.ArtifactLoadError{Name: "store", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &perrors.ArtifactLoadError{Name: "store", Path: dir, Err: fmt.Errorf("not a directory")}
	}
	return &Store{dir: dir}, nil
}

// Dir returns the artifact directory
func (s *Store) Dir() string {
	return s.dir
}

// Load reads and validates one artifact. Every failure is an
// ArtifactLoadError.
func (s *Store) Load(name string) (*Artifact, error) {
	fn, ok := files[name]
	if !ok {
		return nil, &perrors.ArtifactLoadError{Name: name, Err: fmt.Errorf("unknown artifact")}
	}

	modelPath := filepath.Join(s.dir, fn.model)
	var mf ModelFile
	if err := readJSON(modelPath, &mf); err != nil {
		return nil, &perrors.ArtifactLoadError{Name: name, Path: modelPath, Err: err}
	}
	encPath := filepath.Join(s.dir, fn.encoders)
	var ef EncoderFile
	if err := readJSON(encPath, &ef); err != nil {
		return nil, &perrors.ArtifactLoadError{Name: name, Path: encPath, Err: err}
	}

	a, err := build(name, mf, ef)
	if err != nil {
		return nil, &perrors.ArtifactLoadError{Name: name, Path: modelPath, Err: err}
	}
	return a, nil
}

// LoadAll loads every named artifact, or none of them
func (s *Store) LoadAll(names ...string) (map[string]*Artifact, error) {
	out := make(map[string]*Artifact, len(names))
	for _, name := range names {
		a, err := s.Load(name)
		if err != nil {
			return nil, err
		}
		out[name] = a
	}
	return out, nil
}

// Save writes an artifact in the layout Load expects
func (s *Store) Save(name string, mf ModelFile, ef EncoderFile) error {
	fn, ok := files[name]
	if !ok {
		return fmt.Errorf("unknown artifact %q", name)
	}
	if err := writeJSON(filepath.Join(s.dir, fn.model), mf); err != nil {
		return err
	}
	return writeJSON(filepath.Join(s.dir, fn.encoders), ef)
}

func build(name string, mf ModelFile, ef EncoderFile) (*Artifact, error) {
	if len(mf.Features) == 0 {
		return nil, fmt.Errorf("no feature names recorded")
	}
	seen := make(map[string]bool, len(mf.Features))
	for _, f := range mf.Features {
		if seen[f] {
			return nil, fmt.Errorf("duplicate feature %q", f)
		}
		seen[f] = true
	}
	if len(mf.Predictors) == 0 {
		return nil, fmt.Errorf("no predictors")
	}

	a := &Artifact{
		Name:       name,
		Features:   mf.Features,
		Predictors: make(map[string]nn.Predictor, len(mf.Predictors)),
	}
	for pname, spec := range mf.Predictors {
		p, err := nn.FromSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("predictor %s: %w", pname, err)
		}
		if p.NumFeatures() != len(mf.Features) {
			return nil, fmt.Errorf("predictor %s expects %d features, artifact records %d", pname, p.NumFeatures(), len(mf.Features))
		}
		a.Predictors[pname] = p
	}

	enc, err := encoder.NewSet(ef)
	if err != nil {
		return nil, err
	}
	a.Encoders = enc
	return a, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse: %w", err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
