package nn

import (
	"fmt"
)

// leaf marks a node without children in exported trees
const leaf = -1

// TreeSpec is one fitted decision tree in array form: node i splits on
// Feature[i] at Threshold[i] and continues at ChildrenLeft[i] when the value
// is <= the threshold, ChildrenRight[i] otherwise. Value[i] holds class
// counts (classifiers) or a single target value (regressors).
type TreeSpec struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type tree struct {
	left      []int
	right     []int
	feature   []int
	threshold []float64
	value     [][]float64
}

// Forest is an averaged ensemble of decision trees.
type Forest struct {
	classifier  bool
	numFeatures int
	classes     []float64
	trees       []tree
}

func newForest(spec Spec, classifier bool) (*Forest, error) {
	if len(spec.Trees) == 0 {
		return nil, fmt.Errorf("%s has no trees", spec.Type)
	}

	width := 1
	classes := spec.Classes
	if classifier {
		if len(classes) == 0 {
			if len(spec.Trees[0].Value) == 0 {
				return nil, fmt.Errorf("tree 0 has no nodes")
			}
			classes = defaultClasses(len(spec.Trees[0].Value[0]))
		}
		if len(classes) < 2 {
			return nil, fmt.Errorf("classifier needs at least 2 classes, got %d", len(classes))
		}
		width = len(classes)
	}

	f := &Forest{
		classifier:  classifier,
		numFeatures: spec.NumFeatures,
		classes:     append([]float64(nil), classes...),
		trees:       make([]tree, 0, len(spec.Trees)),
	}

	for i, ts := range spec.Trees {
		t, err := buildTree(ts, spec.NumFeatures, width)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		f.trees = append(f.trees, t)
	}
	return f, nil
}

func buildTree(ts TreeSpec, numFeatures, width int) (tree, error) {
	n := len(ts.Value)
	if n == 0 {
		return tree{}, fmt.Errorf("no nodes")
	}
	if len(ts.ChildrenLeft) != n || len(ts.ChildrenRight) != n || len(ts.Feature) != n || len(ts.Threshold) != n {
		return tree{}, fmt.Errorf("node arrays disagree on length")
	}

	for i := 0; i < n; i++ {
		if len(ts.Value[i]) != width {
			return tree{}, fmt.Errorf("node %d has %d values, want %d", i, len(ts.Value[i]), width)
		}
		l, r := ts.ChildrenLeft[i], ts.ChildrenRight[i]
		if l == leaf || r == leaf {
			if l != r {
				return tree{}, fmt.Errorf("node %d has exactly one child", i)
			}
			continue
		}
		// children always follow their parent, which also rules out cycles
		if l <= i || r <= i || l >= n || r >= n {
			return tree{}, fmt.Errorf("node %d has invalid children (%d, %d)", i, l, r)
		}
		if ts.Feature[i] < 0 || ts.Feature[i] >= numFeatures {
			return tree{}, fmt.Errorf("node %d splits on feature %d of %d", i, ts.Feature[i], numFeatures)
		}
	}

	return tree{
		left:      ts.ChildrenLeft,
		right:     ts.ChildrenRight,
		feature:   ts.Feature,
		threshold: ts.Threshold,
		value:     ts.Value,
	}, nil
}

// apply returns the leaf values reached by the row
func (t *tree) apply(features []float64) []float64 {
	node := 0
	for t.left[node] != leaf {
		// training stored features as float32; compare at that precision
		if float64(float32(features[t.feature[node]])) <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return t.value[node]
}

// NumFeatures returns the expected row width
func (f *Forest) NumFeatures() int {
	return f.numFeatures
}

// Classes returns the class labels in probability order
func (f *Forest) Classes() []float64 {
	return append([]float64(nil), f.classes...)
}

// PredictProba averages the normalized leaf class distributions of all trees.
func (f *Forest) PredictProba(features []float64) ([]float64, error) {
	if !f.classifier {
		return nil, fmt.Errorf("regressor has no class probabilities")
	}
	if err := checkRow(features, f.numFeatures); err != nil {
		return nil, err
	}

	proba := make([]float64, len(f.classes))
	for i := range f.trees {
		counts := f.trees[i].apply(features)
		total := 0.0
		for _, c := range counts {
			total += c
		}
		if total <= 0 {
			continue
		}
		for k, c := range counts {
			proba[k] += c / total
		}
	}

	for k := range proba {
		proba[k] /= float64(len(f.trees))
	}
	return proba, nil
}

// Predict returns the most probable class label, or the mean tree output for
// regressors.
func (f *Forest) Predict(features []float64) (float64, error) {
	if f.classifier {
		proba, err := f.PredictProba(features)
		if err != nil {
			return 0, err
		}
		return f.classes[argmax(proba)], nil
	}

	if err := checkRow(features, f.numFeatures); err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range f.trees {
		sum += f.trees[i].apply(features)[0]
	}
	return sum / float64(len(f.trees)), nil
}

// Describe returns the ensemble shape
func (f *Forest) Describe() map[string]interface{} {
	info := map[string]interface{}{
		"algorithm":  "Random Forest",
		"n_features": f.numFeatures,
		"n_trees":    len(f.trees),
	}
	if f.classifier {
		info["n_classes"] = len(f.classes)
	}
	return info
}
