// Package encoder provides fitted label encoders that translate categorical
// values to the integer codes a model was trained on, and back.
package encoder

import (
	"fmt"
	"math"
	"sort"

	perrors "github.com/harvestlink/advisor/internal/errors"
)

// Label is a fitted label encoder. The code of a category is its index in
// the fitted class list; the vocabulary never changes after construction.
type Label struct {
	field   string
	classes []string
	index   map[string]int
}

// NewLabel builds an encoder for field from the fitted classes, in the order
// the training run assigned codes.
func NewLabel(field string, classes []string) (*Label, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("encoder %s has no classes", field)
	}

	l := &Label{
		field:   field,
		classes: make([]string, len(classes)),
		index:   make(map[string]int, len(classes)),
	}
	copy(l.classes, classes)

	for i, c := range classes {
		if _, dup := l.index[c]; dup {
			return nil, fmt.Errorf("encoder %s has duplicate class %q", field, c)
		}
		l.index[c] = i
	}
	return l, nil
}

// Field returns the name of the field this encoder was fitted on
func (l *Label) Field() string {
	return l.field
}

// Classes returns a copy of the fitted vocabulary
func (l *Label) Classes() []string {
	out := make([]string, len(l.classes))
	copy(out, l.classes)
	return out
}

// Encode maps a raw category to its code.
func (l *Label) Encode(raw string) (int, error) {
	code, ok := l.index[raw]
	if !ok {
		return 0, &perrors.UnseenCategoryError{Field: l.field, Value: raw}
	}
	return code, nil
}

// Decode maps a code back to its category.
func (l *Label) Decode(code int) (string, error) {
	if code < 0 || code >= len(l.classes) {
		return "", fmt.Errorf("code %d out of range for encoder %s (%d classes)", code, l.field, len(l.classes))
	}
	return l.classes[code], nil
}

// DecodeFloat decodes a model output that is expected to carry an integral
// class code.
func (l *Label) DecodeFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return "", fmt.Errorf("model output %v is not a class code for encoder %s", v, l.field)
	}
	return l.Decode(int(v))
}

// Set maps categorical field names to their fitted encoders.
type Set map[string]*Label

// NewSet builds a Set from field → fitted classes.
func NewSet(vocab map[string][]string) (Set, error) {
	s := make(Set, len(vocab))
	for field, classes := range vocab {
		l, err := NewLabel(field, classes)
		if err != nil {
			return nil, err
		}
		s[field] = l
	}
	return s, nil
}

// Get returns the encoder for field.
func (s Set) Get(field string) (*Label, error) {
	l, ok := s[field]
	if !ok {
		return nil, fmt.Errorf("no encoder fitted for field %s", field)
	}
	return l, nil
}

// Encode encodes raw through the encoder for field.
func (s Set) Encode(field, raw string) (int, error) {
	l, err := s.Get(field)
	if err != nil {
		return 0, err
	}
	return l.Encode(raw)
}

// Require checks that every named field has an encoder.
func (s Set) Require(fields ...string) error {
	var missing []string
	for _, f := range fields {
		if _, ok := s[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing encoders: %v", missing)
	}
	return nil
}

// Fields returns the encoded field names, sorted
func (s Set) Fields() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
