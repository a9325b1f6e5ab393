// Package errors holds the failure taxonomy shared by the inference layer and
// its HTTP boundary.
package errors

import "fmt"

// ArtifactLoadError is returned when a model or encoder artifact is missing or
// malformed. It is fatal at startup.
type ArtifactLoadError struct {
	Name string
	Path string
	Err  error
}

func (e *ArtifactLoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("artifact %s (%s): %v", e.Name, e.Path, e.Err)
	}
	return fmt.Sprintf("artifact %s: %v", e.Name, e.Err)
}

func (e *ArtifactLoadError) Unwrap() error {
	return e.Err
}

// UnseenCategoryError is returned when a categorical value is not part of a
// fitted encoder's vocabulary.
type UnseenCategoryError struct {
	Field string
	Value string
}

func (e *UnseenCategoryError) Error() string {
	return fmt.Sprintf("y contains previously unseen label %q for field %s", e.Value, e.Field)
}

// ExternalLookupError is returned when the weather service is unreachable or
// answers with something we cannot parse.
type ExternalLookupError struct {
	Service string
	Err     error
}

func (e *ExternalLookupError) Error() string {
	return fmt.Sprintf("%s lookup failed: %v", e.Service, e.Err)
}

func (e *ExternalLookupError) Unwrap() error {
	return e.Err
}

// ComputationError covers any other failure while invoking a model: shape
// mismatches, undecodable outputs, non-finite values.
type ComputationError struct {
	Op  string
	Err error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// InvalidInputError is returned when a caller-supplied value cannot be turned
// into a feature, e.g. a zero demand in a ratio.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
