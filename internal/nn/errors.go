package nn

import (
	"errors"
	"fmt"

	"github.com/born-ml/featnet/internal/tensor"
)

// Error categories. Every error returned by this module and the model
// packages built on it matches exactly one of these with errors.Is.
var (
	// ErrConfig reports an invalid static configuration. Raised at construction.
	ErrConfig = errors.New("invalid configuration")
	// ErrShapeMismatch reports runtime tensor shapes that violate a module's contract.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrUnsupportedFeature reports a combination that is explicitly not implemented.
	ErrUnsupportedFeature = errors.New("unsupported feature")
)

// ConfigError provides detailed information about a rejected configuration.
type ConfigError struct {
	Component string // Module being configured (e.g., "BasicBlock", "stage 2")
	Field     string // Offending field
	Value     any    // Offending value
	Reason    string // Human readable constraint
	kind      error  // ErrConfig or ErrUnsupportedFeature
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s: %s=%v: %s", e.kind, e.Component, e.Field, e.Value, e.Reason)
}

// Unwrap returns the error category.
func (e *ConfigError) Unwrap() error {
	return e.kind
}

// NewConfigError returns a ConfigError in the ErrConfig category.
func NewConfigError(component, field string, value any, reason string) error {
	return &ConfigError{Component: component, Field: field, Value: value, Reason: reason, kind: ErrConfig}
}

// NewUnsupportedError returns a ConfigError in the ErrUnsupportedFeature category.
func NewUnsupportedError(component, field string, value any, reason string) error {
	return &ConfigError{Component: component, Field: field, Value: value, Reason: reason, kind: ErrUnsupportedFeature}
}

// ShapeError describes a tensor whose shape does not fit an operation.
type ShapeError struct {
	Op     string       // Operation that rejected the tensor
	Got    tensor.Shape // Actual shape
	Want   tensor.Shape // Expected shape, if a single one applies
	Reason string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Want != nil {
		return fmt.Sprintf("%s: %s: got %v, want %v: %s", ErrShapeMismatch, e.Op, e.Got, e.Want, e.Reason)
	}
	return fmt.Sprintf("%s: %s: got %v: %s", ErrShapeMismatch, e.Op, e.Got, e.Reason)
}

// Unwrap returns ErrShapeMismatch.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// NewShapeError returns a ShapeError.
func NewShapeError(op string, got, want tensor.Shape, format string, args ...any) error {
	return &ShapeError{Op: op, Got: got, Want: want, Reason: fmt.Sprintf(format, args...)}
}

// CheckNHWC verifies that x is a 4D feature map with the given channel count.
// A negative channels value skips the channel check.
func CheckNHWC(op string, s tensor.Shape, channels int) error {
	if !s.IsNHWC() {
		return NewShapeError(op, s, nil, "expected 4D input [N,H,W,C]")
	}
	if channels >= 0 && s.Channels() != channels {
		return NewShapeError(op, s, nil, "expected %d channels, got %d", channels, s.Channels())
	}
	return nil
}
