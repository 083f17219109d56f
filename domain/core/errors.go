package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	// Input errors are fatal: no retry, no partial result.
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidMap    = fmt.Errorf("%w: sky map", ErrInvalidInput)
	ErrInvalidConfig = fmt.Errorf("%w: configuration", ErrInvalidInput)

	// Control-flow outcomes, counted in diagnostics and never fatal.
	ErrDegenerateCorrelation = errors.New("degenerate correlation: zero-variance patch")
	ErrPatchMismatch         = errors.New("patch sample sequences differ in length")

	ErrInsufficientData = errors.New("insufficient data for analysis")
)

// NewInputError reports a malformed map or configuration field.
func NewInputError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, field, reason)
}

func NewMapError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidMap, reason)
}

func NewConfigError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, reason)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRecoverable reports outcomes that exclude a pair from scoring
// without failing the run. Patches below coverage are flagged through
// Patch.Valid instead.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrDegenerateCorrelation)
}
