package core

import (
	"fmt"
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}

// TestNewRunIDStable tests that run ids derive only from the fingerprint
func TestNewRunIDStable(t *testing.T) {
	fp := NewHasher().String("map").Int(42).Sum()

	a := NewRunID(fp)
	b := NewRunID(fp)
	if a != b {
		t.Errorf("Expected identical run ids, got %s and %s", a, b)
	}

	other := NewRunID(NewHasher().String("map").Int(43).Sum())
	if other == a {
		t.Error("Expected different fingerprints to produce different run ids")
	}

	if _, err := ParseRunID(a.String()); err != nil {
		t.Errorf("Derived run id should parse: %v", err)
	}
}

// TestParseRunID tests run ID parsing
func TestParseRunID(t *testing.T) {
	tests := []struct {
		input    string
		hasError bool
	}{
		{"0b7d0e0e-8c55-5f5e-9a57-1d0f3c1f6a11", false},
		{"", true},
		{"   ", true},
		{"run-123", true},
	}

	for _, test := range tests {
		_, err := ParseRunID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
	}
}

func TestHasherOrderSensitivity(t *testing.T) {
	a := NewHasher().Floats([]float64{1, 2}).Sum()
	b := NewHasher().Floats([]float64{2, 1}).Sum()
	if a == b {
		t.Error("Expected float order to change the digest")
	}

	c := NewHasher().Strings([]string{"x", "y"}).Sum()
	d := NewHasher().Strings([]string{"y", "x"}).Sum()
	if c != d {
		t.Error("Expected string sets to hash independent of order")
	}
}

func TestInputErrorClassification(t *testing.T) {
	err := NewConfigError("tolerance_deg", "too wide")
	if !IsInputError(err) {
		t.Errorf("Expected config error to be an input error: %v", err)
	}
	if IsRecoverable(err) {
		t.Error("Config errors must not be recoverable")
	}
	if !IsRecoverable(fmt.Errorf("pair 3: %w", ErrDegenerateCorrelation)) {
		t.Error("Degenerate correlations must be recoverable")
	}
	if IsRecoverable(ErrPatchMismatch) {
		t.Error("Mismatched patches are a programming error")
	}
}
