package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// runNamespace scopes name-based run identifiers.
var runNamespace = uuid.MustParse("3f6c2a9e-6b1d-5c47-9a0e-2d8f4b7c1e55")

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// RunID identifies one analysis run (observed or null).
type RunID ID

func (id RunID) String() string { return ID(id).String() }

// NewRunID derives a name-based (v5) identifier from a run fingerprint.
// Identical inputs always yield the same run id, which keeps match sets
// byte-identical across repeated runs.
func NewRunID(fingerprint Hash) RunID {
	return RunID(uuid.NewSHA1(runNamespace, []byte(fingerprint)).String())
}

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("run ID %q is not a uuid: %w", s, err)
	}
	return RunID(s), nil
}
