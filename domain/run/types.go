package run

import (
	"fmt"

	"loopscan/domain/core"
)

// ModeScan marks a detection-only run.
const ModeScan = "scan"

// ValidateMode is the mode of a validation against the named null provider.
func ValidateMode(provider string) string {
	return "validate/" + provider
}

// RunFingerprint ensures deterministic replay
type RunFingerprint struct {
	MapHash     core.Hash `json:"map_hash"`
	ConfigHash  core.Hash `json:"config_hash"`
	Seed        int64     `json:"seed"`
	CodeVersion string    `json:"code_version"`
	Mode        string    `json:"mode,omitempty"`
	Fingerprint core.Hash `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(mapHash, configHash core.Hash, seed int64, codeVersion string) RunFingerprint {
	return RunFingerprint{
		MapHash:     mapHash,
		ConfigHash:  configHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: computeRunFingerprint(mapHash, configHash, seed, codeVersion, ""),
	}
}

// WithMode returns the fingerprint of the same inputs run in mode.
// Scans and validations of one map therefore get distinct run ids.
func (f RunFingerprint) WithMode(mode string) RunFingerprint {
	f.Mode = mode
	f.Fingerprint = computeRunFingerprint(f.MapHash, f.ConfigHash, f.Seed, f.CodeVersion, mode)
	return f
}

// computeRunFingerprint generates deterministic hash from all determinism parameters
func computeRunFingerprint(mapHash, configHash core.Hash, seed int64, codeVersion, mode string) core.Hash {
	data := fmt.Sprintf("map:%s|config:%s|seed:%d|code:%s|mode:%s", mapHash, configHash, seed, codeVersion, mode)
	return core.NewHash([]byte(data))
}

// RunID derives the run identifier from the fingerprint.
func (f RunFingerprint) RunID() core.RunID {
	return core.NewRunID(f.Fingerprint)
}

// NullRunID derives the identifier of the index-th null ensemble run.
func (f RunFingerprint) NullRunID(index int) core.RunID {
	return core.NewRunID(core.NewHash([]byte(fmt.Sprintf("%s|null:%d", f.Fingerprint, index))))
}
