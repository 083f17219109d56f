package run

import (
	"loopscan/domain/core"
)

// Kind distinguishes the observed run from null ensemble members.
type Kind string

const (
	KindObserved Kind = "observed"
	KindNull     Kind = "null"
)

// RunManifest records everything needed to replay a run
type RunManifest struct {
	RunID       core.RunID     `json:"run_id"`
	Kind        Kind           `json:"kind"`
	Provider    string         `json:"null_provider,omitempty"`
	NSide       int            `json:"nside"`
	Fingerprint RunFingerprint `json:"fingerprint"`
	CreatedAt   core.Timestamp `json:"created_at"`
}

// NewRunManifest creates a manifest whose run id derives from the fingerprint
func NewRunManifest(fp RunFingerprint, nside int, provider string) *RunManifest {
	return &RunManifest{
		RunID:       fp.RunID(),
		Kind:        KindObserved,
		Provider:    provider,
		NSide:       nside,
		Fingerprint: fp,
		CreatedAt:   core.Now(),
	}
}

// Validate checks if the manifest is complete
func (r *RunManifest) Validate() error {
	if core.ID(r.RunID).IsEmpty() {
		return core.NewInputError("run_manifest", "run_id cannot be empty")
	}
	if r.Fingerprint.MapHash.IsEmpty() {
		return core.NewInputError("run_manifest", "map_hash cannot be empty")
	}
	if r.Fingerprint.ConfigHash.IsEmpty() {
		return core.NewInputError("run_manifest", "config_hash cannot be empty")
	}
	if r.Fingerprint.CodeVersion == "" {
		return core.NewInputError("run_manifest", "code_version cannot be empty")
	}
	if r.RunID != r.Fingerprint.RunID() {
		return core.NewInputError("run_manifest", "run_id does not match fingerprint")
	}
	return nil
}
