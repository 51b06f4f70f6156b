// model/change.go
package model

import "fmt"

// ChangeDescriptor identifies one proposed configuration change under review.
// Fingerprint and Environment form its identity; the remaining fields are
// audit metadata. A descriptor is never mutated after construction.
type ChangeDescriptor struct {
	// Fingerprint is the hex content hash of the full proposed configuration set.
	Fingerprint string `json:"fingerprint" binding:"required"`
	// Environment is the deployment target, e.g. "dev" or "prod".
	Environment string `json:"environment" binding:"required"`
	// Workspace is the local checkout the scanners inspect. It carries the
	// full history of the change, not a shallow snapshot.
	Workspace string `json:"workspace" binding:"required"`
	// SourceRef is the VCS ref the change was built from.
	SourceRef string `json:"source_ref,omitempty"`
	// Submitter identifies who requested the run.
	Submitter string `json:"submitter,omitempty"`
}

func (cd ChangeDescriptor) String() string {
	return fmt.Sprintf("%s@%s", shortFingerprint(cd.Fingerprint), cd.Environment)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
