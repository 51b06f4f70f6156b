// model/decision.go
package model

import "time"

// Decision is the allow/block verdict for one change. It is a deterministic
// function of the Report, the exception set, and the severity threshold; the
// single EvaluatedAt instant is injected by the caller so expiry checks
// cannot straddle a boundary mid-decision.
type Decision struct {
	Allowed bool `json:"allowed"`
	// BlockingFindings are findings at or above the threshold with no
	// covering unexpired exception.
	BlockingFindings []Finding `json:"blocking_findings,omitempty"`
	// Findings lists every finding, suppressed ones included.
	Findings []Finding `json:"findings,omitempty"`
	// GateErrors lists non-advisory gates whose verdict was ERROR. Each one
	// blocks on its own.
	GateErrors []string `json:"gate_errors,omitempty"`
	// Report is the frozen input the decision derives from.
	Report      Report    `json:"report"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// ApplyResult records whether the mutating step ran and how it ended.
type ApplyResult string

const (
	ApplyNotAttempted ApplyResult = "NOT_ATTEMPTED"
	ApplySucceeded    ApplyResult = "SUCCEEDED"
	ApplyFailed       ApplyResult = "FAILED"
)

// Outcome is the terminal, append-only record of one pipeline run. It must
// carry enough detail to reconstruct why the run was allowed or blocked
// without reproducing any secret or credential.
type Outcome struct {
	RunID       string           `json:"run_id"`
	Change      ChangeDescriptor `json:"change"`
	State       string           `json:"state"`
	Decision    Decision         `json:"decision"`
	ApplyResult ApplyResult      `json:"apply_result"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}
