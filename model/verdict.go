// model/verdict.go
package model

import "time"

// GateOutcome is the tri-state result of one gate execution. Absence of a
// clean signal (crash, timeout) is ERROR, never PASS.
type GateOutcome string

const (
	GatePass  GateOutcome = "PASS"
	GateFail  GateOutcome = "FAIL"
	GateError GateOutcome = "ERROR"
)

// Verdict is the immutable result of one gate execution. Exactly one Verdict
// exists per configured gate per run; gates that could not run get a
// synthetic ERROR verdict so the Report accounts for every gate.
type Verdict struct {
	Gate     string        `json:"gate"`
	Outcome  GateOutcome   `json:"outcome"`
	Findings []Finding     `json:"findings,omitempty"`
	Duration time.Duration `json:"duration"`
	// Detail carries the failure reason when Outcome is ERROR.
	Detail string `json:"detail,omitempty"`
}

// Report is the ordered sequence of Verdicts for one change. It is frozen
// before the policy engine reads it.
type Report struct {
	Change    ChangeDescriptor `json:"change"`
	Verdicts  []Verdict        `json:"verdicts"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
}

// Verdict returns the verdict for the named gate.
func (r Report) Verdict(gate string) (Verdict, bool) {
	for _, v := range r.Verdicts {
		if v.Gate == gate {
			return v, true
		}
	}
	return Verdict{}, false
}
