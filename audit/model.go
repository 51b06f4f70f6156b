// audit/model.go
package audit

import (
	"encoding/json"
	"time"
)

// OutcomeRecord is the indexed form of one pipeline outcome: flat fields
// for querying plus the full outcome document for reconstruction. Records
// are append-only and never carry credential material.
type OutcomeRecord struct {
	RunID            string          `json:"run_id"`
	Timestamp        time.Time       `json:"timestamp"`
	Environment      string          `json:"environment"`
	Fingerprint      string          `json:"fingerprint"`
	State            string          `json:"state"`
	Allowed          bool            `json:"allowed"`
	ApplyResult      string          `json:"apply_result"`
	BlockingFindings int             `json:"blocking_findings"`
	Detail           json.RawMessage `json:"detail,omitempty"`
}
