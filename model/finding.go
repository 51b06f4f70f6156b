// model/finding.go
package model

import "strings"

// Severity is the fixed five-level scale every scanner vocabulary is
// normalized onto.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// ParseSeverity normalizes a raw severity string. The second return is false
// when the value is not one of the five levels.
func ParseSeverity(raw string) (Severity, bool) {
	s := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := severityRank[s]
	return s, ok
}

// AtLeast reports whether s is at or above threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return severityRank[s] >= severityRank[threshold]
}

func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Finding is a single normalized issue reported by a gate.
type Finding struct {
	// Code is the stable tool rule identifier, e.g. "AWS017" or "hardcoded-secret".
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	// Gate names the gate that produced the finding.
	Gate string `json:"gate"`
	// Suppressed findings were covered by an exception. They stay visible
	// for audit and never block.
	Suppressed bool `json:"suppressed,omitempty"`
	// SuppressedBy is the ID of the exception that suppressed the finding.
	SuppressedBy string `json:"suppressed_by,omitempty"`
}
