// gate/gate.go
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/config"
	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// Gate wraps one external checker and normalizes its output into a Verdict.
// A gate inspects the change; it never mutates the target environment.
// Run must not panic and must never report PASS on a crash or timeout.
type Gate interface {
	Name() string
	Advisory() bool
	Run(ctx context.Context, cd model.ChangeDescriptor) model.Verdict
}

// FromConfig builds the adapter registered for one gate configuration.
func FromConfig(cfg config.GateConfiguration, runner CommandRunner) (Gate, error) {
	switch cfg.Kind {
	case "lint":
		return NewLintGate(cfg, runner), nil
	case "secret-scan":
		return NewSecretScanGate(cfg, runner), nil
	case "policy-scan":
		return NewPolicyScanGate(cfg, runner), nil
	default:
		return nil, fmt.Errorf("%w: unknown gate kind %q", gk_errors.ErrConfigInvalid, cfg.Kind)
	}
}

// severityTable converts a configured string-to-string mapping into the
// normalized scale once, at construction.
type severityTable map[string]model.Severity

func newSeverityTable(raw map[string]string) severityTable {
	t := make(severityTable, len(raw))
	for k, v := range raw {
		if s, ok := model.ParseSeverity(v); ok {
			t[k] = s
		}
	}
	return t
}

// lookup maps a tool-specific severity onto the fixed scale. Unmapped
// values fall back to the "default" entry, then to MEDIUM.
func (t severityTable) lookup(toolLevel string) model.Severity {
	if s, ok := t[toolLevel]; ok {
		return s
	}
	if s, ok := t["default"]; ok {
		return s
	}
	return model.SeverityMedium
}

func errorVerdict(name string, start time.Time, detail string) model.Verdict {
	return model.Verdict{
		Gate:     name,
		Outcome:  model.GateError,
		Duration: time.Since(start),
		Detail:   detail,
	}
}

func resultVerdict(name string, start time.Time, findings []model.Finding) model.Verdict {
	outcome := model.GatePass
	if len(findings) > 0 {
		outcome = model.GateFail
	}
	return model.Verdict{
		Gate:     name,
		Outcome:  outcome,
		Findings: findings,
		Duration: time.Since(start),
	}
}
