// policy/engine.go
package policy

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// Engine reduces a frozen Report plus the active exception set to an
// allow/block Decision. Decide is deterministic: identical inputs and an
// identical injected now always produce the identical Decision. Nothing
// downstream can turn a block back into an allow.
type Engine struct {
	threshold model.Severity
	advisory  map[string]bool
}

// NewEngine configures the decision policy. Advisory gates annotate runs
// but can never block them.
func NewEngine(threshold model.Severity, advisoryGates []string) *Engine {
	adv := make(map[string]bool, len(advisoryGates))
	for _, name := range advisoryGates {
		adv[name] = true
	}
	return &Engine{threshold: threshold, advisory: adv}
}

// Decide walks every finding of every verdict. A finding at or above the
// threshold blocks unless a matching unexpired exception covers this exact
// change; a covered finding is marked suppressed but stays visible for
// audit. An expired exception is treated identically to no exception, and
// the expiry comparison uses the single injected now for the whole
// invocation. A non-advisory gate whose verdict is ERROR blocks on its own:
// absence of a clean signal is never success.
func (e *Engine) Decide(report model.Report, exceptions []model.Exception, now time.Time) model.Decision {
	decision := model.Decision{
		Report:      report,
		EvaluatedAt: now,
	}

	for _, v := range report.Verdicts {
		advisory := e.advisory[v.Gate]

		if v.Outcome == model.GateError && !advisory {
			decision.GateErrors = append(decision.GateErrors,
				fmt.Sprintf("gate %q: %s", v.Gate, v.Detail))
		}

		for _, f := range v.Findings {
			if f.Gate == "" {
				f.Gate = v.Gate
			}
			if advisory || !f.Severity.AtLeast(e.threshold) {
				decision.Findings = append(decision.Findings, f)
				continue
			}
			if exc, ok := covering(exceptions, f.Code, report.Change, now); ok {
				f.Suppressed = true
				f.SuppressedBy = exc.ID
				decision.Findings = append(decision.Findings, f)
				continue
			}
			decision.Findings = append(decision.Findings, f)
			decision.BlockingFindings = append(decision.BlockingFindings, f)
		}
	}

	decision.Allowed = len(decision.BlockingFindings) == 0 && len(decision.GateErrors) == 0

	logger.Info("Decision made",
		zap.String("change", report.Change.String()),
		zap.Bool("allowed", decision.Allowed),
		zap.Int("blockingFindings", len(decision.BlockingFindings)),
		zap.Int("gateErrors", len(decision.GateErrors)))
	return decision
}

// covering returns the unexpired exception that suppresses the finding.
// When several match, the one with the latest expiry wins (no expiry beats
// any expiry), a stable tie-break that keeps the result independent of the
// exception list's order.
func covering(exceptions []model.Exception, code string, cd model.ChangeDescriptor, now time.Time) (model.Exception, bool) {
	var best model.Exception
	found := false
	for _, exc := range exceptions {
		if exc.Expired(now) || !exc.Covers(code, cd) {
			continue
		}
		if !found || laterExpiry(exc, best) {
			best = exc
			found = true
		}
	}
	return best, found
}

func laterExpiry(a, b model.Exception) bool {
	if a.ExpiresAt.IsZero() {
		return !b.ExpiresAt.IsZero()
	}
	if b.ExpiresAt.IsZero() {
		return false
	}
	return a.ExpiresAt.After(b.ExpiresAt)
}
