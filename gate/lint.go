// gate/lint.go
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/config"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// LintGate runs a configuration linter (tflint-style JSON output) over the
// change workspace.
type LintGate struct {
	cfg    config.GateConfiguration
	sev    severityTable
	runner CommandRunner
}

func NewLintGate(cfg config.GateConfiguration, runner CommandRunner) *LintGate {
	return &LintGate{cfg: cfg, sev: newSeverityTable(cfg.SeverityMap), runner: runner}
}

func (g *LintGate) Name() string   { return g.cfg.Name }
func (g *LintGate) Advisory() bool { return g.cfg.Advisory }

type lintReport struct {
	Issues []struct {
		Rule struct {
			Name     string `json:"name"`
			Severity string `json:"severity"`
		} `json:"rule"`
		Message string `json:"message"`
		Range   struct {
			Filename string `json:"filename"`
			Start    struct {
				Line int `json:"line"`
			} `json:"start"`
		} `json:"range"`
	} `json:"issues"`
}

func (g *LintGate) Run(ctx context.Context, cd model.ChangeDescriptor) model.Verdict {
	start := time.Now()
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	out, runErr := g.runner.Run(ctx, cd.Workspace, g.cfg.Binary, g.cfg.Args...)
	if ctx.Err() != nil {
		return errorVerdict(g.cfg.Name, start, fmt.Sprintf("lint tool did not finish: %v", ctx.Err()))
	}

	var report lintReport
	if err := json.Unmarshal(out, &report); err != nil {
		if runErr != nil {
			return errorVerdict(g.cfg.Name, start, fmt.Sprintf("lint tool failed: %v", runErr))
		}
		return errorVerdict(g.cfg.Name, start, fmt.Sprintf("unparseable lint output: %v", err))
	}

	findings := make([]model.Finding, 0, len(report.Issues))
	for _, issue := range report.Issues {
		findings = append(findings, model.Finding{
			Code:     issue.Rule.Name,
			Severity: g.sev.lookup(issue.Rule.Severity),
			Message: fmt.Sprintf("%s (%s:%d)",
				issue.Message, issue.Range.Filename, issue.Range.Start.Line),
			Gate: g.cfg.Name,
		})
	}
	return resultVerdict(g.cfg.Name, start, findings)
}
