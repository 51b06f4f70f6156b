// gate/policyscan.go
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/config"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// PolicyScanGate runs a security policy scanner (tfsec-style JSON output)
// over the change workspace.
type PolicyScanGate struct {
	cfg    config.GateConfiguration
	sev    severityTable
	runner CommandRunner
}

func NewPolicyScanGate(cfg config.GateConfiguration, runner CommandRunner) *PolicyScanGate {
	return &PolicyScanGate{cfg: cfg, sev: newSeverityTable(cfg.SeverityMap), runner: runner}
}

func (g *PolicyScanGate) Name() string   { return g.cfg.Name }
func (g *PolicyScanGate) Advisory() bool { return g.cfg.Advisory }

type policyScanReport struct {
	Results []struct {
		RuleID      string `json:"rule_id"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
		Location    struct {
			Filename  string `json:"filename"`
			StartLine int    `json:"start_line"`
		} `json:"location"`
	} `json:"results"`
}

func (g *PolicyScanGate) Run(ctx context.Context, cd model.ChangeDescriptor) model.Verdict {
	start := time.Now()
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	out, runErr := g.runner.Run(ctx, cd.Workspace, g.cfg.Binary, g.cfg.Args...)
	if ctx.Err() != nil {
		return errorVerdict(g.cfg.Name, start, fmt.Sprintf("policy scan did not finish: %v", ctx.Err()))
	}

	var report policyScanReport
	if err := json.Unmarshal(out, &report); err != nil {
		if runErr != nil {
			return errorVerdict(g.cfg.Name, start, fmt.Sprintf("policy scan failed: %v", runErr))
		}
		return errorVerdict(g.cfg.Name, start, fmt.Sprintf("unparseable policy scan output: %v", err))
	}

	findings := make([]model.Finding, 0, len(report.Results))
	for _, res := range report.Results {
		findings = append(findings, model.Finding{
			Code:     res.RuleID,
			Severity: g.sev.lookup(res.Severity),
			Message: fmt.Sprintf("%s (%s:%d)",
				res.Description, res.Location.Filename, res.Location.StartLine),
			Gate: g.cfg.Name,
		})
	}
	return resultVerdict(g.cfg.Name, start, findings)
}
