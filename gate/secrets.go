// gate/secrets.go
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/config"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// SecretScanGate runs a secret-detection tool (gitleaks-style JSON output)
// over the change. The configured arguments must point the tool at the full
// history of the change; scanning a shallow snapshot misses secrets that
// were committed and later removed.
type SecretScanGate struct {
	cfg    config.GateConfiguration
	sev    severityTable
	runner CommandRunner
}

func NewSecretScanGate(cfg config.GateConfiguration, runner CommandRunner) *SecretScanGate {
	return &SecretScanGate{cfg: cfg, sev: newSeverityTable(cfg.SeverityMap), runner: runner}
}

func (g *SecretScanGate) Name() string   { return g.cfg.Name }
func (g *SecretScanGate) Advisory() bool { return g.cfg.Advisory }

type secretLeak struct {
	RuleID      string `json:"RuleID"`
	Description string `json:"Description"`
	File        string `json:"File"`
	StartLine   int    `json:"StartLine"`
	Commit      string `json:"Commit"`
}

func (g *SecretScanGate) Run(ctx context.Context, cd model.ChangeDescriptor) model.Verdict {
	start := time.Now()
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	out, runErr := g.runner.Run(ctx, cd.Workspace, g.cfg.Binary, g.cfg.Args...)
	if ctx.Err() != nil {
		return errorVerdict(g.cfg.Name, start, fmt.Sprintf("secret scan did not finish: %v", ctx.Err()))
	}

	var leaks []secretLeak
	if err := json.Unmarshal(out, &leaks); err != nil {
		if runErr != nil {
			return errorVerdict(g.cfg.Name, start, fmt.Sprintf("secret scan failed: %v", runErr))
		}
		return errorVerdict(g.cfg.Name, start, fmt.Sprintf("unparseable secret scan output: %v", err))
	}

	findings := make([]model.Finding, 0, len(leaks))
	for _, leak := range leaks {
		// The leaked value itself is never copied into the finding.
		findings = append(findings, model.Finding{
			Code:     leak.RuleID,
			Severity: g.sev.lookup(leak.RuleID),
			Message: fmt.Sprintf("%s (%s:%d, commit %s)",
				leak.Description, leak.File, leak.StartLine, shortCommit(leak.Commit)),
			Gate: g.cfg.Name,
		})
	}
	return resultVerdict(g.cfg.Name, start, findings)
}

func shortCommit(c string) string {
	if len(c) > 8 {
		return c[:8]
	}
	return c
}
