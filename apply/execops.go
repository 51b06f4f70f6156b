// apply/execops.go
package apply

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/config"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/credential"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// ExecPlanner shells out to the provisioning tool's plan subcommand in the
// change workspace and returns its output as the opaque diff.
type ExecPlanner struct {
	cfg config.ApplyConfiguration
}

func NewExecPlanner(cfg config.ApplyConfiguration) ExecPlanner {
	return ExecPlanner{cfg: cfg}
}

func (p ExecPlanner) Plan(ctx context.Context, cd model.ChangeDescriptor) ([]byte, error) {
	cmd := exec.CommandContext(ctx, p.cfg.Binary, p.cfg.PlanArgs...)
	cmd.Dir = cd.Workspace

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s plan: %w: %s", p.cfg.Binary, err, tail(out.Bytes()))
	}
	return out.Bytes(), nil
}

// ExecApplier shells out to the provisioning tool's apply subcommand. The
// credential reaches the tool only through the child process environment;
// it is never written to a credentials file or to the workspace.
type ExecApplier struct {
	cfg config.ApplyConfiguration
}

func NewExecApplier(cfg config.ApplyConfiguration) ExecApplier {
	return ExecApplier{cfg: cfg}
}

func (a ExecApplier) Apply(ctx context.Context, cd model.ChangeDescriptor, diff []byte, cred credential.Credential) error {
	cmd := exec.CommandContext(ctx, a.cfg.Binary, a.cfg.ApplyArgs...)
	cmd.Dir = cd.Workspace
	cmd.Env = append(os.Environ(),
		"AWS_ACCESS_KEY_ID="+cred.AccessKeyID,
		"AWS_SECRET_ACCESS_KEY="+cred.SecretAccessKey,
		"AWS_SESSION_TOKEN="+cred.SessionToken,
	)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s apply: %w: %s", a.cfg.Binary, err, tail(out.Bytes()))
	}
	return nil
}

// tail keeps error messages bounded when the tool dumps pages of output.
func tail(b []byte) []byte {
	const max = 2048
	if len(b) > max {
		return b[len(b)-max:]
	}
	return b
}
