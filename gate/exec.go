// gate/exec.go
package gate

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// CommandRunner executes one scanner invocation and returns its stdout.
// Adapters depend on this interface so tests never exec real tools.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools as subprocesses.
type ExecRunner struct{}

func NewExecRunner() ExecRunner {
	return ExecRunner{}
}

// Run executes the tool in dir and returns captured stdout. Scanners
// conventionally exit non-zero when they have findings, so an exit error
// still returns whatever stdout was produced; the adapter decides whether
// the output is parseable.
func (ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), err
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
