// runner/runner_test.go
package runner_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/gate"
	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/runner"
)

func TestMain(m *testing.M) {
	logger.InitLogger("../logging")
	os.Exit(m.Run())
}

// stubGate returns a canned verdict and records that it ran.
type stubGate struct {
	name    string
	outcome model.GateOutcome
	delay   time.Duration
	ran     atomic.Bool

	mu      sync.Mutex
	started time.Time
}

func (s *stubGate) Name() string   { return s.name }
func (s *stubGate) Advisory() bool { return false }

func (s *stubGate) Run(ctx context.Context, cd model.ChangeDescriptor) model.Verdict {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()
	s.ran.Store(true)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return model.Verdict{Gate: s.name, Outcome: s.outcome}
}

var cd = model.ChangeDescriptor{Fingerprint: "f00d", Environment: "dev", Workspace: "/tmp/w"}

func TestNewRejectsCycle(t *testing.T) {
	gates := []gate.Gate{
		&stubGate{name: "a", outcome: model.GatePass},
		&stubGate{name: "b", outcome: model.GatePass},
	}
	_, err := runner.New(gates, map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}, 2)
	assert.ErrorIs(t, err, gk_errors.ErrGateCycle)
}

func TestNewRejectsUnknownPrerequisite(t *testing.T) {
	gates := []gate.Gate{&stubGate{name: "a", outcome: model.GatePass}}
	_, err := runner.New(gates, map[string][]string{"a": {"missing"}}, 1)
	assert.ErrorIs(t, err, gk_errors.ErrUnknownGate)
}

func TestNewRejectsDuplicateGateName(t *testing.T) {
	gates := []gate.Gate{
		&stubGate{name: "a", outcome: model.GatePass},
		&stubGate{name: "a", outcome: model.GatePass},
	}
	_, err := runner.New(gates, nil, 1)
	assert.ErrorIs(t, err, gk_errors.ErrDuplicateGate)
}

func TestRunReportAccountsForEveryGate(t *testing.T) {
	gates := []gate.Gate{
		&stubGate{name: "lint", outcome: model.GatePass},
		&stubGate{name: "secret-scan", outcome: model.GateFail},
		&stubGate{name: "policy-scan", outcome: model.GatePass},
	}
	r, err := runner.New(gates, map[string][]string{"policy-scan": {"lint"}}, 2)
	require.NoError(t, err)

	report := r.Run(context.Background(), cd)

	require.Len(t, report.Verdicts, 3)
	// Verdict order matches the configured gate order.
	assert.Equal(t, "lint", report.Verdicts[0].Gate)
	assert.Equal(t, "secret-scan", report.Verdicts[1].Gate)
	assert.Equal(t, "policy-scan", report.Verdicts[2].Gate)
}

func TestRunSkipsGateWhosePrerequisiteDidNotPass(t *testing.T) {
	downstream := &stubGate{name: "policy-scan", outcome: model.GatePass}
	gates := []gate.Gate{
		&stubGate{name: "lint", outcome: model.GateError},
		downstream,
	}
	r, err := runner.New(gates, map[string][]string{"policy-scan": {"lint"}}, 2)
	require.NoError(t, err)

	report := r.Run(context.Background(), cd)

	assert.False(t, downstream.ran.Load(), "downstream gate must not execute")
	v, ok := report.Verdict("policy-scan")
	require.True(t, ok, "skipped gate still appears in the report")
	assert.Equal(t, model.GateError, v.Outcome)
	require.Len(t, v.Findings, 1)
	assert.Equal(t, "gate-skipped", v.Findings[0].Code)
	assert.Contains(t, v.Findings[0].Message, "prerequisite")
}

func TestRunGateErrorDoesNotAbortSiblings(t *testing.T) {
	sibling := &stubGate{name: "secret-scan", outcome: model.GatePass, delay: 20 * time.Millisecond}
	gates := []gate.Gate{
		&stubGate{name: "lint", outcome: model.GateError},
		sibling,
	}
	r, err := runner.New(gates, nil, 2)
	require.NoError(t, err)

	report := r.Run(context.Background(), cd)

	assert.True(t, sibling.ran.Load())
	v, _ := report.Verdict("secret-scan")
	assert.Equal(t, model.GatePass, v.Outcome)
}

func TestRunIndependentGatesOverlap(t *testing.T) {
	a := &stubGate{name: "a", outcome: model.GatePass, delay: 60 * time.Millisecond}
	b := &stubGate{name: "b", outcome: model.GatePass, delay: 60 * time.Millisecond}
	r, err := runner.New([]gate.Gate{a, b}, nil, 2)
	require.NoError(t, err)

	start := time.Now()
	r.Run(context.Background(), cd)
	elapsed := time.Since(start)

	// Sequential execution would need at least 120ms.
	assert.Less(t, elapsed, 110*time.Millisecond)
}

func TestRunPrerequisiteOrdering(t *testing.T) {
	first := &stubGate{name: "lint", outcome: model.GatePass, delay: 20 * time.Millisecond}
	second := &stubGate{name: "policy-scan", outcome: model.GatePass}
	r, err := runner.New([]gate.Gate{second, first}, map[string][]string{"policy-scan": {"lint"}}, 2)
	require.NoError(t, err)

	r.Run(context.Background(), cd)

	first.mu.Lock()
	second.mu.Lock()
	defer first.mu.Unlock()
	defer second.mu.Unlock()
	assert.True(t, second.started.After(first.started),
		"dependent gate must start after its prerequisite")
}

func TestRunCancelledContextYieldsErrorVerdicts(t *testing.T) {
	g := &stubGate{name: "lint", outcome: model.GatePass}
	r, err := runner.New([]gate.Gate{g}, nil, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := r.Run(ctx, cd)

	v, _ := report.Verdict("lint")
	assert.Equal(t, model.GateError, v.Outcome)
	assert.False(t, g.ran.Load())
}
