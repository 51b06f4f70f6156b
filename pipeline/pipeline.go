// pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/audit"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/credential"
	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/util"
)

// State names one node of the pipeline state machine. BLOCKED, SUCCEEDED
// and FAILED are terminal; no transition skips GATING.
type State string

const (
	StateInit          State = "INIT"
	StateGating        State = "GATING"
	StateBlocked       State = "BLOCKED"
	StateCredentialing State = "CREDENTIALING"
	StateApplying      State = "APPLYING"
	StateSucceeded     State = "SUCCEEDED"
	StateFailed        State = "FAILED"
)

// Event topics published on the bus across a run's lifecycle.
const (
	EventStateChanged = "pipeline.state"
	EventFinished     = "pipeline.finished"
)

// StateChange is the payload of EventStateChanged.
type StateChange struct {
	RunID  string
	Change model.ChangeDescriptor
	From   State
	To     State
}

// GateRunner produces the aggregated Report for a change.
type GateRunner interface {
	Run(ctx context.Context, cd model.ChangeDescriptor) model.Report
}

// Decider reduces a Report plus exceptions to a Decision.
type Decider interface {
	Decide(report model.Report, exceptions []model.Exception, now time.Time) model.Decision
}

// CredentialBroker exchanges a trust assertion for scoped temporary
// credentials.
type CredentialBroker interface {
	Obtain(ctx context.Context, environment string, maxLifetime time.Duration) (credential.Credential, error)
}

// ApplyCoordinator executes the mutating step under the state lock.
type ApplyCoordinator interface {
	Apply(ctx context.Context, cd model.ChangeDescriptor, cred credential.Credential) error
}

// ExceptionSource supplies the exception snapshot a run decides against.
type ExceptionSource interface {
	List(ctx context.Context) ([]model.Exception, error)
}

// Pipeline is the top-level state machine: GateRunner → Decider →
// CredentialBroker → ApplyCoordinator, one terminal Outcome per run. Each
// ChangeDescriptor gets a fresh run; runs for different environments are
// fully independent and serialize only at the apply lock.
type Pipeline struct {
	runner       GateRunner
	engine       Decider
	broker       CredentialBroker
	coordinator  ApplyCoordinator
	exceptions   ExceptionSource
	auditSvc     audit.Service
	bus          *util.EventBus
	environments map[string]bool
	credLifetime time.Duration
	now          func() time.Time
}

func NewPipeline(
	runner GateRunner,
	engine Decider,
	broker CredentialBroker,
	coordinator ApplyCoordinator,
	exceptions ExceptionSource,
	auditSvc audit.Service,
	bus *util.EventBus,
	environments []string,
	credLifetime time.Duration,
) *Pipeline {
	envs := make(map[string]bool, len(environments))
	for _, e := range environments {
		envs[e] = true
	}
	return &Pipeline{
		runner:       runner,
		engine:       engine,
		broker:       broker,
		coordinator:  coordinator,
		exceptions:   exceptions,
		auditSvc:     auditSvc,
		bus:          bus,
		environments: envs,
		credLifetime: credLifetime,
		now:          time.Now,
	}
}

// Run drives one change through the full state machine and returns its
// terminal Outcome. Cancellation is honored up through gating and
// credentialing; once applying begins, the mutating step runs to completion
// or documented failure.
func (p *Pipeline) Run(ctx context.Context, cd model.ChangeDescriptor) model.Outcome {
	run := &runState{
		pipeline: p,
		runID:    uuid.NewString(),
		cd:       cd,
		state:    StateInit,
		outcome: model.Outcome{
			Change:      cd,
			ApplyResult: model.ApplyNotAttempted,
			StartedAt:   p.now(),
		},
	}
	run.outcome.RunID = run.runID

	logger.Info("Pipeline run started",
		zap.String("runID", run.runID),
		zap.String("change", cd.String()))

	if !p.environments[cd.Environment] {
		return run.finish(ctx, StateFailed,
			fmt.Errorf("%w: %q", gk_errors.ErrUnknownEnvironment, cd.Environment))
	}

	// GATING: every run passes through here, without exception.
	run.transition(ctx, StateGating)
	report := p.runner.Run(ctx, cd)
	if ctx.Err() != nil {
		return run.finish(ctx, StateFailed,
			fmt.Errorf("%w: %v", gk_errors.ErrRunCancelled, ctx.Err()))
	}

	exceptions, err := p.exceptions.List(ctx)
	if err != nil {
		// Fail closed: deciding with no exceptions can only block more.
		logger.Warn("Exception registry unavailable, deciding without exceptions",
			zap.Error(err), zap.String("runID", run.runID))
		exceptions = nil
	}

	decision := p.engine.Decide(report, exceptions, p.now())
	run.outcome.Decision = decision

	if !decision.Allowed {
		return run.finish(ctx, StateBlocked, gk_errors.ErrDecisionBlocked)
	}

	// CREDENTIALING: only an allowed run ever requests a credential. The
	// credential stays on this stack and dies with it.
	run.transition(ctx, StateCredentialing)
	if ctx.Err() != nil {
		return run.finish(ctx, StateFailed,
			fmt.Errorf("%w: %v", gk_errors.ErrRunCancelled, ctx.Err()))
	}
	cred, err := p.broker.Obtain(ctx, cd.Environment, p.credLifetime)
	if err != nil {
		return run.finish(ctx, StateFailed, err)
	}

	run.transition(ctx, StateApplying)
	if err := p.coordinator.Apply(ctx, cd, cred); err != nil {
		if !errors.Is(err, gk_errors.ErrLockContention) {
			run.outcome.ApplyResult = model.ApplyFailed
		}
		return run.finish(ctx, StateFailed, err)
	}

	run.outcome.ApplyResult = model.ApplySucceeded
	return run.finish(ctx, StateSucceeded, nil)
}

type runState struct {
	pipeline *Pipeline
	runID    string
	cd       model.ChangeDescriptor
	state    State
	outcome  model.Outcome
}

func (r *runState) transition(ctx context.Context, to State) {
	from := r.state
	r.state = to
	if r.pipeline.bus != nil {
		r.pipeline.bus.Publish(ctx, EventStateChanged, StateChange{
			RunID:  r.runID,
			Change: r.cd,
			From:   from,
			To:     to,
		})
	}
}

// finish seals the terminal state, records the outcome on the audit trail,
// and returns it. The outcome is append-only from here on.
func (r *runState) finish(ctx context.Context, terminal State, err error) model.Outcome {
	r.transition(ctx, terminal)
	r.outcome.State = string(terminal)
	r.outcome.FinishedAt = r.pipeline.now()
	if err != nil {
		r.outcome.ErrorDetail = err.Error()
	}

	logger.Info("Pipeline run finished",
		zap.String("runID", r.runID),
		zap.String("change", r.cd.String()),
		zap.String("state", string(terminal)),
		zap.String("applyResult", string(r.outcome.ApplyResult)))

	if r.pipeline.auditSvc != nil {
		// Audit uses a detached context so a cancelled run still leaves
		// its record.
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := r.pipeline.auditSvc.Record(recordCtx, r.outcome); err != nil {
			logger.Error("Failed to record outcome",
				zap.Error(err), zap.String("runID", r.runID))
		}
	}
	if r.pipeline.bus != nil {
		r.pipeline.bus.Publish(ctx, EventFinished, r.outcome)
	}
	return r.outcome
}
