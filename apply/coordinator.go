// apply/coordinator.go
package apply

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/credential"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/db"
	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// Locker provides mutual exclusion over per-environment state keys.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl, maxWait time.Duration) (*db.LockHandle, error)
	Release(ctx context.Context, handle *db.LockHandle) error
}

// Planner computes the proposed diff for a change. The coordinator treats
// the diff as opaque.
type Planner interface {
	Plan(ctx context.Context, cd model.ChangeDescriptor) ([]byte, error)
}

// Applier executes the mutating operation using the supplied credential.
type Applier interface {
	Apply(ctx context.Context, cd model.ChangeDescriptor, diff []byte, cred credential.Credential) error
}

// Coordinator owns the privileged mutating step: it serializes on the
// target's state lock, runs plan and apply, and releases the lock on every
// exit path. A failure during the mutation is fatal for the run and is not
// retried here; the operation is not guaranteed idempotent from this
// component's point of view.
type Coordinator struct {
	locker        Locker
	planner       Planner
	applier       Applier
	lockNamespace string
	lockTTL       time.Duration
	lockWait      time.Duration
	timeout       time.Duration
}

func NewCoordinator(locker Locker, planner Planner, applier Applier, lockNamespace string, lockTTL, lockWait, timeout time.Duration) *Coordinator {
	return &Coordinator{
		locker:        locker,
		planner:       planner,
		applier:       applier,
		lockNamespace: lockNamespace,
		lockTTL:       lockTTL,
		lockWait:      lockWait,
		timeout:       timeout,
	}
}

// Apply runs the mutating step for an allowed change. Caller cancellation
// is honored while waiting for the lock, since no mutation has started;
// once the mutation begins it detaches from the caller's context and runs
// to completion or documented failure. Tearing down a half-applied change
// leaves the target in an unknown state.
func (c *Coordinator) Apply(ctx context.Context, cd model.ChangeDescriptor, cred credential.Credential) error {
	// The credential is the only proof an allow decision was reached; an
	// empty one means a caller skipped the decision path.
	if cred.AccessKeyID == "" {
		return gk_errors.ErrNotAllowed
	}

	key := fmt.Sprintf("%s:%s", c.lockNamespace, cd.Environment)

	handle, err := c.locker.Acquire(ctx, key, c.lockTTL, c.lockWait)
	if err != nil {
		return err
	}

	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	defer func() {
		releaseCtx, releaseCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer releaseCancel()
		if err := c.locker.Release(releaseCtx, handle); err != nil {
			// The lock's own TTL bounds how long a failed release can
			// wedge the environment.
			logger.Error("Failed to release state lock",
				zap.Error(err), zap.String("key", key))
		}
	}()

	diff, err := c.planner.Plan(applyCtx, cd)
	if err != nil {
		return fmt.Errorf("%w: plan: %v", gk_errors.ErrApplyFailed, err)
	}

	logger.Info("Applying change",
		zap.String("change", cd.String()),
		zap.Int("diffBytes", len(diff)))
	if err := c.applier.Apply(applyCtx, cd, diff, cred); err != nil {
		return fmt.Errorf("%w: %v", gk_errors.ErrApplyFailed, err)
	}
	return nil
}
