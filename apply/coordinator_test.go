// apply/coordinator_test.go
package apply_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/apply"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/credential"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/db"
	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

func TestMain(m *testing.M) {
	logger.InitLogger("../logging")
	os.Exit(m.Run())
}

type fakeLocker struct {
	acquireErr error
	released   bool
	gotKey     string
	handle     *db.LockHandle
}

func (l *fakeLocker) Acquire(ctx context.Context, key string, ttl, maxWait time.Duration) (*db.LockHandle, error) {
	l.gotKey = key
	if l.acquireErr != nil {
		return nil, l.acquireErr
	}
	l.handle = &db.LockHandle{Key: key, Token: "tok", TTL: ttl}
	return l.handle, nil
}

func (l *fakeLocker) Release(ctx context.Context, handle *db.LockHandle) error {
	l.released = true
	return nil
}

type fakePlanner struct {
	diff   []byte
	err    error
	called bool
}

func (p *fakePlanner) Plan(ctx context.Context, cd model.ChangeDescriptor) ([]byte, error) {
	p.called = true
	return p.diff, p.err
}

type fakeApplier struct {
	err     error
	called  bool
	gotDiff []byte
	gotCred credential.Credential
	// ctxErrAtCall records whether the caller's cancellation leaked into
	// the mutation context.
	ctxErrAtCall error
}

func (a *fakeApplier) Apply(ctx context.Context, cd model.ChangeDescriptor, diff []byte, cred credential.Credential) error {
	a.called = true
	a.gotDiff = diff
	a.gotCred = cred
	a.ctxErrAtCall = ctx.Err()
	return a.err
}

var cd = model.ChangeDescriptor{Fingerprint: "f00d", Environment: "dev", Workspace: "/tmp/change"}
var cred = credential.Credential{AccessKeyID: "ASIAEXAMPLE", Scope: "dev"}

func newCoordinator(l *fakeLocker, p *fakePlanner, a *fakeApplier) *apply.Coordinator {
	return apply.NewCoordinator(l, p, a, "gatekeeper:lock", time.Minute, 100*time.Millisecond, time.Minute)
}

func TestApplySucceedsAndReleasesLock(t *testing.T) {
	locker := &fakeLocker{}
	planner := &fakePlanner{diff: []byte("plan: +1 resource")}
	applier := &fakeApplier{}

	err := newCoordinator(locker, planner, applier).Apply(context.Background(), cd, cred)

	require.NoError(t, err)
	assert.Equal(t, "gatekeeper:lock:dev", locker.gotKey)
	assert.True(t, locker.released)
	assert.Equal(t, []byte("plan: +1 resource"), applier.gotDiff)
	assert.Equal(t, "ASIAEXAMPLE", applier.gotCred.AccessKeyID)
}

func TestApplyRefusesWithoutCredential(t *testing.T) {
	locker := &fakeLocker{}
	planner := &fakePlanner{}
	applier := &fakeApplier{}

	err := newCoordinator(locker, planner, applier).Apply(context.Background(), cd, credential.Credential{})

	assert.ErrorIs(t, err, gk_errors.ErrNotAllowed)
	assert.Empty(t, locker.gotKey)
	assert.False(t, planner.called)
	assert.False(t, applier.called)
}

func TestApplyContentionSkipsPlanAndApply(t *testing.T) {
	locker := &fakeLocker{acquireErr: gk_errors.ErrLockContention}
	planner := &fakePlanner{}
	applier := &fakeApplier{}

	err := newCoordinator(locker, planner, applier).Apply(context.Background(), cd, cred)

	assert.ErrorIs(t, err, gk_errors.ErrLockContention)
	assert.False(t, planner.called)
	assert.False(t, applier.called)
	assert.False(t, locker.released)
}

func TestApplyReleasesLockWhenPlanFails(t *testing.T) {
	locker := &fakeLocker{}
	planner := &fakePlanner{err: errors.New("plan exploded")}
	applier := &fakeApplier{}

	err := newCoordinator(locker, planner, applier).Apply(context.Background(), cd, cred)

	assert.ErrorIs(t, err, gk_errors.ErrApplyFailed)
	assert.False(t, applier.called)
	assert.True(t, locker.released)
}

func TestApplyReleasesLockWhenApplyFails(t *testing.T) {
	locker := &fakeLocker{}
	planner := &fakePlanner{diff: []byte("diff")}
	applier := &fakeApplier{err: errors.New("provider timeout")}

	err := newCoordinator(locker, planner, applier).Apply(context.Background(), cd, cred)

	assert.ErrorIs(t, err, gk_errors.ErrApplyFailed)
	assert.True(t, locker.released)
}

// memLocker grants each key to one holder at a time and makes later
// callers wait, mirroring the redis locker's bounded-wait contract.
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (l *memLocker) Acquire(ctx context.Context, key string, ttl, maxWait time.Duration) (*db.LockHandle, error) {
	deadline := time.Now().Add(maxWait)
	for {
		l.mu.Lock()
		if !l.held[key] {
			l.held[key] = true
			l.mu.Unlock()
			return &db.LockHandle{Key: key, Token: "tok", TTL: ttl}, nil
		}
		l.mu.Unlock()
		if time.Now().After(deadline) {
			return nil, gk_errors.ErrLockContention
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (l *memLocker) Release(ctx context.Context, handle *db.LockHandle) error {
	l.mu.Lock()
	delete(l.held, handle.Key)
	l.mu.Unlock()
	return nil
}

// slowApplier counts concurrent executions to prove serialization.
type slowApplier struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	runs     atomic.Int32
}

func (a *slowApplier) Apply(ctx context.Context, cd model.ChangeDescriptor, diff []byte, cred credential.Credential) error {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(40 * time.Millisecond)
	a.runs.Add(1)
	return nil
}

func TestApplySerializesPerEnvironment(t *testing.T) {
	locker := newMemLocker()
	applier := &slowApplier{}
	c := apply.NewCoordinator(locker, &fakePlanner{diff: []byte("diff")}, applier,
		"gatekeeper:lock", time.Minute, time.Second, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Apply(context.Background(), cd, cred))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), applier.runs.Load())
	assert.Equal(t, int32(1), applier.peak.Load())
}

func TestApplyDifferentEnvironmentsDoNotContend(t *testing.T) {
	locker := newMemLocker()
	applier := &slowApplier{}
	// Lock wait shorter than one apply: same-key contenders would fail.
	c := apply.NewCoordinator(locker, &fakePlanner{diff: []byte("diff")}, applier,
		"gatekeeper:lock", time.Minute, 10*time.Millisecond, time.Minute)

	prodCD := cd
	prodCD.Environment = "prod"

	var wg sync.WaitGroup
	var devErr, prodErr error
	wg.Add(2)
	go func() { defer wg.Done(); devErr = c.Apply(context.Background(), cd, cred) }()
	go func() { defer wg.Done(); prodErr = c.Apply(context.Background(), prodCD, cred) }()
	wg.Wait()

	assert.NoError(t, devErr)
	assert.NoError(t, prodErr)
}

func TestApplyDetachesFromCallerCancellation(t *testing.T) {
	locker := &fakeLocker{}
	planner := &fakePlanner{diff: []byte("diff")}
	applier := &fakeApplier{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The caller's context is already cancelled, but the mutation has its
	// own detached context and must still run.
	err := newCoordinator(locker, planner, applier).Apply(ctx, cd, cred)

	require.NoError(t, err)
	assert.True(t, applier.called)
	assert.NoError(t, applier.ctxErrAtCall)
	assert.True(t, locker.released)
}
