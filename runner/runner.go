// runner/runner.go
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/gate"
	logger "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/logging"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// GateRunner executes a set of gates over a change per the declared
// dependency graph. Gates with no dependency between them run concurrently
// up to the configured limit; a gate whose prerequisite did not pass is
// recorded with a synthetic ERROR verdict rather than silently omitted.
type GateRunner struct {
	gates    []gate.Gate
	requires map[string][]string
	waves    [][]int
	limit    int
}

// New validates the dependency graph and precomputes the execution schedule.
// A cycle or a reference to an unregistered gate is a configuration fault:
// it is rejected here, at load time, and the pipeline never starts.
func New(gates []gate.Gate, requires map[string][]string, limit int) (*GateRunner, error) {
	if limit < 1 {
		limit = 1
	}

	index := make(map[string]int, len(gates))
	for i, g := range gates {
		if _, ok := index[g.Name()]; ok {
			return nil, fmt.Errorf("%w: %q", gk_errors.ErrDuplicateGate, g.Name())
		}
		index[g.Name()] = i
	}
	for name, reqs := range requires {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %q", gk_errors.ErrUnknownGate, name)
		}
		for _, req := range reqs {
			if _, ok := index[req]; !ok {
				return nil, fmt.Errorf("%w: %q requires %q", gk_errors.ErrUnknownGate, name, req)
			}
		}
	}

	waves, err := schedule(gates, requires, index)
	if err != nil {
		return nil, err
	}

	return &GateRunner{gates: gates, requires: requires, waves: waves, limit: limit}, nil
}

// schedule performs Kahn's algorithm, grouping gates into waves so that
// every gate lands strictly after all of its prerequisites.
func schedule(gates []gate.Gate, requires map[string][]string, index map[string]int) ([][]int, error) {
	indegree := make([]int, len(gates))
	dependents := make([][]int, len(gates))
	for name, reqs := range requires {
		i := index[name]
		indegree[i] = len(reqs)
		for _, req := range reqs {
			j := index[req]
			dependents[j] = append(dependents[j], i)
		}
	}

	var waves [][]int
	placed := 0
	ready := make([]int, 0, len(gates))
	for i := range gates {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	for len(ready) > 0 {
		wave := ready
		ready = nil
		waves = append(waves, wave)
		placed += len(wave)
		for _, i := range wave {
			for _, dep := range dependents[i] {
				indegree[dep]--
				if indegree[dep] == 0 {
					ready = append(ready, dep)
				}
			}
		}
	}
	if placed != len(gates) {
		return nil, gk_errors.ErrGateCycle
	}
	return waves, nil
}

// Run executes every configured gate and aggregates the verdicts into a
// frozen Report. An individual gate's ERROR does not abort its siblings;
// the Report accounts for every configured gate.
func (r *GateRunner) Run(ctx context.Context, cd model.ChangeDescriptor) model.Report {
	start := time.Now()
	results := make(map[string]model.Verdict, len(r.gates))
	var mu sync.Mutex

	for _, wave := range r.waves {
		var eg errgroup.Group
		eg.SetLimit(r.limit)
		for _, idx := range wave {
			g := r.gates[idx]
			eg.Go(func() error {
				v := r.runOne(ctx, g, cd, results, &mu)
				mu.Lock()
				results[g.Name()] = v
				mu.Unlock()
				return nil
			})
		}
		// Gates report failures through their verdicts, never as errors.
		_ = eg.Wait()
	}

	verdicts := make([]model.Verdict, 0, len(r.gates))
	for _, g := range r.gates {
		verdicts = append(verdicts, results[g.Name()])
	}
	return model.Report{
		Change:    cd,
		Verdicts:  verdicts,
		StartedAt: start,
		Duration:  time.Since(start),
	}
}

func (r *GateRunner) runOne(ctx context.Context, g gate.Gate, cd model.ChangeDescriptor, results map[string]model.Verdict, mu *sync.Mutex) model.Verdict {
	if blocked, prereq := r.unmetPrerequisite(g.Name(), results, mu); blocked {
		return skippedVerdict(g.Name(), prereq)
	}
	if ctx.Err() != nil {
		return model.Verdict{
			Gate:    g.Name(),
			Outcome: model.GateError,
			Detail:  fmt.Sprintf("not run: %v", ctx.Err()),
		}
	}

	v := g.Run(ctx, cd)
	logger.Info("Gate finished",
		zap.String("gate", g.Name()),
		zap.String("outcome", string(v.Outcome)),
		zap.Int("findings", len(v.Findings)),
		zap.Duration("duration", v.Duration))
	return v
}

// unmetPrerequisite reports the first prerequisite of the named gate that
// did not pass. Prerequisites always live in earlier waves, so their
// verdicts are complete by the time this runs.
func (r *GateRunner) unmetPrerequisite(name string, results map[string]model.Verdict, mu *sync.Mutex) (bool, string) {
	mu.Lock()
	defer mu.Unlock()
	for _, req := range r.requires[name] {
		if results[req].Outcome != model.GatePass {
			return true, req
		}
	}
	return false, ""
}

func skippedVerdict(name, prereq string) model.Verdict {
	return model.Verdict{
		Gate:    name,
		Outcome: model.GateError,
		Findings: []model.Finding{{
			Code:     "gate-skipped",
			Severity: model.SeverityInfo,
			Message:  fmt.Sprintf("skipped: prerequisite %q did not pass", prereq),
			Gate:     name,
		}},
		Detail: fmt.Sprintf("skipped: prerequisite %q did not pass", prereq),
	}
}
