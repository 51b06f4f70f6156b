// audit/service.go
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

type Service interface {
	Record(ctx context.Context, outcome model.Outcome) error
	Query(ctx context.Context, from, to time.Time, environment, state string) ([]OutcomeRecord, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Record flattens an outcome into its indexed record. The full decision
// travels in Detail so allow/block can be reconstructed later.
func (s *service) Record(ctx context.Context, outcome model.Outcome) error {
	detail, err := json.Marshal(outcome)
	if err != nil {
		return err
	}
	return s.repo.Index(ctx, OutcomeRecord{
		RunID:            outcome.RunID,
		Timestamp:        outcome.FinishedAt,
		Environment:      outcome.Change.Environment,
		Fingerprint:      outcome.Change.Fingerprint,
		State:            outcome.State,
		Allowed:          outcome.Decision.Allowed,
		ApplyResult:      string(outcome.ApplyResult),
		BlockingFindings: len(outcome.Decision.BlockingFindings),
		Detail:           detail,
	})
}

func (s *service) Query(ctx context.Context, from, to time.Time, environment, state string) ([]OutcomeRecord, error) {
	return s.repo.Query(ctx, from, to, environment, state)
}
