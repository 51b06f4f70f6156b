// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/audit"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Record(ctx context.Context, outcome model.Outcome) error {
	args := m.Called(ctx, outcome)
	return args.Error(0)
}

func (m *MockAuditService) Query(ctx context.Context, from, to time.Time, environment, state string) ([]audit.OutcomeRecord, error) {
	args := m.Called(ctx, from, to, environment, state)
	return args.Get(0).([]audit.OutcomeRecord), args.Error(1)
}
