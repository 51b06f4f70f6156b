// test/mock/pipeline.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// MockPipelineService is a mock implementation of controller.IPipelineService
type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) Run(ctx context.Context, cd model.ChangeDescriptor) model.Outcome {
	args := m.Called(ctx, cd)
	return args.Get(0).(model.Outcome)
}
