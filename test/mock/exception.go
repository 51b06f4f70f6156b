// test/mock/exception.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
)

// MockExceptionStore is a mock implementation of controller.IExceptionStore
type MockExceptionStore struct {
	mock.Mock
}

func (m *MockExceptionStore) Create(ctx context.Context, exc model.Exception) (model.Exception, error) {
	args := m.Called(ctx, exc)
	return args.Get(0).(model.Exception), args.Error(1)
}

func (m *MockExceptionStore) List(ctx context.Context) ([]model.Exception, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Exception), args.Error(1)
}

func (m *MockExceptionStore) Get(ctx context.Context, id string) (model.Exception, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Exception), args.Error(1)
}

func (m *MockExceptionStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
