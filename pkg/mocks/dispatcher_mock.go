package mocks

import (
	"context"

	"github.com/dukex/flowledger/pkg/events"
	"github.com/stretchr/testify/mock"
)

// MockDispatcher is a mock implementation of dispatcher.Dispatcher interface.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, request *events.ExecutionRequested) error {
	args := m.Called(ctx, request)

	return args.Error(0)
}

func (m *MockDispatcher) Name() string {
	args := m.Called()

	return args.String(0)
}

func (m *MockDispatcher) Close() error {
	args := m.Called()

	return args.Error(0)
}
