package mocks

import (
	"context"
	"time"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/stretchr/testify/mock"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
// Repository accessors return the embedded fields, which may be nil.
type MockPersistence struct {
	mock.Mock

	Workflows  persistence.WorkflowRepository
	Graphs     persistence.GraphRepository
	Versions   persistence.VersionRepository
	Executions persistence.ExecutionRepository
}

func (m *MockPersistence) WorkflowRepository() persistence.WorkflowRepository {
	return m.Workflows
}

func (m *MockPersistence) GraphRepository() persistence.GraphRepository {
	return m.Graphs
}

func (m *MockPersistence) VersionRepository() persistence.VersionRepository {
	return m.Versions
}

func (m *MockPersistence) ExecutionRepository() persistence.ExecutionRepository {
	return m.Executions
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockExecutionRepository is a mock implementation of persistence.ExecutionRepository interface.
type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) CreateExecution(ctx context.Context, execution *models.Execution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionRepository) GetExecution(ctx context.Context, tenantID string, id int64) (*models.Execution, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) ListExecutions(
	ctx context.Context,
	tenantID string,
	workflowID int64,
	limit, offset int,
) ([]*models.Execution, error) {
	args := m.Called(ctx, tenantID, workflowID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) UpdateStatus(
	ctx context.Context,
	tenantID string,
	id int64,
	update persistence.StatusUpdate,
) (*models.Execution, error) {
	args := m.Called(ctx, tenantID, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) Heartbeat(ctx context.Context, tenantID string, id int64, at time.Time) error {
	args := m.Called(ctx, tenantID, id, at)

	return args.Error(0)
}

func (m *MockExecutionRepository) AppendLog(ctx context.Context, tenantID string, entry *models.Log) error {
	args := m.Called(ctx, tenantID, entry)

	return args.Error(0)
}

func (m *MockExecutionRepository) ListLogs(ctx context.Context, tenantID string, executionID int64) ([]*models.Log, error) {
	args := m.Called(ctx, tenantID, executionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Log), args.Error(1)
}

func (m *MockExecutionRepository) FindStale(ctx context.Context, before time.Time, limit int) ([]*models.Execution, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Execution), args.Error(1)
}

func (m *MockExecutionRepository) ExpireLease(
	ctx context.Context,
	id int64,
	before time.Time,
	update persistence.StatusUpdate,
) (bool, error) {
	args := m.Called(ctx, id, before, update)

	return args.Bool(0), args.Error(1)
}
