// Package persistence provides the data storage abstraction layer for workflows, versions and executions.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/flowledger/pkg/models"
)

// Persistence groups the repositories backing a single store.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	GraphRepository() GraphRepository
	VersionRepository() VersionRepository
	ExecutionRepository() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow metadata. Every lookup is scoped by tenant.
type WorkflowRepository interface {
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)
	// GetByID returns the workflow with its live graph or ErrWorkflowNotFound.
	GetByID(ctx context.Context, tenantID string, id int64) (*models.Workflow, error)
	// Create inserts a new workflow and assigns its ID.
	Create(ctx context.Context, workflow *models.Workflow) error
	// UpdateMetadata persists name and description changes.
	UpdateMetadata(ctx context.Context, workflow *models.Workflow) error
	// SetStatus changes the lifecycle status without touching version or graph.
	SetStatus(ctx context.Context, tenantID string, id int64, status models.WorkflowStatus) (*models.Workflow, error)
	// Delete soft deletes a workflow.
	Delete(ctx context.Context, tenantID string, id int64) error
}

// GraphRepository owns the live, editable graph of a workflow.
type GraphRepository interface {
	GetGraph(ctx context.Context, tenantID string, workflowID int64) (*models.Graph, error)
	// ReplaceGraph deletes every node and edge of the workflow and inserts the
	// given set in one transaction. On error the previous graph is untouched.
	// Edges always receive fresh identifiers.
	ReplaceGraph(ctx context.Context, tenantID string, workflowID int64, graph *models.Graph) error
	// RestoreGraph is ReplaceGraph for a snapshot: node and edge identifiers are kept.
	RestoreGraph(ctx context.Context, tenantID string, workflowID int64, graph *models.Graph) error
	// NodeIDs returns every node id the workflow holds, live or in any of its versions.
	// Both replace operations fail with ErrNodeIDInUse for ids owned by another workflow.
	NodeIDs(ctx context.Context, tenantID string, workflowID int64) ([]string, error)
}

// VersionRepository owns immutable published snapshots.
type VersionRepository interface {
	// Publish snapshots the live graph as version current+1 and marks the
	// workflow published, atomically.
	Publish(ctx context.Context, tenantID string, workflowID int64) (*models.Version, error)
	// ListVersions returns summaries newest first.
	ListVersions(ctx context.Context, tenantID string, workflowID int64) ([]*models.VersionSummary, error)
	// GetVersion returns the full snapshot or ErrVersionNotFound.
	GetVersion(ctx context.Context, tenantID string, workflowID int64, number int) (*models.Version, error)
}

// StatusUpdate is a status write coming from the executor.
type StatusUpdate struct {
	Status models.ExecutionStatus
	Reason string
	At     time.Time
}

// ExecutionRepository is the execution ledger: runs and their ordered logs.
type ExecutionRepository interface {
	// CreateExecution inserts a pending execution. It fails with
	// ErrWorkflowNotPublished unless the workflow is published at that instant.
	CreateExecution(ctx context.Context, execution *models.Execution) error
	GetExecution(ctx context.Context, tenantID string, id int64) (*models.Execution, error)
	ListExecutions(ctx context.Context, tenantID string, workflowID int64, limit, offset int) ([]*models.Execution, error)
	// UpdateStatus applies update. Overwriting a terminal status requires a
	// non-empty reason, otherwise ErrTerminalOverwrite is returned.
	UpdateStatus(ctx context.Context, tenantID string, id int64, update StatusUpdate) (*models.Execution, error)
	Heartbeat(ctx context.Context, tenantID string, id int64, at time.Time) error
	// AppendLog stores entry with a creation time never earlier than the
	// previous entry of the same execution.
	AppendLog(ctx context.Context, tenantID string, entry *models.Log) error
	ListLogs(ctx context.Context, tenantID string, executionID int64) ([]*models.Log, error)
	// FindStale returns non-terminal executions, across tenants, whose last
	// heartbeat (or start, if none) is older than before.
	FindStale(ctx context.Context, before time.Time, limit int) ([]*models.Execution, error)
	// ExpireLease applies update only if the execution is still non-terminal and
	// its lease is still older than before. It reports whether it did.
	ExpireLease(ctx context.Context, id int64, before time.Time, update StatusUpdate) (bool, error)
}

// Execution listing page bounds.
const (
	DefaultExecutionPageSize = 50
	MaxExecutionPageSize     = 500
)

// ExecutionPage normalizes execution pagination. A non-positive limit means
// DefaultExecutionPageSize, larger limits are capped and a negative offset is 0.
func ExecutionPage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultExecutionPageSize
	case limit > MaxExecutionPageSize:
		limit = MaxExecutionPageSize
	}

	return limit, max(offset, 0)
}

// ListWorkflowsOptions controls workflow listing.
type ListWorkflowsOptions struct {
	TenantID string

	// Pagination
	Limit  int
	Offset int

	// Filtering
	Status *models.WorkflowStatus

	// Sorting
	SortBy    string // created_at, updated_at, name
	SortOrder string // asc, desc
}

// WorkflowListResult is one page of workflows.
type WorkflowListResult struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}
