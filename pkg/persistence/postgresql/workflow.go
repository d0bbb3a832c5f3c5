package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , tenant_id
  , name
  , description
  , status
  , version
  , created_by
  , created_at
  , updated_at
  , deleted_at
`

var workflowSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"name":       "name",
}

// ListWorkflows returns one page of the tenant's workflows without their graphs.
func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	column, ok := workflowSortColumns[opts.SortBy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	direction := "DESC"
	if opts.SortOrder == "asc" {
		direction = "ASC"
	}

	where := "WHERE tenant_id = $1 AND deleted_at IS NULL"
	args := []any{opts.TenantID}

	if opts.Status != nil {
		where += " AND status = $2"

		args = append(args, string(*opts.Status))
	}

	var totalCount int64

	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflows "+where, args...).Scan(&totalCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count workflows: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM workflows %s ORDER BY %s %s, id %s LIMIT %d OFFSET %d",
		workflowColumns, where, column, direction, direction, opts.Limit, opts.Offset,
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return &persistence.WorkflowListResult{
		Workflows:   workflows,
		TotalCount:  totalCount,
		HasNextPage: int64(opts.Offset+len(workflows)) < totalCount,
	}, nil
}

// GetByID returns the workflow together with its live graph.
func (r *WorkflowRepository) GetByID(ctx context.Context, tenantID string, id int64) (*models.Workflow, error) {
	query := "SELECT " + workflowColumns + " FROM workflows WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL"

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", tenantID, id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	graph, err := loadGraph(ctx, r.db, r.logger, id)
	if err != nil {
		return nil, err
	}

	workflow.Nodes = graph.Nodes
	workflow.Edges = graph.Edges

	return workflow, nil
}

// Create inserts a new draft workflow and assigns its ID.
func (r *WorkflowRepository) Create(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	query := `
		INSERT INTO workflows (tenant_id, name, description, status, version, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		workflow.TenantID,
		workflow.Name,
		workflow.Description,
		workflow.Status,
		workflow.Version,
		workflow.CreatedBy,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	).Scan(&workflow.ID)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	if workflow.Nodes == nil {
		workflow.Nodes = []*models.Node{}
	}

	if workflow.Edges == nil {
		workflow.Edges = []*models.Edge{}
	}

	return nil
}

// UpdateMetadata persists name and description.
func (r *WorkflowRepository) UpdateMetadata(ctx context.Context, workflow *models.Workflow) error {
	workflow.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE workflows SET name = $1, description = $2, updated_at = $3
		WHERE id = $4 AND tenant_id = $5 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		workflow.Name,
		workflow.Description,
		workflow.UpdatedAt,
		workflow.ID,
		workflow.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	return requireAffected(result, persistence.NewWorkflowError("UpdateMetadata", workflow.TenantID, workflow.ID, persistence.ErrWorkflowNotFound))
}

// SetStatus flips the lifecycle status and returns the updated workflow.
func (r *WorkflowRepository) SetStatus(ctx context.Context, tenantID string, id int64, status models.WorkflowStatus) (*models.Workflow, error) {
	query := `
		UPDATE workflows SET status = $1, updated_at = NOW()
		WHERE id = $2 AND tenant_id = $3 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, status, id, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to set workflow status: %w", err)
	}

	err = requireAffected(result, persistence.NewWorkflowError("SetStatus", tenantID, id, persistence.ErrWorkflowNotFound))
	if err != nil {
		return nil, err
	}

	return r.GetByID(ctx, tenantID, id)
}

// Delete soft deletes a workflow by setting deleted_at timestamp.
func (r *WorkflowRepository) Delete(ctx context.Context, tenantID string, id int64) error {
	query := `UPDATE workflows SET deleted_at = NOW() WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return requireAffected(result, persistence.NewWorkflowError("Delete", tenantID, id, persistence.ErrWorkflowNotFound))
}

// lockWorkflow takes a row lock on a live workflow for the rest of tx.
func lockWorkflow(ctx context.Context, tx *sql.Tx, tenantID string, id int64) (*models.Workflow, error) {
	query := "SELECT " + workflowColumns + " FROM workflows WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL FOR UPDATE"

	workflow, err := scanWorkflow(tx.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("lockWorkflow", tenantID, id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to lock workflow: %w", err)
	}

	return workflow, nil
}

func requireAffected(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return notFound
	}

	return nil
}

func scanWorkflow(scanner interface {
	Scan(dest ...any) error
}) (*models.Workflow, error) {
	var workflow models.Workflow

	err := scanner.Scan(
		&workflow.ID,
		&workflow.TenantID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Status,
		&workflow.Version,
		&workflow.CreatedBy,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&workflow.DeletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}
