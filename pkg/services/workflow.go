package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
)

// Workflow manages workflow metadata. Status changes are delegated to Lifecycle.
type Workflow struct {
	persistence persistence.Persistence
	lifecycle   *Lifecycle
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, lifecycle *Lifecycle, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence: persistence,
		lifecycle:   lifecycle,
		logger:      logger,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	TenantID string

	// Pagination
	Limit  int
	Offset int

	// Filtering
	Status *models.WorkflowStatus

	// Sorting
	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Workflow `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves the tenant's workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if err := validateListWorkflowsRequest(&req); err != nil {
		return nil, err
	}

	result, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, persistence.ListWorkflowsOptions{
		TenantID:  req.TenantID,
		Limit:     req.Limit,
		Offset:    req.Offset,
		Status:    req.Status,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return &ListWorkflowsResponse{
		Workflows:   result.Workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

// validateListWorkflowsRequest validates and sets defaults for the request.
func validateListWorkflowsRequest(req *ListWorkflowsRequest) error {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	if req.Limit > 100 {
		req.Limit = 100
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	if req.SortBy == "" {
		req.SortBy = "created_at"
	}

	if req.SortOrder == "" {
		req.SortOrder = "desc"
	}

	allowedSorts := []string{"created_at", "updated_at", "name"}

	if !slices.Contains(allowedSorts, req.SortBy) {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_FIELD",
			fmt.Sprintf("invalid sort field '%s', allowed: %s", req.SortBy, strings.Join(allowedSorts, ", ")),
			ErrInvalidSortField,
		)
	}

	if req.SortOrder != "asc" && req.SortOrder != "desc" {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_SORT_ORDER",
			fmt.Sprintf("invalid sort order '%s', allowed: asc, desc", req.SortOrder),
			ErrInvalidSortOrder,
		)
	}

	if req.Status != nil && !req.Status.IsValid() {
		return NewValidationError(
			"validateListWorkflowsRequest",
			"INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *req.Status),
			ErrInvalidStatus,
		)
	}

	return nil
}

// FetchByID retrieves a workflow with its live graph.
func (w *Workflow) FetchByID(ctx context.Context, tenantID string, id int64) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, tenantID, id)
}

// Create adds a new draft workflow at version 0 with an empty graph.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	workflow.Name = strings.TrimSpace(workflow.Name)
	if workflow.Name == "" {
		return nil, NewValidationError("Create", "NAME_REQUIRED", "workflow name is required", ErrInvalidRequest)
	}

	err := w.persistence.WorkflowRepository().Create(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "workflow created", "tenant_id", workflow.TenantID, "workflow_id", workflow.ID)

	return workflow, nil
}

// UpdateWorkflowRequest carries a partial metadata update. A status change is
// applied through publish or unpublish.
type UpdateWorkflowRequest struct {
	Name        *string
	Description *string
	Status      *models.WorkflowStatus
}

// Update modifies workflow metadata and, when a status is given, publishes or
// unpublishes it.
func (w *Workflow) Update(ctx context.Context, tenantID string, id int64, req UpdateWorkflowRequest) (*models.Workflow, error) {
	if req.Status != nil && !req.Status.IsValid() {
		return nil, NewValidationError("Update", "INVALID_STATUS", fmt.Sprintf("invalid status '%s'", *req.Status), ErrInvalidStatus)
	}

	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil || req.Description != nil {
		if req.Name != nil {
			existing.Name = strings.TrimSpace(*req.Name)
			if existing.Name == "" {
				return nil, NewValidationError("Update", "NAME_REQUIRED", "workflow name is required", ErrInvalidRequest)
			}
		}

		if req.Description != nil {
			existing.Description = *req.Description
		}

		err = w.persistence.WorkflowRepository().UpdateMetadata(ctx, existing)
		if err != nil {
			return nil, fmt.Errorf("failed to update workflow: %w", err)
		}
	}

	if req.Status != nil && *req.Status != existing.Status {
		switch *req.Status {
		case models.WorkflowStatusPublished:
			_, err = w.lifecycle.Publish(ctx, tenantID, id)
		case models.WorkflowStatusDraft:
			_, err = w.lifecycle.Unpublish(ctx, tenantID, id)
		}

		if err != nil {
			return nil, err
		}
	}

	return w.persistence.WorkflowRepository().GetByID(ctx, tenantID, id)
}

// Delete soft deletes a workflow. Its executions stay readable by id.
func (w *Workflow) Delete(ctx context.Context, tenantID string, id int64) error {
	err := w.persistence.WorkflowRepository().Delete(ctx, tenantID, id)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "workflow deleted", "tenant_id", tenantID, "workflow_id", id)

	return nil
}
