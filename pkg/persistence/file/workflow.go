package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
)

// WorkflowRepository handles workflow metadata in the state file.
type WorkflowRepository struct {
	p *Persistence
}

// ListWorkflows returns paginated and filtered workflows with in-memory operations.
func (wr *WorkflowRepository) ListWorkflows(_ context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 20
	}

	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}

	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	allowedSorts := map[string]bool{
		"created_at": true,
		"updated_at": true,
		"name":       true,
	}
	if !allowedSorts[opts.SortBy] {
		return nil, fmt.Errorf("%w: %s", persistence.ErrInvalidSortField, opts.SortBy)
	}

	filtered := make([]*models.Workflow, 0)

	_ = wr.p.read(func(s *state) error {
		for _, workflow := range s.Workflows {
			if workflow.TenantID != opts.TenantID || workflow.DeletedAt != nil {
				continue
			}

			if opts.Status != nil && workflow.Status != *opts.Status {
				continue
			}

			filtered = append(filtered, copyWorkflow(workflow, false))
		}

		return nil
	})

	sortWorkflows(filtered, opts.SortBy, opts.SortOrder)

	totalCount := int64(len(filtered))

	if opts.Offset >= len(filtered) {
		return &persistence.WorkflowListResult{
			Workflows:   make([]*models.Workflow, 0),
			TotalCount:  totalCount,
			HasNextPage: false,
		}, nil
	}

	endIdx := min(opts.Offset+opts.Limit, len(filtered))

	return &persistence.WorkflowListResult{
		Workflows:   filtered[opts.Offset:endIdx],
		TotalCount:  totalCount,
		HasNextPage: endIdx < len(filtered),
	}, nil
}

func sortWorkflows(workflows []*models.Workflow, sortBy, sortOrder string) {
	sort.SliceStable(workflows, func(i, j int) bool {
		a, b := workflows[i], workflows[j]

		if sortOrder == "desc" {
			a, b = b, a
		}

		switch sortBy {
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "name":
			return a.Name < b.Name
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}

// GetByID returns the workflow with its live graph.
func (wr *WorkflowRepository) GetByID(_ context.Context, tenantID string, id int64) (*models.Workflow, error) {
	var found *models.Workflow

	_ = wr.p.read(func(s *state) error {
		if workflow := s.liveWorkflow(tenantID, id); workflow != nil {
			found = copyWorkflow(workflow, true)
		}

		return nil
	})

	if found == nil {
		return nil, persistence.NewWorkflowError("GetByID", tenantID, id, persistence.ErrWorkflowNotFound)
	}

	return found, nil
}

// Create stores a new draft workflow with an empty graph.
func (wr *WorkflowRepository) Create(_ context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	var created *models.Workflow

	err := wr.p.commit(func(s *state) error {
		created = &models.Workflow{
			ID:          s.NextWorkflowID,
			TenantID:    workflow.TenantID,
			Name:        workflow.Name,
			Description: workflow.Description,
			Status:      models.WorkflowStatusDraft,
			Version:     0,
			CreatedBy:   workflow.CreatedBy,
			Nodes:       []*models.Node{},
			Edges:       []*models.Edge{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		s.NextWorkflowID++
		s.Workflows = append(s.Workflows, created)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}

	workflow.ID = created.ID
	workflow.Status = created.Status
	workflow.Version = created.Version
	workflow.Nodes = []*models.Node{}
	workflow.Edges = []*models.Edge{}
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	return nil
}

// UpdateMetadata persists name and description.
func (wr *WorkflowRepository) UpdateMetadata(_ context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	err := wr.p.commit(func(s *state) error {
		stored := s.liveWorkflow(workflow.TenantID, workflow.ID)
		if stored == nil {
			return persistence.NewWorkflowError("UpdateMetadata", workflow.TenantID, workflow.ID, persistence.ErrWorkflowNotFound)
		}

		stored.Name = workflow.Name
		stored.Description = workflow.Description
		stored.UpdatedAt = now

		return nil
	})
	if err != nil {
		return err
	}

	workflow.UpdatedAt = now

	return nil
}

// SetStatus changes the lifecycle status only.
func (wr *WorkflowRepository) SetStatus(
	_ context.Context,
	tenantID string,
	id int64,
	status models.WorkflowStatus,
) (*models.Workflow, error) {
	var updated *models.Workflow

	err := wr.p.commit(func(s *state) error {
		stored := s.liveWorkflow(tenantID, id)
		if stored == nil {
			return persistence.NewWorkflowError("SetStatus", tenantID, id, persistence.ErrWorkflowNotFound)
		}

		stored.Status = status
		stored.UpdatedAt = time.Now().UTC()
		updated = copyWorkflow(stored, false)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete soft deletes a workflow. Its versions and executions are kept.
func (wr *WorkflowRepository) Delete(_ context.Context, tenantID string, id int64) error {
	return wr.p.commit(func(s *state) error {
		stored := s.liveWorkflow(tenantID, id)
		if stored == nil {
			return persistence.NewWorkflowError("Delete", tenantID, id, persistence.ErrWorkflowNotFound)
		}

		now := time.Now().UTC()
		stored.DeletedAt = &now
		stored.UpdatedAt = now

		return nil
	})
}
