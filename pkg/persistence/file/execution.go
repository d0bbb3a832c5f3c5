package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
)

// ExecutionRepository is the file-backed execution ledger.
type ExecutionRepository struct {
	p *Persistence
}

// CreateExecution inserts a pending execution if the workflow is published
// at commit time.
func (er *ExecutionRepository) CreateExecution(_ context.Context, execution *models.Execution) error {
	var created *models.Execution

	err := er.p.commit(func(s *state) error {
		workflow := s.liveWorkflow(execution.TenantID, execution.WorkflowID)
		if workflow == nil {
			return persistence.NewWorkflowError("CreateExecution", execution.TenantID, execution.WorkflowID, persistence.ErrWorkflowNotFound)
		}

		if !workflow.IsPublished() {
			return persistence.NewWorkflowError("CreateExecution", execution.TenantID, execution.WorkflowID, persistence.ErrWorkflowNotPublished)
		}

		created = copyExecution(execution)
		created.ID = s.NextExecutionID
		created.Version = workflow.Version
		created.Status = models.ExecutionStatusPending
		created.StatusReason = ""
		created.EndedAt = nil
		created.HeartbeatAt = nil

		if created.Context == nil {
			created.Context = map[string]any{}
		}

		if created.StartedAt.IsZero() {
			created.StartedAt = time.Now().UTC()
		}

		s.NextExecutionID++
		s.Executions = append(s.Executions, created)

		return nil
	})
	if err != nil {
		return err
	}

	execution.ID = created.ID
	execution.Version = created.Version
	execution.Status = created.Status
	execution.StartedAt = created.StartedAt

	return nil
}

func (er *ExecutionRepository) GetExecution(_ context.Context, tenantID string, id int64) (*models.Execution, error) {
	var found *models.Execution

	_ = er.p.read(func(s *state) error {
		if execution := s.execution(tenantID, id); execution != nil {
			found = copyExecution(execution)
		}

		return nil
	})

	if found == nil {
		return nil, persistence.NewExecutionError("GetExecution", id, persistence.ErrExecutionNotFound)
	}

	return found, nil
}

// ListExecutions returns a workflow's executions, newest first.
func (er *ExecutionRepository) ListExecutions(
	_ context.Context,
	tenantID string,
	workflowID int64,
	limit, offset int,
) ([]*models.Execution, error) {
	limit, offset = persistence.ExecutionPage(limit, offset)

	matching := make([]*models.Execution, 0)

	_ = er.p.read(func(s *state) error {
		for _, execution := range s.Executions {
			if execution.TenantID == tenantID && execution.WorkflowID == workflowID {
				matching = append(matching, copyExecution(execution))
			}
		}

		return nil
	})

	sort.Slice(matching, func(i, j int) bool {
		return matching[i].ID > matching[j].ID
	})

	if offset >= len(matching) {
		return make([]*models.Execution, 0), nil
	}

	return matching[offset:min(offset+limit, len(matching))], nil
}

// UpdateStatus applies a status write from the executor.
func (er *ExecutionRepository) UpdateStatus(
	_ context.Context,
	tenantID string,
	id int64,
	update persistence.StatusUpdate,
) (*models.Execution, error) {
	var updated *models.Execution

	err := er.p.commit(func(s *state) error {
		execution := s.execution(tenantID, id)
		if execution == nil {
			return persistence.NewExecutionError("UpdateStatus", id, persistence.ErrExecutionNotFound)
		}

		if execution.Status.IsTerminal() && update.Reason == "" {
			return persistence.NewExecutionError("UpdateStatus", id,
				fmt.Errorf("%w: %s", persistence.ErrTerminalOverwrite, execution.Status))
		}

		execution.Status = update.Status
		execution.StatusReason = update.Reason
		execution.EndedAt = nil

		if update.Status.IsTerminal() {
			at := update.At
			execution.EndedAt = &at
		}

		updated = copyExecution(execution)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Heartbeat records executor liveness for lease tracking.
func (er *ExecutionRepository) Heartbeat(_ context.Context, tenantID string, id int64, at time.Time) error {
	return er.p.commit(func(s *state) error {
		execution := s.execution(tenantID, id)
		if execution == nil {
			return persistence.NewExecutionError("Heartbeat", id, persistence.ErrExecutionNotFound)
		}

		execution.HeartbeatAt = &at

		return nil
	})
}

// AppendLog stores a log entry; created_at never goes backwards within an execution.
func (er *ExecutionRepository) AppendLog(_ context.Context, tenantID string, entry *models.Log) error {
	var stored models.Log

	err := er.p.commit(func(s *state) error {
		if s.execution(tenantID, entry.ExecutionID) == nil {
			return persistence.NewExecutionError("AppendLog", entry.ExecutionID, persistence.ErrExecutionNotFound)
		}

		stored = *entry
		stored.ID = s.NextLogID
		stored.Data = models.CloneSettings(entry.Data)
		stored.CreatedAt = time.Now().UTC()

		for _, previous := range s.Logs {
			if previous.ExecutionID == entry.ExecutionID && previous.CreatedAt.After(stored.CreatedAt) {
				stored.CreatedAt = previous.CreatedAt
			}
		}

		if entry.NodeID != nil {
			nodeID := *entry.NodeID
			stored.NodeID = &nodeID
		}

		s.NextLogID++
		s.Logs = append(s.Logs, &stored)

		return nil
	})
	if err != nil {
		return err
	}

	entry.ID = stored.ID
	entry.CreatedAt = stored.CreatedAt

	return nil
}

// ListLogs returns an execution's logs in insertion order.
func (er *ExecutionRepository) ListLogs(_ context.Context, tenantID string, executionID int64) ([]*models.Log, error) {
	logs := make([]*models.Log, 0)
	found := false

	_ = er.p.read(func(s *state) error {
		if s.execution(tenantID, executionID) == nil {
			return nil
		}

		found = true

		for _, entry := range s.Logs {
			if entry.ExecutionID != executionID {
				continue
			}

			copied := *entry
			copied.Data = models.CloneSettings(entry.Data)
			logs = append(logs, &copied)
		}

		return nil
	})

	if !found {
		return nil, persistence.NewExecutionError("ListLogs", executionID, persistence.ErrExecutionNotFound)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].CreatedAt.Equal(logs[j].CreatedAt) {
			return logs[i].ID < logs[j].ID
		}

		return logs[i].CreatedAt.Before(logs[j].CreatedAt)
	})

	return logs, nil
}

// FindStale returns non-terminal executions, across tenants, whose lease ran out.
func (er *ExecutionRepository) FindStale(_ context.Context, before time.Time, limit int) ([]*models.Execution, error) {
	stale := make([]*models.Execution, 0)

	_ = er.p.read(func(s *state) error {
		for _, execution := range s.Executions {
			if len(stale) >= limit {
				break
			}

			if execution.Status.IsTerminal() {
				continue
			}

			last := execution.StartedAt
			if execution.HeartbeatAt != nil {
				last = *execution.HeartbeatAt
			}

			if last.Before(before) {
				stale = append(stale, copyExecution(execution))
			}
		}

		return nil
	})

	return stale, nil
}

// ExpireLease fails a stale execution unless it finished or heartbeated since FindStale.
func (er *ExecutionRepository) ExpireLease(_ context.Context, id int64, before time.Time, update persistence.StatusUpdate) (bool, error) {
	expired := false

	err := er.p.commit(func(s *state) error {
		for _, execution := range s.Executions {
			if execution.ID != id {
				continue
			}

			last := execution.StartedAt
			if execution.HeartbeatAt != nil {
				last = *execution.HeartbeatAt
			}

			if execution.Status.IsTerminal() || !last.Before(before) {
				return nil
			}

			at := update.At
			execution.Status = update.Status
			execution.StatusReason = update.Reason
			execution.EndedAt = &at
			expired = true

			return nil
		}

		return persistence.NewExecutionError("ExpireLease", id, persistence.ErrExecutionNotFound)
	})
	if err != nil {
		return false, err
	}

	return expired, nil
}
