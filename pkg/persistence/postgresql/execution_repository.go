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
	"github.com/dukex/flowledger/pkg/xjson"
)

// ExecutionRepository handles executions and their logs.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , tenant_id
  , workflow_id
  , version
  , status
  , status_reason
  , context
  , started_at
  , ended_at
  , heartbeat_at
`

// CreateExecution inserts a pending execution while holding a shared lock on
// the workflow row, so the published check and the insert see the same state.
func (r *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.Execution) error {
	contextJSON, err := xjson.MarshalObject(execution.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal execution context: %w", err)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var (
			status  models.WorkflowStatus
			version int
		)

		err := tx.QueryRowContext(ctx, `
			SELECT status, version FROM workflows
			WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
			FOR SHARE
		`, execution.WorkflowID, execution.TenantID).Scan(&status, &version)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return persistence.NewWorkflowError("CreateExecution", execution.TenantID, execution.WorkflowID, persistence.ErrWorkflowNotFound)
			}

			return fmt.Errorf("failed to read workflow status: %w", err)
		}

		if status != models.WorkflowStatusPublished {
			return persistence.NewWorkflowError("CreateExecution", execution.TenantID, execution.WorkflowID, persistence.ErrWorkflowNotPublished)
		}

		execution.Version = version
		execution.Status = models.ExecutionStatusPending

		if execution.StartedAt.IsZero() {
			execution.StartedAt = time.Now().UTC()
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO executions (tenant_id, workflow_id, version, status, context, started_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`,
			execution.TenantID,
			execution.WorkflowID,
			execution.Version,
			execution.Status,
			contextJSON,
			execution.StartedAt,
		).Scan(&execution.ID)
		if err != nil {
			return fmt.Errorf("failed to insert execution: %w", err)
		}

		return nil
	})
}

// GetExecution returns the execution as last written.
func (r *ExecutionRepository) GetExecution(ctx context.Context, tenantID string, id int64) (*models.Execution, error) {
	query := "SELECT " + executionColumns + " FROM executions WHERE id = $1 AND tenant_id = $2"

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetExecution", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

// ListExecutions returns a workflow's executions, newest first.
func (r *ExecutionRepository) ListExecutions(
	ctx context.Context,
	tenantID string,
	workflowID int64,
	limit, offset int,
) ([]*models.Execution, error) {
	limit, offset = persistence.ExecutionPage(limit, offset)

	query := "SELECT " + executionColumns + `
		FROM executions
		WHERE tenant_id = $1 AND workflow_id = $2
		ORDER BY id DESC
		LIMIT $3 OFFSET $4
	`

	return r.queryExecutions(ctx, query, tenantID, workflowID, limit, offset)
}

// UpdateStatus applies a status write from the executor.
func (r *ExecutionRepository) UpdateStatus(
	ctx context.Context,
	tenantID string,
	id int64,
	update persistence.StatusUpdate,
) (*models.Execution, error) {
	var execution *models.Execution

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		current, err := lockExecution(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}

		if current.Status.IsTerminal() && update.Reason == "" {
			return persistence.NewExecutionError("UpdateStatus", id,
				fmt.Errorf("%w: %s", persistence.ErrTerminalOverwrite, current.Status))
		}

		current.Status = update.Status
		current.StatusReason = update.Reason
		current.EndedAt = nil

		if update.Status.IsTerminal() {
			at := update.At
			current.EndedAt = &at
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE executions SET status = $1, status_reason = $2, ended_at = $3
			WHERE id = $4
		`, current.Status, current.StatusReason, current.EndedAt, id)
		if err != nil {
			return fmt.Errorf("failed to update execution status: %w", err)
		}

		execution = current

		return nil
	})
	if err != nil {
		return nil, err
	}

	return execution, nil
}

// Heartbeat records executor liveness for lease tracking.
func (r *ExecutionRepository) Heartbeat(ctx context.Context, tenantID string, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE executions SET heartbeat_at = $1 WHERE id = $2 AND tenant_id = $3",
		at, id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}

	return requireAffected(result, persistence.NewExecutionError("Heartbeat", id, persistence.ErrExecutionNotFound))
}

// AppendLog stores a log entry. The execution row lock orders concurrent
// appends and created_at never goes backwards within an execution.
func (r *ExecutionRepository) AppendLog(ctx context.Context, tenantID string, entry *models.Log) error {
	dataJSON, err := marshalNullableObject(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal log data: %w", err)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := lockExecution(ctx, tx, tenantID, entry.ExecutionID); err != nil {
			return err
		}

		var last sql.NullTime

		err := tx.QueryRowContext(ctx,
			"SELECT MAX(created_at) FROM execution_logs WHERE execution_id = $1",
			entry.ExecutionID,
		).Scan(&last)
		if err != nil {
			return fmt.Errorf("failed to read last log time: %w", err)
		}

		entry.CreatedAt = time.Now().UTC()
		if last.Valid && last.Time.After(entry.CreatedAt) {
			entry.CreatedAt = last.Time.UTC()
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO execution_logs (execution_id, node_id, log_type, message, data, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`,
			entry.ExecutionID,
			entry.NodeID,
			entry.Type,
			entry.Message,
			dataJSON,
			entry.CreatedAt,
		).Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("failed to insert log: %w", err)
		}

		return nil
	})
}

// ListLogs returns an execution's logs in insertion order.
func (r *ExecutionRepository) ListLogs(ctx context.Context, tenantID string, executionID int64) ([]*models.Log, error) {
	if _, err := r.GetExecution(ctx, tenantID, executionID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, execution_id, node_id, log_type, message, data, created_at
		FROM execution_logs
		WHERE execution_id = $1
		ORDER BY created_at, id
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	logs := make([]*models.Log, 0)

	for rows.Next() {
		var (
			entry    models.Log
			dataJSON []byte
		)

		err := rows.Scan(&entry.ID, &entry.ExecutionID, &entry.NodeID, &entry.Type, &entry.Message, &dataJSON, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}

		entry.Data, err = xjson.UnmarshalObject(dataJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal log data: %w", err)
		}

		logs = append(logs, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logs: %w", err)
	}

	return logs, nil
}

// FindStale returns non-terminal executions whose lease ran out before the given time.
func (r *ExecutionRepository) FindStale(ctx context.Context, before time.Time, limit int) ([]*models.Execution, error) {
	query := "SELECT " + executionColumns + `
		FROM executions
		WHERE status IN ('pending', 'running')
		  AND COALESCE(heartbeat_at, started_at) < $1
		ORDER BY id
		LIMIT $2
	`

	return r.queryExecutions(ctx, query, before, limit)
}

// ExpireLease fails a stale execution in one conditional update, so an
// executor that reported back in the meantime wins.
func (r *ExecutionRepository) ExpireLease(ctx context.Context, id int64, before time.Time, update persistence.StatusUpdate) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE executions SET status = $1, status_reason = $2, ended_at = $3
		WHERE id = $4
		  AND status IN ('pending', 'running')
		  AND COALESCE(heartbeat_at, started_at) < $5
	`, update.Status, update.Reason, update.At, id, before)
	if err != nil {
		return false, fmt.Errorf("failed to expire execution lease: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected == 1, nil
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.Execution, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func lockExecution(ctx context.Context, tx *sql.Tx, tenantID string, id int64) (*models.Execution, error) {
	query := "SELECT " + executionColumns + " FROM executions WHERE id = $1 AND tenant_id = $2 FOR UPDATE"

	execution, err := scanExecution(tx.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("lockExecution", id, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to lock execution: %w", err)
	}

	return execution, nil
}

func scanExecution(scanner interface {
	Scan(dest ...any) error
}) (*models.Execution, error) {
	var (
		execution   models.Execution
		contextJSON []byte
	)

	err := scanner.Scan(
		&execution.ID,
		&execution.TenantID,
		&execution.WorkflowID,
		&execution.Version,
		&execution.Status,
		&execution.StatusReason,
		&contextJSON,
		&execution.StartedAt,
		&execution.EndedAt,
		&execution.HeartbeatAt,
	)
	if err != nil {
		return nil, err
	}

	execution.Context, err = xjson.UnmarshalObject(contextJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution context: %w", err)
	}

	return &execution, nil
}

func marshalNullableObject(v map[string]any) (any, error) {
	if v == nil {
		return nil, nil
	}

	return xjson.Marshal(v)
}
