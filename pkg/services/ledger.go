package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowledger/pkg/dispatcher"
	"github.com/dukex/flowledger/pkg/events"
	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/otelhelper"
	"github.com/dukex/flowledger/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ReasonDispatchFailed is recorded on executions the queue refused.
const ReasonDispatchFailed = "dispatch failed"

// Ledger records execution requests, hands them to the dispatcher and stores
// whatever the executor reports back.
type Ledger struct {
	persistence persistence.Persistence
	dispatcher  dispatcher.Dispatcher
	logger      *slog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewLedger creates a new execution ledger service.
func NewLedger(
	persistence persistence.Persistence,
	dispatcher dispatcher.Dispatcher,
	logger *slog.Logger,
	tracer trace.Tracer,
) *Ledger {
	return &Ledger{
		persistence: persistence,
		dispatcher:  dispatcher,
		logger:      logger,
		tracer:      tracer,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run records a pending execution of the currently published version and
// dispatches it. It returns once the request is queued, never waiting for the
// executor. Draft workflows are rejected and leave no execution behind.
func (l *Ledger) Run(ctx context.Context, tenantID string, workflowID int64, runContext any) (*models.Execution, error) {
	ctx, span := otelhelper.StartSpan(ctx, l.tracer, "services.Ledger.Run",
		attribute.String(otelhelper.TenantIDKey, tenantID),
		attribute.Int64(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.DispatcherKey, l.dispatcher.Name()),
	)
	defer span.End()

	payload, err := ValidateRunContext(runContext)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	execution := &models.Execution{
		TenantID:   tenantID,
		WorkflowID: workflowID,
		Context:    payload,
		StartedAt:  l.now(),
	}

	err = l.persistence.ExecutionRepository().CreateExecution(ctx, execution)
	if err != nil {
		otelhelper.SetError(span, err)

		if IsNotFoundError(err) || IsPreconditionError(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	span.SetAttributes(
		attribute.Int64(otelhelper.ExecutionIDKey, execution.ID),
		attribute.Int(otelhelper.WorkflowVersionKey, execution.Version),
	)

	err = l.dispatcher.Dispatch(ctx, &events.ExecutionRequested{
		TenantID:    tenantID,
		ExecutionID: execution.ID,
		WorkflowID:  workflowID,
		Version:     execution.Version,
		Context:     payload,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, l.failDispatch(ctx, execution, err)
	}

	l.logger.InfoContext(ctx, "execution queued",
		"tenant_id", tenantID,
		"workflow_id", workflowID,
		"execution_id", execution.ID,
		"version", execution.Version,
		"dispatcher", l.dispatcher.Name(),
	)

	return execution, nil
}

// failDispatch marks an execution that never reached the queue as failed.
func (l *Ledger) failDispatch(ctx context.Context, execution *models.Execution, cause error) error {
	l.logger.ErrorContext(ctx, "failed to dispatch execution",
		"execution_id", execution.ID,
		"dispatcher", l.dispatcher.Name(),
		"error", cause,
	)

	repo := l.persistence.ExecutionRepository()

	_, err := repo.UpdateStatus(ctx, execution.TenantID, execution.ID, persistence.StatusUpdate{
		Status: models.ExecutionStatusFailed,
		Reason: ReasonDispatchFailed,
		At:     l.now(),
	})
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to mark undispatched execution", "execution_id", execution.ID, "error", err)
	}

	err = repo.AppendLog(ctx, execution.TenantID, &models.Log{
		ExecutionID: execution.ID,
		Type:        models.LogTypeError,
		Message:     ReasonDispatchFailed,
		Data:        map[string]any{"dispatcher": l.dispatcher.Name(), "error": cause.Error()},
	})
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to log undispatched execution", "execution_id", execution.ID, "error", err)
	}

	return &ServiceError{
		Op:      "Run",
		Code:    "DISPATCH_FAILED",
		Message: fmt.Sprintf("execution %d could not be queued", execution.ID),
		Err:     errors.Join(ErrDispatchFailed, cause),
	}
}

func (l *Ledger) GetExecution(ctx context.Context, tenantID string, executionID int64) (*models.Execution, error) {
	return l.persistence.ExecutionRepository().GetExecution(ctx, tenantID, executionID)
}

// ListExecutions returns a workflow's executions, newest first.
func (l *Ledger) ListExecutions(ctx context.Context, tenantID string, workflowID int64, limit, offset int) ([]*models.Execution, error) {
	limit, offset = persistence.ExecutionPage(limit, offset)

	if _, err := l.persistence.WorkflowRepository().GetByID(ctx, tenantID, workflowID); err != nil {
		return nil, err
	}

	return l.persistence.ExecutionRepository().ListExecutions(ctx, tenantID, workflowID, limit, offset)
}

// GetLogs returns an execution's logs ordered by creation time.
func (l *Ledger) GetLogs(ctx context.Context, tenantID string, executionID int64) ([]*models.Log, error) {
	return l.persistence.ExecutionRepository().ListLogs(ctx, tenantID, executionID)
}

// AppendLog stores one executor log entry. Logs are never changed afterwards.
func (l *Ledger) AppendLog(ctx context.Context, tenantID string, executionID int64, entry *models.Log) (*models.Log, error) {
	if entry == nil || !entry.Type.IsValid() {
		return nil, NewValidationError("AppendLog", "INVALID_LOG_TYPE", "log type must be one of info, success, warning, error", ErrInvalidLogType)
	}

	stored := *entry
	stored.ID = 0
	stored.ExecutionID = executionID
	stored.Data = models.CloneSettings(entry.Data)

	err := l.persistence.ExecutionRepository().AppendLog(ctx, tenantID, &stored)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to append log: %w", err)
	}

	return &stored, nil
}

// SetStatus records an executor status change. Reaching a terminal status
// sets ended_at. Replacing a terminal status requires a reason.
func (l *Ledger) SetStatus(
	ctx context.Context,
	tenantID string,
	executionID int64,
	status models.ExecutionStatus,
	reason string,
) (*models.Execution, error) {
	ctx, span := otelhelper.StartSpan(ctx, l.tracer, "services.Ledger.SetStatus",
		attribute.String(otelhelper.TenantIDKey, tenantID),
		attribute.Int64(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.ExecutionStatusKey, string(status)),
	)
	defer span.End()

	if !status.IsValid() {
		err := NewValidationError("SetStatus", "INVALID_STATUS", fmt.Sprintf("invalid execution status '%s'", status), ErrInvalidStatus)
		otelhelper.SetError(span, err)

		return nil, err
	}

	execution, err := l.persistence.ExecutionRepository().UpdateStatus(ctx, tenantID, executionID, persistence.StatusUpdate{
		Status: status,
		Reason: reason,
		At:     l.now(),
	})
	if err != nil {
		otelhelper.SetError(span, err)

		if IsNotFoundError(err) || IsConflictError(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to update execution status: %w", err)
	}

	l.logger.InfoContext(ctx, "execution status changed",
		"tenant_id", tenantID,
		"execution_id", executionID,
		"status", status,
	)

	return execution, nil
}

// Heartbeat extends the executor's lease on an execution.
func (l *Ledger) Heartbeat(ctx context.Context, tenantID string, executionID int64) error {
	return l.persistence.ExecutionRepository().Heartbeat(ctx, tenantID, executionID, l.now())
}
