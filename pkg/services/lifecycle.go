package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/otelhelper"
	"github.com/dukex/flowledger/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Lifecycle moves workflows between draft and published and manages their
// immutable version history.
type Lifecycle struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewLifecycle creates a new lifecycle service.
func NewLifecycle(persistence persistence.Persistence, logger *slog.Logger, tracer trace.Tracer) *Lifecycle {
	return &Lifecycle{
		persistence: persistence,
		logger:      logger,
		tracer:      tracer,
	}
}

// Publish snapshots the live graph as the next version and marks the workflow
// published. Empty graphs can be published.
func (l *Lifecycle) Publish(ctx context.Context, tenantID string, workflowID int64) (*models.Version, error) {
	ctx, span := otelhelper.StartSpan(ctx, l.tracer, "services.Lifecycle.Publish",
		attribute.String(otelhelper.TenantIDKey, tenantID),
		attribute.Int64(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	version, err := l.persistence.VersionRepository().Publish(ctx, tenantID, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		if IsNotFoundError(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to publish workflow: %w", err)
	}

	span.SetAttributes(
		attribute.Int(otelhelper.WorkflowVersionKey, version.Number),
		attribute.Int(otelhelper.NodeCountKey, len(version.Graph.Nodes)),
	)

	l.logger.InfoContext(ctx, "workflow published",
		"tenant_id", tenantID,
		"workflow_id", workflowID,
		"version", version.Number,
		"nodes", len(version.Graph.Nodes),
		"edges", len(version.Graph.Edges),
	)

	return version, nil
}

// Unpublish returns the workflow to draft. Version and graph are kept, and
// unpublishing a draft is a no-op.
func (l *Lifecycle) Unpublish(ctx context.Context, tenantID string, workflowID int64) (*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, l.tracer, "services.Lifecycle.Unpublish",
		attribute.String(otelhelper.TenantIDKey, tenantID),
		attribute.Int64(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	workflow, err := l.persistence.WorkflowRepository().SetStatus(ctx, tenantID, workflowID, models.WorkflowStatusDraft)
	if err != nil {
		otelhelper.SetError(span, err)

		if IsNotFoundError(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to unpublish workflow: %w", err)
	}

	l.logger.InfoContext(ctx, "workflow unpublished", "tenant_id", tenantID, "workflow_id", workflowID)

	return workflow, nil
}

// Rollback replaces the live graph with the snapshot of version number,
// keeping the snapshot's node ids. Status and version counter are left as
// they are, so a rolled back workflow must be published again to run the
// restored graph as a new version.
func (l *Lifecycle) Rollback(ctx context.Context, tenantID string, workflowID int64, number int) (*models.Graph, error) {
	ctx, span := otelhelper.StartSpan(ctx, l.tracer, "services.Lifecycle.Rollback",
		attribute.String(otelhelper.TenantIDKey, tenantID),
		attribute.Int64(otelhelper.WorkflowIDKey, workflowID),
		attribute.Int(otelhelper.WorkflowVersionKey, number),
	)
	defer span.End()

	version, err := l.persistence.VersionRepository().GetVersion(ctx, tenantID, workflowID, number)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	graph := version.Graph.Clone()

	err = ValidateGraph(graph)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, NewValidationError("Rollback", "INVALID_SNAPSHOT", err.Error(), err)
	}

	err = l.persistence.GraphRepository().RestoreGraph(ctx, tenantID, workflowID, graph)
	if err != nil {
		otelhelper.SetError(span, err)

		if IsNotFoundError(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to restore graph: %w", err)
	}

	l.logger.InfoContext(ctx, "workflow rolled back",
		"tenant_id", tenantID,
		"workflow_id", workflowID,
		"version", number,
	)

	return graph, nil
}

// ListVersions returns version summaries, newest first.
func (l *Lifecycle) ListVersions(ctx context.Context, tenantID string, workflowID int64) ([]*models.VersionSummary, error) {
	// Versions of deleted or foreign workflows must read as not found, not as empty.
	if _, err := l.persistence.WorkflowRepository().GetByID(ctx, tenantID, workflowID); err != nil {
		return nil, err
	}

	return l.persistence.VersionRepository().ListVersions(ctx, tenantID, workflowID)
}

// GetVersion returns the full snapshot of one version.
func (l *Lifecycle) GetVersion(ctx context.Context, tenantID string, workflowID int64, number int) (*models.Version, error) {
	return l.persistence.VersionRepository().GetVersion(ctx, tenantID, workflowID, number)
}
