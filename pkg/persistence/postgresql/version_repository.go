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

// VersionRepository handles published snapshots.
type VersionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *sql.DB, logger *slog.Logger) *VersionRepository {
	return &VersionRepository{db: db, logger: logger}
}

// Publish snapshots the live graph and bumps the workflow version in one transaction.
// The workflow row lock serialises concurrent publishes so numbers never skip.
func (r *VersionRepository) Publish(ctx context.Context, tenantID string, workflowID int64) (*models.Version, error) {
	var version *models.Version

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		workflow, err := lockWorkflow(ctx, tx, tenantID, workflowID)
		if err != nil {
			return err
		}

		graph, err := loadGraph(ctx, tx, r.logger, workflowID)
		if err != nil {
			return err
		}

		graphJSON, err := xjson.Marshal(graph)
		if err != nil {
			return fmt.Errorf("failed to marshal graph snapshot: %w", err)
		}

		version = &models.Version{
			WorkflowID: workflowID,
			Number:     workflow.Version + 1,
			Status:     models.VersionStatusPublished,
			Graph:      graph,
			CreatedAt:  time.Now().UTC(),
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO workflow_versions (workflow_id, number, status, graph, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, workflowID, version.Number, version.Status, graphJSON, version.CreatedAt).Scan(&version.ID)
		if err != nil {
			return fmt.Errorf("failed to insert version: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE workflows SET status = $1, version = $2, updated_at = $3
			WHERE id = $4
		`, models.WorkflowStatusPublished, version.Number, version.CreatedAt, workflowID)
		if err != nil {
			return fmt.Errorf("failed to mark workflow published: %w", err)
		}

		return nil
	})
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, err
		}

		return nil, persistence.NewWorkflowError("Publish", tenantID, workflowID, err)
	}

	return version, nil
}

// ListVersions returns version summaries, newest first.
func (r *VersionRepository) ListVersions(ctx context.Context, tenantID string, workflowID int64) ([]*models.VersionSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT v.id, v.number, v.status, v.created_at
		FROM workflow_versions v
		JOIN workflows w ON w.id = v.workflow_id
		WHERE v.workflow_id = $1 AND w.tenant_id = $2 AND w.deleted_at IS NULL
		ORDER BY v.number DESC
	`, workflowID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	versions := make([]*models.VersionSummary, 0)

	for rows.Next() {
		var summary models.VersionSummary

		err := rows.Scan(&summary.ID, &summary.Number, &summary.Status, &summary.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}

		versions = append(versions, &summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}

	return versions, nil
}

// GetVersion returns one snapshot with its graph.
func (r *VersionRepository) GetVersion(ctx context.Context, tenantID string, workflowID int64, number int) (*models.Version, error) {
	var (
		version   models.Version
		graphJSON []byte
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT v.id, v.workflow_id, v.number, v.status, v.graph, v.created_at
		FROM workflow_versions v
		JOIN workflows w ON w.id = v.workflow_id
		WHERE v.workflow_id = $1 AND v.number = $2 AND w.tenant_id = $3 AND w.deleted_at IS NULL
	`, workflowID, number, tenantID).Scan(
		&version.ID,
		&version.WorkflowID,
		&version.Number,
		&version.Status,
		&graphJSON,
		&version.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetVersion", tenantID, workflowID,
				fmt.Errorf("%w: %d", persistence.ErrVersionNotFound, number))
		}

		return nil, fmt.Errorf("failed to scan version: %w", err)
	}

	var graph models.Graph

	err = xjson.Unmarshal(graphJSON, &graph)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph snapshot: %w", err)
	}

	version.Graph = &graph

	return &version, nil
}
