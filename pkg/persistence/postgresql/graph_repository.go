package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/dukex/flowledger/pkg/xjson"
	"github.com/lib/pq"
)

// GraphRepository handles the live node and edge tables.
type GraphRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewGraphRepository creates a new graph repository.
func NewGraphRepository(db *sql.DB, logger *slog.Logger) *GraphRepository {
	return &GraphRepository{db: db, logger: logger}
}

// GetGraph returns the live graph of a workflow.
func (r *GraphRepository) GetGraph(ctx context.Context, tenantID string, workflowID int64) (*models.Graph, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL)",
		workflowID, tenantID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check workflow: %w", err)
	}

	if !exists {
		return nil, persistence.NewWorkflowError("GetGraph", tenantID, workflowID, persistence.ErrWorkflowNotFound)
	}

	return loadGraph(ctx, r.db, r.logger, workflowID)
}

// ReplaceGraph swaps the whole live graph. Edges get fresh identifiers.
func (r *GraphRepository) ReplaceGraph(ctx context.Context, tenantID string, workflowID int64, graph *models.Graph) error {
	return r.replace(ctx, "ReplaceGraph", tenantID, workflowID, graph, false)
}

// RestoreGraph swaps the whole live graph keeping the edge identifiers recorded in a snapshot.
func (r *GraphRepository) RestoreGraph(ctx context.Context, tenantID string, workflowID int64, graph *models.Graph) error {
	return r.replace(ctx, "RestoreGraph", tenantID, workflowID, graph, true)
}

// NodeIDs returns the node ids of the live graph and of every version snapshot.
func (r *GraphRepository) NodeIDs(ctx context.Context, tenantID string, workflowID int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT n.id
		FROM workflow_nodes n
		JOIN workflows w ON w.id = n.workflow_id
		WHERE n.workflow_id = $1 AND w.tenant_id = $2 AND w.deleted_at IS NULL
		UNION
		SELECT node->>'id'
		FROM workflow_versions v
		JOIN workflows w ON w.id = v.workflow_id
		CROSS JOIN LATERAL jsonb_array_elements(
			CASE WHEN jsonb_typeof(v.graph->'nodes') = 'array' THEN v.graph->'nodes' ELSE '[]'::jsonb END
		) AS node
		WHERE v.workflow_id = $1 AND w.tenant_id = $2 AND w.deleted_at IS NULL
	`, workflowID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node ids: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	ids := make([]string, 0)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan node id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating node ids: %w", err)
	}

	if len(ids) > 0 {
		return ids, nil
	}

	// An empty result is either a workflow without nodes or no workflow at all
	if _, err := r.GetGraph(ctx, tenantID, workflowID); err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *GraphRepository) replace(
	ctx context.Context,
	op, tenantID string,
	workflowID int64,
	graph *models.Graph,
	keepEdgeIDs bool,
) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := lockWorkflow(ctx, tx, tenantID, workflowID); err != nil {
			return err
		}

		if err := checkNodeOwnership(ctx, tx, workflowID, graph.Nodes); err != nil {
			return err
		}

		// Edges reference nodes, so they go first on delete and last on insert.
		if _, err := tx.ExecContext(ctx, "DELETE FROM workflow_edges WHERE workflow_id = $1", workflowID); err != nil {
			return fmt.Errorf("failed to delete existing edges: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", workflowID); err != nil {
			return fmt.Errorf("failed to delete existing nodes: %w", err)
		}

		if err := insertNodes(ctx, tx, workflowID, graph.Nodes); err != nil {
			return err
		}

		if err := insertEdges(ctx, tx, workflowID, graph.Edges, keepEdgeIDs); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "UPDATE workflows SET updated_at = NOW() WHERE id = $1", workflowID)
		if err != nil {
			return fmt.Errorf("failed to touch workflow: %w", err)
		}

		return nil
	})
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return err
		}

		return persistence.NewWorkflowError(op, tenantID, workflowID, err)
	}

	for _, node := range graph.Nodes {
		node.WorkflowID = workflowID
	}

	for _, edge := range graph.Edges {
		edge.WorkflowID = workflowID
	}

	return nil
}

// checkNodeOwnership rejects ids already stored for another workflow. The
// primary key would reject them too, but as a plain duplicate.
func checkNodeOwnership(ctx context.Context, tx *sql.Tx, workflowID int64, nodes []*models.Node) error {
	if len(nodes) == 0 {
		return nil
	}

	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
	}

	var taken string

	err := tx.QueryRowContext(ctx,
		"SELECT id FROM workflow_nodes WHERE id = ANY($1) AND workflow_id <> $2 LIMIT 1",
		pq.Array(ids), workflowID,
	).Scan(&taken)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check node ownership: %w", err)
	default:
		return fmt.Errorf("%w: %s", persistence.ErrNodeIDInUse, taken)
	}
}

func insertNodes(ctx context.Context, tx *sql.Tx, workflowID int64, nodes []*models.Node) error {
	query := `
		INSERT INTO workflow_nodes (workflow_id, id, node_type, name, settings, position_x, position_y, ordinal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for i, node := range nodes {
		settingsJSON, err := xjson.MarshalObject(node.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal node settings: %w", err)
		}

		_, err = tx.ExecContext(ctx, query,
			workflowID,
			node.ID,
			node.Type,
			node.Name,
			settingsJSON,
			node.PositionX,
			node.PositionY,
			i,
		)
		if err != nil {
			if isPQError(err, pqUniqueViolation) {
				return fmt.Errorf("%w: %s", persistence.ErrDuplicateNode, node.ID)
			}

			return fmt.Errorf("failed to save node: %w", err)
		}
	}

	return nil
}

func insertEdges(ctx context.Context, tx *sql.Tx, workflowID int64, edges []*models.Edge, keepIDs bool) error {
	for i, edge := range edges {
		settingsJSON, err := xjson.MarshalObject(edge.Settings)
		if err != nil {
			return fmt.Errorf("failed to marshal edge settings: %w", err)
		}

		var row *sql.Row

		if keepIDs && edge.ID > 0 {
			row = tx.QueryRowContext(ctx, `
				INSERT INTO workflow_edges (id, workflow_id, source_node_id, target_node_id, label, settings, ordinal)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id
			`, edge.ID, workflowID, edge.SourceNodeID, edge.TargetNodeID, edge.Label, settingsJSON, i)
		} else {
			row = tx.QueryRowContext(ctx, `
				INSERT INTO workflow_edges (workflow_id, source_node_id, target_node_id, label, settings, ordinal)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id
			`, workflowID, edge.SourceNodeID, edge.TargetNodeID, edge.Label, settingsJSON, i)
		}

		err = row.Scan(&edge.ID)
		if err != nil {
			if isPQError(err, pqForeignKeyViolation) {
				return fmt.Errorf("%w: %s -> %s", persistence.ErrDanglingEdge, edge.SourceNodeID, edge.TargetNodeID)
			}

			return fmt.Errorf("failed to save edge: %w", err)
		}
	}

	return nil
}

func loadGraph(ctx context.Context, q queryer, logger *slog.Logger, workflowID int64) (*models.Graph, error) {
	nodes, err := loadNodes(ctx, q, logger, workflowID)
	if err != nil {
		return nil, err
	}

	edges, err := loadEdges(ctx, q, logger, workflowID)
	if err != nil {
		return nil, err
	}

	return &models.Graph{Nodes: nodes, Edges: edges}, nil
}

func loadNodes(ctx context.Context, q queryer, logger *slog.Logger, workflowID int64) ([]*models.Node, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, node_type, name, settings, position_x, position_y
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY ordinal
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer closeRows(ctx, logger, rows)

	nodes := make([]*models.Node, 0)

	for rows.Next() {
		var (
			node         models.Node
			settingsJSON []byte
		)

		err := rows.Scan(&node.ID, &node.Type, &node.Name, &settingsJSON, &node.PositionX, &node.PositionY)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		node.Settings, err = xjson.UnmarshalObject(settingsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal node settings: %w", err)
		}

		node.WorkflowID = workflowID
		nodes = append(nodes, &node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

func loadEdges(ctx context.Context, q queryer, logger *slog.Logger, workflowID int64) ([]*models.Edge, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, source_node_id, target_node_id, label, settings
		FROM workflow_edges
		WHERE workflow_id = $1
		ORDER BY ordinal
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow edges: %w", err)
	}

	defer closeRows(ctx, logger, rows)

	edges := make([]*models.Edge, 0)

	for rows.Next() {
		var (
			edge         models.Edge
			settingsJSON []byte
		)

		err := rows.Scan(&edge.ID, &edge.SourceNodeID, &edge.TargetNodeID, &edge.Label, &settingsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}

		edge.Settings, err = xjson.UnmarshalObject(settingsJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal edge settings: %w", err)
		}

		edge.WorkflowID = workflowID
		edges = append(edges, &edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}
