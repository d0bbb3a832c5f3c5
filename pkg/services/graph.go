package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/otelhelper"
	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Graph owns the live, editable graph of a workflow.
type Graph struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewGraph creates a new graph service.
func NewGraph(persistence persistence.Persistence, logger *slog.Logger, tracer trace.Tracer) *Graph {
	return &Graph{
		persistence: persistence,
		logger:      logger,
		tracer:      tracer,
	}
}

// GetGraph returns the live graph.
func (g *Graph) GetGraph(ctx context.Context, tenantID string, workflowID int64) (*models.Graph, error) {
	return g.persistence.GraphRepository().GetGraph(ctx, tenantID, workflowID)
}

// SaveGraph replaces the whole live graph with submitted. A submitted node id
// is kept only when this workflow already holds it, live or in a version, so
// renames and moves keep identity. Any other node gets a new UUIDv7 and edges
// follow it. Edge ids are always reassigned. On any error the previous graph
// is untouched.
func (g *Graph) SaveGraph(ctx context.Context, tenantID string, workflowID int64, submitted *models.Graph) (*models.Graph, error) {
	ctx, span := otelhelper.StartSpan(ctx, g.tracer, "services.Graph.SaveGraph",
		attribute.String(otelhelper.TenantIDKey, tenantID),
		attribute.Int64(otelhelper.WorkflowIDKey, workflowID),
	)
	defer span.End()

	known, err := g.persistence.GraphRepository().NodeIDs(ctx, tenantID, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		if IsNotFoundError(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to load node ids: %w", err)
	}

	graph, err := prepareGraph(submitted, known)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.Int(otelhelper.NodeCountKey, len(graph.Nodes)),
		attribute.Int(otelhelper.EdgeCountKey, len(graph.Edges)),
	)

	err = ValidateGraph(graph)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, NewValidationError("SaveGraph", "INVALID_GRAPH", err.Error(), err)
	}

	err = g.persistence.GraphRepository().ReplaceGraph(ctx, tenantID, workflowID, graph)
	if err != nil {
		otelhelper.SetError(span, err)

		if IsNotFoundError(err) || IsValidationError(err) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to save graph: %w", err)
	}

	g.logger.InfoContext(ctx, "graph saved",
		"tenant_id", tenantID,
		"workflow_id", workflowID,
		"nodes", len(graph.Nodes),
		"edges", len(graph.Edges),
	)

	return graph, nil
}

// prepareGraph copies the submission, gives every node outside known a new id
// and turns nil collections and settings into empty ones so every store
// returns the same shape. Repeated unknown ids map to the same new id, so
// duplicates are still reported by validation.
func prepareGraph(submitted *models.Graph, known []string) (*models.Graph, error) {
	graph := submitted.Clone()

	owned := make(map[string]struct{}, len(known))
	for _, id := range known {
		owned[id] = struct{}{}
	}

	assigned := make(map[string]string)

	for _, node := range graph.Nodes {
		if node == nil {
			continue
		}

		if _, ok := owned[node.ID]; !ok || node.ID == "" {
			id, err := newNodeID(node.ID, assigned)
			if err != nil {
				return nil, err
			}

			node.ID = id
		}

		if node.Settings == nil {
			node.Settings = map[string]any{}
		}
	}

	for _, edge := range graph.Edges {
		if edge == nil {
			continue
		}

		edge.ID = 0

		if id, ok := assigned[edge.SourceNodeID]; ok {
			edge.SourceNodeID = id
		}

		if id, ok := assigned[edge.TargetNodeID]; ok {
			edge.TargetNodeID = id
		}

		if edge.Settings == nil {
			edge.Settings = map[string]any{}
		}
	}

	return graph, nil
}

func newNodeID(submitted string, assigned map[string]string) (string, error) {
	if id, ok := assigned[submitted]; ok && submitted != "" {
		return id, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate node id: %w", err)
	}

	if submitted != "" {
		assigned[submitted] = id.String()
	}

	return id.String(), nil
}
