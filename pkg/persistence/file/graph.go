package file

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
)

// GraphRepository keeps the live graph inside each workflow record.
type GraphRepository struct {
	p *Persistence
}

// GetGraph returns a copy of the live graph.
func (gr *GraphRepository) GetGraph(_ context.Context, tenantID string, workflowID int64) (*models.Graph, error) {
	var graph *models.Graph

	_ = gr.p.read(func(s *state) error {
		if workflow := s.liveWorkflow(tenantID, workflowID); workflow != nil {
			graph = workflow.Graph().Clone()
		}

		return nil
	})

	if graph == nil {
		return nil, persistence.NewWorkflowError("GetGraph", tenantID, workflowID, persistence.ErrWorkflowNotFound)
	}

	return graph, nil
}

// ReplaceGraph swaps the whole live graph. Edges get fresh identifiers.
func (gr *GraphRepository) ReplaceGraph(ctx context.Context, tenantID string, workflowID int64, graph *models.Graph) error {
	return gr.replace(ctx, "ReplaceGraph", tenantID, workflowID, graph, false)
}

// RestoreGraph swaps the whole live graph keeping snapshot edge identifiers.
func (gr *GraphRepository) RestoreGraph(ctx context.Context, tenantID string, workflowID int64, graph *models.Graph) error {
	return gr.replace(ctx, "RestoreGraph", tenantID, workflowID, graph, true)
}

// NodeIDs returns the ids of the live graph followed by those only found in versions.
func (gr *GraphRepository) NodeIDs(_ context.Context, tenantID string, workflowID int64) ([]string, error) {
	var ids []string

	_ = gr.p.read(func(s *state) error {
		if s.liveWorkflow(tenantID, workflowID) != nil {
			ids = s.nodeIDsOf(workflowID)
		}

		return nil
	})

	if ids == nil {
		return nil, persistence.NewWorkflowError("NodeIDs", tenantID, workflowID, persistence.ErrWorkflowNotFound)
	}

	return ids, nil
}

func (gr *GraphRepository) replace(
	_ context.Context,
	op, tenantID string,
	workflowID int64,
	graph *models.Graph,
	keepEdgeIDs bool,
) error {
	stored := graph.Clone()

	err := checkGraph(stored)
	if err != nil {
		return persistence.NewWorkflowError(op, tenantID, workflowID, err)
	}

	err = gr.p.commit(func(s *state) error {
		workflow := s.liveWorkflow(tenantID, workflowID)
		if workflow == nil {
			return persistence.NewWorkflowError(op, tenantID, workflowID, persistence.ErrWorkflowNotFound)
		}

		if id, taken := s.foreignNodeID(workflowID, stored); taken {
			return persistence.NewWorkflowError(op, tenantID, workflowID,
				fmt.Errorf("%w: %s", persistence.ErrNodeIDInUse, id))
		}

		for _, node := range stored.Nodes {
			node.WorkflowID = workflowID
			if node.Settings == nil {
				node.Settings = map[string]any{}
			}
		}

		for _, edge := range stored.Edges {
			edge.WorkflowID = workflowID
			if edge.Settings == nil {
				edge.Settings = map[string]any{}
			}

			if !keepEdgeIDs || edge.ID <= 0 {
				edge.ID = s.NextEdgeID
				s.NextEdgeID++
			} else if edge.ID >= s.NextEdgeID {
				s.NextEdgeID = edge.ID + 1
			}
		}

		workflow.Nodes = stored.Nodes
		workflow.Edges = stored.Edges
		workflow.UpdatedAt = time.Now().UTC()

		return nil
	})
	if err != nil {
		return err
	}

	// Report assigned identifiers back to the caller's graph
	for i, edge := range graph.Edges {
		edge.ID = stored.Edges[i].ID
		edge.WorkflowID = workflowID
	}

	for _, node := range graph.Nodes {
		node.WorkflowID = workflowID
	}

	return nil
}

// checkGraph enforces what the relational store enforces with keys.
func checkGraph(graph *models.Graph) error {
	ids := make(map[string]struct{}, len(graph.Nodes))

	for _, node := range graph.Nodes {
		if _, ok := ids[node.ID]; ok {
			return fmt.Errorf("%w: %s", persistence.ErrDuplicateNode, node.ID)
		}

		ids[node.ID] = struct{}{}
	}

	for _, edge := range graph.Edges {
		_, sourceOK := ids[edge.SourceNodeID]
		_, targetOK := ids[edge.TargetNodeID]

		if !sourceOK || !targetOK {
			return fmt.Errorf("%w: %s -> %s", persistence.ErrDanglingEdge, edge.SourceNodeID, edge.TargetNodeID)
		}
	}

	return nil
}

// nodeIDsOf lists, without repeats, the node ids of a workflow's live graph and versions.
func (s *state) nodeIDsOf(workflowID int64) []string {
	ids := make([]string, 0)
	seen := make(map[string]struct{})

	add := func(nodes []*models.Node) {
		for _, node := range nodes {
			if node == nil {
				continue
			}

			if _, ok := seen[node.ID]; !ok {
				seen[node.ID] = struct{}{}
				ids = append(ids, node.ID)
			}
		}
	}

	for _, workflow := range s.Workflows {
		if workflow.ID == workflowID {
			add(workflow.Nodes)
		}
	}

	for _, version := range s.Versions {
		if version.WorkflowID == workflowID && version.Graph != nil {
			add(version.Graph.Nodes)
		}
	}

	return ids
}

// foreignNodeID reports the first node of graph whose id is held by any other
// workflow, deleted ones included.
func (s *state) foreignNodeID(workflowID int64, graph *models.Graph) (string, bool) {
	owned := make(map[string]struct{})

	for _, workflow := range s.Workflows {
		if workflow.ID == workflowID {
			continue
		}

		for _, node := range workflow.Nodes {
			owned[node.ID] = struct{}{}
		}
	}

	for _, version := range s.Versions {
		if version.WorkflowID == workflowID || version.Graph == nil {
			continue
		}

		for _, node := range version.Graph.Nodes {
			owned[node.ID] = struct{}{}
		}
	}

	for _, node := range graph.Nodes {
		if _, ok := owned[node.ID]; ok {
			return node.ID, true
		}
	}

	return "", false
}
