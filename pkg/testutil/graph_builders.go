// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"github.com/dukex/flowledger/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Type:      models.NodeTypeAction,
		Name:      "Test Node",
		Settings:  map[string]any{"message": "test"},
		PositionX: 100,
		PositionY: 200,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithTriggerNode configures the node as the graph's entry point.
func WithTriggerNode() func(*models.Node) {
	return func(n *models.Node) {
		n.Type = models.NodeTypeTrigger
		n.Name = "Trigger"
		n.Settings = map[string]any{}
	}
}

// WithWebhook configures the node as a webhook call.
func WithWebhook(url, method string) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = models.NodeTypeWebhook
		n.Settings = map[string]any{"url": url, "method": method}
	}
}

// WithSettings sets the node settings.
func WithSettings(settings map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Settings = settings
	}
}

// WithName sets the node name.
func WithName(name string) func(*models.Node) {
	return func(n *models.Node) {
		n.Name = name
	}
}

// WithPosition sets the node position.
func WithPosition(x, y float64) func(*models.Node) {
	return func(n *models.Node) {
		n.PositionX = x
		n.PositionY = y
	}
}

// WithType sets the node type.
func WithType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithID sets the node ID.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// CreateTestEdge creates an edge between two nodes.
func CreateTestEdge(sourceNodeID, targetNodeID string) *models.Edge {
	return &models.Edge{
		SourceNodeID: sourceNodeID,
		TargetNodeID: targetNodeID,
		Settings:     map[string]any{},
	}
}

// CreateTestGraph creates a trigger -> webhook graph.
func CreateTestGraph() *models.Graph {
	trigger := CreateTestNode(WithTriggerNode(), WithID("trigger-1"))
	notify := CreateTestNode(
		WithID("webhook-1"),
		WithName("Notify"),
		WithWebhook("https://example.com/hook", "POST"),
		WithPosition(300, 200),
	)

	return &models.Graph{
		Nodes: []*models.Node{trigger, notify},
		Edges: []*models.Edge{CreateTestEdge(trigger.ID, notify.ID)},
	}
}

// CreateTestWorkflow creates an unsaved draft workflow for tenantID.
func CreateTestWorkflow(tenantID string) *models.Workflow {
	return &models.Workflow{
		TenantID:    tenantID,
		Name:        "Test Workflow",
		Description: "A workflow for testing",
		Status:      models.WorkflowStatusDraft,
		CreatedBy:   "test-user",
		Nodes:       []*models.Node{},
		Edges:       []*models.Edge{},
	}
}
