package models

// NodeType is the closed set of step kinds a graph may contain.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeCondition NodeType = "condition"
	NodeTypeWebhook   NodeType = "webhook"
	NodeTypeLLM       NodeType = "llm"
	NodeTypeEnd       NodeType = "end"
)

// NodeTypes lists every recognized node type.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeTrigger,
		NodeTypeAction,
		NodeTypeCondition,
		NodeTypeWebhook,
		NodeTypeLLM,
		NodeTypeEnd,
	}
}

// IsValid reports whether t is a recognized node type.
func (t NodeType) IsValid() bool {
	switch t {
	case NodeTypeTrigger, NodeTypeAction, NodeTypeCondition, NodeTypeWebhook, NodeTypeLLM, NodeTypeEnd:
		return true
	default:
		return false
	}
}

// Node is one step in a workflow graph. Its ID is a UUID assigned on first save
// and kept for as long as clients resubmit it.
type Node struct {
	ID         string         `json:"id"                    validate:"omitempty,max=255"`
	WorkflowID int64          `json:"workflow_id,omitempty"`
	Type       NodeType       `json:"type"                  validate:"required"`
	Name       string         `json:"name"                  validate:"required,min=1,max=255"`
	Settings   map[string]any `json:"settings"`
	PositionX  float64        `json:"position_x"`
	PositionY  float64        `json:"position_y"`
}

// Edge is a directed connection between two nodes of the same workflow.
type Edge struct {
	ID           int64          `json:"id,omitempty"`
	WorkflowID   int64          `json:"workflow_id,omitempty"`
	SourceNodeID string         `json:"source_node_id" validate:"required"`
	TargetNodeID string         `json:"target_node_id" validate:"required"`
	Label        *string        `json:"label,omitempty"    validate:"omitempty,max=255"`
	Settings     map[string]any `json:"settings"`
}
