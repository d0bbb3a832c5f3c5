// Package models defines the core domain models for versioned workflow automation graphs.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft     WorkflowStatus = "draft"     // Editable, not executable
	WorkflowStatusPublished WorkflowStatus = "published" // Executable
)

// IsValid reports whether s is a recognized workflow status.
func (s WorkflowStatus) IsValid() bool {
	return s == WorkflowStatusDraft || s == WorkflowStatusPublished
}

// Workflow is a tenant-owned automation definition together with its live graph.
type Workflow struct {
	ID          int64          `json:"id"`
	TenantID    string         `json:"tenant_id"`
	Name        string         `json:"name"        validate:"required,min=1,max=255"`
	Description string         `json:"description"`
	Status      WorkflowStatus `json:"status"`
	Version     int            `json:"version"` // Last published version number, 0 if never published
	CreatedBy   string         `json:"created_by,omitempty"`
	Nodes       []*Node        `json:"nodes"`
	Edges       []*Edge        `json:"edges"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// Graph returns the live graph carried by the workflow.
func (w *Workflow) Graph() *Graph {
	return &Graph{Nodes: w.Nodes, Edges: w.Edges}
}

// IsPublished reports whether the workflow can currently be run.
func (w *Workflow) IsPublished() bool {
	return w.Status == WorkflowStatusPublished
}
