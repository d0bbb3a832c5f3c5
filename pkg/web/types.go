// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"time"

	"github.com/dukex/flowledger/pkg/models"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string `json:"name"        validate:"required,min=1,max=255"`
	Description string `json:"description"`
}

// UpdateWorkflowRequest represents the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name        *string                `json:"name,omitempty"        validate:"omitempty,min=1,max=255"`
	Description *string                `json:"description,omitempty"`
	Status      *models.WorkflowStatus `json:"status,omitempty"      validate:"omitempty,oneof=draft published"`
}

// SaveGraphRequest is the complete node and edge set of a workflow.
type SaveGraphRequest struct {
	Nodes []*models.Node `json:"nodes"`
	Edges []*models.Edge `json:"edges"`
}

// PublishResponse reports the version created by a publish.
type PublishResponse struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// RunResponse is returned as soon as an execution has been queued.
type RunResponse struct {
	ExecutionID int64  `json:"execution_id"`
	Status      string `json:"status"`
}

// AppendLogRequest is one log entry sent by an executor.
type AppendLogRequest struct {
	NodeID  *string        `json:"node_id,omitempty"`
	Type    models.LogType `json:"type"              validate:"required,oneof=info success warning error"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// SetStatusRequest is an executor status change.
type SetStatusRequest struct {
	Status models.ExecutionStatus `json:"status"           validate:"required,oneof=pending running succeeded failed cancelled"`
	Reason string                 `json:"reason,omitempty"`
}
