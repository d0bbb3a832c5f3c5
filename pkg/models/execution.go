package models

import "time"

// ExecutionStatus defines the possible states of a workflow run.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsValid reports whether s is a recognized execution status.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case ExecutionStatusPending, ExecutionStatusRunning, ExecutionStatusSucceeded,
		ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are expected from s.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSucceeded || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// Execution is one request to run a published workflow.
type Execution struct {
	ID           int64           `json:"id"`
	WorkflowID   int64           `json:"workflow_id"`
	TenantID     string          `json:"tenant_id"`
	Version      int             `json:"version"` // Workflow version published when the run was requested
	Status       ExecutionStatus `json:"status"`
	StatusReason string          `json:"status_reason,omitempty"`
	Context      map[string]any  `json:"context"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
	HeartbeatAt  *time.Time      `json:"heartbeat_at,omitempty"`
}

// LogType classifies an execution log entry.
type LogType string

const (
	LogTypeInfo    LogType = "info"
	LogTypeSuccess LogType = "success"
	LogTypeWarning LogType = "warning"
	LogTypeError   LogType = "error"
)

// IsValid reports whether t is a recognized log type.
func (t LogType) IsValid() bool {
	switch t {
	case LogTypeInfo, LogTypeSuccess, LogTypeWarning, LogTypeError:
		return true
	default:
		return false
	}
}

// Log is one append-only trace entry of an execution.
type Log struct {
	ID          int64          `json:"id"`
	ExecutionID int64          `json:"execution_id"`
	NodeID      *string        `json:"node_id,omitempty"`
	Type        LogType        `json:"type"`
	Message     string         `json:"message"`
	Data        map[string]any `json:"data,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
