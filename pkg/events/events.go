// Package events defines the messages exchanged with the external executor.
package events

import (
	"time"
)

type EventType string

// ExecutionTopic carries execution requests to executors.
const ExecutionTopic = "flowledger.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"
const TenantMetadataKey = "tenant_id"

const (
	ExecutionRequestedEvent EventType = "execution.requested"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// ExecutionRequested asks an executor to run one execution of a published version.
// It carries everything needed to fetch the snapshot; the graph itself is not embedded.
type ExecutionRequested struct {
	BaseEvent

	TenantID    string         `json:"tenant_id"`
	ExecutionID int64          `json:"execution_id"`
	WorkflowID  int64          `json:"workflow_id"`
	Version     int            `json:"version"`
	Context     map[string]any `json:"context,omitempty"`
}

func (e ExecutionRequested) GetType() EventType {
	return ExecutionRequestedEvent
}
