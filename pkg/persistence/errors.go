// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found for the tenant.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrWorkflowNotPublished indicates an execution was requested for a draft workflow.
	ErrWorkflowNotPublished = errors.New("workflow must be published to run")

	// ErrVersionNotFound indicates the workflow has no version with the given number.
	ErrVersionNotFound = errors.New("version not found")

	// ErrExecutionNotFound indicates an execution was not found for the tenant.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrDanglingEdge indicates an edge references a node outside the stored node set.
	ErrDanglingEdge = errors.New("edge references a node that does not exist in the workflow")

	// ErrDuplicateNode indicates two nodes of a graph share an identifier.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrNodeIDInUse indicates a node id already belongs to another workflow.
	ErrNodeIDInUse = errors.New("node id belongs to another workflow")

	// ErrTerminalOverwrite indicates a terminal status write without an explicit reason.
	ErrTerminalOverwrite = errors.New("execution already reached a terminal status")

	// ErrInvalidSortField indicates an unsupported sort column.
	ErrInvalidSortField = errors.New("invalid sort field")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Publish")
	TenantID   string
	WorkflowID int64
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %d (tenant %s): %v", e.Op, e.WorkflowID, e.TenantID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, tenantID string, workflowID int64, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		TenantID:   tenantID,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// ExecutionError wraps execution-related errors with additional context.
type ExecutionError struct {
	Op          string
	ExecutionID int64
	Err         error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s operation failed for execution %d: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op string, executionID int64, err error) *ExecutionError {
	return &ExecutionError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsVersionNotFound checks if an error indicates a version was not found.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsNotFound reports any of the not-found errors.
func IsNotFound(err error) bool {
	return IsWorkflowNotFound(err) || IsVersionNotFound(err) || IsExecutionNotFound(err)
}
