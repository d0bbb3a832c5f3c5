// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/flowledger/pkg/persistence"
)

// Validation errors (400 Bad Request). Malformed input, nothing was written.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidSortField  = errors.New("invalid sort field")
	ErrInvalidSortOrder  = errors.New("invalid sort order")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidGraph      = errors.New("invalid graph")
	ErrUnknownNodeType   = errors.New("unknown node type")
	ErrInvalidSettings   = errors.New("invalid node settings")
	ErrInvalidRunContext = errors.New("run context must be a JSON object")
	ErrInvalidLogType    = errors.New("invalid log type")

	ErrDanglingEdge    = persistence.ErrDanglingEdge
	ErrDuplicateNodeID = persistence.ErrDuplicateNode
	ErrNodeIDInUse     = persistence.ErrNodeIDInUse
)

// Precondition errors. The request is well formed but the current state forbids it.
var (
	ErrWorkflowNotPublished = persistence.ErrWorkflowNotPublished // 422
	ErrTerminalOverwrite    = persistence.ErrTerminalOverwrite    // 409
)

// Not found errors (404). Records of other tenants resolve to these too.
var (
	ErrWorkflowNotFound  = persistence.ErrWorkflowNotFound
	ErrVersionNotFound   = persistence.ErrVersionNotFound
	ErrExecutionNotFound = persistence.ErrExecutionNotFound
)

// ErrDispatchFailed means the execution was recorded but could not be handed
// to the queue; it has already been marked failed.
var ErrDispatchFailed = errors.New("failed to dispatch execution")

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidGraph) ||
		errors.Is(err, ErrUnknownNodeType) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrInvalidRunContext) ||
		errors.Is(err, ErrInvalidLogType) ||
		errors.Is(err, ErrDanglingEdge) ||
		errors.Is(err, ErrDuplicateNodeID) ||
		errors.Is(err, ErrNodeIDInUse)
}

// IsPreconditionError reports state-dependent rejections (HTTP 422).
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrWorkflowNotPublished)
}

// IsConflictError checks if an error should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrTerminalOverwrite)
}

// IsNotFoundError reports missing workflows, versions and executions.
func IsNotFoundError(err error) bool {
	return persistence.IsNotFound(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
