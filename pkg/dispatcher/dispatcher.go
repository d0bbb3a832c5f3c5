// Package dispatcher hands execution requests to external executors without
// waiting for them to run.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/flowledger/pkg/events"
	"github.com/dukex/flowledger/pkg/log"
)

var ErrDispatcherClosed = errors.New("dispatcher is closed")

// Dispatcher enqueues a request and returns as soon as the transport accepted it.
type Dispatcher interface {
	Dispatch(ctx context.Context, request *events.ExecutionRequested) error
	Name() string
	Close() error
}

// Handler processes one request on the executor side. Returning an error
// leaves the request available for redelivery. log.FromContext yields a
// logger already scoped to the request.
type Handler func(ctx context.Context, request *events.ExecutionRequested) error

// Consumer is implemented by dispatchers whose transport can be read back by an executor.
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
}

func handlerContext(ctx context.Context, logger *slog.Logger, request *events.ExecutionRequested) context.Context {
	return log.WithLogger(ctx, logger.With(
		"tenant_id", request.TenantID,
		"execution_id", request.ExecutionID,
		"workflow_id", request.WorkflowID,
	))
}
