package dispatcher

import (
	"context"
	"log/slog"

	"github.com/dukex/flowledger/pkg/events"
)

// Noop accepts every request and drops it. Executions stay pending until
// something else picks them up or the lease reaper fails them.
type Noop struct {
	logger *slog.Logger
}

func NewNoop(logger *slog.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) Name() string {
	return "none"
}

func (n *Noop) Dispatch(ctx context.Context, request *events.ExecutionRequested) error {
	n.logger.DebugContext(ctx, "no dispatcher configured, request dropped", "execution_id", request.ExecutionID)

	return nil
}

func (n *Noop) Close() error {
	return nil
}
