// Package lease fails executions whose executor stopped reporting.
package lease

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/robfig/cron/v3"
)

// ReasonLeaseExpired is recorded on executions failed by the reaper.
const ReasonLeaseExpired = "lease expired"

const defaultBatchSize = 100

// Reaper periodically marks pending or running executions failed when their
// last heartbeat (or start, if they never sent one) is older than the TTL.
type Reaper struct {
	executions persistence.ExecutionRepository
	ttl        time.Duration
	schedule   string
	batchSize  int
	logger     *slog.Logger
	cron       *cron.Cron
	cancel     context.CancelFunc
	now        func() time.Time
}

// NewReaper validates schedule (standard cron or a descriptor such as "@every 1m").
// logger is used as given; callers scope it, for example with log.WithModule.
func NewReaper(executions persistence.ExecutionRepository, ttl time.Duration, schedule string, logger *slog.Logger) (*Reaper, error) {
	if ttl <= 0 {
		return nil, errors.New("lease ttl must be positive")
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule '%s': %w", schedule, err)
	}

	return &Reaper{
		executions: executions,
		ttl:        ttl,
		schedule:   schedule,
		batchSize:  defaultBatchSize,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start schedules sweeps until Stop is called or ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	ctx, r.cancel = context.WithCancel(ctx)

	cronLogger := r.cronLogger()

	r.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		),
	)

	_, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.Sweep(ctx); err != nil {
			r.logger.ErrorContext(ctx, "lease sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule lease sweep: %w", err)
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "Lease reaper started", "ttl", r.ttl, "schedule", r.schedule)

	return nil
}

// cronLogger routes cron's own errors, such as recovered panics, into the reaper's slog handler.
func (r *Reaper) cronLogger() cron.Logger {
	return cron.PrintfLogger(slog.NewLogLogger(r.logger.Handler(), slog.LevelError))
}

// Stop waits for a running sweep to finish.
func (r *Reaper) Stop(ctx context.Context) {
	if r.cancel != nil {
		r.cancel()
	}

	if r.cron != nil {
		<-r.cron.Stop().Done()
		r.logger.InfoContext(ctx, "Lease reaper stopped")
	}
}

// Sweep fails every stale execution found and returns how many it failed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	before := now.Add(-r.ttl)

	stale, err := r.executions.FindStale(ctx, before, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale executions: %w", err)
	}

	expired := 0

	for _, execution := range stale {
		ok, err := r.executions.ExpireLease(ctx, execution.ID, before, persistence.StatusUpdate{
			Status: models.ExecutionStatusFailed,
			Reason: ReasonLeaseExpired,
			At:     now,
		})
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to expire execution", "execution_id", execution.ID, "error", err)

			continue
		}

		if !ok {
			continue
		}

		expired++

		err = r.executions.AppendLog(ctx, execution.TenantID, &models.Log{
			ExecutionID: execution.ID,
			Type:        models.LogTypeError,
			Message:     ReasonLeaseExpired,
			Data:        map[string]any{"ttl": r.ttl.String(), "previous_status": string(execution.Status)},
		})
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to log lease expiry", "execution_id", execution.ID, "error", err)
		}

		r.logger.WarnContext(ctx, "execution lease expired",
			"tenant_id", execution.TenantID,
			"execution_id", execution.ID,
			"previous_status", execution.Status,
		)
	}

	return expired, nil
}
