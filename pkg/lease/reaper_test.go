package lease

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/flowledger/pkg/mocks"
	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/dukex/flowledger/pkg/persistence/file"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewReaper_Validation(t *testing.T) {
	repo := &mocks.MockExecutionRepository{}

	_, err := NewReaper(repo, 0, "@every 1m", testLogger())
	require.Error(t, err)

	_, err = NewReaper(repo, time.Minute, "every minute", testLogger())
	require.Error(t, err)

	reaper, err := NewReaper(repo, time.Minute, "*/5 * * * *", testLogger())
	require.NoError(t, err)
	assert.NotNil(t, reaper)
}

func TestReaper_SweepFailsStaleExecutions(t *testing.T) {
	ctx := context.Background()

	store, err := file.NewPersistence(testLogger(), t.TempDir())
	require.NoError(t, err)

	workflow := &models.Workflow{TenantID: "acme", Name: "Leased"}
	require.NoError(t, store.WorkflowRepository().Create(ctx, workflow))

	_, err = store.VersionRepository().Publish(ctx, "acme", workflow.ID)
	require.NoError(t, err)

	executions := store.ExecutionRepository()
	old := time.Now().UTC().Add(-2 * time.Hour)

	stuck := &models.Execution{TenantID: "acme", WorkflowID: workflow.ID, StartedAt: old}
	require.NoError(t, executions.CreateExecution(ctx, stuck))

	healthy := &models.Execution{TenantID: "acme", WorkflowID: workflow.ID, StartedAt: old}
	require.NoError(t, executions.CreateExecution(ctx, healthy))
	require.NoError(t, executions.Heartbeat(ctx, "acme", healthy.ID, time.Now().UTC()))

	reaper, err := NewReaper(executions, time.Hour, "@every 1m", testLogger())
	require.NoError(t, err)

	expired, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	failed, err := executions.GetExecution(ctx, "acme", stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, failed.Status)
	assert.Equal(t, ReasonLeaseExpired, failed.StatusReason)
	assert.NotNil(t, failed.EndedAt)

	logs, err := executions.ListLogs(ctx, "acme", stuck.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogTypeError, logs[0].Type)

	alive, err := executions.GetExecution(ctx, "acme", healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, alive.Status)

	// A second sweep has nothing left to do
	expired, err = reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestReaper_SweepSkipsExecutionsThatReportedBack(t *testing.T) {
	repo := &mocks.MockExecutionRepository{}
	stale := []*models.Execution{{ID: 7, TenantID: "acme", Status: models.ExecutionStatusRunning}}

	repo.On("FindStale", mock.Anything, mock.Anything, defaultBatchSize).Return(stale, nil)
	repo.On("ExpireLease", mock.Anything, int64(7), mock.Anything, mock.MatchedBy(func(update persistence.StatusUpdate) bool {
		return update.Status == models.ExecutionStatusFailed && update.Reason == ReasonLeaseExpired
	})).Return(false, nil)

	reaper, err := NewReaper(repo, time.Minute, "@every 1m", testLogger())
	require.NoError(t, err)

	expired, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "AppendLog", mock.Anything, mock.Anything, mock.Anything)
}

func TestReaper_SweepPropagatesLookupErrors(t *testing.T) {
	repo := &mocks.MockExecutionRepository{}
	repo.On("FindStale", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	reaper, err := NewReaper(repo, time.Minute, "@every 1m", testLogger())
	require.NoError(t, err)

	_, err = reaper.Sweep(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestReaper_StartAndStop(t *testing.T) {
	repo := &mocks.MockExecutionRepository{}
	repo.On("FindStale", mock.Anything, mock.Anything, mock.Anything).Return([]*models.Execution{}, nil).Maybe()

	reaper, err := NewReaper(repo, time.Minute, "@every 1s", testLogger())
	require.NoError(t, err)

	require.NoError(t, reaper.Start(context.Background()))
	reaper.Stop(context.Background())
}

func TestReaper_CronErrorsGoThroughSlog(t *testing.T) {
	var out bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&out, nil)).With("module", "lease_reaper")

	reaper, err := NewReaper(&mocks.MockExecutionRepository{}, time.Minute, "@every 1m", logger)
	require.NoError(t, err)

	job := cron.NewChain(cron.Recover(reaper.cronLogger())).Then(cron.FuncJob(func() {
		panic("sweep exploded")
	}))

	assert.NotPanics(t, job.Run)
	assert.Contains(t, out.String(), "sweep exploded")
	assert.Contains(t, out.String(), "module=lease_reaper")
	assert.Contains(t, out.String(), "level=ERROR")
}
