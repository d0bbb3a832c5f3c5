package services

import (
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/flowledger/pkg/mocks"
	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/otelhelper"
	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/dukex/flowledger/pkg/persistence/file"
	"github.com/dukex/flowledger/pkg/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testServices struct {
	workflows  *Workflow
	graphs     *Graph
	lifecycle  *Lifecycle
	ledger     *Ledger
	dispatcher *mocks.MockDispatcher
	store      persistence.Persistence
}

func setupServices(t *testing.T) *testServices {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := file.NewPersistence(logger, t.TempDir())
	require.NoError(t, err)

	dispatcher := &mocks.MockDispatcher{}
	dispatcher.On("Name").Return("mock").Maybe()

	tracer := otelhelper.NoopTracer()
	lifecycle := NewLifecycle(store, logger, tracer)

	return &testServices{
		workflows:  NewWorkflow(store, lifecycle, logger),
		graphs:     NewGraph(store, logger, tracer),
		lifecycle:  lifecycle,
		ledger:     NewLedger(store, dispatcher, logger, tracer),
		dispatcher: dispatcher,
		store:      store,
	}
}

func (s *testServices) createWorkflow(t *testing.T, tenantID string) *models.Workflow {
	t.Helper()

	workflow, err := s.workflows.Create(t.Context(), &models.Workflow{TenantID: tenantID, Name: "Order follow-up", CreatedBy: "u-1"})
	require.NoError(t, err)

	return workflow
}

func (s *testServices) expectDispatch() {
	s.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)
}

func webhookGraph() *models.Graph {
	return &models.Graph{
		Nodes: []*models.Node{
			testutil.CreateTestNode(testutil.WithTriggerNode(), testutil.WithID("trigger"), testutil.WithName("New order")),
			testutil.CreateTestNode(testutil.WithID("notify"), testutil.WithName("Notify"), testutil.WithWebhook("https://example.com", "POST")),
		},
		Edges: []*models.Edge{testutil.CreateTestEdge("trigger", "notify")},
	}
}
