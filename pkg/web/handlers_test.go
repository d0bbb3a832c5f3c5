package web_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/dukex/flowledger/pkg/mocks"
	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/otelhelper"
	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/dukex/flowledger/pkg/persistence/file"
	"github.com/dukex/flowledger/pkg/services"
	"github.com/dukex/flowledger/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	tenant        = "acme"
	executorToken = "executor-secret"
)

type testAPI struct {
	app        *fiber.App
	dispatcher *mocks.MockDispatcher
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestApp(t *testing.T) *testAPI {
	t.Helper()

	store, err := file.NewPersistence(testLogger(), t.TempDir())
	require.NoError(t, err)

	return setupTestAppWith(store, testLogger())
}

func setupTestAppWith(store persistence.Persistence, logger *slog.Logger) *testAPI {
	dispatcher := &mocks.MockDispatcher{}
	dispatcher.On("Name").Return("mock").Maybe()

	tracer := otelhelper.NoopTracer()
	lifecycle := services.NewLifecycle(store, logger, tracer)

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(store, lifecycle, logger),
		services.NewGraph(store, logger, tracer),
		lifecycle,
		services.NewLedger(store, dispatcher, logger, tracer),
		validator.New(validator.WithRequiredStructEnabled()),
		logger,
	)

	app := fiber.New()
	handlers.Register(app, executorToken)

	return &testAPI{app: app, dispatcher: dispatcher}
}

func (a *testAPI) do(t *testing.T, method, path, tenantID string, body any) (int, []byte) {
	t.Helper()

	headers := map[string]string{}
	if tenantID != "" {
		headers[web.TenantHeader] = tenantID
	}

	return a.doWithHeaders(t, method, path, headers, body)
}

// executor calls path the way the executor does: tenant header plus bearer token.
func (a *testAPI) executor(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()

	return a.doWithHeaders(t, method, path, map[string]string{
		web.TenantHeader:          tenant,
		fiber.HeaderAuthorization: "Bearer " + executorToken,
	}, body)
}

func (a *testAPI) doWithHeaders(t *testing.T, method, path string, headers map[string]string, body any) (int, []byte) {
	t.Helper()

	var reader io.Reader

	switch typed := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(typed)
	default:
		payload, err := json.Marshal(typed)
		require.NoError(t, err)

		reader = bytes.NewBuffer(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, raw
}

func (a *testAPI) createWorkflow(t *testing.T, tenantID string) int64 {
	t.Helper()

	status, body := a.do(t, http.MethodPost, "/workflows", tenantID, web.CreateWorkflowRequest{Name: "Order follow-up"})
	require.Equal(t, http.StatusCreated, status, string(body))

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))

	return workflow.ID
}

func (a *testAPI) publishedWorkflow(t *testing.T) int64 {
	t.Helper()

	id := a.createWorkflow(t, tenant)

	status, body := a.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/graph", id), tenant, sampleGraph())
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = a.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/publish", id), tenant, nil)
	require.Equal(t, http.StatusOK, status, string(body))

	return id
}

func sampleGraph() web.SaveGraphRequest {
	return web.SaveGraphRequest{
		Nodes: []*models.Node{
			{ID: "trigger", Type: models.NodeTypeTrigger, Name: "New order"},
			{ID: "notify", Type: models.NodeTypeWebhook, Name: "Notify", Settings: map[string]any{"url": "https://example.com"}},
		},
		Edges: []*models.Edge{{SourceNodeID: "trigger", TargetNodeID: "notify"}},
	}
}

func TestAPIHandlers_RequiresTenant(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)

	status, body := api.do(t, http.MethodGet, "/workflows", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), web.TenantHeader)

	status, _ = api.do(t, http.MethodGet, "/executions/1", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "successful creation",
			requestBody:    web.CreateWorkflowRequest{Name: "Test Workflow", Description: "Test Description"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "validation error - missing name",
			requestBody:    web.CreateWorkflowRequest{Description: "Test Description"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "invalid-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := setupTestApp(t)

			status, body := api.do(t, http.MethodPost, "/workflows", tenant, tt.requestBody)
			assert.Equal(t, tt.expectedStatus, status, string(body))

			if status == http.StatusCreated {
				var workflow models.Workflow
				require.NoError(t, json.Unmarshal(body, &workflow))
				assert.Equal(t, tenant, workflow.TenantID)
				assert.Equal(t, models.WorkflowStatusDraft, workflow.Status)
				assert.Equal(t, 0, workflow.Version)
				assert.Empty(t, workflow.Nodes)
				assert.Empty(t, workflow.Edges)
			}
		})
	}
}

func TestAPIHandlers_CrossTenantIsNotFound(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	id := api.publishedWorkflow(t)

	for _, path := range []string{
		fmt.Sprintf("/workflows/%d", id),
		fmt.Sprintf("/workflows/%d/versions", id),
		fmt.Sprintf("/workflows/%d/versions/1", id),
		fmt.Sprintf("/workflows/%d/executions", id),
	} {
		status, _ := api.do(t, http.MethodGet, path, "globex", nil)
		assert.Equal(t, http.StatusNotFound, status, path)
	}

	status, _ := api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/run", id), "globex", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_SaveGraphRejectsDanglingEdge(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	id := api.createWorkflow(t, tenant)

	graph := sampleGraph()
	graph.Edges = append(graph.Edges, &models.Edge{SourceNodeID: "notify", TargetNodeID: "ghost"})

	status, body := api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/graph", id), tenant, graph)
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = api.do(t, http.MethodGet, fmt.Sprintf("/workflows/%d", id), tenant, nil)
	require.Equal(t, http.StatusOK, status)

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Empty(t, workflow.Nodes)
	assert.Empty(t, workflow.Edges)
}

func TestAPIHandlers_PublishVersionsAndRollback(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	id := api.publishedWorkflow(t)

	edited := sampleGraph()
	edited.Nodes[1].Name = "Notify v2"

	status, _ := api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/graph", id), tenant, edited)
	require.Equal(t, http.StatusOK, status)

	status, body := api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/publish", id), tenant, nil)
	require.Equal(t, http.StatusOK, status)

	var published web.PublishResponse
	require.NoError(t, json.Unmarshal(body, &published))
	assert.Equal(t, 2, published.Version)

	status, body = api.do(t, http.MethodGet, fmt.Sprintf("/workflows/%d/versions", id), tenant, nil)
	require.Equal(t, http.StatusOK, status)

	var listed struct {
		Versions []*models.VersionSummary `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed.Versions, 2)
	assert.Equal(t, 2, listed.Versions[0].Number)

	status, _ = api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/versions/1/rollback", id), tenant, nil)
	require.Equal(t, http.StatusOK, status)

	status, body = api.do(t, http.MethodGet, fmt.Sprintf("/workflows/%d", id), tenant, nil)
	require.Equal(t, http.StatusOK, status)

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Equal(t, 2, workflow.Version)
	require.Len(t, workflow.Nodes, 2)

	names := []string{workflow.Nodes[0].Name, workflow.Nodes[1].Name}
	assert.Contains(t, names, "Notify")

	status, _ = api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/versions/9/rollback", id), tenant, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(t, http.MethodGet, fmt.Sprintf("/workflows/%d/versions/zero", id), tenant, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_RunDraftIsRejected(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	id := api.createWorkflow(t, tenant)

	status, body := api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/run", id), tenant, map[string]any{"order": 1})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(body), "published")

	status, body = api.do(t, http.MethodGet, fmt.Sprintf("/workflows/%d/executions", id), tenant, nil)
	require.Equal(t, http.StatusOK, status)

	var listed struct {
		Executions []*models.Execution `json:"executions"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Empty(t, listed.Executions)
	api.dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestAPIHandlers_RunAndExecutorWriteBack(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	api.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)
	id := api.publishedWorkflow(t)

	status, body := api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/run", id), tenant, map[string]any{"order": 42})
	require.Equal(t, http.StatusAccepted, status, string(body))

	var queued web.RunResponse
	require.NoError(t, json.Unmarshal(body, &queued))
	assert.Equal(t, "queued", queued.Status)

	executionPath := fmt.Sprintf("/executions/%d", queued.ExecutionID)

	status, body = api.do(t, http.MethodGet, executionPath, tenant, nil)
	require.Equal(t, http.StatusOK, status)

	var execution models.Execution
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionStatusPending, execution.Status)
	assert.InDelta(t, 42, execution.Context["order"], 0)

	status, _ = api.executor(t, http.MethodPost, executionPath+"/heartbeat", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = api.executor(t, http.MethodPost, executionPath+"/logs", web.AppendLogRequest{Type: models.LogTypeSuccess, Message: "sent"})
	require.Equal(t, http.StatusCreated, status)

	status, _ = api.executor(t, http.MethodPost, executionPath+"/logs", web.AppendLogRequest{Type: "debug", Message: "nope"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.executor(t, http.MethodPut, executionPath+"/status", web.SetStatusRequest{Status: models.ExecutionStatusSucceeded})
	require.Equal(t, http.StatusOK, status)

	status, _ = api.executor(t, http.MethodPut, executionPath+"/status", web.SetStatusRequest{Status: models.ExecutionStatusFailed})
	assert.Equal(t, http.StatusConflict, status)

	status, body = api.do(t, http.MethodGet, executionPath, tenant, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionStatusSucceeded, execution.Status)
	assert.NotNil(t, execution.EndedAt)

	status, body = api.do(t, http.MethodGet, executionPath+"/logs", tenant, nil)
	require.Equal(t, http.StatusOK, status)

	var logs struct {
		Logs []*models.Log `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(body, &logs))
	require.Len(t, logs.Logs, 1)
	assert.Equal(t, models.LogTypeSuccess, logs.Logs[0].Type)

	status, _ = api.do(t, http.MethodGet, executionPath, "globex", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_RunRejectsNonObjectContext(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	id := api.publishedWorkflow(t)

	status, _ := api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/run", id), tenant, "[1,2]")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/run", id), tenant, "{oops")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_RunDispatchFailure(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	api.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))
	id := api.publishedWorkflow(t)

	status, body := api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/run", id), tenant, nil)
	assert.Equal(t, http.StatusServiceUnavailable, status, string(body))

	status, body = api.do(t, http.MethodGet, fmt.Sprintf("/workflows/%d/executions", id), tenant, nil)
	require.Equal(t, http.StatusOK, status)

	var listed struct {
		Executions []*models.Execution `json:"executions"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed.Executions, 1)
	assert.Equal(t, models.ExecutionStatusFailed, listed.Executions[0].Status)
	assert.Equal(t, services.ReasonDispatchFailed, listed.Executions[0].StatusReason)
}

func TestAPIHandlers_UpdateStatusPublishesAndUnpublishes(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	id := api.createWorkflow(t, tenant)
	path := fmt.Sprintf("/workflows/%d", id)

	published := models.WorkflowStatusPublished
	status, body := api.do(t, http.MethodPut, path, tenant, web.UpdateWorkflowRequest{Status: &published})
	require.Equal(t, http.StatusOK, status, string(body))

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Equal(t, models.WorkflowStatusPublished, workflow.Status)
	assert.Equal(t, 1, workflow.Version)

	status, body = api.do(t, http.MethodPost, path+"/unpublish", tenant, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Equal(t, models.WorkflowStatusDraft, workflow.Status)
	assert.Equal(t, 1, workflow.Version)

	bogus := models.WorkflowStatus("archived")
	status, _ = api.do(t, http.MethodPut, path, tenant, web.UpdateWorkflowRequest{Status: &bogus})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_ListAndDelete(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	first := api.createWorkflow(t, tenant)
	api.createWorkflow(t, tenant)
	api.createWorkflow(t, "globex")

	status, body := api.do(t, http.MethodGet, "/workflows?limit=1&sort_by=created_at&sort_order=asc", tenant, nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var listed struct {
		Workflows   []*models.Workflow `json:"workflows"`
		TotalCount  int64              `json:"total_count"`
		HasNextPage bool               `json:"has_next_page"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	assert.Len(t, listed.Workflows, 1)
	assert.Equal(t, int64(2), listed.TotalCount)
	assert.True(t, listed.HasNextPage)

	status, _ = api.do(t, http.MethodGet, "/workflows?sort_by=password", tenant, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodGet, "/workflows?limit=abc", tenant, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.do(t, http.MethodDelete, fmt.Sprintf("/workflows/%d", first), tenant, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = api.do(t, http.MethodGet, fmt.Sprintf("/workflows/%d", first), tenant, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAPIHandlers_GetNodeTypes(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)

	status, body := api.do(t, http.MethodGet, "/node-types", "", nil)
	require.Equal(t, http.StatusOK, status)

	var catalog struct {
		NodeTypes []models.NodeTypeInfo `json:"node_types"`
	}
	require.NoError(t, json.Unmarshal(body, &catalog))
	assert.Len(t, catalog.NodeTypes, len(models.NodeTypes()))
}

func TestAPIHandlers_ExecutorWritesRequireToken(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	api.dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)
	id := api.publishedWorkflow(t)

	status, body := api.do(t, http.MethodPost, fmt.Sprintf("/workflows/%d/run", id), tenant, nil)
	require.Equal(t, http.StatusAccepted, status, string(body))

	var queued web.RunResponse
	require.NoError(t, json.Unmarshal(body, &queued))

	executionPath := fmt.Sprintf("/executions/%d", queued.ExecutionID)

	writes := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPut, executionPath + "/status", web.SetStatusRequest{Status: models.ExecutionStatusSucceeded}},
		{http.MethodPost, executionPath + "/logs", web.AppendLogRequest{Type: models.LogTypeInfo, Message: "forged"}},
		{http.MethodPost, executionPath + "/heartbeat", nil},
	}

	for _, write := range writes {
		// A tenant user knows the tenant id but not the executor token
		status, body := api.do(t, write.method, write.path, tenant, write.body)
		assert.Equal(t, http.StatusUnauthorized, status, write.path)
		assert.Contains(t, string(body), "executor credentials")

		status, _ = api.doWithHeaders(t, write.method, write.path, map[string]string{
			web.TenantHeader:          tenant,
			fiber.HeaderAuthorization: "Bearer guessed",
		}, write.body)
		assert.Equal(t, http.StatusUnauthorized, status, write.path)
	}

	status, body = api.do(t, http.MethodGet, executionPath, tenant, nil)
	require.Equal(t, http.StatusOK, status)

	var execution models.Execution
	require.NoError(t, json.Unmarshal(body, &execution))
	assert.Equal(t, models.ExecutionStatusPending, execution.Status)

	status, body = api.do(t, http.MethodGet, executionPath+"/logs", tenant, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), "forged")
}

func TestAPIHandlers_ExecutorWritesClosedWithoutToken(t *testing.T) {
	t.Parallel()

	store, err := file.NewPersistence(testLogger(), t.TempDir())
	require.NoError(t, err)

	lifecycle := services.NewLifecycle(store, testLogger(), otelhelper.NoopTracer())
	handlers := web.NewAPIHandlers(
		services.NewWorkflow(store, lifecycle, testLogger()),
		services.NewGraph(store, testLogger(), otelhelper.NoopTracer()),
		lifecycle,
		services.NewLedger(store, &mocks.MockDispatcher{}, testLogger(), otelhelper.NoopTracer()),
		validator.New(),
		testLogger(),
	)

	app := fiber.New()
	handlers.Register(app, "")
	api := &testAPI{app: app}

	status, _ := api.doWithHeaders(t, http.MethodPost, "/executions/1/heartbeat", map[string]string{
		web.TenantHeader:          tenant,
		fiber.HeaderAuthorization: "Bearer ",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPIHandlers_TenantHeaderLength(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)

	status, body := api.do(t, http.MethodGet, "/workflows", strings.Repeat("t", 256), nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "255")

	status, _ = api.do(t, http.MethodGet, "/workflows", strings.Repeat("t", 255), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPIHandlers_CreateWorkflowRecordsCreator(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)

	status, body := api.doWithHeaders(t, http.MethodPost, "/workflows", map[string]string{
		web.TenantHeader: tenant,
		web.UserHeader:   "u-42",
	}, web.CreateWorkflowRequest{Name: "Owned"})
	require.Equal(t, http.StatusCreated, status, string(body))

	var workflow models.Workflow
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Equal(t, "u-42", workflow.CreatedBy)

	status, body = api.do(t, http.MethodGet, fmt.Sprintf("/workflows/%d", workflow.ID), tenant, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &workflow))
	assert.Equal(t, "u-42", workflow.CreatedBy)

	status, _ = api.doWithHeaders(t, http.MethodPost, "/workflows", map[string]string{
		web.TenantHeader: tenant,
		web.UserHeader:   strings.Repeat("u", 256),
	}, web.CreateWorkflowRequest{Name: "Too long"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIHandlers_SaveGraphRejectsOverlongFields(t *testing.T) {
	t.Parallel()

	api := setupTestApp(t)
	id := api.createWorkflow(t, tenant)
	path := fmt.Sprintf("/workflows/%d/graph", id)

	longID := sampleGraph()
	longID.Nodes[0].ID = strings.Repeat("n", 256)
	longID.Edges[0].SourceNodeID = longID.Nodes[0].ID

	// An id the workflow does not own is replaced, so it never reaches the store
	status, body := api.do(t, http.MethodPost, path, tenant, longID)
	require.Equal(t, http.StatusOK, status, string(body))

	var saved models.Graph
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.Len(t, saved.Nodes[0].ID, 36)

	label := strings.Repeat("l", 256)
	longLabel := sampleGraph()
	longLabel.Edges[0].Label = &label

	status, body = api.do(t, http.MethodPost, path, tenant, longLabel)
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	label = strings.Repeat("l", 255)

	status, body = api.do(t, http.MethodPost, path, tenant, longLabel)
	assert.Equal(t, http.StatusOK, status, string(body))
}

func TestAPIHandlers_UnexpectedErrorsAreLoggedNotLeaked(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer

	executions := &mocks.MockExecutionRepository{}
	executions.On("GetExecution", mock.Anything, tenant, int64(7)).
		Return(nil, errors.New(`pq: relation "executions" does not exist`))

	api := setupTestAppWith(&mocks.MockPersistence{Executions: executions}, slog.New(slog.NewTextHandler(&logs, nil)))

	status, body := api.do(t, http.MethodGet, "/executions/7", tenant, nil)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, string(body), "internal server error")
	assert.NotContains(t, string(body), "pq:")

	assert.Contains(t, logs.String(), "request failed")
	assert.Contains(t, logs.String(), `relation \"executions\" does not exist`)
	executions.AssertExpectations(t)
}
