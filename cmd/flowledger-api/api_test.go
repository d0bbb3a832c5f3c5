package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowledger/pkg/channels/gochannel"
	"github.com/dukex/flowledger/pkg/dispatcher"
	"github.com/dukex/flowledger/pkg/events"
	"github.com/dukex/flowledger/pkg/otelhelper"
	"github.com/dukex/flowledger/pkg/persistence/file"
	"github.com/dukex/flowledger/pkg/web"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *dispatcher.Watermill) {
	t.Helper()

	store, err := file.NewPersistence(slog.Default(), t.TempDir())
	require.NoError(t, err)

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	queue := dispatcher.NewWatermill("gochannel", pub, sub, slog.Default())
	t.Cleanup(func() { _ = queue.Close() })

	return NewAPI(slog.Default(), store, queue, otelhelper.NoopTracer(), "executor-secret").App(), queue
}

func request(t *testing.T, app *fiber.App, method, path, body string) (int, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(web.TenantHeader, "acme")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(raw)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := request(t, app, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Flowledger API", body)
}

func TestAPI_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	status, body := request(t, app, http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	status, _ = request(t, app, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, status)

	status, body = request(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "healthy")
}

func TestAPI_RunIsDeliveredToConsumer(t *testing.T) {
	app, queue := setupTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.ExecutionRequested, 1)
	require.NoError(t, queue.Consume(ctx, func(_ context.Context, request *events.ExecutionRequested) error {
		received <- request

		return nil
	}))

	status, body := request(t, app, http.MethodPost, "/workflows", `{"name":"Nightly sync"}`)
	require.Equal(t, http.StatusCreated, status, body)

	var workflow struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &workflow))

	base := "/workflows/" + strconv.FormatInt(workflow.ID, 10)

	status, body = request(t, app, http.MethodPost, base+"/graph",
		`{"nodes":[{"id":"start","type":"trigger","name":"Start"}],"edges":[]}`)
	require.Equal(t, http.StatusOK, status, body)

	status, body = request(t, app, http.MethodPost, base+"/publish", "")
	require.Equal(t, http.StatusOK, status, body)

	status, body = request(t, app, http.MethodPost, base+"/run", `{"customer":"c-1"}`)
	require.Equal(t, http.StatusAccepted, status, body)

	var queued web.RunResponse
	require.NoError(t, json.Unmarshal([]byte(body), &queued))

	select {
	case got := <-received:
		assert.Equal(t, queued.ExecutionID, got.ExecutionID)
		assert.Equal(t, "acme", got.TenantID)
		assert.Equal(t, 1, got.Version)
		assert.Equal(t, "c-1", got.Context["customer"])
	case <-time.After(5 * time.Second):
		t.Fatal("execution request was not delivered")
	}
}
