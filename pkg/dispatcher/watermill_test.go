package dispatcher_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flowledger/pkg/channels/gochannel"
	"github.com/dukex/flowledger/pkg/dispatcher"
	"github.com/dukex/flowledger/pkg/events"
	"github.com/dukex/flowledger/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatermill_DispatchAndConsume(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{}, 0)
	require.NoError(t, err)

	d := dispatcher.NewWatermill("gochannel", pub, sub, testLogger())
	defer func() { _ = d.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.ExecutionRequested, 1)
	scoped := make(chan bool, 1)

	err = d.Consume(ctx, func(handlerCtx context.Context, request *events.ExecutionRequested) error {
		scoped <- log.FromContext(handlerCtx, nil) != nil
		received <- request

		return nil
	})
	require.NoError(t, err)

	request := &events.ExecutionRequested{
		TenantID:    "acme",
		ExecutionID: 42,
		WorkflowID:  7,
		Version:     3,
		Context:     map[string]any{"order": "o-1"},
	}
	require.NoError(t, d.Dispatch(ctx, request))
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, events.ExecutionRequestedEvent, request.Type)

	select {
	case got := <-received:
		assert.Equal(t, int64(42), got.ExecutionID)
		assert.Equal(t, int64(7), got.WorkflowID)
		assert.Equal(t, 3, got.Version)
		assert.Equal(t, "acme", got.TenantID)
		assert.Equal(t, "o-1", got.Context["order"])
		assert.True(t, <-scoped, "handler context carries a request-scoped logger")
	case <-time.After(5 * time.Second):
		t.Fatal("execution request was not consumed")
	}
}

func TestWatermill_DispatchSetsMetadata(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := sub.Subscribe(ctx, events.ExecutionTopic)
	require.NoError(t, err)

	d := dispatcher.NewWatermill("gochannel", pub, sub, testLogger())

	go func() {
		_ = d.Dispatch(ctx, &events.ExecutionRequested{TenantID: "acme", ExecutionID: 5, WorkflowID: 1, Version: 1})
	}()

	var msg *message.Message

	select {
	case msg = <-messages:
	case <-time.After(5 * time.Second):
		t.Fatal("no message published")
	}

	msg.Ack()

	assert.Equal(t, "5", msg.Metadata.Get(events.EventMetadataKey))
	assert.Equal(t, string(events.ExecutionRequestedEvent), msg.Metadata.Get(events.EventTypeMetadataKey))
	assert.Equal(t, "acme", msg.Metadata.Get(events.TenantMetadataKey))
}

func TestWatermill_HandlerErrorRedelivers(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{}, 0)
	require.NoError(t, err)

	d := dispatcher.NewWatermill("gochannel", pub, sub, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var attempts atomic.Int32

	done := make(chan struct{})

	err = d.Consume(ctx, func(_ context.Context, _ *events.ExecutionRequested) error {
		if attempts.Add(1) == 1 {
			return errors.New("executor busy")
		}

		close(done)

		return nil
	})
	require.NoError(t, err)

	require.NoError(t, d.Dispatch(ctx, &events.ExecutionRequested{TenantID: "acme", ExecutionID: 1}))

	select {
	case <-done:
		assert.Equal(t, int32(2), attempts.Load())
	case <-time.After(5 * time.Second):
		t.Fatal("request was not redelivered after nack")
	}
}

func TestNoop_Dispatch(t *testing.T) {
	d := dispatcher.NewNoop(testLogger())

	assert.Equal(t, "none", d.Name())
	assert.NoError(t, d.Dispatch(context.Background(), &events.ExecutionRequested{ExecutionID: 1}))
	assert.NoError(t, d.Close())
}

func TestWatermill_PublishOnly(t *testing.T) {
	pub, _, err := gochannel.CreateChannel(watermill.NopLogger{}, 0)
	require.NoError(t, err)

	d := dispatcher.NewWatermill("kafka", pub, nil, testLogger())

	err = d.Consume(context.Background(), func(context.Context, *events.ExecutionRequested) error { return nil })
	assert.ErrorIs(t, err, dispatcher.ErrDispatcherClosed)
	assert.NoError(t, d.Close())
}
