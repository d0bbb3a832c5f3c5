package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flowledger/pkg/events"
	"github.com/dukex/flowledger/pkg/xjson"
)

// Watermill publishes requests on events.ExecutionTopic through any watermill
// publisher (Kafka or in-process gochannel).
type Watermill struct {
	name       string
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger
}

func NewWatermill(name string, pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *Watermill {
	return &Watermill{
		name:       name,
		publisher:  pub,
		subscriber: sub,
		logger:     logger,
	}
}

func (w *Watermill) Name() string {
	return w.name
}

func (w *Watermill) GenerateID() string {
	return watermill.NewULID()
}

// Dispatch publishes the request with the execution id under
// events.EventMetadataKey. The Kafka channel's marshaler turns it into the
// message key.
func (w *Watermill) Dispatch(ctx context.Context, request *events.ExecutionRequested) error {
	prepare(request, w.GenerateID())

	payload, err := xjson.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal execution request: %w", err)
	}

	msg := message.NewMessage("msg-"+request.ID, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(events.EventMetadataKey, fmt.Sprintf("%d", request.ExecutionID))
	msg.Metadata.Set(events.EventTypeMetadataKey, string(request.GetType()))
	msg.Metadata.Set(events.TenantMetadataKey, request.TenantID)

	err = w.publisher.Publish(events.ExecutionTopic, msg)
	if err != nil {
		return fmt.Errorf("failed to publish execution request: %w", err)
	}

	w.logger.DebugContext(ctx, "execution request published",
		"execution_id", request.ExecutionID,
		"message_id", msg.UUID,
	)

	return nil
}

// Consume subscribes to the execution topic and feeds requests to handler in
// a background goroutine until ctx is cancelled.
func (w *Watermill) Consume(ctx context.Context, handler Handler) error {
	if w.subscriber == nil {
		return ErrDispatcherClosed
	}

	messages, err := w.subscriber.Subscribe(ctx, events.ExecutionTopic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.ExecutionTopic, err)
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))
			if eventType != events.ExecutionRequestedEvent {
				msg.Ack()

				continue
			}

			var request events.ExecutionRequested

			err := xjson.Unmarshal(msg.Payload, &request)
			if err != nil {
				w.logger.ErrorContext(ctx, "dropping malformed execution request", "message_id", msg.UUID, "error", err)
				msg.Ack()

				continue
			}

			err = handler(handlerContext(ctx, w.logger, &request), &request)
			if err != nil {
				w.logger.WarnContext(ctx, "execution request handler failed",
					"execution_id", request.ExecutionID,
					"error", err,
				)
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func (w *Watermill) Close() error {
	err := w.publisher.Close()
	if err != nil {
		return err
	}

	if w.subscriber == nil {
		return nil
	}

	return w.subscriber.Close()
}

func prepare(request *events.ExecutionRequested, id string) {
	if request.ID == "" {
		request.ID = id
	}

	request.Type = events.ExecutionRequestedEvent

	if request.Timestamp.IsZero() {
		request.Timestamp = time.Now().UTC()
	}
}
