package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowledger/pkg/channels/kafka"
	"github.com/dukex/flowledger/pkg/dispatcher"
)

// NewDispatcher builds the queue execution requests are handed to. The API
// only publishes; executors consume in their own processes, so only
// transports that outlive this process are offered. Kafka brokers come from
// KAFKA_BROKERS.
func NewDispatcher(ctx context.Context, provider, redisURL string, logger *slog.Logger) (dispatcher.Dispatcher, error) {
	logger = logger.With("dispatcher", provider)

	switch provider {
	case "kafka":
		pub, err := kafka.CreatePublisher(watermill.NewSlogLogger(logger), kafka.ParseBrokers(os.Getenv("KAFKA_BROKERS")))
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}

		return dispatcher.NewWatermill(provider, pub, nil, logger), nil
	case "redis":
		return dispatcher.NewRedis(ctx, redisURL, dispatcher.DefaultRedisQueue, logger)
	case "none", "":
		return dispatcher.NewNoop(logger), nil
	default:
		return nil, fmt.Errorf("unsupported dispatcher provider: %s", provider)
	}
}
