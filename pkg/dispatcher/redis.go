package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowledger/pkg/events"
	"github.com/dukex/flowledger/pkg/xjson"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisQueue is the list executors pop requests from.
const DefaultRedisQueue = "flowledger:executions"

// Redis appends requests to a Redis list (RPUSH) that executors drain with BLPOP.
type Redis struct {
	client redis.UniversalClient
	queue  string
	logger *slog.Logger
}

// NewRedis connects to redisURL (redis://[user:pass@]host:port/db) and checks the connection.
func NewRedis(ctx context.Context, redisURL, queue string, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB, "queue", queue)

	return NewRedisWithClient(client, queue, logger), nil
}

func NewRedisWithClient(client redis.UniversalClient, queue string, logger *slog.Logger) *Redis {
	if queue == "" {
		queue = DefaultRedisQueue
	}

	return &Redis{client: client, queue: queue, logger: logger}
}

func (r *Redis) Name() string {
	return "redis"
}

func (r *Redis) Dispatch(ctx context.Context, request *events.ExecutionRequested) error {
	prepare(request, watermill.NewULID())

	payload, err := xjson.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal execution request: %w", err)
	}

	err = r.client.RPush(ctx, r.queue, payload).Err()
	if err != nil {
		return fmt.Errorf("failed to push execution request: %w", err)
	}

	return nil
}

// Consume pops requests in a background goroutine until ctx is cancelled.
// A request whose handler fails is pushed back to the tail of the queue.
func (r *Redis) Consume(ctx context.Context, handler Handler) error {
	go func() {
		r.logger.InfoContext(ctx, "Starting queue consumer", "queue", r.queue)

		for {
			select {
			case <-ctx.Done():
				r.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

				return
			default:
				err := r.processMessage(ctx, handler)
				if err != nil && ctx.Err() == nil {
					r.logger.ErrorContext(ctx, "Error processing message", "error", err)
					time.Sleep(1 * time.Second)
				}
			}
		}
	}()

	return nil
}

func (r *Redis) processMessage(ctx context.Context, handler Handler) error {
	result, err := r.client.BLPop(ctx, 1*time.Second, r.queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	var request events.ExecutionRequested

	err = xjson.Unmarshal([]byte(result[1]), &request)
	if err != nil {
		r.logger.ErrorContext(ctx, "dropping malformed execution request", "error", err)

		return nil
	}

	err = handler(handlerContext(ctx, r.logger, &request), &request)
	if err != nil {
		r.logger.WarnContext(ctx, "execution request handler failed, requeueing",
			"execution_id", request.ExecutionID,
			"error", err,
		)

		return r.client.RPush(ctx, r.queue, result[1]).Err()
	}

	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
