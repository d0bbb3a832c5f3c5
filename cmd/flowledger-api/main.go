package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukex/flowledger/pkg/cmd"
	"github.com/dukex/flowledger/pkg/lease"
	"github.com/dukex/flowledger/pkg/log"
	"github.com/dukex/flowledger/pkg/otelhelper"
	"github.com/dukex/flowledger/pkg/persistence"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	cmd := &cli.Command{
		Name:                  "flowledger-api",
		Usage:                 "Edit, version and run workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (postgres://... or file://dir)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "dispatcher",
				Usage:   "Queue executions are handed to (kafka, redis, none)",
				Value:   "none",
				Sources: cli.EnvVars("DISPATCHER"),
			},
			&cli.StringFlag{
				Name:    "executor-token",
				Usage:   "Bearer token the executor sends to write execution logs, status and heartbeats",
				Sources: cli.EnvVars("EXECUTOR_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the redis dispatcher",
				Value:   "redis://localhost:6379/0",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.DurationFlag{
				Name:    "lease-ttl",
				Usage:   "Fail pending or running executions without a heartbeat for this long (0 disables)",
				Value:   0,
				Sources: cli.EnvVars("LEASE_TTL"),
			},
			&cli.StringFlag{
				Name:    "lease-sweep",
				Usage:   "Cron schedule of the lease sweep",
				Value:   "@every 1m",
				Sources: cli.EnvVars("LEASE_SWEEP"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Run(ctx, os.Args)
	if err != nil {
		panic(err)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")
	logger.InfoContext(ctx, "Initializing Flowledger API")

	tracer := otelhelper.NoopTracer()

	if command.Bool("tracing") {
		var (
			shutdown otelhelper.ShutdownFunc
			err      error
		)

		tracer, shutdown, err = otelhelper.NewTracer(ctx, "flowledger-api")
		if err != nil {
			return err
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.ErrorContext(ctx, "Failed to flush traces", "error", err)
			}
		}()
	}

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		err := store.Close(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	dispatcher, err := cmd.NewDispatcher(ctx, command.String("dispatcher"), command.String("redis-url"), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close dispatcher", "error", err)
		}
	}()

	executorToken := command.String("executor-token")
	if executorToken == "" {
		logger.WarnContext(ctx, "No executor token configured, execution write endpoints will refuse every request")
	}

	reaper, err := startReaper(ctx, command.Duration("lease-ttl"), command.String("lease-sweep"), store)
	if err != nil {
		return err
	}

	if reaper != nil {
		defer reaper.Stop(ctx)
	}

	return NewAPI(logger, store, dispatcher, tracer, executorToken).Start(ctx, command.Int("port"))
}

// startReaper returns nil when leases are disabled.
func startReaper(ctx context.Context, ttl time.Duration, schedule string, store persistence.Persistence) (*lease.Reaper, error) {
	if ttl == 0 {
		return nil, nil
	}

	reaper, err := lease.NewReaper(store.ExecutionRepository(), ttl, schedule, log.WithModule("lease_reaper"))
	if err != nil {
		return nil, err
	}

	return reaper, reaper.Start(ctx)
}
