// Package main provides the Flowledger API server implementation.
package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/flowledger/pkg/dispatcher"
	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/dukex/flowledger/pkg/services"
	"github.com/dukex/flowledger/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger        *slog.Logger
	persistence   persistence.Persistence
	dispatcher    dispatcher.Dispatcher
	tracer        trace.Tracer
	validate      *validator.Validate
	executorToken string
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	dispatcher dispatcher.Dispatcher,
	tracer trace.Tracer,
	executorToken string,
) *API {
	return &API{
		persistence:   persistence,
		logger:        logger,
		dispatcher:    dispatcher,
		tracer:        tracer,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		executorToken: executorToken,
	}
}

func (a *API) App() *fiber.App {
	lifecycleService := services.NewLifecycle(a.persistence, a.logger, a.tracer)
	workflowService := services.NewWorkflow(a.persistence, lifecycleService, a.logger)
	graphService := services.NewGraph(a.persistence, a.logger, a.tracer)
	ledgerService := services.NewLedger(a.persistence, a.dispatcher, a.logger, a.tracer)

	handlers := web.NewAPIHandlers(workflowService, graphService, lifecycleService, ledgerService, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			_, ok := workflowService.HealthCheck(c.Context())

			return ok
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowledger API")
	})

	app.Get("/health", handlers.HealthCheck)

	handlers.Register(app, a.executorToken)

	return app
}

// Start serves until ctx is cancelled, then shuts the server down.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()

	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":" + strconv.Itoa(port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		a.logger.InfoContext(ctx, "Shutting down API server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		err := app.ShutdownWithContext(shutdownCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	}
}
