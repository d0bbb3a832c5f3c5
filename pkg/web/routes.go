package web

import "github.com/gofiber/fiber/v3"

// Register mounts the tenant-scoped API on router. Execution writes also
// require executorToken, so only the executor can report progress.
func (h *APIHandlers) Register(router fiber.Router, executorToken string) {
	router.Get("/node-types", h.GetNodeTypes)

	w := router.Group("/workflows", RequireTenant())
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/graph", h.SaveGraph)
	w.Post("/:id/publish", h.PublishWorkflow)
	w.Post("/:id/unpublish", h.UnpublishWorkflow)
	w.Get("/:id/versions", h.ListVersions)
	w.Get("/:id/versions/:version", h.GetVersion)
	w.Post("/:id/versions/:version/rollback", h.RollbackWorkflow)
	w.Post("/:id/run", h.RunWorkflow)
	w.Get("/:id/executions", h.ListExecutions)

	e := router.Group("/executions", RequireTenant())
	e.Get("/:id", h.GetExecution)
	e.Get("/:id/logs", h.GetExecutionLogs)

	// Executor write API
	executor := RequireExecutor(executorToken)
	e.Post("/:id/logs", executor, h.AppendExecutionLog)
	e.Put("/:id/status", executor, h.SetExecutionStatus)
	e.Post("/:id/heartbeat", executor, h.Heartbeat)
}
