// Package web provides HTTP handlers and REST API endpoints for workflow management.
package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/flowledger/pkg/models"
	"github.com/dukex/flowledger/pkg/persistence"
	"github.com/dukex/flowledger/pkg/services"
	"github.com/dukex/flowledger/pkg/xjson"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	graphService     *services.Graph
	lifecycleService *services.Lifecycle
	ledgerService    *services.Ledger
	validator        *validator.Validate
	logger           *slog.Logger
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	graphService *services.Graph,
	lifecycleService *services.Lifecycle,
	ledgerService *services.Ledger,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		graphService:     graphService,
		lifecycleService: lifecycleService,
		ledgerService:    ledgerService,
		validator:        validator,
		logger:           logger,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := h.parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
// Range and allowlist checks happen in the service.
func (h *APIHandlers) parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{TenantID: tenantOf(c)}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		req.Status = &status
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid workflow ID")
	}

	workflow, err := h.workflowService.FetchByID(c.Context(), tenantOf(c), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Flowledger API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Flowledger API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// GetNodeTypes lists the node types a graph may use and their settings schemas.
func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"node_types": services.NodeTypes()})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	createdBy, ok := userOf(c)
	if !ok {
		return badRequest(c, UserHeader+" header must be at most 255 characters")
	}

	workflow := &models.Workflow{
		TenantID:    tenantOf(c),
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   createdBy,
	}

	created, err := h.workflowService.Create(c.Context(), workflow)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid workflow ID")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Update(c.Context(), tenantOf(c), id, services.UpdateWorkflowRequest{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid workflow ID")
	}

	err = h.workflowService.Delete(c.Context(), tenantOf(c), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SaveGraph(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid workflow ID")
	}

	var req SaveGraphRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	saved, err := h.graphService.SaveGraph(c.Context(), tenantOf(c), id, &models.Graph{
		Nodes: req.Nodes,
		Edges: req.Edges,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(saved)
}

func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid workflow ID")
	}

	version, err := h.lifecycleService.Publish(c.Context(), tenantOf(c), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(PublishResponse{Version: version.Number, CreatedAt: version.CreatedAt})
}

func (h *APIHandlers) UnpublishWorkflow(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid workflow ID")
	}

	workflow, err := h.lifecycleService.Unpublish(c.Context(), tenantOf(c), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) ListVersions(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid workflow ID")
	}

	versions, err := h.lifecycleService.ListVersions(c.Context(), tenantOf(c), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"versions": versions})
}

func (h *APIHandlers) GetVersion(c fiber.Ctx) error {
	id, number, err := versionParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	version, err := h.lifecycleService.GetVersion(c.Context(), tenantOf(c), id, number)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(version)
}

func (h *APIHandlers) RollbackWorkflow(c fiber.Ctx) error {
	id, number, err := versionParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	graph, err := h.lifecycleService.Rollback(c.Context(), tenantOf(c), id, number)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(graph)
}

// RunWorkflow takes the whole request body as the run context. An empty body
// runs with an empty context.
func (h *APIHandlers) RunWorkflow(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid workflow ID")
	}

	var runContext any
	if body := c.Body(); len(body) > 0 {
		if err := xjson.Unmarshal(body, &runContext); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	execution, err := h.ledgerService.Run(c.Context(), tenantOf(c), id, runContext)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(RunResponse{
		ExecutionID: execution.ID,
		Status:      "queued",
	})
}

func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid workflow ID")
	}

	limit, offset, err := pageParams(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	executions, err := h.ledgerService.ListExecutions(c.Context(), tenantOf(c), id, limit, offset)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"pagination": fiber.Map{
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid execution ID")
	}

	execution, err := h.ledgerService.GetExecution(c.Context(), tenantOf(c), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetExecutionLogs(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid execution ID")
	}

	logs, err := h.ledgerService.GetLogs(c.Context(), tenantOf(c), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"logs": logs})
}

func (h *APIHandlers) AppendExecutionLog(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid execution ID")
	}

	var req AppendLogRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	entry, err := h.ledgerService.AppendLog(c.Context(), tenantOf(c), id, &models.Log{
		NodeID:  req.NodeID,
		Type:    req.Type,
		Message: req.Message,
		Data:    req.Data,
	})
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(entry)
}

func (h *APIHandlers) SetExecutionStatus(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid execution ID")
	}

	var req SetStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.ledgerService.SetStatus(c.Context(), tenantOf(c), id, req.Status, req.Reason)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) Heartbeat(c fiber.Ctx) error {
	id, err := int64Param(c, "id")
	if err != nil {
		return badRequest(c, "Invalid execution ID")
	}

	err = h.ledgerService.Heartbeat(c.Context(), tenantOf(c), id)
	if err != nil {
		return h.handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func int64Param(c fiber.Ctx, name string) (int64, error) {
	return strconv.ParseInt(c.Params(name), 10, 64)
}

func versionParams(c fiber.Ctx) (int64, int, error) {
	id, err := int64Param(c, "id")
	if err != nil {
		return 0, 0, errInvalidWorkflowID
	}

	number, err := strconv.Atoi(c.Params("version"))
	if err != nil || number < 1 {
		return 0, 0, errInvalidVersion
	}

	return id, number, nil
}

func pageParams(c fiber.Ctx) (int, int, error) {
	limit := persistence.DefaultExecutionPageSize
	offset := 0

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > persistence.MaxExecutionPageSize {
			return 0, 0, errInvalidLimit
		}

		limit = parsed
	}

	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, errInvalidOffset
		}

		offset = parsed
	}

	return limit, offset, nil
}
