package engineapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ExecutionHandler expone ejecuciones y su traza, solo lectura
type ExecutionHandler struct {
	execRepo engine.ExecutionRepository
	logRepo  engine.ExecutionLogRepository
}

func NewExecutionHandler(execRepo engine.ExecutionRepository, logRepo engine.ExecutionLogRepository) *ExecutionHandler {
	return &ExecutionHandler{
		execRepo: execRepo,
		logRepo:  logRepo,
	}
}

// ListExecutions lista ejecuciones paginadas de una org
// GET /api/executions?org_id=...&status=waiting
func (h *ExecutionHandler) ListExecutions(c *fiber.Ctx) error {
	req := engine.ExecutionListRequest{
		OrgID:      kernel.NewOrgID(c.Query("org_id")),
		FlowID:     kernel.NewFlowID(c.Query("flow_id")),
		ChannelID:  kernel.NewChannelID(c.Query("channel_id")),
		CustomerID: kernel.NewCustomerID(c.Query("customer_id")),
	}
	req.Page = c.QueryInt("page", 1)
	req.PageSize = c.QueryInt("page_size", 20)

	if v := c.Query("status"); v != "" {
		status := engine.ExecutionStatus(v)
		req.Status = &status
	}

	result, err := h.execRepo.List(c.Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// GetExecution retorna una ejecución con sus variables
// GET /api/executions/:executionId
func (h *ExecutionHandler) GetExecution(c *fiber.Ctx) error {
	exec, err := h.execRepo.FindByID(c.Context(), kernel.NewExecutionID(c.Params("executionId")))
	if err != nil {
		return err
	}

	return c.JSON(exec)
}

// GetTrace retorna la traza nodo a nodo de una ejecución
// GET /api/executions/:executionId/trace
func (h *ExecutionHandler) GetTrace(c *fiber.Ctx) error {
	id := kernel.NewExecutionID(c.Params("executionId"))

	exec, err := h.execRepo.FindByID(c.Context(), id)
	if err != nil {
		return err
	}

	logs, err := h.logRepo.FindByExecution(c.Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(engine.ExecutionTraceResponse{
		Execution: exec.ToDTO(),
		Logs:      logs,
	})
}

// RegisterRoutes registra los endpoints de ejecuciones
func RegisterRoutes(app *fiber.App, handler *ExecutionHandler) {
	executions := app.Group("/api/executions")

	executions.Get("/", handler.ListExecutions)
	executions.Get("/:executionId", handler.GetExecution)
	executions.Get("/:executionId/trace", handler.GetTrace)
}
