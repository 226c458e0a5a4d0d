package flowapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/flow/flowsrv"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// FlowHandler maneja las peticiones HTTP de autoría de flujos.
// Los errores errx suben tal cual: el error handler global de fiber
// los traduce a status + body.
type FlowHandler struct {
	flowService *flowsrv.FlowService
}

func NewFlowHandler(flowService *flowsrv.FlowService) *FlowHandler {
	return &FlowHandler{flowService: flowService}
}

// CreateFlow crea un flujo en borrador
// POST /api/flows
func (h *FlowHandler) CreateFlow(c *fiber.Ctx) error {
	var req flow.CreateFlowRequest
	if err := c.BodyParser(&req); err != nil {
		return flow.ErrInvalidFlow().WithDetail("reason", "invalid request body")
	}

	f, err := h.flowService.CreateFlow(c.Context(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(f)
}

// GetFlow retorna un flujo completo
// GET /api/flows/:flowId
func (h *FlowHandler) GetFlow(c *fiber.Ctx) error {
	f, err := h.flowService.GetFlow(c.Context(), kernel.NewFlowID(c.Params("flowId")))
	if err != nil {
		return err
	}

	return c.JSON(f)
}

// UpdateFlow modifica un flujo; cambiar el grafo lo despublica
// PUT /api/flows/:flowId
func (h *FlowHandler) UpdateFlow(c *fiber.Ctx) error {
	var req flow.UpdateFlowRequest
	if err := c.BodyParser(&req); err != nil {
		return flow.ErrInvalidFlow().WithDetail("reason", "invalid request body")
	}

	f, err := h.flowService.UpdateFlow(c.Context(), kernel.NewFlowID(c.Params("flowId")), req)
	if err != nil {
		return err
	}

	return c.JSON(f)
}

// PublishFlow valida y publica
// POST /api/flows/:flowId/publish
func (h *FlowHandler) PublishFlow(c *fiber.Ctx) error {
	f, err := h.flowService.PublishFlow(c.Context(), kernel.NewFlowID(c.Params("flowId")))
	if err != nil {
		return err
	}

	return c.JSON(f)
}

// ValidateFlow corre la validación sin publicar
// POST /api/flows/:flowId/validate
func (h *FlowHandler) ValidateFlow(c *fiber.Ctx) error {
	result, err := h.flowService.ValidateFlow(c.Context(), kernel.NewFlowID(c.Params("flowId")))
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// DeleteFlow elimina un flujo
// DELETE /api/flows/:flowId
func (h *FlowHandler) DeleteFlow(c *fiber.Ctx) error {
	orgID := kernel.NewOrgID(c.Query("org_id"))

	if err := h.flowService.DeleteFlow(c.Context(), kernel.NewFlowID(c.Params("flowId")), orgID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ListFlows lista flujos paginados de una org
// GET /api/flows?org_id=...&page=1&page_size=20
func (h *FlowHandler) ListFlows(c *fiber.Ctx) error {
	req := flow.FlowListRequest{
		OrgID:     kernel.NewOrgID(c.Query("org_id")),
		ChannelID: kernel.NewChannelID(c.Query("channel_id")),
		Search:    c.Query("search"),
	}
	req.Page = c.QueryInt("page", 1)
	req.PageSize = c.QueryInt("page_size", 20)

	if v := c.Query("is_active"); v != "" {
		isActive := v == "true"
		req.IsActive = &isActive
	}

	result, err := h.flowService.ListFlows(c.Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// RegisterRoutes registra los endpoints de autoría de flujos
func RegisterRoutes(app *fiber.App, handler *FlowHandler) {
	flows := app.Group("/api/flows")

	flows.Post("/", handler.CreateFlow)
	flows.Get("/", handler.ListFlows)
	flows.Get("/:flowId", handler.GetFlow)
	flows.Put("/:flowId", handler.UpdateFlow)
	flows.Delete("/:flowId", handler.DeleteFlow)
	flows.Post("/:flowId/publish", handler.PublishFlow)
	flows.Post("/:flowId/validate", handler.ValidateFlow)
}
