package webhook

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registra los endpoints de webhook de WhatsApp
func RegisterRoutes(app *fiber.App, handler *Handler) {
	webhooks := app.Group("/webhooks/whatsapp")

	webhooks.Get("/:channelId", handler.Verify)
	webhooks.Post("/:channelId", handler.Receive)
}
