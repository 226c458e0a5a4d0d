package webhook

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Abraxas-365/chatflow/channels"
	"github.com/Abraxas-365/chatflow/channels/whatsapp"
	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// processTimeout tope para procesar un webhook ya aceptado
const processTimeout = 90 * time.Second

// MessageSink recibe los mensajes ya normalizados del webhook
type MessageSink interface {
	ProcessIncoming(ctx context.Context, msg engine.IncomingMessage) error
}

// Handler atiende los webhooks de la Cloud API de WhatsApp.
// El channelId del path es el phone_number_id del número.
type Handler struct {
	channelRepo channels.ChannelRepository
	sink        MessageSink
	mediaRelay  channels.MediaRelay
}

func NewHandler(channelRepo channels.ChannelRepository, sink MessageSink, mediaRelay channels.MediaRelay) *Handler {
	return &Handler{
		channelRepo: channelRepo,
		sink:        sink,
		mediaRelay:  mediaRelay,
	}
}

// Verify maneja el challenge de verificación de Meta
// GET /webhooks/whatsapp/:channelId
func (h *Handler) Verify(c *fiber.Ctx) error {
	channelID := kernel.NewChannelID(c.Params("channelId"))

	channel, err := h.channelRepo.FindByID(c.Context(), channelID)
	if err != nil {
		log.Printf("❌ Webhook verify for unknown channel: %s", channelID)
		return fiber.NewError(fiber.StatusNotFound, "Channel not found")
	}

	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == channel.Config.VerifyToken {
		log.Printf("✅ Webhook verified for channel: %s", channelID)
		return c.SendString(challenge)
	}

	log.Printf("❌ Webhook verification failed for channel: %s", channelID)
	return fiber.NewError(fiber.StatusForbidden, "Verification failed")
}

// Receive maneja los eventos entrantes. Siempre responde 200: Meta
// reintenta cualquier otra cosa y la idempotencia ya vive en el
// procesador, no acá.
// POST /webhooks/whatsapp/:channelId
func (h *Handler) Receive(c *fiber.Ctx) error {
	channelID := kernel.NewChannelID(c.Params("channelId"))

	channel, err := h.channelRepo.FindByID(c.Context(), channelID)
	if err != nil {
		log.Printf("❌ Webhook for unknown channel: %s", channelID)
		return c.SendStatus(fiber.StatusOK)
	}

	if !channel.CanReceive() {
		log.Printf("⚠️ Webhook for inactive channel: %s", channelID)
		return c.SendStatus(fiber.StatusOK)
	}

	body := c.Body()

	if err := whatsapp.VerifySignature(channel.Config.AppSecret, body, c.Get("X-Hub-Signature-256")); err != nil {
		log.Printf("❌ Webhook signature rejected for channel: %s", channelID)
		return c.SendStatus(fiber.StatusOK)
	}

	payload, err := whatsapp.ParsePayload(body)
	if err != nil {
		log.Printf("❌ Unparseable webhook body for channel %s: %v", channelID, err)
		return c.SendStatus(fiber.StatusOK)
	}

	messages := whatsapp.ExtractMessages(payload)
	if len(messages) == 0 {
		// status callbacks (delivered, read) llegan por acá
		return c.SendStatus(fiber.StatusOK)
	}

	// Se responde antes de procesar: un delay síncrono dentro del walk
	// no debe colgar el request de Meta
	for _, msg := range messages {
		go h.process(channel, msg)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *Handler) process(channel *channels.Channel, msg engine.IncomingMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	// media entrante se rehospeda primero; las URLs de Meta expiran
	if msg.MediaID != "" && h.mediaRelay != nil {
		if url, err := h.mediaRelay.Relay(ctx, channel, msg.MediaID); err == nil && url != "" {
			msg.MediaURL = url
		}
	}

	if err := h.sink.ProcessIncoming(ctx, msg); err != nil {
		log.Printf("❌ Failed to process message %s: %v", msg.ID, err)
	}
}
