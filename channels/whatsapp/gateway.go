package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/Abraxas-365/chatflow/channels"
	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

const (
	graphAPIBaseURL   = "https://graph.facebook.com"
	defaultAPIVersion = "v24.0"
)

// Gateway envía mensajes por la Cloud API de WhatsApp Business.
// Resuelve las credenciales del canal en cada envío, así un mismo
// proceso atiende todos los números registrados.
type Gateway struct {
	channelRepo channels.ChannelRepository
	httpClient  *http.Client
}

var _ engine.MessageGateway = (*Gateway)(nil)

func NewGateway(channelRepo channels.ChannelRepository) *Gateway {
	return &Gateway{
		channelRepo: channelRepo,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Send envía un mensaje saliente y retorna el wamid asignado por Meta
func (g *Gateway) Send(ctx context.Context, channelID kernel.ChannelID, to kernel.CustomerID, msg engine.OutboundMessage) (kernel.MessageID, error) {
	channel, err := g.channelRepo.FindByID(ctx, channelID)
	if err != nil {
		return "", err
	}

	payload := buildMessagePayload(to.String(), msg)

	body, err := g.post(ctx, channel, payload)
	if err != nil {
		return "", err
	}

	var resp sendResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Messages) == 0 {
		// Enviado pero sin wamid legible; no es motivo para fallar el paso
		log.Printf("⚠️ WhatsApp send ok but response had no message id: %s", string(body))
		return "", nil
	}

	log.Printf("✅ WhatsApp %s sent to %s (wamid=%s)", msg.Kind, to.String(), resp.Messages[0].ID)
	return kernel.NewMessageID(resp.Messages[0].ID), nil
}

// MarkAsRead marca un mensaje entrante como leído (doble check azul)
func (g *Gateway) MarkAsRead(ctx context.Context, channelID kernel.ChannelID, messageID kernel.MessageID) error {
	channel, err := g.channelRepo.FindByID(ctx, channelID)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID.String(),
	}

	_, err = g.post(ctx, channel, payload)
	return err
}

func (g *Gateway) post(ctx context.Context, channel *channels.Channel, payload map[string]any) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/%s/messages",
		graphAPIBaseURL, apiVersion(channel.Config), channel.Config.PhoneNumberID)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, channels.ErrMessageSendFailed().WithCause(err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, channels.ErrMessageSendFailed().WithCause(err)
	}

	req.Header.Set("Authorization", "Bearer "+channel.Config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, channels.ErrMessageSendFailed().WithCause(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		log.Printf("❌ WhatsApp API error - Status: %d, Body: %s", resp.StatusCode, string(body))
		return nil, channels.ErrProviderAPIError().
			WithDetail("status", resp.StatusCode).
			WithDetail("response", string(body))
	}

	return body, nil
}

func apiVersion(cfg channels.Config) string {
	if cfg.APIVersion != "" {
		return cfg.APIVersion
	}
	return defaultAPIVersion
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// ============================================================================
// Payload builders
// ============================================================================

// buildMessagePayload arma el body de POST /{phone_number_id}/messages
// según el tipo de mensaje saliente
func buildMessagePayload(to string, msg engine.OutboundMessage) map[string]any {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
	}

	switch msg.Kind {
	case engine.OutboundText:
		payload["type"] = "text"
		payload["text"] = map[string]any{"body": msg.Text}

	case engine.OutboundImage, engine.OutboundVideo, engine.OutboundAudio, engine.OutboundSticker:
		media := map[string]any{"link": msg.URL}
		if msg.Caption != "" && msg.Kind != engine.OutboundAudio && msg.Kind != engine.OutboundSticker {
			media["caption"] = msg.Caption
		}
		payload["type"] = string(msg.Kind)
		payload[string(msg.Kind)] = media

	case engine.OutboundDocument:
		doc := map[string]any{"link": msg.URL}
		if msg.Caption != "" {
			doc["caption"] = msg.Caption
		}
		if msg.Filename != "" {
			doc["filename"] = msg.Filename
		}
		payload["type"] = "document"
		payload["document"] = doc

	case engine.OutboundLocation:
		payload["type"] = "location"
		payload["location"] = map[string]any{
			"latitude":  msg.Latitude,
			"longitude": msg.Longitude,
			"name":      msg.Name,
			"address":   msg.Address,
		}

	case engine.OutboundContact:
		payload["type"] = "contacts"
		payload["contacts"] = []map[string]any{
			{
				"name": map[string]any{
					"formatted_name": msg.ContactName,
					"first_name":     msg.ContactName,
				},
				"phones": []map[string]any{
					{"phone": msg.ContactPhone, "type": "CELL"},
				},
			},
		}

	case engine.OutboundButtons:
		buttons := make([]map[string]any, 0, len(msg.Buttons))
		for _, b := range msg.Buttons {
			buttons = append(buttons, map[string]any{
				"type": "reply",
				"reply": map[string]any{
					"id":    b.ID,
					"title": b.Title,
				},
			})
		}

		interactive := map[string]any{
			"type":   "button",
			"body":   map[string]any{"text": msg.Body},
			"action": map[string]any{"buttons": buttons},
		}
		if msg.Header != "" {
			interactive["header"] = map[string]any{"type": "text", "text": msg.Header}
		}
		if msg.Footer != "" {
			interactive["footer"] = map[string]any{"text": msg.Footer}
		}

		payload["type"] = "interactive"
		payload["interactive"] = interactive

	case engine.OutboundList:
		sections := make([]map[string]any, 0, len(msg.Sections))
		for _, s := range msg.Sections {
			rows := make([]map[string]any, 0, len(s.Rows))
			for _, r := range s.Rows {
				row := map[string]any{"id": r.ID, "title": r.Title}
				if r.Description != "" {
					row["description"] = r.Description
				}
				rows = append(rows, row)
			}
			section := map[string]any{"rows": rows}
			if s.Title != "" {
				section["title"] = s.Title
			}
			sections = append(sections, section)
		}

		interactive := map[string]any{
			"type": "list",
			"body": map[string]any{"text": msg.Body},
			"action": map[string]any{
				"button":   msg.ButtonText,
				"sections": sections,
			},
		}
		if msg.Header != "" {
			interactive["header"] = map[string]any{"type": "text", "text": msg.Header}
		}
		if msg.Footer != "" {
			interactive["footer"] = map[string]any{"text": msg.Footer}
		}

		payload["type"] = "interactive"
		payload["interactive"] = interactive

	default:
		payload["type"] = "text"
		payload["text"] = map[string]any{"body": msg.Text}
	}

	return payload
}
