package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/Abraxas-365/chatflow/channels"
	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Webhook payload (Cloud API)
// ============================================================================

type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Value WebhookValue `json:"value"`
	Field string       `json:"field"`
}

type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts"`
	Messages         []WebhookMessage `json:"messages"`
	Statuses         []WebhookStatus  `json:"statuses"`
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type WebhookMessage struct {
	ID          string              `json:"id"`
	From        string              `json:"from"`
	Timestamp   int64               `json:"timestamp,string"`
	Type        string              `json:"type"`
	Text        *WebhookText        `json:"text,omitempty"`
	Interactive *WebhookInteractive `json:"interactive,omitempty"`
	Button      *WebhookButton      `json:"button,omitempty"`
	Image       *WebhookMedia       `json:"image,omitempty"`
	Video       *WebhookMedia       `json:"video,omitempty"`
	Audio       *WebhookMedia       `json:"audio,omitempty"`
	Document    *WebhookMedia       `json:"document,omitempty"`
}

type WebhookText struct {
	Body string `json:"body"`
}

// WebhookInteractive respuesta a un mensaje de botones o lista
type WebhookInteractive struct {
	Type        string `json:"type"` // button_reply | list_reply
	ButtonReply *struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"button_reply,omitempty"`
	ListReply *struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description,omitempty"`
	} `json:"list_reply,omitempty"`
}

// WebhookButton respuesta a un botón de template (formato legacy)
type WebhookButton struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

type WebhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	Caption  string `json:"caption,omitempty"`
}

type WebhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp,string"`
	RecipientID string `json:"recipient_id"`
}

// ============================================================================
// Parsing
// ============================================================================

// ParsePayload decodifica el body crudo del webhook
func ParsePayload(body []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, channels.ErrInvalidChannelConfig().WithCause(err).
			WithDetail("reason", "unparseable webhook body")
	}
	return &payload, nil
}

// ExtractMessages normaliza los mensajes del payload. Un payload de
// solo statuses (delivered, read) retorna slice vacío, no error.
func ExtractMessages(payload *WebhookPayload) []engine.IncomingMessage {
	var messages []engine.IncomingMessage

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Value.MessagingProduct != "whatsapp" {
				continue
			}

			// perfil del remitente, indexado por wa_id
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}

			channelID := kernel.NewChannelID(change.Value.Metadata.PhoneNumberID)

			for _, msg := range change.Value.Messages {
				incoming := engine.IncomingMessage{
					ID:          kernel.NewMessageID(msg.ID),
					ChannelID:   channelID,
					From:        kernel.NewCustomerID(msg.From),
					ProfileName: names[msg.From],
					Type:        msg.Type,
					Timestamp:   time.Unix(msg.Timestamp, 0).UTC(),
				}

				switch {
				case msg.Text != nil:
					incoming.Text = msg.Text.Body
				case msg.Interactive != nil && msg.Interactive.ButtonReply != nil:
					incoming.ReplyID = msg.Interactive.ButtonReply.ID
					incoming.Text = msg.Interactive.ButtonReply.Title
				case msg.Interactive != nil && msg.Interactive.ListReply != nil:
					incoming.ReplyID = msg.Interactive.ListReply.ID
					incoming.Text = msg.Interactive.ListReply.Title
				case msg.Button != nil:
					incoming.ReplyID = msg.Button.Payload
					incoming.Text = msg.Button.Text
				case msg.Image != nil:
					incoming.Text = msg.Image.Caption
					incoming.MediaID = msg.Image.ID
				case msg.Video != nil:
					incoming.Text = msg.Video.Caption
					incoming.MediaID = msg.Video.ID
				case msg.Audio != nil:
					incoming.MediaID = msg.Audio.ID
				case msg.Document != nil:
					incoming.Text = msg.Document.Caption
					incoming.MediaID = msg.Document.ID
				}

				messages = append(messages, incoming)
			}
		}
	}

	return messages
}

// ============================================================================
// Signature verification
// ============================================================================

// VerifySignature valida X-Hub-Signature-256 contra el app secret del
// canal. Sin secret configurado la verificación se omite.
func VerifySignature(appSecret string, body []byte, signatureHeader string) error {
	if appSecret == "" {
		return nil
	}

	signature := strings.TrimPrefix(signatureHeader, "sha256=")
	if signature == "" {
		return channels.ErrInvalidWebhookSignature()
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return channels.ErrInvalidWebhookSignature()
	}

	return nil
}
