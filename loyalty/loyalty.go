package loyalty

import (
	"strings"
	"time"

	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Stamp Card Entity
// ============================================================================

// StampCard estado de la tarjeta de sellos de un cliente en un canal
type StampCard struct {
	CustomerID kernel.CustomerID `db:"customer_id" json:"customer_id"`
	ChannelID  kernel.ChannelID  `db:"channel_id" json:"channel_id"`
	Stamps     int               `db:"stamps" json:"stamps"`
	Required   int               `db:"required" json:"required"`
	RewardText string            `db:"reward_text" json:"reward_text"`
	ImageURL   string            `db:"image_url" json:"image_url,omitempty"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// IsComplete indica si la tarjeta alcanzó los sellos requeridos
func (c *StampCard) IsComplete() bool {
	return c.Required > 0 && c.Stamps >= c.Required
}

// Render dibuja la tarjeta como texto para WhatsApp
func (c *StampCard) Render() string {
	var b strings.Builder
	for i := 0; i < c.Required; i++ {
		if i > 0 && i%5 == 0 {
			b.WriteString("\n")
		}
		if i < c.Stamps {
			b.WriteString("🟢")
		} else {
			b.WriteString("⚪")
		}
	}
	if c.IsComplete() && c.RewardText != "" {
		b.WriteString("\n🎁 ")
		b.WriteString(c.RewardText)
	}
	return b.String()
}

// ============================================================================
// Prefilter Result
// ============================================================================

// PrefilterResult resultado del prefiltro de lealtad sobre un mensaje.
// Handled=true significa que el programa consumió el mensaje y el motor
// no debe intentar hacer match de flujos con él.
type PrefilterResult struct {
	Handled bool   `db:"handled" json:"handled"`
	Reply   string `db:"reply" json:"reply,omitempty"`
}
