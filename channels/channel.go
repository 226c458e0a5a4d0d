package channels

import (
	"time"

	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// Channel es un número de WhatsApp Business dado de alta en la
// plataforma. El ChannelID es el phone_number_id de Meta, que es lo
// que llega en cada webhook.
type Channel struct {
	ID        kernel.ChannelID `db:"id" json:"id"`
	OrgID     kernel.OrgID     `db:"org_id" json:"org_id"`
	Name      string           `db:"name" json:"name"`
	Config    Config           `db:"config" json:"config"`
	IsActive  bool             `db:"is_active" json:"is_active"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// Config credenciales y ajustes del canal de WhatsApp Business
type Config struct {
	PhoneNumberID string `json:"phone_number_id"`
	AccessToken   string `json:"access_token"`
	VerifyToken   string `json:"verify_token"`
	AppSecret     string `json:"app_secret,omitempty"`
	APIVersion    string `json:"api_version,omitempty"`

	// DefaultCountryCode código de marcación (ej. "51") para
	// formatear números sin prefijo internacional
	DefaultCountryCode string `json:"default_country_code,omitempty"`
}

// Validate verifica que el canal tenga las credenciales mínimas
// para enviar y recibir mensajes
func (c Config) Validate() error {
	if c.PhoneNumberID == "" {
		return ErrInvalidChannelConfig().WithDetail("field", "phone_number_id")
	}
	if c.AccessToken == "" {
		return ErrInvalidChannelConfig().WithDetail("field", "access_token")
	}
	if c.VerifyToken == "" {
		return ErrInvalidChannelConfig().WithDetail("field", "verify_token")
	}
	return nil
}

// CanReceive true si el canal puede atender webhooks
func (ch *Channel) CanReceive() bool {
	return ch.IsActive
}
