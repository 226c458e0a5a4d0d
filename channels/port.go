package channels

import (
	"context"

	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// ChannelRepository define el contrato para persistencia de canales.
// FindByID no pide org porque el webhook de Meta identifica al canal
// solo por phone_number_id.
type ChannelRepository interface {
	Save(ctx context.Context, channel Channel) error
	FindByID(ctx context.Context, id kernel.ChannelID) (*Channel, error)
	Delete(ctx context.Context, id kernel.ChannelID, orgID kernel.OrgID) error

	FindByOrg(ctx context.Context, orgID kernel.OrgID) ([]*Channel, error)
	FindActive(ctx context.Context, orgID kernel.OrgID) ([]*Channel, error)
	ExistsByName(ctx context.Context, name string, orgID kernel.OrgID) (bool, error)

	CountByOrg(ctx context.Context, orgID kernel.OrgID) (int, error)
}

// ============================================================================
// Media Interfaces
// ============================================================================

// MediaRelay rehospeda media entrante del proveedor en storage propio.
// Las URLs de media de Meta expiran en minutos, por eso se copian.
type MediaRelay interface {
	// Relay descarga el media del proveedor y retorna una URL pública
	// durable. Retorna "" (sin error) si el rehospedaje falla.
	Relay(ctx context.Context, channel *Channel, mediaID string) (string, error)
}
