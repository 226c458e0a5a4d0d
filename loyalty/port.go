package loyalty

import (
	"context"

	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Service Interfaces
// ============================================================================

// Prefilter intercepta mensajes del programa de lealtad (códigos de
// sello, canjes) antes de que el motor intente hacer match de flujos.
type Prefilter interface {
	HandleMessage(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID, text string) (*PrefilterResult, error)
}

// CardProvider arma la tarjeta de sellos vigente de un cliente
type CardProvider interface {
	GetCard(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID) (*StampCard, error)
}
