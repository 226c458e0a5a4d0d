package flow

import (
	"context"

	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// FlowRepository persistencia de flujos
type FlowRepository interface {
	// CRUD básico
	Save(ctx context.Context, f Flow) error
	FindByID(ctx context.Context, id kernel.FlowID) (*Flow, error)
	Delete(ctx context.Context, id kernel.FlowID, orgID kernel.OrgID) error
	ExistsByName(ctx context.Context, name string, orgID kernel.OrgID) (bool, error)

	// Búsquedas
	FindByOrg(ctx context.Context, orgID kernel.OrgID) ([]*Flow, error)

	// FindRunnableByChannel retorna los flujos activos y publicados de un
	// canal, ordenados por prioridad descendente y updated_at descendente.
	// El matcher depende de este orden.
	FindRunnableByChannel(ctx context.Context, channelID kernel.ChannelID) ([]*Flow, error)

	// List con paginación
	List(ctx context.Context, req FlowListRequest) (FlowListResponse, error)

	// Bulk operations
	BulkUpdateStatus(ctx context.Context, ids []kernel.FlowID, orgID kernel.OrgID, isActive bool) error
}

// ============================================================================
// Matcher Interface
// ============================================================================

// FlowMatcher selecciona el flujo que un mensaje entrante debe iniciar
type FlowMatcher interface {
	// Match retorna el flujo ganador o ErrNoMatchingFlow
	Match(ctx context.Context, channelID kernel.ChannelID, messageText string) (*Flow, error)
}
