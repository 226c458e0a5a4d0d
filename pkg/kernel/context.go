package kernel

// ============================================================================
// Context Keys - Claves para context.Context
// ============================================================================

type ContextKey string

const (
	// OrgContextKey es la clave para almacenar OrgID en context.Context
	OrgContextKey ContextKey = "org_id"

	// ChannelContextKey es la clave para almacenar ChannelID en context.Context
	ChannelContextKey ContextKey = "channel_id"

	// RequestIDKey es la clave para almacenar el ID de la petición
	RequestIDKey ContextKey = "request_id"
)
