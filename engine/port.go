package engine

import (
	"context"
	"time"

	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Repository Interfaces
// ============================================================================

// ExecutionRepository persistencia de ejecuciones
type ExecutionRepository interface {
	// CRUD básico
	Save(ctx context.Context, exec Execution) error
	FindByID(ctx context.Context, id kernel.ExecutionID) (*Execution, error)

	// FindActiveByCustomer retorna la ejecución running/waiting del cliente
	// en el canal, o ErrExecutionNotFound. El índice parcial único garantiza
	// que hay a lo más una.
	FindActiveByCustomer(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID) (*Execution, error)

	// FindExpiredWaits retorna ejecuciones esperando respuesta cuyo
	// timeout ya venció, para el barrido perezoso.
	FindExpiredWaits(ctx context.Context, now time.Time, limit int) ([]*Execution, error)

	// List con paginación
	List(ctx context.Context, req ExecutionListRequest) (ExecutionListResponse, error)

	// Stats
	CountByStatus(ctx context.Context, status ExecutionStatus, orgID kernel.OrgID) (int, error)
}

// ExecutionLogRepository persistencia de la traza por nodo
type ExecutionLogRepository interface {
	Append(ctx context.Context, entry ExecutionLog) error
	FindByExecution(ctx context.Context, executionID kernel.ExecutionID) ([]*ExecutionLog, error)
}

// ProcessedMessageRepository marca mensajes ya procesados (idempotencia).
// La inserción es lo primero que ocurre al procesar: si el marcador ya
// existe el mensaje se descarta sin efectos.
type ProcessedMessageRepository interface {
	// MarkProcessed inserta el marcador; retorna false si ya existía
	MarkProcessed(ctx context.Context, channelID kernel.ChannelID, messageID kernel.MessageID) (bool, error)

	// CleanOlderThan borra marcadores viejos
	CleanOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ============================================================================
// Concurrency Interfaces
// ============================================================================

// CustomerLocker serializa el procesamiento por cliente. Mensajes del
// mismo cliente nunca corren en paralelo; clientes distintos sí.
type CustomerLocker interface {
	// Acquire toma el lock; retorna un token para liberar, o error
	// si otro worker lo tiene.
	Acquire(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID) (string, error)
	Release(ctx context.Context, channelID kernel.ChannelID, customerID kernel.CustomerID, token string) error
}

// ============================================================================
// Scheduler Interfaces
// ============================================================================

// ContinuationHandler retoma una ejecución suspendida por delay
type ContinuationHandler func(ctx context.Context, continuation *Continuation) error

// ContinuationScheduler agenda reanudaciones futuras de ejecuciones
type ContinuationScheduler interface {
	Schedule(ctx context.Context, continuation *Continuation, delay time.Duration) error
	Cancel(ctx context.Context, id string) error
	ShouldUseAsync(duration time.Duration) bool
	StartWorker(ctx context.Context)
	StopWorker()
}

// ============================================================================
// Gateway Interfaces
// ============================================================================

// OutboundKind tipo de mensaje saliente
type OutboundKind string

const (
	OutboundText     OutboundKind = "text"
	OutboundImage    OutboundKind = "image"
	OutboundVideo    OutboundKind = "video"
	OutboundAudio    OutboundKind = "audio"
	OutboundDocument OutboundKind = "document"
	OutboundSticker  OutboundKind = "sticker"
	OutboundLocation OutboundKind = "location"
	OutboundContact  OutboundKind = "contact"
	OutboundButtons  OutboundKind = "buttons"
	OutboundList     OutboundKind = "list"
)

// OutboundMessage mensaje saliente ya interpolado, listo para el canal
type OutboundMessage struct {
	Kind OutboundKind

	Text     string
	URL      string
	Caption  string
	Filename string

	Latitude  float64
	Longitude float64
	Name      string
	Address   string

	ContactName  string
	ContactPhone string

	Header     string
	Body       string
	Footer     string
	ButtonText string
	Buttons    []flow.ButtonOption
	Sections   []flow.ListSection
}

// MessageGateway envía mensajes por el canal del cliente
type MessageGateway interface {
	Send(ctx context.Context, channelID kernel.ChannelID, to kernel.CustomerID, msg OutboundMessage) (kernel.MessageID, error)
	MarkAsRead(ctx context.Context, channelID kernel.ChannelID, messageID kernel.MessageID) error
}

// ============================================================================
// Executor Interfaces
// ============================================================================

// NodeExecutor ejecuta un tipo de nodo y produce el outcome del paso
type NodeExecutor interface {
	Execute(ctx context.Context, wctx *WalkContext, node *flow.Node) (*NodeOutcome, error)
	SupportsType(nodeType flow.NodeType) bool
}

// FlowWalker camina el grafo de un flujo mutando la ejecución
type FlowWalker interface {
	// Walk avanza desde Execution.CurrentNodeID hasta suspender,
	// terminar o fallar.
	Walk(ctx context.Context, wctx *WalkContext) error

	// ResumeWithReply aplica la respuesta del cliente a una ejecución
	// esperando en waitForReply y continúa el walk.
	ResumeWithReply(ctx context.Context, wctx *WalkContext) error
}

// ============================================================================
// Evaluator Interfaces
// ============================================================================

// Interpolator resuelve placeholders {{...}} contra las variables
type Interpolator interface {
	// Interpolate reemplaza todos los placeholders dentro del string
	Interpolate(s string, vars map[string]any) (string, error)

	// Resolve evalúa una expresión sola y retorna el valor tipado
	Resolve(expr string, vars map[string]any) (any, error)

	// InterpolateMap interpola todos los valores string de un mapa
	InterpolateMap(m map[string]string, vars map[string]any) (map[string]string, error)
}
