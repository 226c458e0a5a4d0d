package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

// ============================================================================
// Execution Entity
// ============================================================================

// ExecutionStatus estado de la ejecución
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// WaitReason por qué está suspendida la ejecución
type WaitReason string

const (
	WaitReasonReply WaitReason = "reply"
	WaitReasonDelay WaitReason = "delay"
)

// WaitState captura dónde y por qué quedó suspendida una ejecución.
// Se persiste junto con la ejecución para sobrevivir reinicios.
type WaitState struct {
	NodeID       string             `json:"node_id"`
	Reason       WaitReason         `json:"reason"`
	ExpectedType flow.ExpectedInput `json:"expected_type,omitempty"`
	VariableName string             `json:"variable_name,omitempty"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty"`
	ResumeAt     *time.Time         `json:"resume_at,omitempty"`
	Retries      int                `json:"retries,omitempty"`
	RetryMessage string             `json:"retry_message,omitempty"`
}

// Execution representa una conversación en curso de un cliente
// a través de un flujo. A lo más una activa por (customer, channel).
type Execution struct {
	ID            kernel.ExecutionID `db:"id" json:"id"`
	OrgID         kernel.OrgID       `db:"org_id" json:"org_id"`
	FlowID        kernel.FlowID      `db:"flow_id" json:"flow_id"`
	ChannelID     kernel.ChannelID   `db:"channel_id" json:"channel_id"`
	CustomerID    kernel.CustomerID  `db:"customer_id" json:"customer_id"`
	Status        ExecutionStatus    `db:"status" json:"status"`
	CurrentNodeID string             `db:"current_node_id" json:"current_node_id"`
	Variables     map[string]any     `db:"variables" json:"variables"`
	Wait          *WaitState         `db:"wait" json:"wait,omitempty"`
	FailureReason string             `db:"failure_reason" json:"failure_reason,omitempty"`
	StartedAt     time.Time          `db:"started_at" json:"started_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time         `db:"completed_at" json:"completed_at,omitempty"`
}

// NewExecution crea una ejecución lista para caminar desde el primer
// nodo real del flujo (el sucesor del trigger).
func NewExecution(f *flow.Flow, customerID kernel.CustomerID) *Execution {
	now := time.Now()
	return &Execution{
		ID:            kernel.NewExecutionID(uuid.New().String()),
		OrgID:         f.OrgID,
		FlowID:        f.ID,
		ChannelID:     f.ChannelID,
		CustomerID:    customerID,
		Status:        ExecutionStatusRunning,
		CurrentNodeID: f.EntryNodeID(),
		Variables:     make(map[string]any),
		StartedAt:     now,
		UpdatedAt:     now,
	}
}

// ============================================================================
// Domain Methods
// ============================================================================

// IsActive indica si la ejecución sigue ocupando el slot del cliente
func (e *Execution) IsActive() bool {
	return e.Status == ExecutionStatusRunning || e.Status == ExecutionStatusWaiting
}

// IsWaitingReply indica si está suspendida esperando respuesta del cliente
func (e *Execution) IsWaitingReply() bool {
	return e.Status == ExecutionStatusWaiting && e.Wait != nil && e.Wait.Reason == WaitReasonReply
}

// SuspendForReply suspende la ejecución en un nodo waitForReply
func (e *Execution) SuspendForReply(wait WaitState) {
	wait.Reason = WaitReasonReply
	e.Status = ExecutionStatusWaiting
	e.CurrentNodeID = wait.NodeID
	e.Wait = &wait
	e.UpdatedAt = time.Now()
}

// SuspendForDelay suspende la ejecución hasta que el scheduler la retome
func (e *Execution) SuspendForDelay(nodeID string, resumeAt time.Time) {
	e.Status = ExecutionStatusWaiting
	e.CurrentNodeID = nodeID
	e.Wait = &WaitState{
		NodeID:   nodeID,
		Reason:   WaitReasonDelay,
		ResumeAt: &resumeAt,
	}
	e.UpdatedAt = time.Now()
}

// Resume vuelve a running y limpia el estado de espera
func (e *Execution) Resume(nextNodeID string) {
	e.Status = ExecutionStatusRunning
	e.CurrentNodeID = nextNodeID
	e.Wait = nil
	e.UpdatedAt = time.Now()
}

// Complete marca la ejecución como terminada con éxito
func (e *Execution) Complete() {
	now := time.Now()
	e.Status = ExecutionStatusCompleted
	e.Wait = nil
	e.CompletedAt = &now
	e.UpdatedAt = now
}

// Fail marca la ejecución como fallida y deja el motivo en las variables
func (e *Execution) Fail(reason string) {
	now := time.Now()
	e.Status = ExecutionStatusFailed
	e.FailureReason = reason
	e.SetVariable("error", reason)
	e.Wait = nil
	e.CompletedAt = &now
	e.UpdatedAt = now
}

// Cancel cancela la ejecución liberando el slot del cliente
func (e *Execution) Cancel() {
	now := time.Now()
	e.Status = ExecutionStatusCancelled
	e.Wait = nil
	e.CompletedAt = &now
	e.UpdatedAt = now
}

// SetVariable guarda una variable en el snapshot de la ejecución
func (e *Execution) SetVariable(name string, value any) {
	if e.Variables == nil {
		e.Variables = make(map[string]any)
	}
	e.Variables[name] = value
}

// GetVariable lee una variable del snapshot
func (e *Execution) GetVariable(name string) (any, bool) {
	if e.Variables == nil {
		return nil, false
	}
	v, ok := e.Variables[name]
	return v, ok
}

// LoopCounterKey clave interna del contador de un nodo loop
func LoopCounterKey(nodeID string) string {
	return "__loop_" + nodeID
}

// LoopCounter lee el contador de iteraciones de un nodo loop
func (e *Execution) LoopCounter(nodeID string) int {
	v, ok := e.GetVariable(LoopCounterKey(nodeID))
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// ResetLoopCounter limpia el contador al salir del loop
func (e *Execution) ResetLoopCounter(nodeID string) {
	delete(e.Variables, LoopCounterKey(nodeID))
}

// ============================================================================
// Incoming Message
// ============================================================================

// IncomingMessage es un mensaje entrante ya normalizado desde el webhook
type IncomingMessage struct {
	ID          kernel.MessageID  `json:"id"` // wamid
	ChannelID   kernel.ChannelID  `json:"channel_id"`
	From        kernel.CustomerID `json:"from"` // wa_id
	ProfileName string            `json:"profile_name,omitempty"`
	Type        string            `json:"type"` // text, interactive, button
	Text        string            `json:"text,omitempty"`
	ReplyID     string            `json:"reply_id,omitempty"` // button o list row id
	MediaID     string            `json:"media_id,omitempty"`
	MediaURL    string            `json:"media_url,omitempty"` // URL rehospedada, si hubo relay
	Timestamp   time.Time         `json:"timestamp"`
}

// IsValid verifica los campos mínimos para procesar
func (m *IncomingMessage) IsValid() bool {
	return !m.ID.IsEmpty() && !m.ChannelID.IsEmpty() && !m.From.IsEmpty()
}

// ReplyText texto efectivo de la respuesta: el título/texto del mensaje
func (m *IncomingMessage) ReplyText() string {
	return strings.TrimSpace(m.Text)
}

// ============================================================================
// Execution Log
// ============================================================================

// ExecutionLog una entrada de la traza por nodo ejecutado
type ExecutionLog struct {
	ID          string             `db:"id" json:"id"`
	ExecutionID kernel.ExecutionID `db:"execution_id" json:"execution_id"`
	NodeID      string             `db:"node_id" json:"node_id"`
	NodeType    flow.NodeType      `db:"node_type" json:"node_type"`
	Status      LogStatus          `db:"status" json:"status"`
	Detail      string             `db:"detail" json:"detail,omitempty"`
	DurationMs  int64              `db:"duration_ms" json:"duration_ms"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
}

// LogStatus resultado de un nodo en la traza
type LogStatus string

const (
	LogStatusSuccess   LogStatus = "success"
	LogStatusFailed    LogStatus = "failed"
	LogStatusSuspended LogStatus = "suspended"
)

// ============================================================================
// Walk Context & Outcomes
// ============================================================================

// WalkContext es todo lo que un ejecutor de nodo necesita: el flujo,
// la ejecución mutable y el mensaje que disparó este paso del walk.
type WalkContext struct {
	Flow      *flow.Flow
	Execution *Execution
	Message   *IncomingMessage

	// DefaultCountryCode del canal, para normalización de teléfonos
	DefaultCountryCode string
}

// NodeOutcome resultado de ejecutar un nodo. Exactamente uno de los
// terminales (Suspend, DelayFor, Completed, Failed) puede estar presente;
// si ninguno lo está, el walk sigue por la arista del Handle.
type NodeOutcome struct {
	Handle    string
	Suspend   *WaitState
	DelayFor  *time.Duration
	Completed bool
	Failed    string
	Detail    string
}

// ContinueWith outcome que sigue por el handle dado
func ContinueWith(handle string) *NodeOutcome {
	return &NodeOutcome{Handle: handle}
}

// Continue outcome que sigue por la arista por defecto
func Continue() *NodeOutcome {
	return &NodeOutcome{}
}

// ============================================================================
// Continuation
// ============================================================================

// Continuation es el payload que el scheduler persiste en redis para
// retomar una ejecución suspendida por delay.
type Continuation struct {
	ID           string             `json:"id"`
	ExecutionID  kernel.ExecutionID `json:"execution_id"`
	NodeID       string             `json:"node_id"`
	ScheduledFor time.Time          `json:"scheduled_for"`
	CreatedAt    time.Time          `json:"created_at"`
}

func (c *Continuation) String() string {
	return fmt.Sprintf("continuation[%s] execution=%s node=%s", c.ID, c.ExecutionID, c.NodeID)
}
