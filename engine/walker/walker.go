package walker

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// allNodeTypes lista cerrada de tipos sobre la que se registran ejecutores
var allNodeTypes = []flow.NodeType{
	flow.NodeSendText,
	flow.NodeSendImage,
	flow.NodeSendVideo,
	flow.NodeSendAudio,
	flow.NodeSendDocument,
	flow.NodeSendLocation,
	flow.NodeSendContact,
	flow.NodeSendSticker,
	flow.NodeSendButtons,
	flow.NodeSendList,
	flow.NodeSendStampCard,
	flow.NodeWaitForReply,
	flow.NodeCondition,
	flow.NodeSetVariable,
	flow.NodeLoop,
	flow.NodeAPICall,
	flow.NodeDelay,
	flow.NodeGetCustomerPhone,
	flow.NodeGetCustomerName,
	flow.NodeGetCustomerCountry,
	flow.NodeGetMessageTimestamp,
	flow.NodeFormatPhoneNumber,
	flow.NodeDateTime,
	flow.NodeMathOperation,
	flow.NodeTextOperation,
	flow.NodeRandomChoice,
	flow.NodeMarkAsRead,
	flow.NodeEnd,
}

// Walker camina el grafo nodo a nodo mutando la ejecución hasta que
// ésta se suspende, termina o falla. No persiste la ejecución: eso es
// responsabilidad de quien lo llama; la traza sí se va escribiendo.
type Walker struct {
	executors map[flow.NodeType]engine.NodeExecutor
	logRepo   engine.ExecutionLogRepository
	gateway   engine.MessageGateway
	maxSteps  int
}

var _ engine.FlowWalker = (*Walker)(nil)

func NewWalker(
	logRepo engine.ExecutionLogRepository,
	gateway engine.MessageGateway,
	maxSteps int,
	nodeExecutors ...engine.NodeExecutor,
) *Walker {
	w := &Walker{
		executors: make(map[flow.NodeType]engine.NodeExecutor),
		logRepo:   logRepo,
		gateway:   gateway,
		maxSteps:  maxSteps,
	}
	for _, nodeExec := range nodeExecutors {
		w.RegisterExecutor(nodeExec)
	}
	return w
}

func (w *Walker) RegisterExecutor(executor engine.NodeExecutor) {
	for _, nodeType := range allNodeTypes {
		if executor.SupportsType(nodeType) {
			w.executors[nodeType] = executor
		}
	}
}

// Walk avanza desde Execution.CurrentNodeID. Los ciclos son legales
// (loops); el único guardián es el presupuesto de pasos.
func (w *Walker) Walk(ctx context.Context, wctx *engine.WalkContext) error {
	exec := wctx.Execution
	steps := 0

	for exec.Status == engine.ExecutionStatusRunning {
		if exec.CurrentNodeID == "" {
			exec.Complete()
			break
		}

		steps++
		if steps > w.maxSteps {
			log.Printf("❌ Execution %s exceeded step budget (%d)", exec.ID.String(), w.maxSteps)
			exec.Fail("step budget exceeded")
			break
		}

		node := wctx.Flow.GetNodeByID(exec.CurrentNodeID)
		if node == nil {
			exec.Fail("node not found: " + exec.CurrentNodeID)
			break
		}

		// El trigger nunca se ejecuta; sólo marca la entrada
		if node.Type == flow.NodeTrigger {
			w.advance(wctx, node, "")
			continue
		}

		executor, ok := w.executors[node.Type]
		if !ok {
			exec.Fail("no executor for node type: " + string(node.Type))
			break
		}

		startTime := time.Now()
		outcome, err := executor.Execute(ctx, wctx, node)
		duration := time.Since(startTime).Milliseconds()

		if err != nil {
			log.Printf("❌ Node %s (%s) failed: %v", node.ID, node.Type, err)
			w.appendLog(ctx, exec, node, engine.LogStatusFailed, err.Error(), duration)
			exec.Fail(err.Error())
			break
		}

		switch {
		case outcome.Failed != "":
			w.appendLog(ctx, exec, node, engine.LogStatusFailed, outcome.Failed, duration)
			exec.Fail(outcome.Failed)

		case outcome.Completed:
			w.appendLog(ctx, exec, node, engine.LogStatusSuccess, outcome.Detail, duration)
			exec.Complete()

		case outcome.Suspend != nil:
			w.appendLog(ctx, exec, node, engine.LogStatusSuspended, outcome.Detail, duration)
			wait := *outcome.Suspend
			wait.NodeID = node.ID
			exec.SuspendForReply(wait)

		case outcome.DelayFor != nil:
			w.appendLog(ctx, exec, node, engine.LogStatusSuspended, outcome.Detail, duration)
			exec.SuspendForDelay(node.ID, time.Now().Add(*outcome.DelayFor))

		default:
			w.appendLog(ctx, exec, node, engine.LogStatusSuccess, outcome.Detail, duration)
			w.advance(wctx, node, outcome.Handle)
		}
	}

	return nil
}

// ResumeWithReply aplica el mensaje entrante a una ejecución suspendida
// en waitForReply y continúa el walk desde la arista correspondiente.
func (w *Walker) ResumeWithReply(ctx context.Context, wctx *engine.WalkContext) error {
	exec := wctx.Execution
	msg := wctx.Message

	if !exec.IsWaitingReply() {
		return engine.ErrExecutionNotWaiting().
			WithDetail("execution_id", exec.ID.String())
	}

	wait := exec.Wait

	// Barrido perezoso: si el timeout ya venció, la espera fracasa aquí
	// mismo y el mensaje queda libre para iniciar otro flujo.
	if wait.ExpiresAt != nil && time.Now().After(*wait.ExpiresAt) {
		log.Printf("⏰ Wait expired for execution %s", exec.ID.String())
		exec.Fail("wait timeout")
		return nil
	}

	node := wctx.Flow.GetNodeByID(wait.NodeID)
	if node == nil {
		exec.Fail("wait node not found: " + wait.NodeID)
		return nil
	}

	value, handle, ok := w.parseReply(wait, msg)
	if !ok {
		return w.rejectReply(ctx, wctx, node)
	}

	if wait.VariableName != "" {
		exec.SetVariable(wait.VariableName, value)
	}

	edge := wctx.Flow.OutgoingEdge(node.ID, handle)
	if edge == nil && handle != "" {
		// Sin arista específica para este botón/fila: cae a la default
		edge = wctx.Flow.OutgoingEdge(node.ID, "")
	}
	if edge == nil {
		exec.Resume("")
		exec.Complete()
		return nil
	}

	exec.Resume(edge.TargetNodeID)
	return w.Walk(ctx, wctx)
}

// parseReply valida la respuesta según el tipo esperado. ok=false
// significa que la respuesta no califica y hay que reintentar.
func (w *Walker) parseReply(wait *engine.WaitState, msg *engine.IncomingMessage) (any, string, bool) {
	switch wait.ExpectedType {
	case flow.ExpectNumber:
		text := strings.TrimSpace(msg.ReplyText())
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, "", false
		}
		return n, "", true

	case flow.ExpectButton, flow.ExpectList:
		if msg.ReplyID == "" {
			return nil, "", false
		}
		return msg.ReplyID, msg.ReplyID, true

	default: // text
		return msg.ReplyText(), "", true
	}
}

// rejectReply re-suspende con contador de reintentos acotado. Al tercer
// rechazo la ejecución falla y libera el slot del cliente.
func (w *Walker) rejectReply(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) error {
	exec := wctx.Execution
	wait := *exec.Wait
	wait.Retries++

	if wait.Retries >= 3 {
		exec.Fail("too many invalid replies")
		return nil
	}

	if wait.RetryMessage != "" && w.gateway != nil {
		_, err := w.gateway.Send(ctx, exec.ChannelID, exec.CustomerID, engine.OutboundMessage{
			Kind: engine.OutboundText,
			Text: wait.RetryMessage,
		})
		if err != nil {
			log.Printf("⚠️  Failed to send retry prompt: %v", err)
		}
	}

	exec.SuspendForReply(wait)
	return nil
}

// advance mueve la ejecución por la arista del handle; sin arista
// saliente el camino termina y la ejecución se completa.
func (w *Walker) advance(wctx *engine.WalkContext, node *flow.Node, handle string) {
	exec := wctx.Execution
	edge := wctx.Flow.OutgoingEdge(node.ID, handle)
	if edge == nil && handle != "" {
		// Handle con nombre sin arista propia: cae a la default
		edge = wctx.Flow.OutgoingEdge(node.ID, "")
	}
	if edge == nil {
		exec.Complete()
		return
	}
	exec.CurrentNodeID = edge.TargetNodeID
	exec.UpdatedAt = time.Now()
}

func (w *Walker) appendLog(ctx context.Context, exec *engine.Execution, node *flow.Node, status engine.LogStatus, detail string, durationMs int64) {
	if w.logRepo == nil {
		return
	}
	entry := engine.ExecutionLog{
		ID:          uuid.New().String(),
		ExecutionID: exec.ID,
		NodeID:      node.ID,
		NodeType:    node.Type,
		Status:      status,
		Detail:      detail,
		DurationMs:  durationMs,
		CreatedAt:   time.Now(),
	}
	if err := w.logRepo.Append(ctx, entry); err != nil {
		log.Printf("⚠️  Failed to append execution log: %v", err)
	}
}
