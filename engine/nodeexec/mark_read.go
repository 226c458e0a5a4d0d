package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// MarkReadExecutor marca como leído el mensaje que disparó este walk
type MarkReadExecutor struct {
	gateway engine.MessageGateway
}

var _ engine.NodeExecutor = (*MarkReadExecutor)(nil)

func NewMarkReadExecutor(gateway engine.MessageGateway) *MarkReadExecutor {
	return &MarkReadExecutor{gateway: gateway}
}

func (e *MarkReadExecutor) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeMarkAsRead
}

func (e *MarkReadExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	if wctx.Message == nil {
		// Reanudaciones por delay no tienen mensaje que marcar
		return engine.Continue(), nil
	}

	if err := e.gateway.MarkAsRead(ctx, wctx.Execution.ChannelID, wctx.Message.ID); err != nil {
		// Fallar el read receipt no justifica romper la conversación
		log.Printf("⚠️  Failed to mark message as read: %v", err)
	}

	return engine.Continue(), nil
}
