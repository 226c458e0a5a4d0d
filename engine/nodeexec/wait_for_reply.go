package nodeexec

import (
	"context"
	"time"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// WaitExecutor suspende la ejecución hasta que el cliente responde.
// La reanudación no pasa por aquí: la maneja el walker al llegar el
// siguiente mensaje del cliente.
type WaitExecutor struct{}

var _ engine.NodeExecutor = (*WaitExecutor)(nil)

func NewWaitExecutor() *WaitExecutor {
	return &WaitExecutor{}
}

func (e *WaitExecutor) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeWaitForReply
}

func (e *WaitExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	config, ok := node.Config.(*flow.WaitForReplyConfig)
	if !ok {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("reason", "unexpected config type")
	}

	wait := engine.WaitState{
		NodeID:       node.ID,
		ExpectedType: config.GetExpectedType(),
		VariableName: config.VariableName,
		RetryMessage: config.RetryMessage,
	}

	if config.TimeoutSeconds != nil {
		expiresAt := time.Now().Add(time.Duration(*config.TimeoutSeconds) * time.Second)
		wait.ExpiresAt = &expiresAt
	}

	return &engine.NodeOutcome{Suspend: &wait}, nil
}
