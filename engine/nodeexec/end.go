package nodeexec

import (
	"context"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// EndExecutor termina la ejecución, con éxito o como fallo explícito
type EndExecutor struct{}

var _ engine.NodeExecutor = (*EndExecutor)(nil)

func NewEndExecutor() *EndExecutor {
	return &EndExecutor{}
}

func (e *EndExecutor) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeEnd
}

func (e *EndExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	config, ok := node.Config.(*flow.EndConfig)
	if !ok {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("reason", "unexpected config type")
	}

	if config.IsError() {
		reason := config.ErrorMessage
		if reason == "" {
			reason = "flow ended with error"
		}
		return &engine.NodeOutcome{Failed: reason}, nil
	}

	return &engine.NodeOutcome{Completed: true}, nil
}
