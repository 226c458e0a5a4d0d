package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// ConditionExecutor evalúa el set ordenado de reglas: la primera
// verdadera decide el handle; ninguna verdadera cae al default.
type ConditionExecutor struct{}

var _ engine.NodeExecutor = (*ConditionExecutor)(nil)

func NewConditionExecutor() *ConditionExecutor {
	return &ConditionExecutor{}
}

func (e *ConditionExecutor) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeCondition
}

func (e *ConditionExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	config, ok := node.Config.(*flow.ConditionConfig)
	if !ok {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("reason", "unexpected config type")
	}

	handle := engine.FirstMatchingHandle(config, wctx.Execution.Variables)
	log.Printf("🔀 Condition %s → handle %q", node.ID, handle)

	return engine.ContinueWith(handle), nil
}
