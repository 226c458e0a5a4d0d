package nodeexec

import (
	"context"
	"log"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// Handles salientes de un nodo loop
const (
	LoopHandleBody = "loop"
	LoopHandleDone = "done"
)

// LoopExecutor cuenta iteraciones en una variable interna de la
// ejecución, así el conteo sobrevive suspensiones dentro del cuerpo.
// MaxIterations es el tope duro en los tres modos.
type LoopExecutor struct{}

var _ engine.NodeExecutor = (*LoopExecutor)(nil)

func NewLoopExecutor() *LoopExecutor {
	return &LoopExecutor{}
}

func (e *LoopExecutor) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeLoop
}

func (e *LoopExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	config, ok := node.Config.(*flow.LoopConfig)
	if !ok {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("reason", "unexpected config type")
	}

	exec := wctx.Execution
	iteration := exec.LoopCounter(node.ID)

	if iteration >= config.MaxIterations {
		return e.exitLoop(exec, node.ID), nil
	}

	switch config.Mode {
	case flow.LoopWhile:
		if !engine.EvaluateRule(*config.Condition, exec.Variables) {
			return e.exitLoop(exec, node.ID), nil
		}

	case flow.LoopForeach:
		items := e.collectionItems(exec, config.Collection)
		if iteration >= len(items) {
			return e.exitLoop(exec, node.ID), nil
		}
		exec.SetVariable(config.ItemVariable, items[iteration])
	}

	if config.IndexVariable != "" {
		exec.SetVariable(config.IndexVariable, iteration)
	}
	exec.SetVariable(engine.LoopCounterKey(node.ID), iteration+1)

	log.Printf("🔁 Loop %s iteration %d", node.ID, iteration+1)
	return engine.ContinueWith(LoopHandleBody), nil
}

func (e *LoopExecutor) exitLoop(exec *engine.Execution, nodeID string) *engine.NodeOutcome {
	exec.ResetLoopCounter(nodeID)
	return engine.ContinueWith(LoopHandleDone)
}

// collectionItems resuelve la colección del foreach; cualquier cosa
// que no sea una lista itera cero veces.
func (e *LoopExecutor) collectionItems(exec *engine.Execution, variable string) []any {
	value, ok := exec.GetVariable(variable)
	if !ok {
		return nil
	}
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items
	}
	return nil
}
