package nodeexec

import (
	"context"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// SetVariableExecutor aplica las asignaciones en orden; cada asignación
// ve el efecto de las anteriores.
type SetVariableExecutor struct {
	interpolator engine.Interpolator
}

var _ engine.NodeExecutor = (*SetVariableExecutor)(nil)

func NewSetVariableExecutor(interpolator engine.Interpolator) *SetVariableExecutor {
	return &SetVariableExecutor{interpolator: interpolator}
}

func (e *SetVariableExecutor) SupportsType(nodeType flow.NodeType) bool {
	return nodeType == flow.NodeSetVariable
}

func (e *SetVariableExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	config, ok := node.Config.(*flow.SetVariableConfig)
	if !ok {
		return nil, engine.ErrNodeExecutionFailed().
			WithDetail("node_id", node.ID).
			WithDetail("reason", "unexpected config type")
	}

	exec := wctx.Execution
	for _, assignment := range config.Assignments {
		switch assignment.Source {
		case flow.AssignStatic:
			value, err := e.interpolator.Interpolate(assignment.Value, exec.Variables)
			if err != nil {
				return nil, engine.ErrExpressionFailed().
					WithDetail("node_id", node.ID).
					WithDetail("error", err.Error())
			}
			exec.SetVariable(assignment.Name, value)

		case flow.AssignExpression:
			value, err := e.interpolator.Resolve(assignment.Expression, exec.Variables)
			if err != nil {
				return nil, engine.ErrExpressionFailed().
					WithDetail("node_id", node.ID).
					WithDetail("expression", assignment.Expression).
					WithDetail("error", err.Error())
			}
			exec.SetVariable(assignment.Name, value)

		case flow.AssignFromVariable:
			value, _ := exec.GetVariable(assignment.FromVariable)
			exec.SetVariable(assignment.Name, value)
		}
	}

	return engine.Continue(), nil
}
