package nodeexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

func runSetVariable(t *testing.T, wctx *engine.WalkContext, assignments ...flow.VariableAssignment) {
	t.Helper()
	executor := NewSetVariableExecutor(engine.NewInterpolator())
	node := &flow.Node{ID: "n-set", Type: flow.NodeSetVariable, Config: &flow.SetVariableConfig{
		Assignments: assignments,
	}}
	outcome, err := executor.Execute(context.Background(), wctx, node)
	require.NoError(t, err)
	assert.Empty(t, outcome.Handle)
}

func TestSetVariable_StaticWithInterpolation(t *testing.T) {
	wctx := newUtilityContext(map[string]any{"name": "Ana"})

	runSetVariable(t, wctx, flow.VariableAssignment{
		Name:   "greeting",
		Source: flow.AssignStatic,
		Value:  "Hola {{name}}",
	})

	got, _ := wctx.Execution.GetVariable("greeting")
	assert.Equal(t, "Hola Ana", got)
}

func TestSetVariable_ExpressionKeepsType(t *testing.T) {
	wctx := newUtilityContext(map[string]any{"price": float64(10), "qty": float64(3)})

	runSetVariable(t, wctx, flow.VariableAssignment{
		Name:       "total",
		Source:     flow.AssignExpression,
		Expression: "price * qty",
	})

	got, _ := wctx.Execution.GetVariable("total")
	assert.Equal(t, float64(30), got)
}

func TestSetVariable_FromVariable(t *testing.T) {
	wctx := newUtilityContext(map[string]any{"source": []any{"a", "b"}})

	runSetVariable(t, wctx, flow.VariableAssignment{
		Name:         "copy",
		Source:       flow.AssignFromVariable,
		FromVariable: "source",
	})

	got, _ := wctx.Execution.GetVariable("copy")
	assert.Equal(t, []any{"a", "b"}, got)
}

func TestSetVariable_AssignmentsSeeEarlierOnes(t *testing.T) {
	wctx := newUtilityContext(nil)

	runSetVariable(t, wctx,
		flow.VariableAssignment{Name: "first", Source: flow.AssignStatic, Value: "uno"},
		flow.VariableAssignment{Name: "second", Source: flow.AssignStatic, Value: "{{first}}-dos"},
	)

	got, _ := wctx.Execution.GetVariable("second")
	assert.Equal(t, "uno-dos", got)
}

func TestCountryFromPhone(t *testing.T) {
	assert.Equal(t, "PE", countryFromPhone("51999888777", ""))
	assert.Equal(t, "MX", countryFromPhone("5215512345678", ""))
	assert.Equal(t, "US", countryFromPhone("14155551234", ""))
	// Sin prefijo conocido cae al país del canal
	assert.Equal(t, "PE", countryFromPhone("999888777", "PE"))
}
