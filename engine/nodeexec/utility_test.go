package nodeexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
	"github.com/Abraxas-365/chatflow/pkg/kernel"
)

func newUtilityContext(vars map[string]any) *engine.WalkContext {
	f := &flow.Flow{
		ID:        kernel.NewFlowID("flow_util"),
		OrgID:     kernel.NewOrgID("org_1"),
		ChannelID: kernel.NewChannelID("111222333"),
	}
	exec := engine.NewExecution(f, kernel.NewCustomerID("51999888777"))
	for k, v := range vars {
		exec.SetVariable(k, v)
	}
	return &engine.WalkContext{Flow: f, Execution: exec}
}

func runUtility(t *testing.T, wctx *engine.WalkContext, config flow.NodeConfig) *engine.NodeOutcome {
	t.Helper()
	executor := NewUtilityExecutor(engine.NewInterpolator())
	node := &flow.Node{ID: "n-util", Type: config.GetType(), Config: config}
	outcome, err := executor.Execute(context.Background(), wctx, node)
	require.NoError(t, err)
	return outcome
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		countryCode string
		want        string
	}{
		{"local con espacios", "999 888 777", "51", "+51999888777"},
		{"ya internacional", "51999888777", "51", "+51999888777"},
		{"cero inicial se descarta", "0999888777", "51", "+51999888777"},
		{"con símbolos", "(999) 888-777", "+51", "+51999888777"},
		{"sin código de país", "999888777", "", "+999888777"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wctx := newUtilityContext(map[string]any{"phone": tt.input})
			runUtility(t, wctx, &flow.FormatPhoneConfig{
				Variable:           "phone",
				OutputVariable:     "formatted",
				DefaultCountryCode: tt.countryCode,
			})

			got, _ := wctx.Execution.GetVariable("formatted")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatPhone_ChannelCountryCodeFallback(t *testing.T) {
	wctx := newUtilityContext(map[string]any{"phone": "999888777"})
	wctx.DefaultCountryCode = "51"

	runUtility(t, wctx, &flow.FormatPhoneConfig{
		Variable:       "phone",
		OutputVariable: "formatted",
	})

	got, _ := wctx.Execution.GetVariable("formatted")
	assert.Equal(t, "+51999888777", got)
}

func TestMathOperation(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		left      string
		right     string
		want      float64
	}{
		{"suma de literales", "add", "2", "3", 5},
		{"resta", "subtract", "10", "4", 6},
		{"multiplicación con variable", "multiply", "{{price}}", "2", 25},
		{"división", "divide", "10", "4", 2.5},
		{"módulo", "modulo", "10", "3", 1},
		{"redondeo", "round", "2.6", "", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wctx := newUtilityContext(map[string]any{"price": float64(12.5)})
			runUtility(t, wctx, &flow.MathConfig{
				Operation:      tt.operation,
				Left:           tt.left,
				Right:          tt.right,
				OutputVariable: "result",
			})

			got, _ := wctx.Execution.GetVariable("result")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMathOperation_DivisionByZero(t *testing.T) {
	executor := NewUtilityExecutor(engine.NewInterpolator())
	wctx := newUtilityContext(nil)
	node := &flow.Node{ID: "n-math", Type: flow.NodeMathOperation, Config: &flow.MathConfig{
		Operation:      "divide",
		Left:           "1",
		Right:          "0",
		OutputVariable: "result",
	}}

	_, err := executor.Execute(context.Background(), wctx, node)
	require.Error(t, err)
}

func TestMathOperation_NonNumericOperand(t *testing.T) {
	executor := NewUtilityExecutor(engine.NewInterpolator())
	wctx := newUtilityContext(map[string]any{"name": "Ana"})
	node := &flow.Node{ID: "n-math", Type: flow.NodeMathOperation, Config: &flow.MathConfig{
		Operation:      "add",
		Left:           "{{name}}",
		Right:          "1",
		OutputVariable: "result",
	}}

	_, err := executor.Execute(context.Background(), wctx, node)
	require.Error(t, err)
}

func TestTextOperation(t *testing.T) {
	tests := []struct {
		name   string
		config *flow.TextConfig
		want   any
	}{
		{
			"uppercase con interpolación",
			&flow.TextConfig{Operation: "uppercase", Input: "hola {{name}}", OutputVariable: "out"},
			"HOLA ANA",
		},
		{
			"lowercase",
			&flow.TextConfig{Operation: "lowercase", Input: "HOLA", OutputVariable: "out"},
			"hola",
		},
		{
			"trim",
			&flow.TextConfig{Operation: "trim", Input: "  hola  ", OutputVariable: "out"},
			"hola",
		},
		{
			"replace",
			&flow.TextConfig{Operation: "replace", Input: "a-b-c", Search: "-", Replace: ".", OutputVariable: "out"},
			"a.b.c",
		},
		{
			"concat",
			&flow.TextConfig{Operation: "concat", Input: "hola ", Second: "{{name}}", OutputVariable: "out"},
			"hola ANA",
		},
		{
			"substring",
			&flow.TextConfig{Operation: "substring", Input: "abcdef", Start: 1, End: 4, OutputVariable: "out"},
			"bcd",
		},
		{
			"substring fuera de rango",
			&flow.TextConfig{Operation: "substring", Input: "abc", Start: 10, End: 20, OutputVariable: "out"},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wctx := newUtilityContext(map[string]any{"name": "ANA"})
			runUtility(t, wctx, tt.config)

			got, _ := wctx.Execution.GetVariable("out")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextOperation_Split(t *testing.T) {
	wctx := newUtilityContext(nil)
	runUtility(t, wctx, &flow.TextConfig{
		Operation:      "split",
		Input:          "uno, dos ,tres",
		OutputVariable: "parts",
	})

	got, _ := wctx.Execution.GetVariable("parts")
	assert.Equal(t, []any{"uno", "dos", "tres"}, got)
}

func TestRandomChoice_AlwaysFromChoices(t *testing.T) {
	choices := []string{"rojo", "verde", "azul"}
	seen := make(map[string]bool)

	for i := 0; i < 20; i++ {
		wctx := newUtilityContext(nil)
		runUtility(t, wctx, &flow.RandomChoiceConfig{
			Choices:        choices,
			OutputVariable: "color",
		})

		got, ok := wctx.Execution.GetVariable("color")
		require.True(t, ok)
		seen[got.(string)] = true
	}

	for choice := range seen {
		assert.Contains(t, choices, choice)
	}
}

func TestDateTime_NowUsesFormat(t *testing.T) {
	wctx := newUtilityContext(nil)
	runUtility(t, wctx, &flow.DateTimeConfig{
		Operation:      "now",
		Format:         "2006-01-02",
		OutputVariable: "today",
	})

	got, ok := wctx.Execution.GetVariable("today")
	require.True(t, ok)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, got)
}

func TestDateTime_AddSeconds(t *testing.T) {
	wctx := newUtilityContext(map[string]any{"start": "2026-01-15T10:00:00Z"})
	runUtility(t, wctx, &flow.DateTimeConfig{
		Operation:      "add",
		Variable:       "start",
		AddSeconds:     3600,
		OutputVariable: "later",
	})

	got, _ := wctx.Execution.GetVariable("later")
	assert.Equal(t, "2026-01-15T11:00:00Z", got)
}
