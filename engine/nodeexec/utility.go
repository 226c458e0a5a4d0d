package nodeexec

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/Abraxas-365/chatflow/engine"
	"github.com/Abraxas-365/chatflow/flow"
)

// UtilityExecutor cubre los nodos de transformación pura: teléfono,
// fechas, aritmética, texto y elección aleatoria. Ninguno toca el canal.
type UtilityExecutor struct {
	interpolator engine.Interpolator
}

var _ engine.NodeExecutor = (*UtilityExecutor)(nil)

func NewUtilityExecutor(interpolator engine.Interpolator) *UtilityExecutor {
	return &UtilityExecutor{interpolator: interpolator}
}

func (e *UtilityExecutor) SupportsType(nodeType flow.NodeType) bool {
	switch nodeType {
	case flow.NodeFormatPhoneNumber, flow.NodeDateTime,
		flow.NodeMathOperation, flow.NodeTextOperation, flow.NodeRandomChoice:
		return true
	}
	return false
}

func (e *UtilityExecutor) Execute(ctx context.Context, wctx *engine.WalkContext, node *flow.Node) (*engine.NodeOutcome, error) {
	switch config := node.Config.(type) {
	case *flow.FormatPhoneConfig:
		return e.formatPhone(wctx, config)
	case *flow.DateTimeConfig:
		return e.dateTime(wctx, config)
	case *flow.MathConfig:
		return e.mathOperation(wctx, node, config)
	case *flow.TextConfig:
		return e.textOperation(wctx, config)
	case *flow.RandomChoiceConfig:
		return e.randomChoice(wctx, config)
	}

	return nil, engine.ErrNodeExecutionFailed().
		WithDetail("node_id", node.ID).
		WithDetail("reason", "unexpected config type")
}

// formatPhone normaliza a E.164: dígitos con código de país al frente
func (e *UtilityExecutor) formatPhone(wctx *engine.WalkContext, config *flow.FormatPhoneConfig) (*engine.NodeOutcome, error) {
	raw, _ := wctx.Execution.GetVariable(config.Variable)
	phone := strings.TrimSpace(fmt.Sprintf("%v", raw))

	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	normalized := digits.String()

	countryCode := config.DefaultCountryCode
	if countryCode == "" {
		countryCode = wctx.DefaultCountryCode
	}
	countryCode = strings.TrimPrefix(countryCode, "+")

	if countryCode != "" && !strings.HasPrefix(normalized, countryCode) {
		// Números locales con cero inicial lo pierden al internacionalizar
		normalized = countryCode + strings.TrimPrefix(normalized, "0")
	}

	if normalized != "" {
		normalized = "+" + normalized
	}

	wctx.Execution.SetVariable(config.OutputVariable, normalized)
	return engine.Continue(), nil
}

func (e *UtilityExecutor) dateTime(wctx *engine.WalkContext, config *flow.DateTimeConfig) (*engine.NodeOutcome, error) {
	exec := wctx.Execution
	layout := config.Format
	if layout == "" {
		layout = time.RFC3339
	}

	switch config.Operation {
	case "now", "":
		exec.SetVariable(config.OutputVariable, time.Now().UTC().Format(layout))

	case "format":
		t, err := e.resolveTime(exec, config.Variable)
		if err != nil {
			return nil, err
		}
		exec.SetVariable(config.OutputVariable, t.Format(layout))

	case "add":
		t, err := e.resolveTime(exec, config.Variable)
		if err != nil {
			return nil, err
		}
		exec.SetVariable(config.OutputVariable, t.Add(time.Duration(config.AddSeconds)*time.Second).Format(layout))
	}

	return engine.Continue(), nil
}

func (e *UtilityExecutor) resolveTime(exec *engine.Execution, variable string) (time.Time, error) {
	if variable == "" {
		return time.Now().UTC(), nil
	}
	raw, _ := exec.GetVariable(variable)
	s := fmt.Sprintf("%v", raw)
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, engine.ErrNodeExecutionFailed().
			WithDetail("reason", "variable is not an RFC3339 timestamp").
			WithDetail("value", s)
	}
	return t, nil
}

func (e *UtilityExecutor) mathOperation(wctx *engine.WalkContext, node *flow.Node, config *flow.MathConfig) (*engine.NodeOutcome, error) {
	exec := wctx.Execution

	left, err := e.resolveNumber(exec, config.Left)
	if err != nil {
		return nil, err
	}

	var result float64
	if config.Operation == "round" {
		result = math.Round(left)
	} else {
		right, err := e.resolveNumber(exec, config.Right)
		if err != nil {
			return nil, err
		}

		switch config.Operation {
		case "add":
			result = left + right
		case "subtract":
			result = left - right
		case "multiply":
			result = left * right
		case "divide":
			if right == 0 {
				return nil, engine.ErrNodeExecutionFailed().
					WithDetail("node_id", node.ID).
					WithDetail("reason", "division by zero")
			}
			result = left / right
		case "modulo":
			if right == 0 {
				return nil, engine.ErrNodeExecutionFailed().
					WithDetail("node_id", node.ID).
					WithDetail("reason", "modulo by zero")
			}
			result = math.Mod(left, right)
		}
	}

	exec.SetVariable(config.OutputVariable, result)
	return engine.Continue(), nil
}

// resolveNumber acepta un literal ("42"), una variable o un placeholder
func (e *UtilityExecutor) resolveNumber(exec *engine.Execution, operand string) (float64, error) {
	operand = strings.TrimSpace(operand)

	if n, err := strconv.ParseFloat(operand, 64); err == nil {
		return n, nil
	}

	value, err := e.interpolator.Resolve(operand, exec.Variables)
	if err != nil {
		return 0, engine.ErrExpressionFailed().
			WithDetail("operand", operand).
			WithDetail("error", err.Error())
	}

	switch v := value.(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return n, nil
		}
	}

	return 0, engine.ErrNodeExecutionFailed().
		WithDetail("operand", operand).
		WithDetail("reason", "operand is not numeric")
}

func (e *UtilityExecutor) textOperation(wctx *engine.WalkContext, config *flow.TextConfig) (*engine.NodeOutcome, error) {
	exec := wctx.Execution

	input, err := e.interpolator.Interpolate(config.Input, exec.Variables)
	if err != nil {
		return nil, engine.ErrExpressionFailed().WithDetail("error", err.Error())
	}

	var result any
	switch config.Operation {
	case "uppercase":
		result = strings.ToUpper(input)
	case "lowercase":
		result = strings.ToLower(input)
	case "trim":
		result = strings.TrimSpace(input)
	case "replace":
		result = strings.ReplaceAll(input, config.Search, config.Replace)
	case "split":
		separator := config.Separator
		if separator == "" {
			separator = ","
		}
		parts := strings.Split(input, separator)
		items := make([]any, len(parts))
		for i, p := range parts {
			items[i] = strings.TrimSpace(p)
		}
		result = items
	case "concat":
		second, err := e.interpolator.Interpolate(config.Second, exec.Variables)
		if err != nil {
			return nil, engine.ErrExpressionFailed().WithDetail("error", err.Error())
		}
		result = input + second
	case "substring":
		runes := []rune(input)
		start := clamp(config.Start, 0, len(runes))
		end := config.End
		if end <= 0 || end > len(runes) {
			end = len(runes)
		}
		if start > end {
			start = end
		}
		result = string(runes[start:end])
	}

	exec.SetVariable(config.OutputVariable, result)
	return engine.Continue(), nil
}

func (e *UtilityExecutor) randomChoice(wctx *engine.WalkContext, config *flow.RandomChoiceConfig) (*engine.NodeOutcome, error) {
	choice := config.Choices[rand.Intn(len(config.Choices))]

	interpolated, err := e.interpolator.Interpolate(choice, wctx.Execution.Variables)
	if err != nil {
		return nil, engine.ErrExpressionFailed().WithDetail("error", err.Error())
	}

	wctx.Execution.SetVariable(config.OutputVariable, interpolated)
	return engine.Continue(), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
