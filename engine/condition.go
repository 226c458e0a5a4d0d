package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Abraxas-365/chatflow/flow"
)

// EvaluateRule evalúa una regla de condición contra las variables.
// Las reglas nunca fallan: un operando que no coerciona a número, una
// regex inválida o una variable ausente hacen la regla falsa.
func EvaluateRule(rule flow.ConditionRule, vars map[string]any) bool {
	value, exists := getNestedValue(vars, rule.Variable)

	switch rule.Operator {
	case flow.OpExists:
		return exists
	case flow.OpNotExists:
		return !exists
	}

	if !exists {
		return false
	}

	actual := stringify(value)

	switch rule.Operator {
	case flow.OpEquals:
		return actual == rule.Value

	case flow.OpContains:
		return strings.Contains(actual, rule.Value)

	case flow.OpGt:
		left, right, ok := coerceNumbers(value, rule.Value)
		return ok && left > right

	case flow.OpLt:
		left, right, ok := coerceNumbers(value, rule.Value)
		return ok && left < right

	case flow.OpRegex:
		re, err := regexp.Compile(rule.Value)
		if err != nil {
			return false
		}
		return re.MatchString(actual)
	}

	return false
}

// FirstMatchingHandle evalúa las reglas en orden y retorna el handle de
// la primera verdadera, o el default si ninguna lo es.
func FirstMatchingHandle(config *flow.ConditionConfig, vars map[string]any) string {
	for _, rule := range config.Conditions {
		if EvaluateRule(rule, vars) {
			return rule.OutputHandle
		}
	}
	return config.DefaultHandle
}

// coerceNumbers convierte ambos operandos a float64; ok=false si
// cualquiera no es numérico.
func coerceNumbers(actual any, expected string) (float64, float64, bool) {
	left, ok := toFloat(actual)
	if !ok {
		return 0, 0, false
	}
	right, err := strconv.ParseFloat(strings.TrimSpace(expected), 64)
	if err != nil {
		return 0, 0, false
	}
	return left, right, true
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	case bool:
		return 0, false
	}
	f, err := strconv.ParseFloat(fmt.Sprintf("%v", value), 64)
	return f, err == nil
}
