package engine

import (
	"fmt"
	"log"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
)

// celInterpolator resuelve placeholders {{...}} sobre las variables de
// la ejecución. Primero intenta un lookup simple por path con puntos;
// si eso no resuelve, compila la expresión con CEL.
type celInterpolator struct {
	expressionRegex *regexp.Regexp
}

var _ Interpolator = (*celInterpolator)(nil)

func NewInterpolator() Interpolator {
	return &celInterpolator{
		expressionRegex: regexp.MustCompile(`\{\{([^}]+)\}\}`),
	}
}

// Interpolate reemplaza cada {{expr}} dentro del string. Un placeholder
// que no resuelve se reemplaza por string vacío; la interpolación nunca
// rompe el walk por una variable ausente.
func (i *celInterpolator) Interpolate(s string, vars map[string]any) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	var evalErr error
	result := i.expressionRegex.ReplaceAllStringFunc(s, func(match string) string {
		expr := strings.TrimSpace(i.expressionRegex.FindStringSubmatch(match)[1])

		if value, found := getNestedValue(vars, expr); found {
			return stringify(value)
		}

		value, err := i.evaluateCEL(expr, vars)
		if err != nil {
			// Variable ausente o expresión inválida: placeholder vacío
			log.Printf("⚠️  Unresolved placeholder '%s': %v", expr, err)
			return ""
		}
		return stringify(value)
	})

	return result, evalErr
}

// Resolve evalúa una expresión sola preservando el tipo del resultado
func (i *celInterpolator) Resolve(expr string, vars map[string]any) (any, error) {
	expr = strings.TrimSpace(expr)

	// Soportar tanto "{{age}}" como "age" directamente
	if matches := i.expressionRegex.FindStringSubmatch(expr); len(matches) > 0 && expr == matches[0] {
		expr = strings.TrimSpace(matches[1])
	}

	if value, found := getNestedValue(vars, expr); found {
		return value, nil
	}

	return i.evaluateCEL(expr, vars)
}

// InterpolateMap interpola cada valor del mapa (headers, mappings)
func (i *celInterpolator) InterpolateMap(m map[string]string, vars map[string]any) (map[string]string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for key, value := range m {
		interpolated, err := i.Interpolate(value, vars)
		if err != nil {
			return nil, err
		}
		out[key] = interpolated
	}
	return out, nil
}

// evaluateCEL compila y corre una expresión CEL contra las variables
func (i *celInterpolator) evaluateCEL(expression string, vars map[string]any) (any, error) {
	var envOptions []cel.EnvOption
	for key := range vars {
		envOptions = append(envOptions, cel.Variable(key, cel.DynType))
	}

	env, err := cel.NewEnv(envOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	parsed, issues := env.Parse(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to parse expression '%s': %w", expression, issues.Err())
	}

	checked, issues := env.Check(parsed)
	if issues != nil && issues.Err() != nil {
		// Los datos son dinámicos, el check puede quejarse sin razón
		checked = parsed
	}

	prg, err := env.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for '%s': %w", expression, err)
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression '%s': %w", expression, err)
	}

	return convertToNative(out)
}

// convertToNative convierte un ref.Val de CEL a un tipo nativo de Go
func convertToNative(val ref.Val) (any, error) {
	if val == nil || val.Value() == nil {
		return nil, nil
	}
	native, err := val.ConvertToNative(reflect.TypeOf(map[string]any{}))
	if err == nil {
		return native, nil
	}
	return val.Value(), nil
}

// getNestedValue lookup simple por path con puntos, sin pasar por CEL
func getNestedValue(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	current := any(data)

	for _, part := range parts {
		switch v := current.(type) {
		case map[string]any:
			if val, ok := v[part]; ok {
				current = val
			} else {
				return nil, false
			}
		default:
			return nil, false
		}
	}

	return current, true
}

// stringify renderiza un valor para sustitución dentro de un string
func stringify(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// Los enteros que pasaron por JSON no deben renderizar ".000000"
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
