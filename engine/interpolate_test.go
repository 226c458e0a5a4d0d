package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpolate_SimpleVariable(t *testing.T) {
	i := NewInterpolator()

	out, err := i.Interpolate("Hola {{name}}!", map[string]any{"name": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "Hola Ana!", out)
}

func TestInterpolate_NestedPath(t *testing.T) {
	i := NewInterpolator()
	vars := map[string]any{
		"api_response": map[string]any{
			"user": map[string]any{"city": "Lima"},
		},
	}

	out, err := i.Interpolate("Vives en {{api_response.user.city}}", vars)
	require.NoError(t, err)
	assert.Equal(t, "Vives en Lima", out)
}

func TestInterpolate_MissingVariableBecomesEmpty(t *testing.T) {
	i := NewInterpolator()

	out, err := i.Interpolate("Hola {{nombre}}!", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Hola !", out)
}

func TestInterpolate_WholeNumbersRenderWithoutDecimals(t *testing.T) {
	i := NewInterpolator()

	// Los números que pasaron por JSON llegan como float64
	out, err := i.Interpolate("Tienes {{points}} puntos", map[string]any{"points": float64(42)})
	require.NoError(t, err)
	assert.Equal(t, "Tienes 42 puntos", out)
}

func TestInterpolate_NoPlaceholders(t *testing.T) {
	i := NewInterpolator()

	out, err := i.Interpolate("sin variables", nil)
	require.NoError(t, err)
	assert.Equal(t, "sin variables", out)
}

func TestResolve_PreservesType(t *testing.T) {
	i := NewInterpolator()
	vars := map[string]any{"age": float64(25)}

	v, err := i.Resolve("{{age}}", vars)
	require.NoError(t, err)
	assert.Equal(t, float64(25), v)

	// También sin llaves
	v, err = i.Resolve("age", vars)
	require.NoError(t, err)
	assert.Equal(t, float64(25), v)
}

func TestResolve_CELExpression(t *testing.T) {
	i := NewInterpolator()
	vars := map[string]any{"a": float64(2), "b": float64(3)}

	v, err := i.Resolve("a + b", vars)
	require.NoError(t, err)
	assert.Equal(t, float64(5), v)
}

func TestResolve_UnknownVariableFails(t *testing.T) {
	i := NewInterpolator()

	_, err := i.Resolve("missing_var", map[string]any{})
	assert.Error(t, err)
}

func TestInterpolateMap(t *testing.T) {
	i := NewInterpolator()
	vars := map[string]any{"token": "abc123"}

	out, err := i.InterpolateMap(map[string]string{
		"Authorization": "Bearer {{token}}",
		"Accept":        "application/json",
	}, vars)
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc123", out["Authorization"])
	assert.Equal(t, "application/json", out["Accept"])
}
