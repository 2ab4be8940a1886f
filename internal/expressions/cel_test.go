package expressions

import (
	"context"
	"testing"

	"github.com/rendis/verdict/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCEL(t *testing.T) *CELEngine {
	t.Helper()
	e, err := NewCELEngine()
	require.NoError(t, err)
	return e
}

func TestNewCELEngine(t *testing.T) {
	e := newCEL(t)
	assert.Equal(t, "cel", e.Name())
}

func TestCEL_ConditionOnInput(t *testing.T) {
	e := newCEL(t)
	data := map[string]any{"age": float64(21), "country": "PT"}

	ok, err := e.EvaluateBool(context.Background(), `input.age >= 18 && input.country == "PT"`, data)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvaluateBool(context.Background(), `input.age > 30`, data)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCEL_HasMacro(t *testing.T) {
	e := newCEL(t)

	ok, err := e.EvaluateBool(context.Background(), `has(input.vip) && input.vip`, map[string]any{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCEL_NonBoolCondition(t *testing.T) {
	e := newCEL(t)

	_, err := e.EvaluateBool(context.Background(), `input.age + 1.0`, map[string]any{"age": float64(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected bool")
}

func TestCEL_CompileError(t *testing.T) {
	e := newCEL(t)

	err := e.Compile(`input.age >`)
	require.Error(t, err)
	assert.True(t, schema.IsKind(err, schema.ErrContentDeserialization))
}

func TestCEL_ProgramCached(t *testing.T) {
	e := newCEL(t)

	require.NoError(t, e.Compile(`input.x == 1`))
	require.NoError(t, e.Compile(`input.x == 1`))
	assert.Len(t, e.cache, 1)
}
