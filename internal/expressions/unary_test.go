package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnaryTest_Rewrite(t *testing.T) {
	cases := []struct {
		cell string
		want string
	}{
		{"", ""},
		{"  -  ", ""},
		{"> 10", "__cell > (10)"},
		{"<=5", "__cell <= (5)"},
		{`!= "x"`, `__cell != ("x")`},
		{`"a", "b"`, `__cell in ["a", "b"]`},
		{`"a,b"`, `__cell == ("a,b")`},
		{"$ > 1 && $ < 9", "__cell > 1 && __cell < 9"},
		{`"$"`, `__cell == ("$")`},
		{"[1, 2]", "__cell == ([1, 2])"},
		{"42", "__cell == (42)"},
	}
	for _, tc := range cases {
		t.Run(tc.cell, func(t *testing.T) {
			assert.Equal(t, tc.want, UnaryTest(tc.cell))
		})
	}
}

func TestUnaryTest_Evaluate(t *testing.T) {
	e := NewExprEngine()
	input := map[string]any{"limit": float64(100)}

	cases := []struct {
		cell  string
		value any
		want  bool
	}{
		{"> 10", float64(12), true},
		{"> 10", float64(2), false},
		{`"gold", "silver"`, "silver", true},
		{`"gold", "silver"`, "bronze", false},
		{"$ < limit", float64(99), true},
		{"12", float64(12), true},
	}
	for _, tc := range cases {
		t.Run(tc.cell, func(t *testing.T) {
			out, err := e.Evaluate(context.Background(), UnaryTest(tc.cell), UnaryEnv(input, tc.value))
			require.NoError(t, err)
			assert.Equal(t, tc.want, out)
		})
	}
}
