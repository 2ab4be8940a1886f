package expressions

import "strings"

// CellVariable is the identifier a compiled unary test uses for the column
// value.
const CellVariable = "__cell"

// UnaryTest rewrites a decision table input cell into a boolean expr
// expression over CellVariable. It returns "" for cells that match anything.
//
//	""  or "-"        always matches
//	"< 10", ">= 5"    comparison against the column value
//	"'a', 'b'"        membership in the listed values
//	"$ > 1 && $ < 9"  boolean expression, $ is the column value
//	anything else     equality with the cell value
func UnaryTest(cell string) string {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "-" {
		return ""
	}

	if containsDollar(cell) {
		return replaceDollar(cell)
	}

	for _, op := range []string{"<=", ">=", "!=", "==", "<", ">"} {
		if strings.HasPrefix(cell, op) {
			return CellVariable + " " + op + " (" + strings.TrimSpace(cell[len(op):]) + ")"
		}
	}

	if hasTopLevelComma(cell) {
		return CellVariable + " in [" + cell + "]"
	}

	return CellVariable + " == (" + cell + ")"
}

// UnaryEnv builds the environment for a compiled unary test.
func UnaryEnv(input any, value any) map[string]any {
	base := env(input)
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	out[CellVariable] = value
	return out
}

// scanUnquoted calls fn for every byte outside string literals together with
// the current bracket nesting depth.
func scanUnquoted(s string, fn func(i int, depth int)) {
	var quote byte
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
		fn(i, depth)
	}
}

func containsDollar(s string) bool {
	found := false
	scanUnquoted(s, func(i, _ int) {
		if s[i] == '$' {
			found = true
		}
	})
	return found
}

func replaceDollar(s string) string {
	var positions []int
	scanUnquoted(s, func(i, _ int) {
		if s[i] == '$' {
			positions = append(positions, i)
		}
	})
	var b strings.Builder
	last := 0
	for _, p := range positions {
		b.WriteString(s[last:p])
		b.WriteString(CellVariable)
		last = p + 1
	}
	b.WriteString(s[last:])
	return b.String()
}

func hasTopLevelComma(s string) bool {
	found := false
	scanUnquoted(s, func(i, depth int) {
		if s[i] == ',' && depth == 0 {
			found = true
		}
	})
	return found
}
