package engine

import (
	"encoding/json"
	"strings"
)

// DeepCopy recursively copies maps and slices so concurrent handlers never
// share mutable input. Primitives are value types and returned as-is.
func DeepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return nil
		}
		cp := make(map[string]any, len(val))
		for k, item := range val {
			cp[k] = DeepCopy(item)
		}
		return cp
	case []any:
		if val == nil {
			return nil
		}
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = DeepCopy(item)
		}
		return cp
	case json.RawMessage:
		if val == nil {
			return nil
		}
		cp := make(json.RawMessage, len(val))
		copy(cp, val)
		return cp
	default:
		return v
	}
}

// Merge combines two node values. Objects are merged recursively with b
// winning on conflicting keys; any other combination yields b. A nil a
// yields b unchanged. Neither argument is modified.
func Merge(a, b any) any {
	am, aok := a.(map[string]any)
	bm, bok := b.(map[string]any)
	if !aok || !bok {
		if b == nil {
			return a
		}
		return b
	}

	out := make(map[string]any, len(am)+len(bm))
	for k, v := range am {
		out[k] = v
	}
	for k, v := range bm {
		if existing, ok := out[k]; ok {
			out[k] = Merge(existing, v)
			continue
		}
		out[k] = v
	}
	return out
}

// SetPath assigns value at a dotted path inside m, creating intermediate
// objects. Non-object intermediates are replaced.
func SetPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := m
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = value
}

// GetPath reads a dotted path from v. Missing segments yield (nil, false).
func GetPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
