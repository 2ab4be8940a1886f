package schema

// DefaultMaxDepth bounds nested sub-decision recursion when no explicit
// limit is set.
const DefaultMaxDepth = 5

// TraceKind selects whether an evaluation collects a per-node trace.
type TraceKind int

const (
	TraceNone TraceKind = iota
	TraceDefault
)

func (k TraceKind) String() string {
	if k == TraceDefault {
		return "default"
	}
	return "none"
}

// EvaluationOptions control a single top-level evaluate call. They are
// immutable for the duration of the call and shared by nested evaluations.
type EvaluationOptions struct {
	Trace TraceKind
	// MaxDepth bounds sub-decision nesting. Nil selects DefaultMaxDepth;
	// zero forbids sub-decisions.
	MaxDepth *int
}

// Depth returns n as a MaxDepth value.
func Depth(n int) *int { return &n }

// DepthLimit returns the effective nesting bound. Negative bounds are zero.
func (o EvaluationOptions) DepthLimit() int {
	if o.MaxDepth == nil {
		return DefaultMaxDepth
	}
	if *o.MaxDepth < 0 {
		return 0
	}
	return *o.MaxDepth
}

// TraceEnabled reports whether trace records are collected.
func (o EvaluationOptions) TraceEnabled() bool {
	return o.Trace != TraceNone
}
