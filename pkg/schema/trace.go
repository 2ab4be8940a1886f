package schema

// TraceRecord is the diagnostic record of one executed node. Records are
// only produced when tracing is requested; Order is the execution position.
type TraceRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Kind        NodeKind `json:"kind"`
	Order       int      `json:"order"`
	Input       any      `json:"input"`
	Output      any      `json:"output"`
	Performance string   `json:"performance,omitempty"`
	TraceData   any      `json:"traceData,omitempty"`
}

// EvaluationResult is the outcome of a successful evaluation.
type EvaluationResult struct {
	Result      any           `json:"result"`
	Performance string        `json:"performance"`
	Trace       []TraceRecord `json:"trace,omitempty"`
}
