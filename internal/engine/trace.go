package engine

import "github.com/rendis/verdict/pkg/schema"

// record appends the trace record of a successful dispatch. Order is the
// position in the evaluation's trace, so records of one level follow
// declaration order.
func (ev *evaluation) record(j *dispatch) {
	node := ev.graph.Nodes[j.id]
	ev.trace = append(ev.trace, schema.TraceRecord{
		ID:          node.ID,
		Name:        node.Name,
		Kind:        node.Kind,
		Order:       len(ev.trace),
		Input:       j.traced,
		Output:      DeepCopy(j.result.Output),
		Performance: j.elapsed.String(),
		TraceData:   j.result.TraceData,
	})
}

// TraceIDs lists the node IDs of a trace in execution order.
func TraceIDs(trace []schema.TraceRecord) []string {
	ids := make([]string, len(trace))
	for i, rec := range trace {
		ids[i] = rec.ID
	}
	return ids
}
