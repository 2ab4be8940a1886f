package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/internal/logging"
	"github.com/rendis/verdict/pkg/schema"
)

// DefaultConcurrency is the default number of node handlers of one
// evaluation running at once.
const DefaultConcurrency = 4

// Observer receives timing for every dispatched node and every evaluation.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveNode(kind schema.NodeKind, elapsed time.Duration, err error)
	ObserveEvaluation(depth int, elapsed time.Duration, err error)
}

// Result is the outcome of one (possibly nested) evaluation.
type Result struct {
	Output      any
	Trace       []schema.TraceRecord
	Performance time.Duration
}

// Config holds configuration for the executor.
type Config struct {
	Registry    *capability.Registry
	Handlers    map[schema.NodeKind]Dispatcher
	Concurrency int      // max concurrent node handlers per evaluation
	Observer    Observer // optional
}

// Executor compiles decision documents and evaluates them. It holds no
// per-evaluation state and is safe for concurrent use.
type Executor struct {
	registry    *capability.Registry
	handlers    map[schema.NodeKind]Dispatcher
	concurrency int
	observer    Observer
}

// NewExecutor creates an Executor. The handler table is copied.
func NewExecutor(cfg Config) *Executor {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Registry == nil {
		cfg.Registry = capability.NewRegistry()
	}
	handlers := make(map[schema.NodeKind]Dispatcher, len(cfg.Handlers))
	for k, d := range cfg.Handlers {
		handlers[k] = d
	}
	return &Executor{
		registry:    cfg.Registry,
		handlers:    handlers,
		concurrency: cfg.Concurrency,
		observer:    cfg.Observer,
	}
}

// Registry returns the executor's capability registry.
func (e *Executor) Registry() *capability.Registry {
	return e.registry
}

// Knows reports whether a handler is registered for kind.
func (e *Executor) Knows(kind schema.NodeKind) bool {
	_, ok := e.handlers[kind]
	return ok
}

// Compile validates content and prepares every node.
func (e *Executor) Compile(content *schema.DecisionContent) (*Graph, error) {
	g, err := ParseGraph(content, e.Knows)
	if err != nil {
		return nil, err
	}

	g.prepared = make(map[string]Prepared, len(g.Nodes))
	for _, id := range g.Order {
		node := g.Nodes[id]
		p, err := e.handlers[node.Kind].Prepare(node)
		if err != nil {
			return nil, err
		}
		g.prepared[id] = p
	}
	return g, nil
}

// Evaluate runs a compiled graph against an input context at depth zero.
func (e *Executor) Evaluate(ctx context.Context, g *Graph, input any, opts schema.EvaluationOptions) (*Result, error) {
	if g == nil || g.prepared == nil {
		return nil, schema.NewError(schema.ErrContentDeserialization, "graph was not compiled")
	}
	if logging.EvaluationID(ctx) == "" {
		ctx = logging.WithEvaluationID(ctx, uuid.NewString())
	}
	return e.evaluate(ctx, g, input, opts, 0)
}

func (e *Executor) evaluate(ctx context.Context, g *Graph, input any, opts schema.EvaluationOptions, depth int) (*Result, error) {
	start := time.Now()
	res, err := e.run(ctx, g, input, opts, depth)
	elapsed := time.Since(start)

	if e.observer != nil {
		e.observer.ObserveEvaluation(depth, elapsed, err)
	}

	logger := logging.LogWith(ctx, e.registry.Logger())
	if err != nil {
		logger.Debug("evaluation failed", slog.Int("depth", depth), slog.String("error", err.Error()))
		return nil, err
	}
	res.Performance = elapsed
	logger.Debug("evaluation completed", slog.Int("depth", depth), slog.Duration("elapsed", elapsed))
	return res, nil
}

// evaluation is the mutable state of one run over one graph.
type evaluation struct {
	executor *Executor
	graph    *Graph
	opts     schema.EvaluationOptions
	depth    int
	input    map[string]any

	// Owned by the scheduling goroutine; handlers never touch them.
	results map[string]*NodeResult
	trace   []schema.TraceRecord
}

type dispatch struct {
	id      string
	input   any
	traced  any // snapshot of input taken before dispatch, tracing only
	result  *NodeResult
	err     error
	elapsed time.Duration
}

func (e *Executor) run(ctx context.Context, g *Graph, input any, opts schema.EvaluationOptions, depth int) (*Result, error) {
	var obj map[string]any
	switch v := input.(type) {
	case nil:
		obj = map[string]any{}
	case map[string]any:
		obj = v
	default:
		return nil, schema.NewErrorf(schema.ErrContextDeserialization, "context must be an object, got %s", describe(input))
	}

	ev := &evaluation{
		executor: e,
		graph:    g,
		opts:     opts,
		depth:    depth,
		input:    DeepCopy(obj).(map[string]any),
		results:  make(map[string]*NodeResult, len(g.Nodes)),
	}

	pool := NewWorkerPool(e.concurrency)
	defer pool.Shutdown()

	jobs, err := ev.schedule(ctx, pool)
	if err != nil {
		return nil, err
	}

	if opts.TraceEnabled() {
		ev.trace = make([]schema.TraceRecord, 0, len(jobs))
		for _, level := range g.Levels {
			for _, id := range level {
				if j, ok := jobs[id]; ok {
					ev.record(j)
				}
			}
		}
	}

	return &Result{Output: ev.output(), Trace: ev.trace}, nil
}

// schedule dispatches every node as soon as all of its sources have settled,
// either by running or by being skipped. It returns the executed jobs.
func (ev *evaluation) schedule(parent context.Context, pool *WorkerPool) (map[string]*dispatch, error) {
	g := ev.graph
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	remaining := make(map[string]int, len(g.Nodes))
	var ready []string
	for _, id := range g.Order {
		remaining[id] = len(g.Incoming[id])
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}

	jobs := make(map[string]*dispatch, len(g.Nodes))
	// Buffered so a finishing handler never waits on a blocked Submit.
	done := make(chan *dispatch, len(g.Nodes))
	inflight := 0

	for {
		for len(ready) > 0 && ctx.Err() == nil {
			id := ready[0]
			ready = ready[1:]

			in, active := ev.nodeInput(id)
			if !active {
				ready = append(ready, ev.settle(id, remaining)...)
				continue
			}
			j := &dispatch{id: id, input: in}
			if ev.opts.TraceEnabled() {
				j.traced = DeepCopy(in)
			}
			jobs[id] = j

			err := pool.Submit(ctx, func(c context.Context) error {
				ev.dispatch(c, j)
				return j.err
			}, func(err error) {
				if j.err == nil && err != nil {
					j.err = err
				}
				// Fail fast: nothing new starts once a node has failed.
				if j.err != nil {
					cancel()
				}
				done <- j
			})
			if err != nil {
				j.err = cancelled(err).WithNode(id)
				break
			}
			inflight++
		}

		if inflight == 0 {
			break
		}
		j := <-done
		inflight--
		if j.err == nil {
			ev.results[j.id] = j.result
			ready = append(ready, ev.settle(j.id, remaining)...)
		}
	}

	if err := ev.failure(parent, jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// settle marks id as finished and returns the targets it made ready, in
// edge declaration order.
func (ev *evaluation) settle(id string, remaining map[string]int) []string {
	var next []string
	for _, e := range ev.graph.Outgoing[id] {
		remaining[e.TargetID]--
		if remaining[e.TargetID] == 0 {
			next = append(next, e.TargetID)
		}
	}
	return next
}

// failure picks the first real failure in level order, declaration order
// within a level. Handlers that only stopped because another node failed do
// not mask it.
func (ev *evaluation) failure(ctx context.Context, jobs map[string]*dispatch) error {
	ordered := make([]*dispatch, 0, len(jobs))
	for _, level := range ev.graph.Levels {
		for _, id := range level {
			if j, ok := jobs[id]; ok {
				ordered = append(ordered, j)
			}
		}
	}

	var cancelledErr error
	for _, j := range ordered {
		if j.err == nil {
			continue
		}
		if schema.KindOf(j.err) == schema.ErrCancelled {
			if cancelledErr == nil {
				cancelledErr = j.err
			}
			continue
		}
		return j.err
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	if cancelledErr != nil {
		return cancelledErr
	}
	for _, j := range ordered {
		if j.result == nil {
			return schema.NewError(schema.ErrCancelled, "evaluation stopped before all nodes ran").WithNode(j.id)
		}
	}
	return nil
}

func (ev *evaluation) dispatch(ctx context.Context, j *dispatch) {
	node := ev.graph.Nodes[j.id]
	ctx = logging.WithNodeID(ctx, j.id)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			j.result = nil
			j.err = schema.NewErrorf(schema.ErrNodeExecution, "handler panicked: %v", r).WithNode(j.id)
		}
		j.elapsed = time.Since(start)
		if ev.executor.observer != nil {
			ev.executor.observer.ObserveNode(node.Kind, j.elapsed, j.err)
		}
	}()

	if err := ctx.Err(); err != nil {
		j.err = cancelled(err).WithNode(j.id)
		return
	}

	j.result, j.err = ev.graph.prepared[j.id].Dispatch(ctx, &Request{
		Input:    j.input,
		Depth:    ev.depth,
		Options:  ev.opts,
		Registry: ev.executor.registry,
		Nested:   ev,
	})
	if j.err == nil && j.result == nil {
		j.result = &NodeResult{}
	}
}

// nodeInput builds the private input of a node. Input nodes receive the
// evaluation context; other roots receive an empty object. A node whose
// incoming edges are all inactive is skipped.
func (ev *evaluation) nodeInput(id string) (any, bool) {
	edges := ev.graph.Incoming[id]
	if len(edges) == 0 {
		if ev.graph.Nodes[id].Kind == schema.NodeKindInput {
			return DeepCopy(ev.input), true
		}
		return map[string]any{}, true
	}

	var merged any
	active := false
	for _, edge := range edges {
		res, ok := ev.results[edge.SourceID]
		if !ok || !res.HandleActive(edge.SourceHandle) {
			continue
		}
		active = true
		merged = Merge(merged, DeepCopy(res.Output))
	}
	if merged == nil {
		merged = map[string]any{}
	}
	return merged, active
}

// output merges the executed output nodes, or the executed terminal nodes
// when the graph declares none.
func (ev *evaluation) output() any {
	ids := ev.graph.Outputs
	if len(ids) == 0 {
		for _, id := range ev.graph.Order {
			if ev.graph.IsTerminal(id) {
				ids = append(ids, id)
			}
		}
	}

	var out any
	for _, id := range ids {
		if res, ok := ev.results[id]; ok {
			out = Merge(out, res.Output)
		}
	}
	if out == nil {
		return map[string]any{}
	}
	return out
}

// EvaluateDecision loads, compiles and evaluates a sub-decision at the next
// depth. The depth bound is checked before the loader is consulted.
func (ev *evaluation) EvaluateDecision(ctx context.Context, key string, input any) (*Result, error) {
	next := ev.depth + 1
	if limit := ev.opts.DepthLimit(); next > limit {
		return nil, schema.NewErrorf(schema.ErrRecursionLimit,
			"sub-decision %q exceeds max depth %d", key, limit).
			WithDetails(map[string]any{"depth": next, "max_depth": limit})
	}

	content, err := ev.executor.LoadContent(ctx, key)
	if err != nil {
		return nil, err
	}

	g, err := ev.executor.Compile(content)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithDecisionKey(ctx, key)
	return ev.executor.evaluate(ctx, g, input, ev.opts, next)
}

// LoadContent resolves key through the registry loader. Loader failures are
// reported as LOADER_ERROR; a missing loader is FEATURE_DISABLED.
func (e *Executor) LoadContent(ctx context.Context, key string) (*schema.DecisionContent, error) {
	loader := e.registry.Loader()
	if loader == nil {
		return nil, schema.NewError(schema.ErrFeatureDisabled, "loader feature is disabled")
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	content, err := loader.Load(ctx, key)
	if err != nil {
		var engErr *schema.EngineError
		if errors.As(err, &engErr) && engErr.Kind == schema.ErrLoader {
			return nil, engErr
		}
		return nil, schema.NewErrorf(schema.ErrLoader, "load decision %q: %v", key, err).WithCause(err)
	}
	if content == nil {
		return nil, schema.NewErrorf(schema.ErrLoader, "decision %q not found", key)
	}
	return content, nil
}

func cancelled(err error) *schema.EngineError {
	return schema.NewErrorf(schema.ErrCancelled, "evaluation cancelled: %v", err).WithCause(err)
}

func describe(v any) string {
	switch v.(type) {
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32, uint, uint64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
