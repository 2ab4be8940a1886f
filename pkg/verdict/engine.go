// Package verdict is the embedding API of the decision engine. An Engine
// owns the capability registry and the node dispatch table; Decisions are
// compiled graphs that can be evaluated concurrently.
package verdict

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/internal/logging"
	"github.com/rendis/verdict/internal/metrics"
	"github.com/rendis/verdict/internal/nodes"
	"github.com/rendis/verdict/internal/validation"
	"github.com/rendis/verdict/pkg/schema"
)

type options struct {
	listeners   []capability.Listener
	concurrency int
	observer    engine.Observer
}

// Option configures an Engine.
type Option func(*options)

// WithListeners installs capabilities. Later listeners override earlier ones.
func WithListeners(listeners ...Listener) Option {
	return func(o *options) { o.listeners = append(o.listeners, listeners...) }
}

// WithLogger enables the logging capability.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.listeners = append(o.listeners, capability.ConsoleListener{Logger: logger})
	}
}

// WithConcurrency bounds parallel node dispatch within one evaluation level.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithObserver installs an observer notified of every node and evaluation.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithMetrics registers evaluation metrics on registry.
func WithMetrics(registry *prometheus.Registry) Option {
	return func(o *options) { o.observer = metrics.NewCollector(metrics.Config{}, registry) }
}

// Engine compiles and evaluates decisions. It is safe for concurrent use.
type Engine struct {
	executor  *engine.Executor
	validator *validation.JSONSchemaValidator
}

// NewEngine creates an Engine.
func NewEngine(opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	deps, err := nodes.NewDeps()
	if err != nil {
		return nil, err
	}

	return &Engine{
		executor: engine.NewExecutor(engine.Config{
			Registry:    capability.NewRegistry(o.listeners...),
			Handlers:    nodes.Handlers(deps),
			Concurrency: o.concurrency,
			Observer:    o.observer,
		}),
		validator: deps.Validator,
	}, nil
}

// ParseDecision validates a JSON decision document and compiles it.
func (e *Engine) ParseDecision(data []byte) (*Decision, error) {
	if err := e.validator.ValidateContent(data); err != nil {
		return nil, err
	}
	var content schema.DecisionContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, schema.NewErrorf(schema.ErrContentDeserialization, "invalid decision content: %v", err).WithCause(err)
	}
	return e.compile(&content)
}

// CreateDecision validates content and compiles it into a Decision.
func (e *Engine) CreateDecision(content *schema.DecisionContent) (*Decision, error) {
	if err := e.validator.ValidateDecision(content); err != nil {
		return nil, err
	}
	return e.compile(content)
}

// Validate reports whether data is a well-formed decision document without
// keeping the compiled result.
func (e *Engine) Validate(data []byte) error {
	_, err := e.ParseDecision(data)
	return err
}

// Evaluate loads the decision stored under key through the registry loader
// and evaluates it.
func (e *Engine) Evaluate(ctx context.Context, key string, value any, opts schema.EvaluationOptions) (*schema.EvaluationResult, error) {
	content, err := e.executor.LoadContent(ctx, key)
	if err != nil {
		return nil, err
	}
	d, err := e.CreateDecision(content)
	if err != nil {
		return nil, err
	}
	return d.Evaluate(logging.WithDecisionKey(ctx, key), value, opts)
}

func (e *Engine) compile(content *schema.DecisionContent) (*Decision, error) {
	g, err := e.executor.Compile(content)
	if err != nil {
		return nil, err
	}
	return &Decision{executor: e.executor, content: content, graph: g}, nil
}
