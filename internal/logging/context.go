package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	evaluationIDKey ctxKey = iota
	decisionKeyKey
	nodeIDKey
)

// WithEvaluationID returns a context with the evaluation ID set.
func WithEvaluationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, evaluationIDKey, id)
}

// WithDecisionKey returns a context with the decision key set.
func WithDecisionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, decisionKeyKey, key)
}

// WithNodeID returns a context with the node ID set.
func WithNodeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, nodeIDKey, id)
}

// EvaluationID extracts the evaluation ID from the context, or "" if absent.
func EvaluationID(ctx context.Context) string {
	v, _ := ctx.Value(evaluationIDKey).(string)
	return v
}

// DecisionKey extracts the decision key from the context, or "" if absent.
func DecisionKey(ctx context.Context) string {
	v, _ := ctx.Value(decisionKeyKey).(string)
	return v
}

// NodeID extracts the node ID from the context, or "" if absent.
func NodeID(ctx context.Context) string {
	v, _ := ctx.Value(nodeIDKey).(string)
	return v
}

// WithIDs sets all three correlation IDs on the context at once.
func WithIDs(ctx context.Context, evaluationID, decisionKey, nodeID string) context.Context {
	ctx = WithEvaluationID(ctx, evaluationID)
	ctx = WithDecisionKey(ctx, decisionKey)
	ctx = WithNodeID(ctx, nodeID)
	return ctx
}

// LogWith returns a logger enriched with correlation IDs from the context.
// Only non-empty values are added as attributes.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if v := EvaluationID(ctx); v != "" {
		logger = logger.With(slog.String("evaluation_id", v))
	}
	if v := DecisionKey(ctx); v != "" {
		logger = logger.With(slog.String("decision_key", v))
	}
	if v := NodeID(ctx); v != "" {
		logger = logger.With(slog.String("node_id", v))
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := EvaluationID(ctx); v != "" {
		r.AddAttrs(slog.String("evaluation_id", v))
	}
	if v := DecisionKey(ctx); v != "" {
		r.AddAttrs(slog.String("decision_key", v))
	}
	if v := NodeID(ctx); v != "" {
		r.AddAttrs(slog.String("node_id", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps a textual level to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
