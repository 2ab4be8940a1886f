package schema

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures.
type ErrorKind string

// Error kinds for structured error reporting.
const (
	ErrContentDeserialization ErrorKind = "CONTENT_DESERIALIZATION_ERROR"
	ErrContextDeserialization ErrorKind = "CONTEXT_DESERIALIZATION_ERROR"
	ErrFeatureDisabled        ErrorKind = "FEATURE_DISABLED"
	ErrRecursionLimit         ErrorKind = "RECURSION_LIMIT_EXCEEDED"
	ErrNodeExecution          ErrorKind = "NODE_EXECUTION_ERROR"
	ErrLoader                 ErrorKind = "LOADER_ERROR"
	ErrCancelled              ErrorKind = "CANCELLED"
)

// EngineError is the structured error type for all evaluation failures.
type EngineError struct {
	Kind    ErrorKind      `json:"kind"`
	Message string         `json:"message"`
	NodeID  string         `json:"node_id,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *EngineError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Kind, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// NewError creates a new EngineError.
func NewError(kind ErrorKind, message string) *EngineError {
	return &EngineError{Kind: kind, Message: message}
}

// NewErrorf creates a new EngineError with a formatted message.
func NewErrorf(kind ErrorKind, format string, args ...any) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches the originating node ID to the error.
func (e *EngineError) WithNode(nodeID string) *EngineError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *EngineError) WithCause(err error) *EngineError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *EngineError) WithDetails(details map[string]any) *EngineError {
	e.Details = details
	return e
}

// IsKind reports whether any EngineError in err's chain has the given kind.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var engErr *EngineError
		if !errors.As(err, &engErr) {
			return false
		}
		if engErr.Kind == kind {
			return true
		}
		err = engErr.Cause
	}
	return false
}

// KindOf returns the kind of the outermost EngineError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Kind
	}
	return ""
}
