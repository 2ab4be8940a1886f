package capability

import (
	"io"
	"log/slog"
)

// Registry is the immutable set of capabilities shared by every evaluation
// that references it. It is built once by the embedder and never mutated,
// so lookups need no locking.
type Registry struct {
	logger     *slog.Logger
	http       HTTPHandler
	loader     Loader
	customNode CustomNodeHandler
	script     ScriptRuntime
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// NewRegistry builds a Registry from listeners. Later listeners override
// capabilities supplied by earlier ones; nil members never override.
// Pointer listeners are accepted and treated as their values; nil pointers
// are ignored.
func NewRegistry(listeners ...Listener) *Registry {
	r := &Registry{}
	for _, l := range listeners {
		switch v := deref(l).(type) {
		case ConsoleListener:
			r.logger = v.Logger
			if r.logger == nil {
				r.logger = discardLogger
			}
		case HTTPListener:
			if v.Handler != nil {
				r.http = v.Handler
			}
		case EngineListener:
			if v.Loader != nil {
				r.loader = v.Loader
			}
			if v.CustomNode != nil {
				r.customNode = v.CustomNode
			}
			if v.HTTP != nil {
				r.http = v.HTTP
			}
		case ScriptListener:
			if v.Runtime != nil {
				r.script = v.Runtime
			}
		}
	}
	return r
}

// deref turns a pointer listener into its value, or nil when the pointer is nil.
func deref(l Listener) Listener {
	switch v := l.(type) {
	case *ConsoleListener:
		if v != nil {
			return *v
		}
	case *HTTPListener:
		if v != nil {
			return *v
		}
	case *EngineListener:
		if v != nil {
			return *v
		}
	case *ScriptListener:
		if v != nil {
			return *v
		}
	default:
		return l
	}
	return nil
}

// Logger returns the logging capability, or a discard logger when absent.
func (r *Registry) Logger() *slog.Logger {
	if r == nil || r.logger == nil {
		return discardLogger
	}
	return r.logger
}

// HasLogging reports whether a logging capability was installed.
func (r *Registry) HasLogging() bool { return r != nil && r.logger != nil }

// HTTP returns the network capability, or nil when absent.
func (r *Registry) HTTP() HTTPHandler {
	if r == nil {
		return nil
	}
	return r.http
}

// Loader returns the sub-decision loader, or nil when absent.
func (r *Registry) Loader() Loader {
	if r == nil {
		return nil
	}
	return r.loader
}

// CustomNode returns the custom node dispatcher, or nil when absent.
func (r *Registry) CustomNode() CustomNodeHandler {
	if r == nil {
		return nil
	}
	return r.customNode
}

// Script returns the scripting runtime, or nil when absent.
func (r *Registry) Script() ScriptRuntime {
	if r == nil {
		return nil
	}
	return r.script
}
