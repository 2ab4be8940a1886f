package capability

import "log/slog"

// Listener is implemented by the capability variants accepted by NewRegistry.
type Listener interface {
	listener()
}

// ConsoleListener enables diagnostic logging. A nil Logger writes nowhere.
type ConsoleListener struct {
	Logger *slog.Logger
}

// HTTPListener enables outbound network calls.
type HTTPListener struct {
	Handler HTTPHandler
}

// EngineListener bundles the sub-decision loader, the custom node dispatcher
// and the network handler. Nil members leave the capability absent.
type EngineListener struct {
	Loader     Loader
	CustomNode CustomNodeHandler
	HTTP       HTTPHandler
}

// ScriptListener installs the scripting runtime for function nodes.
type ScriptListener struct {
	Runtime ScriptRuntime
}

func (ConsoleListener) listener() {}
func (HTTPListener) listener()    {}
func (EngineListener) listener()  {}
func (ScriptListener) listener()  {}
