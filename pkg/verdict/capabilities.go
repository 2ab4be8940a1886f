package verdict

import (
	"github.com/rendis/verdict/internal/capability"
	"github.com/rendis/verdict/internal/engine"
	"github.com/rendis/verdict/internal/loader"
	"github.com/rendis/verdict/internal/network"
)

// Capability types accepted by WithListeners.
type (
	Listener        = capability.Listener
	ConsoleListener = capability.ConsoleListener
	HTTPListener    = capability.HTTPListener
	EngineListener  = capability.EngineListener
	ScriptListener  = capability.ScriptListener

	HTTPHandler        = capability.HTTPHandler
	HTTPHandlerFunc    = capability.HTTPHandlerFunc
	HTTPRequest        = capability.HTTPRequest
	HTTPResponse       = capability.HTTPResponse
	Loader             = capability.Loader
	LoaderFunc         = capability.LoaderFunc
	CustomNodeHandler  = capability.CustomNodeHandler
	CustomNodeFunc     = capability.CustomNodeFunc
	CustomNodeRequest  = capability.CustomNodeRequest
	CustomNodeResponse = capability.CustomNodeResponse
	ScriptRuntime      = capability.ScriptRuntime
	ScriptRequest      = capability.ScriptRequest
	ScriptResponse     = capability.ScriptResponse

	// Observer receives node and evaluation timings.
	Observer = engine.Observer
)

// NetworkConfig configures the built-in HTTP capability.
type NetworkConfig = network.Config

// NewHTTPListener returns a listener installing the built-in pooled HTTP client.
func NewHTTPListener(cfg NetworkConfig) HTTPListener {
	return network.New(cfg).Listener()
}

// NewFilesystemLoader serves decisions stored as JSON or YAML files under dir.
func NewFilesystemLoader(dir string) *loader.Filesystem {
	return loader.NewFilesystem(dir)
}

// NewCachedLoader memoizes successful loads of inner.
func NewCachedLoader(inner Loader) *loader.Cache {
	return loader.NewCache(inner)
}
