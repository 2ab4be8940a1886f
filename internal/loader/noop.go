package loader

import (
	"context"

	"github.com/rendis/verdict/pkg/schema"
)

// Noop resolves nothing. Installing it enables decision nodes while keeping
// every lookup a LOADER_ERROR.
type Noop struct{}

// Load implements capability.Loader.
func (Noop) Load(_ context.Context, key string) (*schema.DecisionContent, error) {
	return nil, NotFound(key)
}
