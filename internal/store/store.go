// Package store persists decision documents in libSQL. The store doubles as
// a capability.Loader, so decision nodes can resolve sub-decisions from it.
package store

import (
	"context"

	"github.com/rendis/verdict/pkg/schema"
)

// Store defines the persistence contract for decision documents.
// All implementations must be safe for concurrent use.
type Store interface {
	// Put stores content as the next version of key and returns the record.
	Put(ctx context.Context, key string, content *schema.DecisionContent, description string) (*Decision, error)
	// Get returns the latest version of key.
	Get(ctx context.Context, key string) (*Decision, error)
	// GetVersion returns a specific version of key.
	GetVersion(ctx context.Context, key string, version int) (*Decision, error)
	// List returns the latest version of every matching key.
	List(ctx context.Context, filter Filter) ([]*Decision, error)
	// Versions returns every stored version of key, newest first.
	Versions(ctx context.Context, key string) ([]*Decision, error)
	// Delete removes every version of key.
	Delete(ctx context.Context, key string) error

	// Load implements capability.Loader with the latest version of key.
	Load(ctx context.Context, key string) (*schema.DecisionContent, error)

	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error
	Close() error
}
