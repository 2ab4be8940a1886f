package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rendis/verdict/pkg/schema"
)

// Memory serves decisions from a map. It is safe for concurrent use and may
// be updated while evaluations run.
type Memory struct {
	mu        sync.RWMutex
	decisions map[string]*schema.DecisionContent
}

// NewMemory creates a Memory loader seeded with decisions.
func NewMemory(decisions map[string]*schema.DecisionContent) *Memory {
	m := &Memory{decisions: make(map[string]*schema.DecisionContent, len(decisions))}
	for k, v := range decisions {
		m.decisions[k] = v
	}
	return m
}

// NewMemoryFromJSON creates a Memory loader from raw JSON documents.
func NewMemoryFromJSON(docs map[string]string) (*Memory, error) {
	m := NewMemory(nil)
	for key, doc := range docs {
		var content schema.DecisionContent
		if err := json.Unmarshal([]byte(doc), &content); err != nil {
			return nil, fmt.Errorf("decision %s: %w", key, err)
		}
		m.decisions[key] = &content
	}
	return m, nil
}

// Load implements capability.Loader.
func (m *Memory) Load(ctx context.Context, key string) (*schema.DecisionContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	content, ok := m.decisions[key]
	m.mu.RUnlock()
	if !ok {
		return nil, NotFound(key)
	}
	return content, nil
}

// Put adds or replaces a decision.
func (m *Memory) Put(key string, content *schema.DecisionContent) {
	m.mu.Lock()
	m.decisions[key] = content
	m.mu.Unlock()
}

// Delete removes a decision.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.decisions, key)
	m.mu.Unlock()
}

// Keys returns the stored keys, sorted.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.decisions))
	for k := range m.decisions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
