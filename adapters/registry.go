// Package adapters resolves the "source" objects of node definitions into
// [treefs.ContentSource] implementations.
package adapters

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/brettbedarf/treefs"
)

// Factory builds a source from its raw JSON definition
type Factory func(raw []byte) (treefs.ContentSource, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register ties a JSON‐raw factory to a “type” key and should be called for each
// adapter type during app init. A later registration replaces an earlier one.
func Register(adapterType string, unmarshal Factory) {
	mu.Lock()
	factories[adapterType] = unmarshal
	mu.Unlock()
}

// GetSource picks the right factory based on the "type" field.
// All expected source adapter types should be registered with [Register]
// before calling this function.
func GetSource(raw []byte) (treefs.ContentSource, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, err
	}
	if meta.Type == "" {
		return nil, fmt.Errorf("source has no type")
	}
	mu.RLock()
	f, ok := factories[meta.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no factory for %q", meta.Type)
	}
	return f(raw)
}

// Registered reports whether a factory exists for adapterType
func Registered(adapterType string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[adapterType]
	return ok
}
