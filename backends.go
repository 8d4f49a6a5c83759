package jsbridge

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/gojaengine"
	"github.com/cryguy/jsbridge/internal/ottoengine"
	"github.com/cryguy/jsbridge/internal/quickjs"
)

var (
	backendsMu sync.RWMutex
	backends   = make(map[string]core.Backend)
)

func init() {
	registerBackend(quickjs.Backend)
	registerBackend(gojaengine.Backend)
	registerBackend(ottoengine.Backend)
}

func registerBackend(b core.Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[b.Name] = b
}

// Engines returns the names of the compiled-in engine backends, sorted.
func Engines() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultEngine returns the backend used when EngineConfig.Engine is empty:
// "v8" in builds with the v8 tag, "quickjs" otherwise.
func DefaultEngine() string {
	return defaultEngine
}

func lookupBackend(name string) (core.Backend, error) {
	backendsMu.RLock()
	b, ok := backends[name]
	backendsMu.RUnlock()
	if !ok {
		return core.Backend{}, fmt.Errorf("unknown engine %q (available: %s)", name, strings.Join(Engines(), ", "))
	}
	return b, nil
}
