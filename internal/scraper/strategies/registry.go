package strategies

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Factory func(d Deps) Strategy

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, f Factory) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		panic("strategies: empty name in Register")
	}
	if f == nil {
		panic("strategies: nil factory in Register for " + n)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[n]; exists {
		panic("strategies: duplicate registration for " + n)
	}
	registry[n] = f
}

func FactoryByName(name string) (Factory, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[n]
	return f, ok
}

func AvailableNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Build returns the strategy registered under name.
func Build(name string, d Deps) (Strategy, error) {
	f, ok := FactoryByName(name)
	if !ok {
		return nil, fmt.Errorf("unknown method %q (available: %s)", name, strings.Join(AvailableNames(), ", "))
	}
	return f(d), nil
}
