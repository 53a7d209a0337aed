package backend

import (
	"sync"
)

// Factory creates a new backend instance.
type Factory func() Backend

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first available wins).
	backendPriority = []string{BackendHAL, BackendTrace}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns a list of registered backend names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get builds a new backend from the factory registered under name, or
// returns nil. Every call yields a separate instance that must be Init'ed
// before it can create executors, and closed by the caller.
func Get(name string) Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default builds the preferred registered backend without initializing it.
// The hal executor wins over the trace recorder; any other registered
// backend is used only when neither is present. Returns nil when nothing
// is registered. Use InitDefault to fall back past a backend whose Init
// fails.
func Default() Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			b := factory()
			if b != nil {
				return b
			}
		}
	}

	// Fallback: return first available
	for _, factory := range backends {
		if b := factory(); b != nil {
			return b
		}
	}

	return nil
}

// MustDefault is like Default but panics when no backend is registered,
// which means neither the trace backend nor halexec was linked in.
func MustDefault() Backend {
	b := Default()
	if b == nil {
		panic("backend: no backend available")
	}
	return b
}

// InitDefault initializes the default backend. A backend whose Init fails
// is skipped in favor of the next one by priority.
func InitDefault() (Backend, error) {
	registryMu.RLock()
	names := make([]string, 0, len(backends))
	names = append(names, backendPriority...)
	for name := range backends {
		if name != BackendHAL && name != BackendTrace {
			names = append(names, name)
		}
	}
	registryMu.RUnlock()

	var lastErr error = ErrBackendNotAvailable
	for _, name := range names {
		b := Get(name)
		if b == nil {
			continue
		}
		if err := b.Init(); err != nil {
			lastErr = err
			continue
		}
		return b, nil
	}
	return nil, lastErr
}
