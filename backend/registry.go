// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package backend

import (
	"sort"
	"sync"
)

// registration holds one backend factory with selection metadata.
type registration struct {
	name      string
	kind      Kind
	priority  int
	factory   Factory
	available func() bool
}

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]*registration)
)

// Register registers a backend factory under name. Higher priority
// wins during selection. available may be nil, meaning always
// available. Registering the same name again replaces the previous
// entry. This is typically called from init() functions in backend
// packages.
func Register(name string, kind Kind, priority int, factory Factory, available func() bool) {
	if name == "" || factory == nil {
		return
	}
	if available == nil {
		available = func() bool { return true }
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = &registration{
		name:      name,
		kind:      kind,
		priority:  priority,
		factory:   factory,
		available: available,
	}
}

// Unregister removes a backend from the registry. Useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names sorted by priority,
// highest first.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi := backends[names[i]].priority
		pj := backends[names[j]].priority
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a new instance of the named backend, or nil if it is not
// registered.
func Get(name string) Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg, ok := backends[name]
	if !ok {
		return nil
	}
	return reg.factory()
}

// Candidates returns backend names in selection order: the preferred
// backend first when it is registered and available, then every other
// available backend by priority. Without allowFallback the list holds
// at most the single backend selection would use, so callers that
// retry down the list honor the fallback policy for free.
func Candidates(preferred string, allowFallback bool) ([]string, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return candidatesLocked(preferred, allowFallback)
}

// candidatesLocked is Candidates with registryMu already held.
func candidatesLocked(preferred string, allowFallback bool) ([]string, error) {
	var out []string
	if preferred != "" {
		reg, ok := backends[preferred]
		switch {
		case ok && reg.available():
			out = append(out, preferred)
		case !allowFallback && !ok:
			return nil, &BackendNotFoundError{Name: preferred}
		case !allowFallback:
			return nil, ErrBackendNotAvailable
		}
		if !allowFallback {
			return out, nil
		}
	}

	rest := make([]string, 0, len(backends))
	for name, reg := range backends {
		if name == preferred || !reg.available() {
			continue
		}
		rest = append(rest, name)
	}
	sort.Slice(rest, func(i, j int) bool {
		pi := backends[rest[i]].priority
		pj := backends[rest[j]].priority
		if pi != pj {
			return pi > pj
		}
		return rest[i] < rest[j]
	})
	out = append(out, rest...)

	if len(out) == 0 {
		return nil, ErrBackendNotAvailable
	}
	if preferred == "" && !allowFallback {
		out = out[:1]
	}
	return out, nil
}

// Select creates a backend instance. If preferred is non-empty, that
// backend is tried first; when it is missing or unavailable and
// allowFallback is set, selection falls through to the available
// backend with the highest priority.
func Select(preferred string, allowFallback bool) (Backend, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names, err := candidatesLocked(preferred, allowFallback)
	if err != nil {
		return nil, err
	}
	return backends[names[0]].factory(), nil
}
