// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package store

import (
	"sort"
	"sync"

	pwerr "github.com/postwright/postwright/pkg/errors"
)

// DefaultBackend is used when Config.Backend is empty.
const DefaultBackend = "sqlite"

// Factory opens a Store for cfg. dataDir is the process data directory;
// file-backed backends place their database there.
type Factory func(cfg *Config, dataDir string) (Store, error)

var (
	factories   = map[string]Factory{}
	factoriesMu sync.RWMutex
)

// RegisterBackend registers a factory for a named storage backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, factory Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *Config) string {
	if cfg == nil || cfg.Backend == "" {
		return DefaultBackend
	}
	return cfg.Backend
}

// Open creates the store for the configured backend.
func Open(cfg *Config, dataDir string) (Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := factories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, pwerr.New(pwerr.CodeStoreBackendUnsupported,
			"unsupported storage backend: "+backend, pwerr.Field("backend", backend))
	}

	return factory(cfg, dataDir)
}
