// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package store persists Plug run history and operator activation overrides.
// Backends (sqlite, mysql, redis) register themselves from init().
package store

import "context"

// Store groups the persistent state of one Postwright process.
type Store interface {
	Runs() RunLedger
	Activations() ActivationStore
	Close() error
}

// RunLedger is the append-only history of Plug runs and registry events.
type RunLedger interface {
	Append(ctx context.Context, entry *RunEntry) error
	Query(ctx context.Context, filter RunFilter) ([]*RunEntry, error)
	// Count returns the number of run entries recorded for identifier.
	Count(ctx context.Context, identifier string) (int, error)
}

// ActivationStore persists disable/enable overrides set at runtime.
type ActivationStore interface {
	Set(ctx context.Context, activation Activation) error
	List(ctx context.Context) ([]Activation, error)
}
