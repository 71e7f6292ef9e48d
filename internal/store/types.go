// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package store

import (
	"time"

	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// DefaultQueryLimit caps RunLedger.Query when RunFilter.Limit is unset.
const DefaultQueryLimit = 1000

// RunEntry records one Plug invocation or registry event.
type RunEntry struct {
	ID         string
	Kind       string // e.g. "plug.run.succeeded"
	Identifier string
	Owner      string
	Run        int
	Error      string
	Timestamp  time.Time
}

// Validate checks that the entry has all required fields set.
func (e RunEntry) Validate() error {
	if e.ID == "" {
		return pwerr.New(pwerr.CodeStoreInvalidInput, "run entry: ID is required")
	}
	if e.Kind == "" {
		return pwerr.New(pwerr.CodeStoreInvalidInput, "run entry: Kind is required")
	}
	if e.Identifier == "" {
		return pwerr.New(pwerr.CodeStoreInvalidInput, "run entry: Identifier is required")
	}
	if e.Run < 0 {
		return pwerr.Errorf(pwerr.CodeStoreInvalidInput, "run entry: Run must be >= 0, got %d", e.Run)
	}
	if e.Timestamp.IsZero() {
		return pwerr.New(pwerr.CodeStoreInvalidInput, "run entry: Timestamp is required")
	}
	return nil
}

// RunFilter specifies criteria for querying the run ledger. Results are
// ordered by timestamp, oldest first.
type RunFilter struct {
	Identifier string
	Kind       string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// EffectiveLimit returns Limit, or DefaultQueryLimit when unset.
func (f RunFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultQueryLimit
	}
	return f.Limit
}

// Activation is a persisted disable/enable override for one capability.
type Activation struct {
	Kind       capability.Kind
	Identifier string
	Disabled   bool
	UpdatedAt  time.Time
}

// Validate checks that the activation targets a known kind and identifier.
func (a Activation) Validate() error {
	if a.Kind != capability.KindPlug && a.Kind != capability.KindPostPlug {
		return pwerr.Errorf(pwerr.CodeStoreInvalidInput, "activation: invalid kind %q", a.Kind)
	}
	if a.Identifier == "" {
		return pwerr.New(pwerr.CodeStoreInvalidInput, "activation: Identifier is required")
	}
	return nil
}
