// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package telemetry is the observability boundary. The registry reports
// conflicts and the scheduler reports run outcomes as Records; observers
// decide where they go (logs, the run ledger, a message broker).
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a Record.
type Kind string

const (
	KindRunSucceeded     Kind = "plug.run.succeeded"
	KindRunFailed        Kind = "plug.run.failed"
	KindRegistryConflict Kind = "registry.conflict"

	KindPostPlugSucceeded Kind = "postplug.run.succeeded"
	KindPostPlugFailed    Kind = "postplug.run.failed"
)

// Record is one reported event.
type Record struct {
	ID         string
	Kind       Kind
	Identifier string
	// Owner is the module that declared Identifier. For conflicts it is the
	// module whose declaration was rejected.
	Owner     string
	Run       int
	Err       error
	Timestamp time.Time
}

// NewRecord stamps a record with a fresh ID.
func NewRecord(kind Kind, identifier, owner string, run int, err error, at time.Time) Record {
	return Record{
		ID:         uuid.NewString(),
		Kind:       kind,
		Identifier: identifier,
		Owner:      owner,
		Run:        run,
		Err:        err,
		Timestamp:  at,
	}
}

// ErrorText returns the error message, or "" when Err is nil.
func (r Record) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Observer receives records. Implementations must be safe for concurrent use
// and must not block for long; failures are handled internally.
type Observer interface {
	Report(ctx context.Context, rec Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, rec Record)

// Report calls f.
func (f ObserverFunc) Report(ctx context.Context, rec Record) { f(ctx, rec) }

// Nop discards every record.
var Nop Observer = ObserverFunc(func(context.Context, Record) {})

type multi []Observer

// Multi fans records out to every observer in order. Nil entries are skipped.
func Multi(observers ...Observer) Observer {
	out := make(multi, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multi) Report(ctx context.Context, rec Record) {
	for _, o := range m {
		o.Report(ctx, rec)
	}
}
