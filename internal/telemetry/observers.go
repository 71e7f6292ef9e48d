// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/postwright/postwright/internal/store"
)

// LogObserver writes records to a slog logger. Failures and conflicts are
// logged at warn level, successes at debug.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver returns a LogObserver. A nil logger uses slog.Default().
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// Report logs rec.
func (o *LogObserver) Report(ctx context.Context, rec Record) {
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"kind", string(rec.Kind),
		"identifier", rec.Identifier,
		"owner", rec.Owner,
	}
	if rec.Run > 0 {
		attrs = append(attrs, "run", rec.Run)
	}
	if rec.Err != nil {
		attrs = append(attrs, "error", rec.Err)
	}

	switch rec.Kind {
	case KindRunSucceeded:
		logger.DebugContext(ctx, "plug run succeeded", attrs...)
	case KindRunFailed:
		logger.WarnContext(ctx, "plug run failed", attrs...)
	case KindRegistryConflict:
		logger.WarnContext(ctx, "registry conflict", attrs...)
	case KindPostPlugSucceeded:
		logger.DebugContext(ctx, "post-plug run succeeded", attrs...)
	case KindPostPlugFailed:
		logger.WarnContext(ctx, "post-plug run failed", attrs...)
	default:
		logger.InfoContext(ctx, "telemetry record", attrs...)
	}
}

// LedgerObserver appends every record to a run ledger until it is closed.
type LedgerObserver struct {
	ledger store.RunLedger

	mu     sync.RWMutex
	closed bool
}

// NewLedgerObserver returns an observer persisting to ledger.
func NewLedgerObserver(ledger store.RunLedger) *LedgerObserver {
	return &LedgerObserver{ledger: ledger}
}

// Report appends rec. Append failures are logged and dropped. Records
// arriving after Close are dropped silently.
func (o *LedgerObserver) Report(ctx context.Context, rec Record) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return
	}

	entry := &store.RunEntry{
		ID:         rec.ID,
		Kind:       string(rec.Kind),
		Identifier: rec.Identifier,
		Owner:      rec.Owner,
		Run:        rec.Run,
		Error:      rec.ErrorText(),
		Timestamp:  rec.Timestamp,
	}
	if err := o.ledger.Append(ctx, entry); err != nil {
		slog.Warn("appending telemetry record to run ledger",
			"id", rec.ID, "kind", string(rec.Kind), "identifier", rec.Identifier, "error", err)
	}
}

// Close waits for appends in progress and detaches the observer from the
// ledger, so the ledger's store can be closed while abandoned invocations
// are still finishing.
func (o *LedgerObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}
