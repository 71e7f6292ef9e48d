// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package dispatch is the boundary between capabilities and the platform
// clients that do the work. Capability actions never talk to a platform
// directly; they receive a capability.Integration resolved here.
package dispatch

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// Dispatcher resolves the client for an integration type.
type Dispatcher interface {
	ResolveIntegrationType(ctx context.Context, identifier string) (capability.Integration, error)
}

// Static is a Dispatcher backed by a fixed set of clients. It is safe for
// concurrent use.
type Static struct {
	mu      sync.RWMutex
	clients map[string]capability.Integration
}

var _ Dispatcher = (*Static)(nil)

// NewStatic returns a Static dispatcher holding integrations keyed by Type().
func NewStatic(integrations ...capability.Integration) *Static {
	s := &Static{clients: make(map[string]capability.Integration, len(integrations))}
	for _, i := range integrations {
		s.Register(i)
	}
	return s
}

// Register adds or replaces the client for i.Type().
func (s *Static) Register(i capability.Integration) {
	if i == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[i.Type()] = i
}

// Types returns the registered integration types, sorted.
func (s *Static) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.clients))
	for t := range s.clients {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ResolveIntegrationType implements Dispatcher.
func (s *Static) ResolveIntegrationType(_ context.Context, identifier string) (capability.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.clients[identifier]
	if !ok {
		return nil, pwerr.New(pwerr.CodeDispatchIntegrationNotFound,
			"integration not found: "+identifier, pwerr.FieldIntegration(identifier))
	}
	return i, nil
}

// LogIntegration is a dry-run client. It logs every request instead of
// calling a platform.
type LogIntegration struct {
	typ    string
	logger *slog.Logger
}

var _ capability.Integration = (*LogIntegration)(nil)

// NewLogIntegration returns a dry-run client for typ. A nil logger uses
// slog.Default().
func NewLogIntegration(typ string, logger *slog.Logger) *LogIntegration {
	return &LogIntegration{typ: typ, logger: logger}
}

// Type implements capability.Integration.
func (l *LogIntegration) Type() string { return l.typ }

// Execute implements capability.Integration.
func (l *LogIntegration) Execute(ctx context.Context, req capability.Request) error {
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "dry-run integration request",
		"integration", l.typ,
		"action", req.Action,
		"post_id", req.PostID,
		"values", req.Values)
	return nil
}
