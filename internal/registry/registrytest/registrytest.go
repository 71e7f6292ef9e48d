// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package registrytest provides in-memory modules for tests of packages that
// consume a registry.Catalog.
package registrytest

import (
	"context"
	"testing"

	"github.com/postwright/postwright/internal/registry"
	"github.com/postwright/postwright/pkg/capability"
)

// Module is a capability.Module built from literal descriptors. Every
// distinct MethodName is bound to PlugAction or PostPlugAction, which
// default to no-ops.
type Module struct {
	ID             string
	Plugs          []capability.PlugDescriptor
	PostPlugs      []capability.PostPlugDescriptor
	PlugAction     capability.PlugFunc
	PostPlugAction capability.PostPlugFunc
}

// Identifier implements capability.Module.
func (m *Module) Identifier() string { return m.ID }

// Declare implements capability.Module.
func (m *Module) Declare(d *capability.Declarations) {
	plugAction := m.PlugAction
	if plugAction == nil {
		plugAction = func(context.Context, capability.PlugCall) error { return nil }
	}
	postAction := m.PostPlugAction
	if postAction == nil {
		postAction = func(context.Context, capability.PostPlugCall) error { return nil }
	}

	bound := map[string]bool{}
	for _, p := range m.Plugs {
		d.Plug(p)
		if !bound[p.MethodName] {
			bound[p.MethodName] = true
			d.HandlePlug(p.MethodName, plugAction)
		}
	}
	bound = map[string]bool{}
	for _, p := range m.PostPlugs {
		d.PostPlug(p)
		if !bound[p.MethodName] {
			bound[p.MethodName] = true
			d.HandlePostPlug(p.MethodName, postAction)
		}
	}
}

// Plug returns a valid Plug descriptor whose MethodName is its identifier.
func Plug(id string, everyMs int64, totalRuns int) capability.PlugDescriptor {
	return capability.PlugDescriptor{
		Descriptor:           capability.Descriptor{Identifier: id, Title: id},
		RunEveryMilliseconds: everyMs,
		TotalRuns:            totalRuns,
		MethodName:           id,
	}
}

// PostPlug returns a valid PostPlug descriptor for the given integration types.
func PostPlug(id string, integrationTypes ...string) capability.PostPlugDescriptor {
	return capability.PostPlugDescriptor{
		Descriptor:      capability.Descriptor{Identifier: id, Title: id},
		PickIntegration: integrationTypes,
		MethodName:      id,
	}
}

// MustBuild builds a catalog and fails the test on error.
func MustBuild(tb testing.TB, modules ...capability.Module) *registry.Catalog {
	tb.Helper()
	c, err := registry.Build(context.Background(), modules)
	if err != nil {
		tb.Fatalf("building catalog: %v", err)
	}
	return c
}
