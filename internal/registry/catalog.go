// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package registry

import (
	"sync/atomic"

	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// PlugEntry is a registered Plug: its descriptor, owning module and bound
// action. Only the disabled flag changes after Build.
type PlugEntry struct {
	desc     capability.PlugDescriptor
	owner    string
	action   capability.PlugFunc
	disabled atomic.Bool
}

// Identifier returns the Plug identifier.
func (e *PlugEntry) Identifier() string { return e.desc.Identifier }

// Owner returns the identifier of the module that declared the Plug.
func (e *PlugEntry) Owner() string { return e.owner }

// Action returns the bound action.
func (e *PlugEntry) Action() capability.PlugFunc { return e.action }

// Disabled reports the live disabled flag.
func (e *PlugEntry) Disabled() bool { return e.disabled.Load() }

// Descriptor returns a copy of the descriptor with Disabled set from the
// live flag.
func (e *PlugEntry) Descriptor() capability.PlugDescriptor {
	d := e.desc.Clone()
	d.Disabled = e.disabled.Load()
	return d
}

// PostPlugEntry is a registered PostPlug.
type PostPlugEntry struct {
	desc     capability.PostPlugDescriptor
	owner    string
	action   capability.PostPlugFunc
	disabled atomic.Bool
}

// Identifier returns the PostPlug identifier.
func (e *PostPlugEntry) Identifier() string { return e.desc.Identifier }

// Owner returns the identifier of the module that declared the PostPlug.
func (e *PostPlugEntry) Owner() string { return e.owner }

// Action returns the bound action.
func (e *PostPlugEntry) Action() capability.PostPlugFunc { return e.action }

// Disabled reports the live disabled flag.
func (e *PostPlugEntry) Disabled() bool { return e.disabled.Load() }

// Descriptor returns a copy of the descriptor with Disabled set from the
// live flag.
func (e *PostPlugEntry) Descriptor() capability.PostPlugDescriptor {
	d := e.desc.Clone()
	d.Disabled = e.disabled.Load()
	return d
}

// Catalog holds the Plug and PostPlug catalogs built from the registered
// modules. The maps and orderings are immutable after Build, so lookups need
// no locking; the per-entry disabled flags are atomic.
type Catalog struct {
	plugs     map[string]*PlugEntry
	plugOrder []string

	postPlugs     map[string]*PostPlugEntry
	postPlugOrder []string

	// byIntegration maps an integration type to PostPlug identifiers in
	// declaration order.
	byIntegration map[string][]string
}

func newCatalog() *Catalog {
	return &Catalog{
		plugs:         make(map[string]*PlugEntry),
		postPlugs:     make(map[string]*PostPlugEntry),
		byIntegration: make(map[string][]string),
	}
}

// Plug looks up a Plug by identifier.
func (c *Catalog) Plug(id string) (*PlugEntry, bool) {
	e, ok := c.plugs[id]
	return e, ok
}

// PostPlug looks up a PostPlug by identifier.
func (c *Catalog) PostPlug(id string) (*PostPlugEntry, bool) {
	e, ok := c.postPlugs[id]
	return e, ok
}

// Plugs returns every Plug in declaration order.
func (c *Catalog) Plugs() []*PlugEntry {
	out := make([]*PlugEntry, len(c.plugOrder))
	for i, id := range c.plugOrder {
		out[i] = c.plugs[id]
	}
	return out
}

// PostPlugs returns every PostPlug in declaration order.
func (c *Catalog) PostPlugs() []*PostPlugEntry {
	out := make([]*PostPlugEntry, len(c.postPlugOrder))
	for i, id := range c.postPlugOrder {
		out[i] = c.postPlugs[id]
	}
	return out
}

// PostPlugsFor returns the identifiers of PostPlugs whose PickIntegration
// contains integrationType, in declaration order. Disabled PostPlugs are
// included. The result is never nil.
func (c *Catalog) PostPlugsFor(integrationType string) []string {
	return append([]string{}, c.byIntegration[integrationType]...)
}

// Identifiers returns all identifiers of kind in declaration order.
func (c *Catalog) Identifiers(kind capability.Kind) []string {
	switch kind {
	case capability.KindPlug:
		return append([]string{}, c.plugOrder...)
	case capability.KindPostPlug:
		return append([]string{}, c.postPlugOrder...)
	default:
		return []string{}
	}
}

// Len returns the total number of registered capabilities.
func (c *Catalog) Len() int {
	return len(c.plugOrder) + len(c.postPlugOrder)
}

// Has reports whether id is registered under kind.
func (c *Catalog) Has(kind capability.Kind, id string) bool {
	switch kind {
	case capability.KindPlug:
		_, ok := c.plugs[id]
		return ok
	case capability.KindPostPlug:
		_, ok := c.postPlugs[id]
		return ok
	default:
		return false
	}
}

// IsDisabled reports the live disabled flag of id. Unknown identifiers
// report false; use Has to distinguish them.
func (c *Catalog) IsDisabled(kind capability.Kind, id string) bool {
	switch kind {
	case capability.KindPlug:
		if e, ok := c.plugs[id]; ok {
			return e.disabled.Load()
		}
	case capability.KindPostPlug:
		if e, ok := c.postPlugs[id]; ok {
			return e.disabled.Load()
		}
	}
	return false
}

// SetDisabled flips the disabled flag of id. The change is visible to the
// validator and the scheduler immediately.
func (c *Catalog) SetDisabled(kind capability.Kind, id string, disabled bool) error {
	switch kind {
	case capability.KindPlug:
		if e, ok := c.plugs[id]; ok {
			e.disabled.Store(disabled)
			return nil
		}
		return pwerr.New(pwerr.CodeRegistryEntryNotFound, "plug not found: "+id, pwerr.FieldPlug(id))
	case capability.KindPostPlug:
		if e, ok := c.postPlugs[id]; ok {
			e.disabled.Store(disabled)
			return nil
		}
		return pwerr.New(pwerr.CodeRegistryEntryNotFound, "post-plug not found: "+id, pwerr.FieldPostPlug(id))
	default:
		return pwerr.Errorf(pwerr.CodeRegistryEntryNotFound, "unknown capability kind %q", kind)
	}
}
