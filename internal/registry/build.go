// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package registry builds the Plug and PostPlug catalogs from the compiled-in
// integration modules.
//
// Registration is two-phase. Each module first records its descriptors and
// method bindings on a capability.Declarations; Build then validates,
// resolves and inserts them. Build either returns a complete catalog or an
// error, never a partial catalog.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/postwright/postwright/internal/telemetry"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

type buildOptions struct {
	observer telemetry.Observer
	now      func() time.Time
}

// Option configures Build.
type Option func(*buildOptions)

// WithObserver sets the observer conflicts are reported to.
func WithObserver(o telemetry.Observer) Option {
	return func(b *buildOptions) { b.observer = o }
}

// WithClock overrides the time source used to stamp reported records.
func WithClock(now func() time.Time) Option {
	return func(b *buildOptions) { b.now = now }
}

// Build visits modules in order and returns the resulting catalog. The same
// modules in the same order always produce the same catalog.
//
// Build fails with:
//   - CodeRegistryModuleInvalid for a nil, unnamed or repeated module;
//   - CodeRegistryDescriptorInvalid for a malformed descriptor;
//   - CodeRegistryBindingUnresolvable when a MethodName has no bound action
//     of the same kind, or a method is bound twice;
//   - CodeRegistryConflict when an identifier is already registered in the
//     same catalog. The error names both owning modules and a
//     registry.conflict record is reported to the observer.
func Build(ctx context.Context, modules []capability.Module, opts ...Option) (*Catalog, error) {
	o := buildOptions{observer: telemetry.Nop, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		o.observer = telemetry.Nop
	}

	b := &builder{
		ctx:     ctx,
		opts:    o,
		catalog: newCatalog(),
		modules: make(map[string]bool, len(modules)),
	}
	for i, m := range modules {
		if err := b.addModule(i, m); err != nil {
			return nil, err
		}
	}

	slog.Info("capability catalog built",
		"modules", len(modules),
		"plugs", len(b.catalog.plugOrder),
		"post_plugs", len(b.catalog.postPlugOrder),
	)
	return b.catalog, nil
}

type builder struct {
	ctx     context.Context
	opts    buildOptions
	catalog *Catalog
	modules map[string]bool
}

func (b *builder) addModule(index int, m capability.Module) error {
	if m == nil {
		return pwerr.Errorf(pwerr.CodeRegistryModuleInvalid, "module at position %d is nil", index)
	}
	owner := m.Identifier()
	if owner == "" {
		return pwerr.Errorf(pwerr.CodeRegistryModuleInvalid, "module at position %d has an empty identifier", index)
	}
	if b.modules[owner] {
		return pwerr.New(pwerr.CodeRegistryModuleInvalid, "module registered more than once: "+owner,
			pwerr.FieldModule(owner))
	}
	b.modules[owner] = true

	d := capability.NewDeclarations(owner)
	m.Declare(d)
	if err := d.Err(); err != nil {
		return pwerr.Wrap(err, pwerr.CodeRegistryBindingUnresolvable, "invalid method bindings",
			pwerr.FieldModule(owner))
	}

	for _, desc := range d.Plugs() {
		if err := b.addPlug(d, owner, desc); err != nil {
			return err
		}
	}
	for _, desc := range d.PostPlugs() {
		if err := b.addPostPlug(d, owner, desc); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) addPlug(d *capability.Declarations, owner string, desc capability.PlugDescriptor) error {
	if errs := desc.Validate(); len(errs) > 0 {
		return pwerr.Wrap(errors.Join(errs...), pwerr.CodeRegistryDescriptorInvalid, "invalid plug descriptor",
			pwerr.FieldPlug(desc.Identifier), pwerr.FieldModule(owner))
	}

	action, ok := d.PlugHandler(desc.MethodName)
	if !ok {
		return pwerr.New(pwerr.CodeRegistryBindingUnresolvable,
			fmt.Sprintf("plug %q: method %q is not bound in module %q", desc.Identifier, desc.MethodName, owner),
			pwerr.FieldPlug(desc.Identifier), pwerr.FieldModule(owner), pwerr.Field("method", desc.MethodName))
	}

	if existing, dup := b.catalog.plugs[desc.Identifier]; dup {
		return b.conflict(capability.KindPlug, desc.Identifier, existing.owner, owner)
	}

	e := &PlugEntry{desc: desc, owner: owner, action: action}
	e.disabled.Store(desc.Disabled)
	b.catalog.plugs[desc.Identifier] = e
	b.catalog.plugOrder = append(b.catalog.plugOrder, desc.Identifier)

	slog.Debug("registered plug", "plug", desc.Identifier, "module", owner,
		"run_every_ms", desc.RunEveryMilliseconds, "total_runs", desc.TotalRuns)
	return nil
}

func (b *builder) addPostPlug(d *capability.Declarations, owner string, desc capability.PostPlugDescriptor) error {
	if errs := desc.Validate(); len(errs) > 0 {
		return pwerr.Wrap(errors.Join(errs...), pwerr.CodeRegistryDescriptorInvalid, "invalid post-plug descriptor",
			pwerr.FieldPostPlug(desc.Identifier), pwerr.FieldModule(owner))
	}

	action, ok := d.PostPlugHandler(desc.MethodName)
	if !ok {
		return pwerr.New(pwerr.CodeRegistryBindingUnresolvable,
			fmt.Sprintf("post-plug %q: method %q is not bound in module %q", desc.Identifier, desc.MethodName, owner),
			pwerr.FieldPostPlug(desc.Identifier), pwerr.FieldModule(owner), pwerr.Field("method", desc.MethodName))
	}

	if existing, dup := b.catalog.postPlugs[desc.Identifier]; dup {
		return b.conflict(capability.KindPostPlug, desc.Identifier, existing.owner, owner)
	}

	e := &PostPlugEntry{desc: desc, owner: owner, action: action}
	e.disabled.Store(desc.Disabled)
	b.catalog.postPlugs[desc.Identifier] = e
	b.catalog.postPlugOrder = append(b.catalog.postPlugOrder, desc.Identifier)

	seen := make(map[string]bool, len(desc.PickIntegration))
	for _, t := range desc.PickIntegration {
		if seen[t] {
			continue
		}
		seen[t] = true
		b.catalog.byIntegration[t] = append(b.catalog.byIntegration[t], desc.Identifier)
	}

	slog.Debug("registered post-plug", "post_plug", desc.Identifier, "module", owner,
		"integrations", desc.PickIntegration)
	return nil
}

func (b *builder) conflict(kind capability.Kind, id, firstOwner, secondOwner string) error {
	err := pwerr.New(pwerr.CodeRegistryConflict,
		fmt.Sprintf("%s %q declared by module %q is already registered by module %q", kind, id, secondOwner, firstOwner),
		pwerr.Field(string(kind), id),
		pwerr.Field("first_module", firstOwner),
		pwerr.Field("second_module", secondOwner),
	)
	b.opts.observer.Report(b.ctx, telemetry.NewRecord(telemetry.KindRegistryConflict, id, secondOwner, 0, err, b.opts.now()))
	return err
}
