// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package capability

import (
	"errors"
	"fmt"
)

// Module is implemented by every integration module. Identifier is the
// integration type the module serves ("x", "tiktok", ...). Declare is called
// once by the registry builder and must only record declarations.
type Module interface {
	Identifier() string
	Declare(d *Declarations)
}

// Declarations collects one module's descriptors, in declaration order, and
// the actions bound to their method names. It does not check uniqueness
// across modules; the registry builder does.
type Declarations struct {
	module string

	plugs     []PlugDescriptor
	postPlugs []PostPlugDescriptor

	plugHandlers     map[string]PlugFunc
	postPlugHandlers map[string]PostPlugFunc

	errs []error
}

// NewDeclarations returns an empty declaration list for module.
func NewDeclarations(module string) *Declarations {
	return &Declarations{
		module:           module,
		plugHandlers:     make(map[string]PlugFunc),
		postPlugHandlers: make(map[string]PostPlugFunc),
	}
}

// Module returns the owning module identifier.
func (d *Declarations) Module() string {
	return d.module
}

// Plug records a Plug descriptor.
func (d *Declarations) Plug(desc PlugDescriptor) {
	d.plugs = append(d.plugs, desc.Clone())
}

// PostPlug records a PostPlug descriptor.
func (d *Declarations) PostPlug(desc PostPlugDescriptor) {
	d.postPlugs = append(d.postPlugs, desc.Clone())
}

// HandlePlug binds method to fn for Plug descriptors.
func (d *Declarations) HandlePlug(method string, fn PlugFunc) {
	if fn == nil {
		d.errs = append(d.errs, fmt.Errorf("module %s: plug method %q bound to nil function", d.module, method))
		return
	}
	if _, exists := d.plugHandlers[method]; exists {
		d.errs = append(d.errs, fmt.Errorf("module %s: plug method %q bound more than once", d.module, method))
		return
	}
	d.plugHandlers[method] = fn
}

// HandlePostPlug binds method to fn for PostPlug descriptors.
func (d *Declarations) HandlePostPlug(method string, fn PostPlugFunc) {
	if fn == nil {
		d.errs = append(d.errs, fmt.Errorf("module %s: post-plug method %q bound to nil function", d.module, method))
		return
	}
	if _, exists := d.postPlugHandlers[method]; exists {
		d.errs = append(d.errs, fmt.Errorf("module %s: post-plug method %q bound more than once", d.module, method))
		return
	}
	d.postPlugHandlers[method] = fn
}

// Plugs returns copies of the recorded Plug descriptors.
func (d *Declarations) Plugs() []PlugDescriptor {
	out := make([]PlugDescriptor, len(d.plugs))
	for i, p := range d.plugs {
		out[i] = p.Clone()
	}
	return out
}

// PostPlugs returns copies of the recorded PostPlug descriptors.
func (d *Declarations) PostPlugs() []PostPlugDescriptor {
	out := make([]PostPlugDescriptor, len(d.postPlugs))
	for i, p := range d.postPlugs {
		out[i] = p.Clone()
	}
	return out
}

// PlugHandler looks up the Plug action bound to method.
func (d *Declarations) PlugHandler(method string) (PlugFunc, bool) {
	fn, ok := d.plugHandlers[method]
	return fn, ok
}

// PostPlugHandler looks up the PostPlug action bound to method.
func (d *Declarations) PostPlugHandler(method string) (PostPlugFunc, bool) {
	fn, ok := d.postPlugHandlers[method]
	return fn, ok
}

// Err reports binding mistakes recorded while declaring.
func (d *Declarations) Err() error {
	return errors.Join(d.errs...)
}
