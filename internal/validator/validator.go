// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package validator answers availability questions against the live catalog
// and checks user-supplied capability values.
//
// A Validator holds the same *registry.Catalog the scheduler uses. It never
// caches availability, so disabling an entry is visible on the next call.
package validator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/postwright/postwright/internal/registry"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// Rejection is returned when a submitted identifier is not currently
// available. Its message lists the available identifiers in catalog order.
type Rejection struct {
	Field   string
	Value   string
	Allowed []string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s must be any of: %s", r.Field, strings.Join(r.Allowed, ", "))
}

type schemaKey struct {
	kind capability.Kind
	id   string
}

// Validator checks identifiers and field values against a catalog.
type Validator struct {
	catalog *registry.Catalog

	mu      sync.Mutex
	schemas map[schemaKey]*jsonschema.Schema
}

// New returns a Validator reading catalog.
func New(catalog *registry.Catalog) *Validator {
	return &Validator{
		catalog: catalog,
		schemas: make(map[schemaKey]*jsonschema.Schema),
	}
}

// Catalog returns the catalog the validator reads.
func (v *Validator) Catalog() *registry.Catalog { return v.catalog }

// IsAvailable reports whether id exists in the kind's catalog and is not
// disabled.
func (v *Validator) IsAvailable(kind capability.Kind, id string) bool {
	return v.catalog.Has(kind, id) && !v.catalog.IsDisabled(kind, id)
}

// Available lists the currently available identifiers of kind in catalog
// declaration order. The result is never nil.
func (v *Validator) Available(kind capability.Kind) []string {
	all := v.catalog.Identifiers(kind)
	out := all[:0]
	for _, id := range all {
		if !v.catalog.IsDisabled(kind, id) {
			out = append(out, id)
		}
	}
	return out
}

// CheckType validates a submitted identifier for the named request field.
// It returns nil when value is available and a *Rejection otherwise.
func (v *Validator) CheckType(field string, kind capability.Kind, value string) error {
	if v.IsAvailable(kind, value) {
		return nil
	}
	return &Rejection{Field: field, Value: value, Allowed: v.Available(kind)}
}

// CheckFields validates values against the field specs of the capability
// id. Every declared field is required and undeclared fields are rejected.
func (v *Validator) CheckFields(kind capability.Kind, id string, values map[string]string) error {
	schema, err := v.schemaFor(kind, id)
	if err != nil {
		return err
	}

	doc := make(map[string]any, len(values))
	for k, val := range values {
		doc[k] = val
	}

	if err := schema.Validate(doc); err != nil {
		return pwerr.New(pwerr.CodeValidatorFieldsInvalid,
			fmt.Sprintf("invalid field values for %s %q: %s", kind, id, describe(err)),
			pwerr.Field(string(kind), id))
	}
	return nil
}

func (v *Validator) schemaFor(kind capability.Kind, id string) (*jsonschema.Schema, error) {
	key := schemaKey{kind: kind, id: id}

	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.schemas[key]; ok {
		return s, nil
	}

	var fields []capability.FieldSpec
	switch kind {
	case capability.KindPlug:
		e, ok := v.catalog.Plug(id)
		if !ok {
			return nil, pwerr.New(pwerr.CodeRegistryEntryNotFound, "plug not found: "+id, pwerr.FieldPlug(id))
		}
		fields = e.Descriptor().Fields
	case capability.KindPostPlug:
		e, ok := v.catalog.PostPlug(id)
		if !ok {
			return nil, pwerr.New(pwerr.CodeRegistryEntryNotFound, "post-plug not found: "+id, pwerr.FieldPostPlug(id))
		}
		fields = e.Descriptor().Fields
	default:
		return nil, pwerr.Errorf(pwerr.CodeRegistryEntryNotFound, "unknown capability kind %q", kind)
	}

	doc, err := FieldSchema(fields)
	if err != nil {
		return nil, err
	}
	s, err := jsonschema.CompileString(fmt.Sprintf("mem://postwright/%s/%s.json", kind, id), doc)
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeValidatorSchemaFailure, "compiling field schema",
			pwerr.Field(string(kind), id))
	}
	v.schemas[key] = s
	return s, nil
}

func describe(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var msgs []string
	collectLeaves(ve, &msgs)
	if len(msgs) == 0 {
		return ve.Message
	}
	return strings.Join(msgs, "; ")
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := strings.TrimPrefix(ve.InstanceLocation, "/")
		if loc == "" {
			*out = append(*out, ve.Message)
		} else {
			*out = append(*out, loc+": "+ve.Message)
		}
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}
