// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package capability

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierRe matches identifiers that are safe to persist and to use in URLs.
// Identifiers are lowercase so they survive case-folding config keys.
var identifierRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// validFieldTypes enumerates recognized field types. Empty means string.
var validFieldTypes = map[FieldType]bool{
	"":                true,
	FieldTypeString:   true,
	FieldTypeNumber:   true,
	FieldTypeRichText: true,
}

// Validate checks that the Plug descriptor is well-formed. It returns every
// problem found rather than stopping at the first one.
func (d PlugDescriptor) Validate() []error {
	errs := d.Descriptor.validate(KindPlug)

	if d.RunEveryMilliseconds <= 0 {
		errs = append(errs, fmt.Errorf("plug %q: run_every_ms must be greater than 0, got %d",
			d.Identifier, d.RunEveryMilliseconds))
	}
	if d.TotalRuns < 0 {
		errs = append(errs, fmt.Errorf("plug %q: total_runs must not be negative, got %d",
			d.Identifier, d.TotalRuns))
	}
	if strings.TrimSpace(d.MethodName) == "" {
		errs = append(errs, fmt.Errorf("plug %q: method must not be empty", d.Identifier))
	}

	return errs
}

// Validate checks that the PostPlug descriptor is well-formed.
func (d PostPlugDescriptor) Validate() []error {
	errs := d.Descriptor.validate(KindPostPlug)

	if len(d.PickIntegration) == 0 {
		errs = append(errs, fmt.Errorf("post-plug %q: pick_integration must list at least one integration type",
			d.Identifier))
	}
	for i, t := range d.PickIntegration {
		if strings.TrimSpace(t) == "" {
			errs = append(errs, fmt.Errorf("post-plug %q: pick_integration[%d] must not be empty",
				d.Identifier, i))
		}
	}
	if strings.TrimSpace(d.MethodName) == "" {
		errs = append(errs, fmt.Errorf("post-plug %q: method must not be empty", d.Identifier))
	}

	return errs
}

func (d Descriptor) validate(kind Kind) []error {
	var errs []error

	if d.Identifier == "" {
		errs = append(errs, fmt.Errorf("%s: identifier must not be empty", kind))
	} else if !identifierRe.MatchString(d.Identifier) {
		errs = append(errs, fmt.Errorf("%s %q: identifier must be lowercase letters, digits, '.', '_' or '-'", kind, d.Identifier))
	}

	seen := make(map[string]bool, len(d.Fields))
	for i, f := range d.Fields {
		if strings.TrimSpace(f.Name) == "" {
			errs = append(errs, fmt.Errorf("%s %q: fields[%d]: name must not be empty", kind, d.Identifier, i))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("%s %q: fields[%d]: duplicate field name %q", kind, d.Identifier, i, f.Name))
		}
		seen[f.Name] = true

		if !validFieldTypes[f.Type] {
			errs = append(errs, fmt.Errorf("%s %q: field %q: type must be one of [string, number, richtext], got %q",
				kind, d.Identifier, f.Name, f.Type))
		}
		if f.Validation != "" {
			if _, err := regexp.Compile(f.Validation); err != nil {
				errs = append(errs, fmt.Errorf("%s %q: field %q: invalid validation pattern: %w",
					kind, d.Identifier, f.Name, err))
			}
		}
	}

	return errs
}
