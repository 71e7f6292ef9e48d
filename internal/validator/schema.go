// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package validator

import (
	"encoding/json"

	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// numberPattern matches decimal numbers submitted as strings.
const numberPattern = `^-?[0-9]+(\.[0-9]+)?$`

// FieldSchema renders field specs as a JSON Schema document describing an
// object of string values.
func FieldSchema(fields []capability.FieldSpec) (string, error) {
	properties := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))

	for _, f := range fields {
		prop := map[string]any{"type": "string"}
		if f.Description != "" {
			prop["description"] = f.Description
		}

		var patterns []string
		if f.Type == capability.FieldTypeNumber {
			patterns = append(patterns, numberPattern)
		}
		if f.Validation != "" {
			patterns = append(patterns, f.Validation)
		}
		switch len(patterns) {
		case 0:
		case 1:
			prop["pattern"] = patterns[0]
		default:
			all := make([]any, len(patterns))
			for i, p := range patterns {
				all[i] = map[string]any{"pattern": p}
			}
			prop["allOf"] = all
		}

		properties[f.Name] = prop
		required = append(required, f.Name)
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	b, err := json.Marshal(schema)
	if err != nil {
		return "", pwerr.Wrap(err, pwerr.CodeValidatorSchemaFailure, "encoding field schema")
	}
	return string(b), nil
}
