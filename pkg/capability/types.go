// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package capability provides the public types integration modules use to
// declare Plugs and PostPlugs. A module describes its capabilities with
// descriptors and binds each descriptor's MethodName to a Go function; the
// registry reads both back when it builds the catalogs.
package capability

import (
	"context"
	"fmt"
)

// Kind identifies which catalog a descriptor belongs to.
type Kind string

const (
	KindPlug     Kind = "plug"
	KindPostPlug Kind = "post-plug"
)

// ParseKind converts user input ("plug", "post-plug", "postplug") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case string(KindPlug), "plugs":
		return KindPlug, nil
	case string(KindPostPlug), "postplug", "post-plugs", "postplugs":
		return KindPostPlug, nil
	default:
		return "", fmt.Errorf("unknown capability kind %q (want plug or post-plug)", s)
	}
}

// FieldType is the input type of a descriptor field.
type FieldType string

const (
	FieldTypeString   FieldType = "string"
	FieldTypeNumber   FieldType = "number"
	FieldTypeRichText FieldType = "richtext"
)

// FieldSpec describes one user-supplied value a capability accepts.
type FieldSpec struct {
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Type        FieldType `json:"type" yaml:"type"`
	Placeholder string    `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	// Validation is an optional regular expression the value must match.
	Validation string `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// Descriptor holds the fields shared by Plug and PostPlug descriptors.
type Descriptor struct {
	Identifier  string      `json:"identifier" yaml:"identifier"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Disabled    bool        `json:"disabled" yaml:"disabled"`
	Fields      []FieldSpec `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// Clone returns a deep copy.
func (d Descriptor) Clone() Descriptor {
	d.Fields = append([]FieldSpec(nil), d.Fields...)
	return d
}

// PlugDescriptor declares a recurring background action.
type PlugDescriptor struct {
	Descriptor `yaml:",inline"`

	RunEveryMilliseconds int64 `json:"run_every_ms" yaml:"run_every_ms"`
	// TotalRuns caps the number of invocations for the process lifetime.
	// Zero is an explicit cap, not "unlimited".
	TotalRuns  int    `json:"total_runs" yaml:"total_runs"`
	MethodName string `json:"method" yaml:"method"`
}

// Clone returns a deep copy.
func (d PlugDescriptor) Clone() PlugDescriptor {
	d.Descriptor = d.Descriptor.Clone()
	return d
}

// PostPlugDescriptor declares an action that runs in the context of a post.
type PostPlugDescriptor struct {
	Descriptor `yaml:",inline"`

	// PickIntegration lists the integration types the PostPlug applies to.
	PickIntegration []string `json:"pick_integration" yaml:"pick_integration"`
	MethodName      string   `json:"method" yaml:"method"`
}

// Clone returns a deep copy.
func (d PostPlugDescriptor) Clone() PostPlugDescriptor {
	d.Descriptor = d.Descriptor.Clone()
	d.PickIntegration = append([]string(nil), d.PickIntegration...)
	return d
}

// AppliesTo reports whether the PostPlug may be used for integrationType.
func (d PostPlugDescriptor) AppliesTo(integrationType string) bool {
	for _, t := range d.PickIntegration {
		if t == integrationType {
			return true
		}
	}
	return false
}

// Request is a platform call issued by a capability action.
type Request struct {
	Action string
	PostID string
	Values map[string]string
}

// Integration is the platform client an action talks to. Implementations
// live outside this repository; the dispatcher resolves them by type.
type Integration interface {
	Type() string
	Execute(ctx context.Context, req Request) error
}

// PlugCall is passed to a Plug action on every scheduled run.
type PlugCall struct {
	Identifier  string
	Run         int // 1-based
	Values      map[string]string
	Integration Integration
}

// PostPlugCall is passed to a PostPlug action for one post.
type PostPlugCall struct {
	Identifier      string
	PostID          string
	IntegrationType string
	Values          map[string]string
	Integration     Integration
}

// PlugFunc is the bound action of a Plug.
type PlugFunc func(ctx context.Context, call PlugCall) error

// PostPlugFunc is the bound action of a PostPlug.
type PostPlugFunc func(ctx context.Context, call PostPlugCall) error
