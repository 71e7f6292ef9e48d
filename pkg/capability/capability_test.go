// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package capability_test

import (
	"context"
	"strings"
	"testing"

	"github.com/postwright/postwright/pkg/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPlug() capability.PlugDescriptor {
	return capability.PlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier: "poll-status",
			Title:      "Poll upload status",
			Fields: []capability.FieldSpec{
				{Name: "threshold", Type: capability.FieldTypeNumber, Validation: `^\d+$`},
			},
		},
		RunEveryMilliseconds: 1000,
		TotalRuns:            3,
		MethodName:           "pollStatus",
	}
}

func validPostPlug() capability.PostPlugDescriptor {
	return capability.PostPlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier: "auto-repost",
			Title:      "Auto repost",
		},
		PickIntegration: []string{"x", "threads"},
		MethodName:      "autoRepost",
	}
}

func TestPlugDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*capability.PlugDescriptor)
		wantErr string
	}{
		{name: "valid", mutate: func(*capability.PlugDescriptor) {}},
		{name: "zero total runs is allowed", mutate: func(d *capability.PlugDescriptor) { d.TotalRuns = 0 }},
		{
			name:    "empty identifier",
			mutate:  func(d *capability.PlugDescriptor) { d.Identifier = "" },
			wantErr: "identifier must not be empty",
		},
		{
			name:    "identifier with spaces",
			mutate:  func(d *capability.PlugDescriptor) { d.Identifier = "poll status" },
			wantErr: "identifier must be lowercase",
		},
		{
			name:    "uppercase identifier",
			mutate:  func(d *capability.PlugDescriptor) { d.Identifier = "Poll-Status" },
			wantErr: "identifier must be lowercase",
		},
		{
			name:    "non-positive interval",
			mutate:  func(d *capability.PlugDescriptor) { d.RunEveryMilliseconds = 0 },
			wantErr: "run_every_ms must be greater than 0",
		},
		{
			name:    "negative total runs",
			mutate:  func(d *capability.PlugDescriptor) { d.TotalRuns = -1 },
			wantErr: "total_runs must not be negative",
		},
		{
			name:    "missing method",
			mutate:  func(d *capability.PlugDescriptor) { d.MethodName = " " },
			wantErr: "method must not be empty",
		},
		{
			name: "duplicate field",
			mutate: func(d *capability.PlugDescriptor) {
				d.Fields = append(d.Fields, capability.FieldSpec{Name: "threshold", Type: capability.FieldTypeString})
			},
			wantErr: `duplicate field name "threshold"`,
		},
		{
			name:    "bad pattern",
			mutate:  func(d *capability.PlugDescriptor) { d.Fields[0].Validation = "([" },
			wantErr: "invalid validation pattern",
		},
		{
			name:    "unknown field type",
			mutate:  func(d *capability.PlugDescriptor) { d.Fields[0].Type = "date" },
			wantErr: "type must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validPlug()
			tt.mutate(&d)
			errs := d.Validate()
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			var found bool
			for _, err := range errs {
				if strings.Contains(err.Error(), tt.wantErr) {
					found = true
				}
			}
			assert.True(t, found, "expected an error containing %q, got %v", tt.wantErr, errs)
		})
	}
}

func TestPlugDescriptorValidateCollectsAll(t *testing.T) {
	d := capability.PlugDescriptor{}
	errs := d.Validate()
	assert.Len(t, errs, 3, "identifier, interval and method should all be reported")
}

func TestPostPlugDescriptorValidate(t *testing.T) {
	assert.Empty(t, validPostPlug().Validate())

	d := validPostPlug()
	d.PickIntegration = nil
	errs := d.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "pick_integration")

	d = validPostPlug()
	d.PickIntegration = []string{"x", ""}
	errs = d.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "pick_integration[1]")
}

func TestPostPlugAppliesTo(t *testing.T) {
	d := validPostPlug()
	assert.True(t, d.AppliesTo("x"))
	assert.True(t, d.AppliesTo("threads"))
	assert.False(t, d.AppliesTo("youtube"))
}

func TestCloneIsDeep(t *testing.T) {
	orig := validPostPlug()
	orig.Fields = []capability.FieldSpec{{Name: "message"}}
	cp := orig.Clone()
	cp.PickIntegration[0] = "tiktok"
	cp.Fields[0].Name = "changed"

	assert.Equal(t, "x", orig.PickIntegration[0])
	assert.Equal(t, "message", orig.Fields[0].Name)
}

func TestParseKind(t *testing.T) {
	for _, in := range []string{"plug", "plugs"} {
		k, err := capability.ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, capability.KindPlug, k)
	}
	for _, in := range []string{"post-plug", "postplug", "post-plugs"} {
		k, err := capability.ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, capability.KindPostPlug, k)
	}
	_, err := capability.ParseKind("widget")
	assert.Error(t, err)
}

func TestDeclarationsRecordInOrder(t *testing.T) {
	d := capability.NewDeclarations("tiktok")
	first := validPlug()
	second := validPlug()
	second.Identifier = "refresh-token"
	d.Plug(first)
	d.Plug(second)
	d.PostPlug(validPostPlug())

	plugs := d.Plugs()
	require.Len(t, plugs, 2)
	assert.Equal(t, "poll-status", plugs[0].Identifier)
	assert.Equal(t, "refresh-token", plugs[1].Identifier)
	assert.Len(t, d.PostPlugs(), 1)
	assert.Equal(t, "tiktok", d.Module())

	plugs[0].Fields[0].Name = "mutated"
	assert.Equal(t, "threshold", d.Plugs()[0].Fields[0].Name)
}

func TestDeclarationsHandlers(t *testing.T) {
	d := capability.NewDeclarations("x")
	noopPlug := func(context.Context, capability.PlugCall) error { return nil }
	noopPost := func(context.Context, capability.PostPlugCall) error { return nil }

	d.HandlePlug("pollStatus", noopPlug)
	d.HandlePostPlug("autoRepost", noopPost)
	require.NoError(t, d.Err())

	_, ok := d.PlugHandler("pollStatus")
	assert.True(t, ok)
	_, ok = d.PlugHandler("autoRepost")
	assert.False(t, ok, "plug and post-plug methods are bound separately")
	_, ok = d.PostPlugHandler("autoRepost")
	assert.True(t, ok)

	d.HandlePlug("pollStatus", noopPlug)
	d.HandlePostPlug("nilFn", nil)
	err := d.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bound more than once")
	assert.Contains(t, err.Error(), "bound to nil function")
}
