// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package store_test

import (
	"testing"
	"time"

	"github.com/postwright/postwright/internal/store"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestRunEntryValidate(t *testing.T) {
	valid := store.RunEntry{
		ID: "r-1", Kind: "plug.run.succeeded", Identifier: "poll-status", Run: 1, Timestamp: time.Now(),
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*store.RunEntry)
	}{
		{"missing id", func(e *store.RunEntry) { e.ID = "" }},
		{"missing kind", func(e *store.RunEntry) { e.Kind = "" }},
		{"missing identifier", func(e *store.RunEntry) { e.Identifier = "" }},
		{"negative run", func(e *store.RunEntry) { e.Run = -1 }},
		{"zero timestamp", func(e *store.RunEntry) { e.Timestamp = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.mutate(&e)
			err := e.Validate()
			assert.True(t, pwerr.IsInvalidInput(err), "got %v", err)
		})
	}
}

func TestActivationValidate(t *testing.T) {
	assert.NoError(t, store.Activation{Kind: capability.KindPlug, Identifier: "p"}.Validate())
	assert.NoError(t, store.Activation{Kind: capability.KindPostPlug, Identifier: "p"}.Validate())
	assert.Error(t, store.Activation{Kind: "other", Identifier: "p"}.Validate())
	assert.Error(t, store.Activation{Kind: capability.KindPlug}.Validate())
}

func TestRunFilterEffectiveLimit(t *testing.T) {
	assert.Equal(t, store.DefaultQueryLimit, store.RunFilter{}.EffectiveLimit())
	assert.Equal(t, store.DefaultQueryLimit, store.RunFilter{Limit: -3}.EffectiveLimit())
	assert.Equal(t, 25, store.RunFilter{Limit: 25}.EffectiveLimit())
}
