// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postwright/postwright/internal/config"
	"github.com/postwright/postwright/internal/scheduler"
	"github.com/postwright/postwright/internal/store"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Log:        config.LogConfig{Level: "info", Format: "text"},
		Networking: config.NetworkingConfig{Listen: "127.0.0.1:0"},
		Storage:    config.StorageConfig{Backend: "sqlite"},
		Scheduler:  config.SchedulerConfig{ShutdownTimeout: 5 * time.Second},
		DataDir:    t.TempDir(),
	}
}

func boolPtr(b bool) *bool { return &b }

func TestWireApp(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugs = map[string]config.PlugConfig{
		"auto-repost-x": {Values: map[string]string{"likes": "250"}},
	}

	app, err := WireApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.NotEmpty(t, app.Catalog.Plugs())
	assert.NotEmpty(t, app.Catalog.PostPlugs())

	snap, err := app.Scheduler.Snapshot("auto-repost-x")
	require.NoError(t, err)
	assert.Equal(t, scheduler.StateArmed, snap.State)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plugs/auto-repost-x", nil)
	w := httptest.NewRecorder()
	app.Server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWireApp_OverridePrecedence(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugs = map[string]config.PlugConfig{
		"auto-repost-x": {Disabled: boolPtr(true)},
		"auto-plug-x":   {Disabled: boolPtr(true), Values: map[string]string{"likes": "10", "post": "thanks"}},
	}

	st, err := openStore(cfg)
	require.NoError(t, err)
	require.NoError(t, st.Activations().Set(context.Background(), store.Activation{
		Kind:       capability.KindPlug,
		Identifier: "auto-plug-x",
		Disabled:   false,
		UpdatedAt:  time.Now(),
	}))
	require.NoError(t, st.Close())

	app, err := WireApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.True(t, app.Catalog.IsDisabled(capability.KindPlug, "auto-repost-x"))
	assert.False(t, app.Catalog.IsDisabled(capability.KindPlug, "auto-plug-x"), "persisted activation wins over config")

	snap, err := app.Scheduler.Snapshot("auto-repost-x")
	require.NoError(t, err)
	assert.Equal(t, scheduler.StateDisabled, snap.State)
}

func TestWireApp_DisablesPlugsWithoutRequiredValues(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugs = map[string]config.PlugConfig{
		"auto-repost-x": {Values: map[string]string{"likes": "250"}},
	}

	app, err := WireApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	tests := []struct {
		plug         string
		wantDisabled bool
		wantState    scheduler.State
	}{
		{"auto-repost-x", false, scheduler.StateArmed},
		{"auto-plug-x", true, scheduler.StateDisabled},
		{"auto-plug-threads", true, scheduler.StateDisabled},
		{"tiktok-poll-status", false, scheduler.StateArmed},
	}
	for _, tt := range tests {
		t.Run(tt.plug, func(t *testing.T) {
			assert.Equal(t, tt.wantDisabled, app.Catalog.IsDisabled(capability.KindPlug, tt.plug))
			snap, err := app.Scheduler.Snapshot(tt.plug)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, snap.State)
		})
	}

	persisted, err := app.Store.Activations().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted, "disabling for missing values is not persisted")
}

func TestWireApp_UnknownOverrideIsIgnored(t *testing.T) {
	cfg := testConfig(t)
	cfg.PostPlugs = map[string]config.PostPlugConfig{"shout": {Disabled: boolPtr(true)}}

	app, err := WireApp(context.Background(), cfg)
	require.NoError(t, err)
	_ = app.Close()
}

func TestWireApp_RejectsInvalidPlugValues(t *testing.T) {
	tests := []struct {
		name     string
		values   map[string]config.PlugConfig
		wantCode pwerr.Code
		want     string
	}{
		{
			"unknown plug",
			map[string]config.PlugConfig{"shout": {Values: map[string]string{"a": "b"}}},
			pwerr.CodeCLIInputInvalid,
			"plugs.shout: unknown plug",
		},
		{
			"bad value",
			map[string]config.PlugConfig{"auto-repost-x": {Values: map[string]string{"likes": "lots"}}},
			pwerr.CodeValidatorFieldsInvalid,
			"plugs.auto-repost-x.values",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Plugs = tt.values

			_, err := WireApp(context.Background(), cfg)
			require.Error(t, err)
			// The innermost code is reported.
			assert.True(t, pwerr.HasCode(err, tt.wantCode), "got %s", pwerr.CodeOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWireApp_UnsupportedBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "postgres"

	_, err := WireApp(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, pwerr.HasCode(err, pwerr.CodeStoreBackendUnsupported), "got %s", pwerr.CodeOf(err))
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	app, err := WireApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("app did not stop")
	}
}
