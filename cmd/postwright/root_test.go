// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/postwright/postwright/internal/server"
	"github.com/postwright/postwright/internal/store"
	"github.com/postwright/postwright/internal/store/sqlstore"
	"github.com/postwright/postwright/internal/validator"
)

// execute runs the root command with a fresh global viper and an isolated
// home directory so config discovery and bootstrapping stay inside the test.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "postwright.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"serve", "catalog", "validate", "runs", "status", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	out, err := execute(t, "--verbose", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "--config")
	assert.Contains(t, out, "--data-dir")
	assert.Contains(t, out, "--verbose")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "postwright dev")
}

func TestServeCommand_MissingConfig(t *testing.T) {
	_, err := execute(t, "serve", "--config", "/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestCatalogCommand_Table(t *testing.T) {
	out, err := execute(t, "catalog", "--data-dir", t.TempDir())
	require.NoError(t, err)
	for _, id := range []string{"auto-repost-x", "auto-plug-threads", "tiktok-poll-status", "first-comment", "youtube-shorts"} {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "every 6h0m0s, 3 runs")
}

func TestCatalogCommand_YAMLFiltered(t *testing.T) {
	out, err := execute(t, "catalog", "--data-dir", t.TempDir(),
		"--kind", "post-plug", "--integration", "tiktok", "-o", "yaml")
	require.NoError(t, err)

	var doc catalogDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Empty(t, doc.Plugs)

	ids := []string{}
	for _, p := range doc.PostPlugs {
		ids = append(ids, p.Identifier)
		assert.Contains(t, p.PickIntegration, "tiktok")
	}
	assert.Equal(t, []string{"add-hashtags", "tiktok-clip"}, ids)
}

func TestCatalogCommand_AppliesOverrides(t *testing.T) {
	dataDir := t.TempDir()
	cfgPath := writeConfig(t, `
post_plugs:
  add-hashtags:
    disabled: true
plugs:
  auto-repost-x:
    disabled: true
`)

	// A persisted activation wins over the file.
	st, err := sqlstore.OpenSQLite(filepath.Join(dataDir, sqlstore.DefaultFileName))
	require.NoError(t, err)
	require.NoError(t, st.Activations().Set(context.Background(), store.Activation{
		Kind: "plug", Identifier: "auto-repost-x", Disabled: false, UpdatedAt: time.Now(),
	}))
	require.NoError(t, st.Close())

	out, err := execute(t, "catalog", "--config", cfgPath, "--data-dir", dataDir, "-o", "yaml")
	require.NoError(t, err)

	var doc catalogDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))

	disabled := map[string]bool{}
	for _, p := range doc.Plugs {
		disabled[p.Identifier] = p.Disabled
	}
	for _, p := range doc.PostPlugs {
		disabled[p.Identifier] = p.Disabled
	}
	assert.True(t, disabled["add-hashtags"])
	assert.False(t, disabled["auto-repost-x"])
	assert.False(t, disabled["first-comment"])
}

func TestCatalogCommand_InvalidFlags(t *testing.T) {
	_, err := execute(t, "catalog", "--data-dir", t.TempDir(), "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")

	_, err = execute(t, "catalog", "--data-dir", t.TempDir(), "--kind", "widget")
	assert.ErrorContains(t, err, "unknown capability kind")
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"available post-plug", []string{"first-comment"}, ""},
		{"available plug", []string{"--kind", "plug", "auto-repost-x"}, ""},
		{"unknown post-plug", []string{"shout"}, "type must be any of: first-comment"},
		{"wrong integration", []string{"--integration", "tiktok", "first-comment"}, `does not apply to integration "tiktok"`},
		{"valid values", []string{"--set", "comment=hello", "first-comment"}, ""},
		{"invalid values", []string{"--kind", "plug", "--set", "likes=many", "auto-repost-x"}, "likes"},
		{"unknown kind", []string{"--kind", "widget", "first-comment"}, "unknown capability kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"validate", "--data-dir", t.TempDir()}, tt.args...)
			out, err := execute(t, args...)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Contains(t, out, "is available")
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCommand_RejectionListsAvailable(t *testing.T) {
	cfgPath := writeConfig(t, `
post_plugs:
  first-comment:
    disabled: true
`)
	out, err := execute(t, "validate", "--config", cfgPath, "--data-dir", t.TempDir(), "first-comment")
	require.Error(t, err)

	var rej *validator.Rejection
	require.ErrorAs(t, err, &rej)
	assert.NotContains(t, rej.Allowed, "first-comment")
	assert.Contains(t, out, "type must be any of: ")
}

func TestRunsCommand(t *testing.T) {
	dataDir := t.TempDir()
	st, err := sqlstore.OpenSQLite(filepath.Join(dataDir, sqlstore.DefaultFileName))
	require.NoError(t, err)

	base := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	for i, e := range []store.RunEntry{
		{ID: "r1", Kind: "plug.run.succeeded", Identifier: "auto-repost-x", Owner: "x", Run: 1},
		{ID: "r2", Kind: "plug.run.failed", Identifier: "auto-repost-x", Owner: "x", Run: 2, Error: "rate limited"},
		{ID: "r3", Kind: "plug.run.succeeded", Identifier: "tiktok-poll-status", Owner: "tiktok", Run: 1},
	} {
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, st.Runs().Append(context.Background(), &e))
	}
	require.NoError(t, st.Close())

	out, err := execute(t, "runs", "--data-dir", dataDir, "--plug", "auto-repost-x", "-o", "yaml")
	require.NoError(t, err)

	var docs []runDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "r1", docs[0].ID)
	assert.Equal(t, "rate limited", docs[1].Error)

	out, err = execute(t, "runs", "--data-dir", dataDir, "--kind", "plug.run.failed")
	require.NoError(t, err)
	assert.Contains(t, out, "rate limited")
	assert.NotContains(t, out, "tiktok-poll-status")
}

func TestRunsCommand_Empty(t *testing.T) {
	out, err := execute(t, "runs", "--data-dir", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "no runs recorded")
}

func TestStatusCommand_RunningInstance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/plugs" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"plugs": []server.PlugSummary{{
				Identifier: "auto-repost-x",
				Owner:      "x",
				TotalRuns:  3,
				Schedule: &server.ScheduleStatus{
					State:         "armed",
					RunsCompleted: 2,
					Failures:      1,
					LastError:     "rate limited",
				},
			}},
		})
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	out, err := execute(t, "status", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "1 plugs")
	assert.Contains(t, out, "auto-repost-x")
	assert.Contains(t, out, "2/3")
	assert.Contains(t, out, "rate limited")
}

func TestStatusCommand_NotRunning(t *testing.T) {
	// Bind and release a port so nothing listens on it.
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	out, err := execute(t, "status", "--address", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "is not running")
}
