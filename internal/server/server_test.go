// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postwright/postwright/internal/dispatch"
	"github.com/postwright/postwright/internal/registry"
	"github.com/postwright/postwright/internal/registry/registrytest"
	"github.com/postwright/postwright/internal/scheduler"
	"github.com/postwright/postwright/internal/server"
	"github.com/postwright/postwright/internal/store"
	"github.com/postwright/postwright/internal/store/sqlstore"
	"github.com/postwright/postwright/internal/validator"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

type fixture struct {
	srv     *server.Server
	catalog *registry.Catalog
	store   store.Store

	mu    sync.Mutex
	calls []capability.PostPlugCall
	fail  error
}

func (f *fixture) postPlugAction(_ context.Context, call capability.PostPlugCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail
}

func (f *fixture) recorded() []capability.PostPlugCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capability.PostPlugCall(nil), f.calls...)
}

func buildCatalog(t *testing.T, f *fixture) *registry.Catalog {
	t.Helper()

	firstComment := registrytest.PostPlug("first-comment", "x", "threads")
	firstComment.Fields = []capability.FieldSpec{
		{Name: "comment", Type: capability.FieldTypeString, Validation: `^.{1,280}$`},
	}
	return registrytest.MustBuild(t,
		&registrytest.Module{
			ID:             "x",
			Plugs:          []capability.PlugDescriptor{registrytest.Plug("auto-repost", 60_000, 3)},
			PostPlugs:      []capability.PostPlugDescriptor{firstComment},
			PostPlugAction: f.postPlugAction,
		},
		&registrytest.Module{
			ID:             "tiktok",
			PostPlugs:      []capability.PostPlugDescriptor{registrytest.PostPlug("add-hashtags", "tiktok")},
			PostPlugAction: f.postPlugAction,
		},
	)
}

// newFixture wires a server over a real catalog, scheduler and runner. A nil
// st leaves the server without persistence.
func newFixture(t *testing.T, st store.Store) *fixture {
	t.Helper()

	f := &fixture{store: st}
	f.catalog = buildCatalog(t, f)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := dispatch.NewStatic(
		dispatch.NewLogIntegration("x", logger),
		dispatch.NewLogIntegration("threads", logger),
		dispatch.NewLogIntegration("tiktok", logger),
	)
	v := validator.New(f.catalog)
	sched := scheduler.New(f.catalog, scheduler.WithDispatcher(d))

	svc, err := server.NewServices(v, dispatch.NewPostPlugRunner(v, d, nil), sched, st)
	require.NoError(t, err)

	f.srv, err = server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	require.NoError(t, err)
	return f
}

func openStore(t *testing.T) store.Store {
	t.Helper()
	st, err := sqlstore.OpenSQLite(filepath.Join(t.TempDir(), "postwright.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

type problem struct {
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func TestServer_New_EmptyListenAddr(t *testing.T) {
	_, err := server.New(server.Config{}, nil)
	require.Error(t, err)
	assert.True(t, pwerr.HasCode(err, pwerr.CodeServerConfigInvalid), "expected CodeServerConfigInvalid, got %s", pwerr.CodeOf(err))
	assert.Contains(t, err.Error(), "listen address is required")
}

func TestNewServices_RequiresValidatorAndRunner(t *testing.T) {
	f := &fixture{}
	v := validator.New(buildCatalog(t, f))

	_, err := server.NewServices(nil, nil, nil, nil)
	assert.True(t, pwerr.HasCode(err, pwerr.CodeServerConfigInvalid))

	_, err = server.NewServices(v, nil, nil, nil)
	assert.True(t, pwerr.HasCode(err, pwerr.CodeServerConfigInvalid))

	svc, err := server.NewServices(v, dispatch.NewPostPlugRunner(v, dispatch.NewStatic(), nil), nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestServer_OpenAPISpec(t *testing.T) {
	f := newFixture(t, openStore(t))

	w := f.do(t, http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, path := range []string{
		"/api/v1/plugs",
		"/api/v1/plugs/{id}/disabled",
		"/api/v1/post-plugs/{id}/invoke",
		"/api/v1/validate",
		"/api/v1/runs",
	} {
		assert.Contains(t, body, path)
	}
}

func TestServer_ListPlugs(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/api/v1/plugs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	out := decode[struct {
		Plugs []server.PlugSummary `json:"plugs"`
	}](t, w)
	require.Len(t, out.Plugs, 1)

	p := out.Plugs[0]
	assert.Equal(t, "auto-repost", p.Identifier)
	assert.Equal(t, "x", p.Owner)
	assert.Equal(t, int64(60_000), p.RunEveryMilliseconds)
	assert.Equal(t, 3, p.TotalRuns)
	require.NotNil(t, p.Schedule)
	assert.Equal(t, "armed", p.Schedule.State)
	assert.Zero(t, p.Schedule.RunsCompleted)
}

func TestServer_GetPlug(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/api/v1/plugs/auto-repost", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "auto-repost", decode[server.PlugSummary](t, w).Identifier)

	w = f.do(t, http.MethodGet, "/api/v1/plugs/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_SetPlugDisabled_Persists(t *testing.T) {
	st := openStore(t)
	f := newFixture(t, st)

	w := f.do(t, http.MethodPut, "/api/v1/plugs/auto-repost/disabled", map[string]bool{"disabled": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[server.PlugSummary](t, w).Disabled)
	assert.True(t, f.catalog.IsDisabled(capability.KindPlug, "auto-repost"))

	acts, err := st.Activations().List(context.Background())
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, capability.KindPlug, acts[0].Kind)
	assert.Equal(t, "auto-repost", acts[0].Identifier)
	assert.True(t, acts[0].Disabled)

	w = f.do(t, http.MethodPut, "/api/v1/plugs/auto-repost/disabled", map[string]bool{"disabled": false})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.catalog.IsDisabled(capability.KindPlug, "auto-repost"))
}

func TestServer_SetDisabled_UnknownIdentifier(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPut, "/api/v1/plugs/nope/disabled", map[string]bool{"disabled": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/post-plugs/nope/disabled", map[string]bool{"disabled": true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type failingStore struct{ store.Store }

func (failingStore) Activations() store.ActivationStore { return failingActivations{} }

type failingActivations struct{}

func (failingActivations) Set(context.Context, store.Activation) error {
	return pwerr.New(pwerr.CodeStoreDatabaseFailure, "disk full")
}

func (failingActivations) List(context.Context) ([]store.Activation, error) { return nil, nil }

func TestServer_SetDisabled_RestoresFlagWhenPersistFails(t *testing.T) {
	f := newFixture(t, failingStore{})

	w := f.do(t, http.MethodPut, "/api/v1/post-plugs/first-comment/disabled", map[string]bool{"disabled": true})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, f.catalog.IsDisabled(capability.KindPostPlug, "first-comment"))
}

func TestServer_ListPostPlugs(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"all", "", []string{"first-comment", "add-hashtags"}},
		{"tiktok", "?integration=tiktok", []string{"add-hashtags"}},
		{"threads", "?integration=threads", []string{"first-comment"}},
		{"unknown integration", "?integration=myspace", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/api/v1/post-plugs"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code)

			out := decode[struct {
				PostPlugs []server.PostPlugSummary `json:"post_plugs"`
			}](t, w)
			ids := []string{}
			for _, p := range out.PostPlugs {
				ids = append(ids, p.Identifier)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestServer_Validate(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/validate", map[string]string{"kind": "post-plug", "type": "first-comment"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[struct {
		Valid bool `json:"valid"`
	}](t, w).Valid)

	require.NoError(t, f.catalog.SetDisabled(capability.KindPostPlug, "first-comment", true))

	w = f.do(t, http.MethodPost, "/api/v1/validate", map[string]string{"kind": "post-plug", "type": "first-comment"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "type must be any of: add-hashtags", decode[problem](t, w).Detail)

	w = f.do(t, http.MethodPost, "/api/v1/validate", map[string]string{"kind": "plug", "type": "missing"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "type must be any of: auto-repost", decode[problem](t, w).Detail)

	w = f.do(t, http.MethodPost, "/api/v1/validate", map[string]string{"kind": "widget", "type": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_InvokePostPlug(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/post-plugs/first-comment/invoke", map[string]any{
		"integration": "threads",
		"post_id":     "post-42",
		"values":      map[string]string{"comment": "thanks for reading"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	calls := f.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "post-42", calls[0].PostID)
	assert.Equal(t, "threads", calls[0].IntegrationType)
	assert.Equal(t, map[string]string{"comment": "thanks for reading"}, calls[0].Values)
	require.NotNil(t, calls[0].Integration)
	assert.Equal(t, "threads", calls[0].Integration.Type())
}

func TestServer_InvokePostPlug_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		body       map[string]any
		wantStatus int
		wantDetail string
	}{
		{
			name:       "unknown post-plug",
			id:         "shout",
			body:       map[string]any{"integration": "x", "post_id": "p1"},
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: "type must be any of: first-comment, add-hashtags",
		},
		{
			name:       "wrong integration",
			id:         "add-hashtags",
			body:       map[string]any{"integration": "x", "post_id": "p1"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "invalid values",
			id:   "first-comment",
			body: map[string]any{
				"integration": "x",
				"post_id":     "p1",
				"values":      map[string]string{"comment": ""},
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "missing post id",
			id:         "add-hashtags",
			body:       map[string]any{"integration": "tiktok"},
			wantStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			w := f.do(t, http.MethodPost, "/api/v1/post-plugs/"+tt.id+"/invoke", tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, decode[problem](t, w).Detail)
			}
			assert.Empty(t, f.recorded(), "action must not run on rejected invocations")
		})
	}
}

func TestServer_InvokePostPlug_ActionFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.fail = errors.New("rate limited")

	w := f.do(t, http.MethodPost, "/api/v1/post-plugs/add-hashtags/invoke", map[string]any{
		"integration": "tiktok",
		"post_id":     "p1",
	})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decode[problem](t, w).Detail, "rate limited")
}

func TestServer_InvokePostPlug_CodedActionFailure(t *testing.T) {
	tests := []struct {
		name string
		fail error
	}{
		{"integration not found", pwerr.New(pwerr.CodeDispatchIntegrationNotFound, "no tiktok client")},
		{"fields invalid", pwerr.New(pwerr.CodeValidatorFieldsInvalid, "hashtags rejected by platform")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.fail = tt.fail

			w := f.do(t, http.MethodPost, "/api/v1/post-plugs/add-hashtags/invoke", map[string]any{
				"integration": "tiktok",
				"post_id":     "p1",
			})
			assert.Equal(t, http.StatusBadGateway, w.Code)
			assert.Contains(t, decode[problem](t, w).Detail, tt.fail.Error())
		})
	}
}

func TestServer_ListRuns(t *testing.T) {
	st := openStore(t)
	f := newFixture(t, st)

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"auto-repost", "auto-repost", "auto-repost", "other"} {
		require.NoError(t, st.Runs().Append(ctx, &store.RunEntry{
			ID:         "run-" + string(rune('a'+i)),
			Kind:       "plug.run.succeeded",
			Identifier: id,
			Owner:      "x",
			Run:        i + 1,
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}))
	}

	w := f.do(t, http.MethodGet, "/api/v1/runs?plug=auto-repost&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode[struct {
		Runs []server.RunSummary `json:"runs"`
	}](t, w)
	require.Len(t, out.Runs, 2)
	assert.Equal(t, "run-a", out.Runs[0].ID)
	assert.Equal(t, "run-b", out.Runs[1].ID)
	assert.Equal(t, base, out.Runs[0].Timestamp.UTC())

	w = f.do(t, http.MethodGet, "/api/v1/runs?limit=0", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestServer_RunsRequireStore(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_CORS(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/plugs", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Start_StopsOnCancel(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.srv.Start(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
