// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/postwright/postwright/internal/dispatch"
	"github.com/postwright/postwright/internal/store"
	"github.com/postwright/postwright/internal/validator"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

func (s *Server) registerRoutes() {
	// Plug endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-plugs",
		Method:      http.MethodGet,
		Path:        "/api/v1/plugs",
		Summary:     "List plugs with scheduler state",
		Tags:        []string{"plugs"},
	}, s.handleListPlugs)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-plug",
		Method:      http.MethodGet,
		Path:        "/api/v1/plugs/{id}",
		Summary:     "Get plug details",
		Tags:        []string{"plugs"},
	}, s.handleGetPlug)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-plug-disabled",
		Method:      http.MethodPut,
		Path:        "/api/v1/plugs/{id}/disabled",
		Summary:     "Disable or enable a plug",
		Tags:        []string{"plugs"},
	}, s.handleSetPlugDisabled)

	// PostPlug endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "list-post-plugs",
		Method:      http.MethodGet,
		Path:        "/api/v1/post-plugs",
		Summary:     "List post-plugs",
		Tags:        []string{"post-plugs"},
	}, s.handleListPostPlugs)

	huma.Register(s.api, huma.Operation{
		OperationID: "set-post-plug-disabled",
		Method:      http.MethodPut,
		Path:        "/api/v1/post-plugs/{id}/disabled",
		Summary:     "Disable or enable a post-plug",
		Tags:        []string{"post-plugs"},
	}, s.handleSetPostPlugDisabled)

	huma.Register(s.api, huma.Operation{
		OperationID: "invoke-post-plug",
		Method:      http.MethodPost,
		Path:        "/api/v1/post-plugs/{id}/invoke",
		Summary:     "Run a post-plug against a published post",
		Tags:        []string{"post-plugs"},
	}, s.handleInvokePostPlug)

	huma.Register(s.api, huma.Operation{
		OperationID: "validate-capability",
		Method:      http.MethodPost,
		Path:        "/api/v1/validate",
		Summary:     "Check that a capability identifier is available",
		Tags:        []string{"validation"},
	}, s.handleValidate)

	if s.services.store != nil {
		huma.Register(s.api, huma.Operation{
			OperationID: "list-runs",
			Method:      http.MethodGet,
			Path:        "/api/v1/runs",
			Summary:     "Query the run ledger",
			Tags:        []string{"runs"},
		}, s.handleListRuns)
	}
}

// --- Request/Response types for huma ---

type listPlugsOutput struct {
	Body struct {
		Plugs []PlugSummary `json:"plugs"`
	}
}

type idInput struct {
	ID string `path:"id"`
}

type getPlugOutput struct {
	Body PlugSummary
}

type setDisabledInput struct {
	ID   string `path:"id"`
	Body struct {
		Disabled bool `json:"disabled" doc:"New disabled flag"`
	}
}

type setPostPlugDisabledOutput struct {
	Body PostPlugSummary
}

type listPostPlugsInput struct {
	Integration string `query:"integration" doc:"Only post-plugs applying to this integration type"`
}
type listPostPlugsOutput struct {
	Body struct {
		PostPlugs []PostPlugSummary `json:"post_plugs"`
	}
}

type invokePostPlugInput struct {
	ID   string `path:"id"`
	Body struct {
		Integration string            `json:"integration" minLength:"1" doc:"Integration type the post was published to"`
		PostID      string            `json:"post_id" minLength:"1" doc:"Published post identifier"`
		Values      map[string]string `json:"values,omitempty" doc:"Post-plug field values"`
	}
}
type invokePostPlugOutput struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}

type validateInput struct {
	Body struct {
		Kind string `json:"kind" example:"post-plug" doc:"Capability kind: plug or post-plug"`
		Type string `json:"type" doc:"Submitted identifier"`
	}
}
type validateOutput struct {
	Body struct {
		Valid bool `json:"valid"`
	}
}

type listRunsInput struct {
	Plug   string `query:"plug" doc:"Only entries for this capability identifier"`
	Kind   string `query:"kind" doc:"Only entries of this record kind"`
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"1000" doc:"Maximum entries returned"`
	Offset int    `query:"offset" minimum:"0" doc:"Entries to skip"`
}
type listRunsOutput struct {
	Body struct {
		Runs []RunSummary `json:"runs"`
	}
}

// --- Handlers ---

func (s *Server) handleListPlugs(_ context.Context, _ *struct{}) (*listPlugsOutput, error) {
	entries := s.services.validator.Catalog().Plugs()
	out := &listPlugsOutput{}
	out.Body.Plugs = make([]PlugSummary, 0, len(entries))
	for _, e := range entries {
		out.Body.Plugs = append(out.Body.Plugs, s.services.plugSummary(e))
	}
	return out, nil
}

func (s *Server) handleGetPlug(_ context.Context, input *idInput) (*getPlugOutput, error) {
	e, ok := s.services.validator.Catalog().Plug(input.ID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("plug %q not found", input.ID))
	}
	return &getPlugOutput{Body: s.services.plugSummary(e)}, nil
}

func (s *Server) handleSetPlugDisabled(ctx context.Context, input *setDisabledInput) (*getPlugOutput, error) {
	if err := s.setDisabled(ctx, capability.KindPlug, input.ID, input.Body.Disabled); err != nil {
		return nil, apiError(err)
	}
	e, _ := s.services.validator.Catalog().Plug(input.ID)
	return &getPlugOutput{Body: s.services.plugSummary(e)}, nil
}

func (s *Server) handleListPostPlugs(_ context.Context, input *listPostPlugsInput) (*listPostPlugsOutput, error) {
	out := &listPostPlugsOutput{}
	out.Body.PostPlugs = []PostPlugSummary{}
	for _, e := range s.services.validator.Catalog().PostPlugs() {
		if input.Integration != "" && !e.Descriptor().AppliesTo(input.Integration) {
			continue
		}
		out.Body.PostPlugs = append(out.Body.PostPlugs, postPlugSummary(e))
	}
	return out, nil
}

func (s *Server) handleSetPostPlugDisabled(ctx context.Context, input *setDisabledInput) (*setPostPlugDisabledOutput, error) {
	if err := s.setDisabled(ctx, capability.KindPostPlug, input.ID, input.Body.Disabled); err != nil {
		return nil, apiError(err)
	}
	e, _ := s.services.validator.Catalog().PostPlug(input.ID)
	return &setPostPlugDisabledOutput{Body: postPlugSummary(e)}, nil
}

func (s *Server) handleInvokePostPlug(ctx context.Context, input *invokePostPlugInput) (*invokePostPlugOutput, error) {
	err := s.services.runner.Invoke(ctx, dispatch.PostPlugInvocation{
		Identifier:  input.ID,
		PostID:      input.Body.PostID,
		Integration: input.Body.Integration,
		Values:      input.Body.Values,
	})
	if err != nil {
		return nil, apiError(err)
	}
	out := &invokePostPlugOutput{}
	out.Body.Status = "ok"
	return out, nil
}

func (s *Server) handleValidate(_ context.Context, input *validateInput) (*validateOutput, error) {
	kind, err := capability.ParseKind(input.Body.Kind)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if err := s.services.validator.CheckType("type", kind, input.Body.Type); err != nil {
		return nil, apiError(err)
	}
	out := &validateOutput{}
	out.Body.Valid = true
	return out, nil
}

func (s *Server) handleListRuns(ctx context.Context, input *listRunsInput) (*listRunsOutput, error) {
	entries, err := s.services.store.Runs().Query(ctx, store.RunFilter{
		Identifier: input.Plug,
		Kind:       input.Kind,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return nil, apiError(err)
	}
	out := &listRunsOutput{}
	out.Body.Runs = make([]RunSummary, 0, len(entries))
	for _, e := range entries {
		out.Body.Runs = append(out.Body.Runs, runSummary(e))
	}
	return out, nil
}

// setDisabled flips the catalog flag and persists it. The flag is restored
// when the store rejects the change.
func (s *Server) setDisabled(ctx context.Context, kind capability.Kind, id string, disabled bool) error {
	catalog := s.services.validator.Catalog()
	previous := catalog.IsDisabled(kind, id)
	if err := catalog.SetDisabled(kind, id, disabled); err != nil {
		return err
	}

	if s.services.store != nil {
		err := s.services.store.Activations().Set(ctx, store.Activation{
			Kind:       kind,
			Identifier: id,
			Disabled:   disabled,
			UpdatedAt:  s.services.now(),
		})
		if err != nil {
			_ = catalog.SetDisabled(kind, id, previous)
			return err
		}
	}

	slog.Info("capability activation changed",
		"kind", string(kind),
		"identifier", id,
		"disabled", disabled)
	return nil
}

// apiError maps a domain error to a huma status error. Rejections keep their
// message verbatim so clients can show the allowed identifiers. Action
// failures are 502 whatever code the integration attached.
func apiError(err error) error {
	var rej *validator.Rejection
	if errors.As(err, &rej) {
		return huma.Error422UnprocessableEntity(rej.Error())
	}

	status := pwerr.HTTPStatus(err)
	var actionErr *dispatch.ActionError
	if errors.As(err, &actionErr) {
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		slog.Error("admin request failed",
			"code", string(pwerr.CodeOf(err)),
			"error", err)
	}
	return huma.NewError(status, err.Error())
}
