// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/postwright/postwright/internal/dispatch"
	"github.com/postwright/postwright/internal/integrations"
	"github.com/postwright/postwright/internal/registry"
	"github.com/postwright/postwright/internal/server"
	"github.com/postwright/postwright/internal/store"
	"github.com/postwright/postwright/internal/validator"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server over the built-in catalog and extracts the
// OpenAPI document huma generates from the Go type annotations.
func generateSpec() ([]byte, error) {
	catalog, err := registry.Build(context.Background(), integrations.Builtin())
	if err != nil {
		return nil, pwerr.Errorf(pwerr.CodeCLISetupFailure, "building catalog: %w", err)
	}
	v := validator.New(catalog)

	// The stub store makes the runs route register. Handlers are never
	// invoked during spec generation.
	svc, err := server.NewServices(v, dispatch.NewPostPlugRunner(v, dispatch.NewStatic(), nil), nil, stubStore{})
	if err != nil {
		return nil, pwerr.Errorf(pwerr.CodeCLISetupFailure, "creating services: %w", err)
	}

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	if err != nil {
		return nil, pwerr.Errorf(pwerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

type stubStore struct{ store.Store }
