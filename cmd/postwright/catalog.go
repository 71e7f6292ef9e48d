// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/postwright/postwright/internal/registry"
	"github.com/postwright/postwright/internal/telemetry"
	"github.com/postwright/postwright/pkg/capability"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List registered plugs and post-plugs",
		Long: "Build the capability catalog from the built-in integrations, apply configured and persisted " +
			"activation overrides, and print it.",
		Args: cobra.NoArgs,
		RunE: runCatalog,
	}

	cmd.Flags().String("kind", "", "only list this kind (plug or post-plug)")
	cmd.Flags().String("integration", "", "only list plugs owned by, and post-plugs applying to, this integration type")
	cmd.Flags().StringP("output", "o", "table", "output format (table or yaml)")

	return cmd
}

// plugDoc and postPlugDoc are the YAML rendering of catalog entries.
type plugDoc struct {
	Owner                     string `yaml:"owner"`
	capability.PlugDescriptor `yaml:",inline"`
}

type postPlugDoc struct {
	Owner                         string `yaml:"owner"`
	capability.PostPlugDescriptor `yaml:",inline"`
}

type catalogDoc struct {
	Plugs     []plugDoc     `yaml:"plugs,omitempty"`
	PostPlugs []postPlugDoc `yaml:"post_plugs,omitempty"`
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	kindFlag, _ := cmd.Flags().GetString("kind")
	integration, _ := cmd.Flags().GetString("integration")
	format, _ := cmd.Flags().GetString("output")
	if err := checkOutputFormat(format); err != nil {
		return err
	}

	var kind capability.Kind
	if kindFlag != "" {
		k, err := capability.ParseKind(kindFlag)
		if err != nil {
			return cliInputError(err)
		}
		kind = k
	}

	catalog, err := loadCatalog(cmd)
	if err != nil {
		return err
	}
	doc := selectCatalog(catalog, kind, integration)

	if format == "yaml" {
		return renderYAML(cmd.OutOrStdout(), doc)
	}

	rows := make([][]string, 0, len(doc.Plugs)+len(doc.PostPlugs))
	for _, p := range doc.Plugs {
		every := time.Duration(p.RunEveryMilliseconds) * time.Millisecond
		rows = append(rows, []string{
			string(capability.KindPlug), p.Identifier, p.Owner,
			fmt.Sprintf("every %s, %d runs", every, p.TotalRuns),
			statusText(p.Disabled),
		})
	}
	for _, p := range doc.PostPlugs {
		rows = append(rows, []string{
			string(capability.KindPostPlug), p.Identifier, p.Owner,
			strings.Join(p.PickIntegration, ", "),
			statusText(p.Disabled),
		})
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no capabilities match"))
		return err
	}
	return renderTable(cmd.OutOrStdout(), []string{"KIND", "IDENTIFIER", "OWNER", "SCHEDULE / INTEGRATIONS", "STATUS"}, rows)
}

// loadCatalog builds the catalog the way serve does, without starting
// anything. Registry events are not recorded.
func loadCatalog(cmd *cobra.Command) (*registry.Catalog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	return buildCatalog(cmd.Context(), cfg, telemetry.Nop, st.Activations())
}

func selectCatalog(catalog *registry.Catalog, kind capability.Kind, integration string) catalogDoc {
	var doc catalogDoc
	if kind == "" || kind == capability.KindPlug {
		for _, e := range catalog.Plugs() {
			if integration != "" && e.Owner() != integration {
				continue
			}
			doc.Plugs = append(doc.Plugs, plugDoc{Owner: e.Owner(), PlugDescriptor: e.Descriptor()})
		}
	}
	if kind == "" || kind == capability.KindPostPlug {
		for _, e := range catalog.PostPlugs() {
			d := e.Descriptor()
			if integration != "" && !d.AppliesTo(integration) {
				continue
			}
			doc.PostPlugs = append(doc.PostPlugs, postPlugDoc{Owner: e.Owner(), PostPlugDescriptor: d})
		}
	}
	return doc
}
