// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/postwright/postwright/internal/store"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the run ledger",
		Long:  "Print recorded plug runs, post-plug invocations and registry events, oldest first.",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}

	cmd.Flags().String("plug", "", "only entries for this capability identifier")
	cmd.Flags().String("kind", "", "only entries of this record kind (e.g. plug.run.failed)")
	cmd.Flags().Int("limit", 50, "maximum entries to show")
	cmd.Flags().StringP("output", "o", "table", "output format (table or yaml)")

	return cmd
}

// runDoc is the YAML rendering of a ledger entry.
type runDoc struct {
	ID         string    `yaml:"id"`
	Kind       string    `yaml:"kind"`
	Identifier string    `yaml:"identifier"`
	Owner      string    `yaml:"owner,omitempty"`
	Run        int       `yaml:"run"`
	Error      string    `yaml:"error,omitempty"`
	Timestamp  time.Time `yaml:"timestamp"`
}

func runRuns(cmd *cobra.Command, _ []string) error {
	plug, _ := cmd.Flags().GetString("plug")
	kind, _ := cmd.Flags().GetString("kind")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("output")
	if err := checkOutputFormat(format); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	entries, err := st.Runs().Query(cmd.Context(), store.RunFilter{
		Identifier: plug,
		Kind:       kind,
		Limit:      limit,
	})
	if err != nil {
		return err
	}

	if format == "yaml" {
		docs := make([]runDoc, 0, len(entries))
		for _, e := range entries {
			docs = append(docs, runDoc(*e))
		}
		return renderYAML(cmd.OutOrStdout(), docs)
	}

	if len(entries) == 0 {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("no runs recorded"))
		return err
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		errText := e.Error
		if errText != "" {
			errText = errorStyle.Render(errText)
		}
		rows = append(rows, []string{
			e.Timestamp.Local().Format(time.DateTime),
			e.Kind,
			e.Identifier,
			strconv.Itoa(e.Run),
			errText,
		})
	}
	return renderTable(cmd.OutOrStdout(), []string{"TIME", "KIND", "IDENTIFIER", "RUN", "ERROR"}, rows)
}
