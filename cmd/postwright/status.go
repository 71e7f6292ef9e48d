// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/postwright/postwright/internal/server"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show scheduler state of a running instance",
		Long:  "Query a running instance's admin API and print the state of every plug.",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "", "admin API address (defaults to networking.listen)")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = viper.GetString("networking.listen")
	}
	out := cmd.OutOrStdout()

	var body struct {
		Plugs []server.PlugSummary `json:"plugs"`
	}
	if err := newAdminClient(addr).getJSON("/api/v1/plugs", &body); err != nil {
		if errors.Is(err, errNotRunning) {
			_, _ = fmt.Fprintf(out, "postwright at %s is not running (connection refused)\n", addr)
			return nil
		}
		return err
	}

	rows := make([][]string, 0, len(body.Plugs))
	for _, p := range body.Plugs {
		state, runs, failures, skipped, lastErr := "-", "-", "-", "-", ""
		if s := p.Schedule; s != nil {
			state = s.State
			runs = fmt.Sprintf("%d/%d", s.RunsCompleted, p.TotalRuns)
			failures = strconv.Itoa(s.Failures)
			skipped = strconv.Itoa(s.SkippedTicks)
			lastErr = s.LastError
		}
		if p.Disabled {
			state = dimStyle.Render(state)
		}
		rows = append(rows, []string{p.Identifier, p.Owner, state, runs, failures, skipped, lastErr})
	}
	_, _ = fmt.Fprintf(out, "postwright at %s: %d plugs\n", addr, len(rows))
	if len(rows) == 0 {
		return nil
	}
	return renderTable(out, []string{"PLUG", "OWNER", "STATE", "RUNS", "FAILURES", "SKIPPED", "LAST ERROR"}, rows)
}
