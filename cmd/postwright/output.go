// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	pwerr "github.com/postwright/postwright/pkg/errors"
)

// --- lipgloss styles ---

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))
	outputFormats = []string{"table", "yaml"}
)

func renderTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func renderYAML(w io.Writer, doc any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return pwerr.Errorf(pwerr.CodeCLISetupFailure, "encoding yaml: %w", err)
	}
	return enc.Close()
}

func checkOutputFormat(format string) error {
	if slices.Contains(outputFormats, format) {
		return nil
	}
	return pwerr.Errorf(pwerr.CodeCLIInputInvalid, "unknown output format %q (want table or yaml)", format)
}

func statusText(disabled bool) string {
	if disabled {
		return dimStyle.Render("disabled")
	}
	return successStyle.Render("enabled")
}
