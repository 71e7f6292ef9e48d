// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postwright/postwright/internal/validator"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <identifier>",
		Short: "Check that a capability identifier is available",
		Long: "Check an identifier against the catalog the way the API does before a post is scheduled. " +
			"With --set, field values are checked against the capability's fields too.",
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}

	cmd.Flags().String("kind", string(capability.KindPostPlug), "capability kind (plug or post-plug)")
	cmd.Flags().String("integration", "", "integration type the post-plug must apply to")
	cmd.Flags().StringToString("set", nil, "field values to check (name=value)")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	id := args[0]
	kindFlag, _ := cmd.Flags().GetString("kind")
	integration, _ := cmd.Flags().GetString("integration")
	values, _ := cmd.Flags().GetStringToString("set")

	kind, err := capability.ParseKind(kindFlag)
	if err != nil {
		return cliInputError(err)
	}

	catalog, err := loadCatalog(cmd)
	if err != nil {
		return err
	}
	v := validator.New(catalog)

	if err := v.CheckType("type", kind, id); err != nil {
		var rej *validator.Rejection
		if errors.As(err, &rej) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), errorStyle.Render(rej.Error()))
		}
		return err
	}

	if integration != "" && kind == capability.KindPostPlug {
		e, _ := catalog.PostPlug(id)
		if !e.Descriptor().AppliesTo(integration) {
			return pwerr.Errorf(pwerr.CodeCLIInputInvalid, "post-plug %q does not apply to integration %q", id, integration)
		}
	}

	if cmd.Flags().Changed("set") {
		if err := v.CheckFields(kind, id, values); err != nil {
			return err
		}
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s is available\n", successStyle.Render("ok"), id)
	return err
}

func cliInputError(err error) error {
	return pwerr.Wrap(err, pwerr.CodeCLIInputInvalid, "invalid input")
}
