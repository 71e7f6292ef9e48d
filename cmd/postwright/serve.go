// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/postwright/postwright/internal/logging"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the plug scheduler and admin API",
		Long:  "Load configuration, build the capability catalog, start every Plug on its interval and serve the admin API until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("closing resources", "error", err)
		}
	}()

	slog.Info("postwright started",
		"listen", cfg.Networking.Listen,
		"storage", cfg.Storage.Backend,
		"plugs", len(app.Catalog.Plugs()),
		"post_plugs", len(app.Catalog.PostPlugs()),
		"version", version)

	return app.Run(ctx)
}
