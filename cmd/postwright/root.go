// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/postwright/postwright/internal/config"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// NewRootCmd creates the root postwright command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "postwright",
		Short:         "Postwright capability registry and plug scheduler",
		Long:          "Postwright runs the background Plugs and on-demand PostPlugs declared by social-media integrations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initViper(cmd)
		},
	}

	// Global flags. These map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newCatalogCmd(),
		newValidateCmd(),
		newRunsCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return pwerr.Errorf(pwerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted: with a type set, Viper also tries the
		// bare name, which collides with a ./postwright binary.
		v.SetConfigName("postwright")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/postwright")
		v.AddConfigPath("/etc/postwright")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return pwerr.Errorf(pwerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return pwerr.Errorf(pwerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	if err := v.BindPFlag("data_dir", cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
		return pwerr.Errorf(pwerr.CodeCLISetupFailure, "binding data-dir flag: %w", err)
	}
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return pwerr.Errorf(pwerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	return nil
}

// loadConfig decodes the configuration resolved by initViper.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	if v.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}
	if path := v.ConfigFileUsed(); path != "" {
		config.WarnInsecurePermissions(path, cfg)
	}
	return cfg, nil
}
