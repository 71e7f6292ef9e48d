// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package config

import (
	_ "embed"
	"log/slog"
	"os"
	"path/filepath"

	pwerr "github.com/postwright/postwright/pkg/errors"
)

//go:embed postwright.yaml.default
var DefaultConfigYAML []byte

// DefaultConfigPath returns ~/.config/postwright/postwright.yaml.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", pwerr.Errorf(pwerr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "postwright", "postwright.yaml"), nil
}

// DefaultDataDir returns ~/.local/share/postwright, or ".postwright" in the
// working directory when the home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".postwright"
	}
	return filepath.Join(home, ".local", "share", "postwright")
}

// BootstrapConfig writes the default commented config to path if it does not
// already exist. Returns the path written, or empty string if the file already
// existed or an error occurred (non-fatal, logged and skipped).
func BootstrapConfig() string {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	return bootstrapAt(cfgPath)
}

func bootstrapAt(cfgPath string) string {
	if _, err := os.Stat(cfgPath); err == nil {
		return "" // already exists
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		slog.Debug("skipping config bootstrap: cannot create directory", "path", dir, "error", err)
		return ""
	}

	if err := os.WriteFile(cfgPath, DefaultConfigYAML, 0o600); err != nil {
		slog.Debug("skipping config bootstrap: cannot write config", "path", cfgPath, "error", err)
		return ""
	}

	slog.Info("created default config", "path", cfgPath)
	return cfgPath
}
