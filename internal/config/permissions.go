// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

//go:build !windows

package config

import (
	"io/fs"
	"log/slog"
	"os"
)

// WarnInsecurePermissions logs a warning when the config file at path holds
// credentials and is readable by group or others. It never fails startup.
func WarnInsecurePermissions(path string, cfg *Config) {
	if path == "" || cfg == nil || !cfg.HasCredentials() {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		slog.Debug("could not stat config file for permission check", "path", path, "error", err)
		return
	}

	const groupRead fs.FileMode = 0o040
	const otherRead fs.FileMode = 0o004

	if info.Mode().Perm()&(groupRead|otherRead) != 0 {
		slog.Warn("config file has insecure permissions and contains storage or broker credentials",
			"path", path,
			"mode", info.Mode(),
			"recommended", "0600",
		)
	}
}
