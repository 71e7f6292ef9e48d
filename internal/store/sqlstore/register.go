// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package sqlstore

import (
	"os"
	"path/filepath"

	"github.com/postwright/postwright/internal/store"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// DefaultFileName is the sqlite database created under the data directory.
const DefaultFileName = "postwright.db"

func init() {
	store.RegisterBackend("sqlite", openSQLiteBackend)
	store.RegisterBackend("mysql", openMySQLBackend)
}

func openSQLiteBackend(cfg *store.Config, dataDir string) (store.Store, error) {
	path := cfg.DSN
	if path == "" {
		if err := os.MkdirAll(dataDir, 0o750); err != nil {
			return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "creating data directory",
				pwerr.Field("path", dataDir))
		}
		path = filepath.Join(dataDir, DefaultFileName)
	}
	return OpenSQLite(path)
}

func openMySQLBackend(cfg *store.Config, _ string) (store.Store, error) {
	return OpenMySQL(cfg.DSN)
}
