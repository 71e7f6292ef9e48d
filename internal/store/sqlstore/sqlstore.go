// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package sqlstore implements store.Store on database/sql for sqlite and mysql.
package sqlstore

import (
	"database/sql"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/postwright/postwright/internal/store"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// Compile-time interface checks.
var (
	_ store.Store           = (*Store)(nil)
	_ store.RunLedger       = (*runLedger)(nil)
	_ store.ActivationStore = (*activationStore)(nil)
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements store.Store backed by one SQL database.
type Store struct {
	db          *sql.DB
	runs        *runLedger
	activations *activationStore
}

// OpenSQLite opens (or creates) a SQLite database at dbPath.
func OpenSQLite(dbPath string) (*Store, error) {
	db, err := sql.Open(sqliteDialect.driver, dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "opening sqlite db")
	}
	return newStore(db, sqliteDialect)
}

// OpenMySQL connects to the MySQL server described by dsn.
func OpenMySQL(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, pwerr.New(pwerr.CodeStoreInvalidInput, "mysql dsn must not be empty")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreInvalidInput, "parsing mysql dsn")
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "creating mysql connector")
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	return newStore(db, mysqlDialect)
}

func newStore(db *sql.DB, d dialect) (*Store, error) {
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, pwerr.Wrapf(err, pwerr.CodeStoreDatabaseFailure, "pinging %s db", d.driver)
	}
	if err := migrate(db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{
		db:          db,
		runs:        &runLedger{db: db},
		activations: &activationStore{db: db, upsert: d.upsertActivation},
	}, nil
}

func migrate(db *sql.DB, d dialect) error {
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			return pwerr.Wrapf(err, pwerr.CodeStoreDatabaseFailure, "migrating %s schema", d.driver)
		}
	}
	return nil
}

// Runs returns the run ledger.
func (s *Store) Runs() store.RunLedger { return s.runs }

// Activations returns the activation override store.
func (s *Store) Activations() store.ActivationStore { return s.activations }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
