// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/postwright/postwright/internal/store"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

type runLedger struct {
	db *sql.DB
}

func (s *runLedger) Append(ctx context.Context, entry *store.RunEntry) error {
	if entry == nil {
		return pwerr.New(pwerr.CodeStoreInvalidInput, "run entry must not be nil")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	const q = `INSERT INTO plug_runs (id, kind, identifier, owner, run, error, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		entry.ID, entry.Kind, entry.Identifier, entry.Owner,
		entry.Run, entry.Error, formatTime(entry.Timestamp),
	)
	if err != nil {
		return pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "appending run entry",
			pwerr.Field("id", entry.ID), pwerr.FieldPlug(entry.Identifier))
	}
	return nil
}

func (s *runLedger) Query(ctx context.Context, filter store.RunFilter) ([]*store.RunEntry, error) {
	var qb strings.Builder
	qb.WriteString(`SELECT id, kind, identifier, owner, run, error, recorded_at FROM plug_runs`)

	var conditions []string
	var args []any

	if filter.Identifier != "" {
		conditions = append(conditions, "identifier = ?")
		args = append(args, filter.Identifier)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "recorded_at >= ?")
		args = append(args, formatTime(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "recorded_at < ?")
		args = append(args, formatTime(filter.To))
	}

	if len(conditions) > 0 {
		qb.WriteString(" WHERE ")
		qb.WriteString(strings.Join(conditions, " AND "))
	}

	qb.WriteString(" ORDER BY recorded_at ASC, id ASC LIMIT ? OFFSET ?")
	args = append(args, filter.EffectiveLimit(), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "querying run ledger")
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var entries []*store.RunEntry
	for rows.Next() {
		var e store.RunEntry
		var errText sql.NullString
		var ts string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Identifier, &e.Owner, &e.Run, &errText, &ts); err != nil {
			return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "scanning run row")
		}
		e.Error = errText.String
		e.Timestamp, err = parseTime(ts)
		if err != nil {
			return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "parsing run entry timestamp",
				pwerr.Field("id", e.ID))
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "iterating run entries")
	}
	return entries, nil
}

func (s *runLedger) Count(ctx context.Context, identifier string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plug_runs WHERE identifier = ? AND kind LIKE 'plug.run.%'`, identifier,
	).Scan(&n)
	if err != nil {
		return 0, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "counting runs", pwerr.FieldPlug(identifier))
	}
	return n, nil
}
