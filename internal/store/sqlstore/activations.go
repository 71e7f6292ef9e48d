// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/postwright/postwright/internal/store"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

type activationStore struct {
	db     *sql.DB
	upsert string
}

func (s *activationStore) Set(ctx context.Context, a store.Activation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}

	disabled := 0
	if a.Disabled {
		disabled = 1
	}
	if _, err := s.db.ExecContext(ctx, s.upsert, string(a.Kind), a.Identifier, disabled, formatTime(a.UpdatedAt)); err != nil {
		return pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "saving activation",
			pwerr.Field("kind", string(a.Kind)), pwerr.Field("identifier", a.Identifier))
	}
	return nil
}

func (s *activationStore) List(ctx context.Context) ([]store.Activation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, identifier, disabled, updated_at FROM activations ORDER BY kind ASC, identifier ASC`)
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "listing activations")
	}
	defer rows.Close() //nolint:errcheck // error on read-path close is not actionable

	var out []store.Activation
	for rows.Next() {
		var a store.Activation
		var kind, updatedAt string
		var disabled int
		if err := rows.Scan(&kind, &a.Identifier, &disabled, &updatedAt); err != nil {
			return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "scanning activation row")
		}
		a.Kind = capability.Kind(kind)
		a.Disabled = disabled != 0
		if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "parsing activation updated_at")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "iterating activations")
	}
	return out, nil
}
