// Package repository contains the raw-SQL persistence layer. Queries are
// written in PostgreSQL placeholder style and converted for the active driver
// via database.ConvertPlaceholders.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/servdesk-io/servdesk/internal/database"
)

// execer lets repository methods run inside either a *sql.DB or *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertReturningID runs an INSERT written with a RETURNING id clause,
// falling back to LastInsertId on drivers without RETURNING support.
func insertReturningID(ctx context.Context, db execer, query string, args ...any) (int64, error) {
	converted, useLastInsert := database.ConvertReturning(database.ConvertPlaceholders(query))
	if !useLastInsert {
		var id int64
		if err := db.QueryRowContext(ctx, converted, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := db.ExecContext(ctx, converted, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	i := ni.Int64
	return &i
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
