package ticketnumber

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/servdesk-io/servdesk/internal/database"
)

// DBStore maintains one row per counter scope in ticket_number_counters and
// increments it with a dialect-specific atomic upsert:
//
//	Postgres: INSERT ... ON CONFLICT (scope) DO UPDATE ... RETURNING counter
//	MySQL:    INSERT ... ON DUPLICATE KEY UPDATE counter = LAST_INSERT_ID(...)
//	SQLite:   transaction with read-then-upsert (single-writer by design)
type DBStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{db: db, clock: time.Now}
}

// Add implements CounterStore.
func (s *DBStore) Add(ctx context.Context, dateScoped bool, offset int64) (int64, error) {
	if offset < 1 {
		return 0, errors.New("ticketnumber: bad offset")
	}
	scope := "global"
	if dateScoped {
		now := s.clock().UTC()
		scope = fmt.Sprintf("%04d%02d%02d", now.Year(), int(now.Month()), now.Day())
	}
	if database.IsPostgreSQL() {
		q := `INSERT INTO ticket_number_counters (scope, counter)
              VALUES ($1, $2)
              ON CONFLICT (scope) DO UPDATE SET counter = ticket_number_counters.counter + EXCLUDED.counter
              RETURNING counter`
		var c int64
		if err := s.db.QueryRowContext(ctx, q, scope, offset).Scan(&c); err != nil {
			return 0, err
		}
		return c, nil
	}
	if database.IsMySQL() {
		// LAST_INSERT_ID read from the Exec result stays on the same
		// pooled connection.
		q := `INSERT INTO ticket_number_counters (scope, counter)
              VALUES (?, ?)
              ON DUPLICATE KEY UPDATE counter = LAST_INSERT_ID(counter + VALUES(counter))`
		res, err := s.db.ExecContext(ctx, q, scope, offset)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	return s.addTx(ctx, scope, offset)
}

func (s *DBStore) addTx(ctx context.Context, scope string, offset int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	var current int64
	row := tx.QueryRowContext(ctx, database.ConvertPlaceholders(`SELECT counter FROM ticket_number_counters WHERE scope = $1`), scope)
	scanErr := row.Scan(&current)
	switch {
	case scanErr == nil:
		newVal := current + offset
		if _, err = tx.ExecContext(ctx, database.ConvertPlaceholders(`UPDATE ticket_number_counters SET counter = $2 WHERE scope = $1`), scope, newVal); err != nil {
			return 0, err
		}
		if err = tx.Commit(); err != nil {
			return 0, err
		}
		return newVal, nil
	case errors.Is(scanErr, sql.ErrNoRows):
		if _, err = tx.ExecContext(ctx, database.ConvertPlaceholders(`INSERT INTO ticket_number_counters (scope, counter) VALUES ($1, $2)`), scope, offset); err != nil {
			return 0, err
		}
		if err = tx.Commit(); err != nil {
			return 0, err
		}
		return offset, nil
	default:
		err = scanErr
		return 0, scanErr
	}
}
