package database

import (
	"errors"
	"testing"
)

func withDriver(t *testing.T, driver string) {
	t.Helper()
	t.Setenv("TEST_DB_DRIVER", driver)
}

func TestConvertPlaceholders(t *testing.T) {
	withDriver(t, "sqlite3")
	got := ConvertPlaceholders(`SELECT * FROM t WHERE a = $1 AND b = $2`)
	want := `SELECT * FROM t WHERE a = ? AND b = ?`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	withDriver(t, "postgres")
	query := `SELECT * FROM t WHERE a = $1`
	if got := ConvertPlaceholders(query); got != query {
		t.Errorf("postgres query must pass through unchanged, got %q", got)
	}
}

func TestConvertReturning(t *testing.T) {
	query := `INSERT INTO t (a) VALUES ($1) RETURNING id`

	withDriver(t, "postgres")
	got, useLastInsert := ConvertReturning(query)
	if useLastInsert || got != query {
		t.Errorf("postgres: got %q, %v", got, useLastInsert)
	}

	withDriver(t, "mysql")
	got, useLastInsert = ConvertReturning(query)
	if !useLastInsert {
		t.Error("mysql should use LastInsertId")
	}
	if got != `INSERT INTO t (a) VALUES ($1)` {
		t.Errorf("mysql: got %q", got)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("pq: duplicate key value violates unique constraint \"tickets_number_key\""), true},
		{errors.New("Error 1062: Duplicate entry 'SD-00001' for key 'number'"), true},
		{errors.New("UNIQUE constraint failed: tickets.number"), true},
		{errors.New("connection refused"), false},
	}
	for _, c := range cases {
		if got := IsUniqueViolation(c.err); got != c.want {
			t.Errorf("IsUniqueViolation(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestGetDriverDefault(t *testing.T) {
	t.Setenv("TEST_DB_DRIVER", "")
	t.Setenv("DB_DRIVER", "")
	if got := GetDriver(); got != "postgres" {
		t.Errorf("default driver = %q, want postgres", got)
	}
}
