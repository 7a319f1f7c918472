package database

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/servdesk-io/servdesk/internal/config"
)

// Open connects to the database described by cfg and verifies the connection
// with a ping. The returned handle is safe for concurrent use and is the only
// shared mutable resource in the system.
func Open(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database: configuration required")
	}
	driver, dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}
	return db, nil
}

func buildDSN(cfg *config.DatabaseConfig) (string, string, error) {
	switch cfg.Driver {
	case "postgres":
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslMode)
		return "postgres", dsn, nil
	case "mysql", "mariadb":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		return "mysql", dsn, nil
	case "sqlite", "sqlite3":
		dsn := cfg.Name
		if dsn == "" {
			dsn = "servdesk.db"
		}
		return "sqlite3", dsn, nil
	default:
		return "", "", fmt.Errorf("database: unsupported driver %q", cfg.Driver)
	}
}

// OpenForTest returns an in-memory SQLite handle with the schema applied.
// Each call yields an isolated database.
func OpenForTest() (*sql.DB, error) {
	os.Setenv("TEST_DB_DRIVER", "sqlite3")
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:servdesk-test-%d?mode=memory&cache=shared", time.Now().UnixNano()))
	if err != nil {
		return nil, err
	}
	// Shared-cache in-memory databases vanish when the last connection
	// closes; a single connection keeps the schema alive for the test.
	db.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
