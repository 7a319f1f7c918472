package database

import (
	"os"
	"regexp"
	"strings"
)

// GetDriver returns the active database driver name. Tests may override it
// with TEST_DB_DRIVER without touching the primary configuration.
func GetDriver() string {
	driver := os.Getenv("TEST_DB_DRIVER")
	if driver == "" {
		driver = os.Getenv("DB_DRIVER")
	}
	if driver == "" {
		driver = "postgres"
	}
	return strings.ToLower(driver)
}

// IsMySQL returns true when running against MySQL/MariaDB.
func IsMySQL() bool {
	driver := GetDriver()
	return driver == "mysql" || driver == "mariadb"
}

// IsPostgreSQL returns true when running against PostgreSQL.
func IsPostgreSQL() bool {
	return GetDriver() == "postgres"
}

// IsSQLite returns true when running against SQLite (test suites).
func IsSQLite() bool {
	driver := GetDriver()
	return driver == "sqlite" || driver == "sqlite3"
}

var placeholderPattern = regexp.MustCompile(`\$\d+`)

// ConvertPlaceholders rewrites PostgreSQL placeholders ($1, $2, ...) to the
// ? form used by MySQL and SQLite. Queries are written once in PostgreSQL
// style and converted at the call site for the active driver.
func ConvertPlaceholders(query string) string {
	if IsPostgreSQL() {
		return query
	}
	placeholders := placeholderPattern.FindAllString(query, -1)
	result := query
	for _, placeholder := range placeholders {
		result = strings.Replace(result, placeholder, "?", 1)
	}
	if IsMySQL() {
		result = strings.ReplaceAll(result, " ILIKE ", " LIKE ")
		result = strings.ReplaceAll(result, " ilike ", " LIKE ")
	}
	return result
}

var returningPattern = regexp.MustCompile(`(?i)\s+RETURNING\s+.*$`)

// ConvertReturning strips a RETURNING clause for drivers that do not support
// it. The second return value tells the caller to use LastInsertId instead.
func ConvertReturning(query string) (string, bool) {
	if IsPostgreSQL() {
		return query, false
	}
	if returningPattern.MatchString(query) {
		return returningPattern.ReplaceAllString(query, ""), true
	}
	return query, false
}

// IsUniqueViolation reports whether err represents a unique-constraint
// violation on any supported driver. The storage-level unique constraints on
// customer email, ticket number, tracking token, and provider message id are
// the authoritative concurrency arbiters, so callers branch on this.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key value violates unique constraint"): // postgres
		return true
	case strings.Contains(msg, "duplicate entry"): // mysql
		return true
	case strings.Contains(msg, "unique constraint failed"): // sqlite
		return true
	}
	return false
}
