package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate creates the ServDesk schema if it does not exist. The unique
// constraints declared here (customer email, ticket number, tracking token,
// provider message id) are load-bearing: application code relies on them as
// the concurrency arbiters for upserts and idempotency.
func Migrate(db *sql.DB) error {
	for _, stmt := range schemaStatements() {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("database: migrate: %w", err)
		}
	}
	for _, stmt := range indexStatements() {
		if _, err := db.Exec(stmt); err != nil && !isDuplicateIndex(err) {
			return fmt.Errorf("database: migrate index: %w", err)
		}
	}
	return nil
}

func isDuplicateIndex(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	// MySQL has no CREATE INDEX IF NOT EXISTS; re-running migrate reports
	// the index as already present.
	return strings.Contains(msg, "Duplicate key name") || strings.Contains(msg, "already exists")
}

func schemaStatements() []string {
	pk := primaryKeyClause()
	return []string{
		`CREATE TABLE IF NOT EXISTS customers (
			id ` + pk + `,
			email VARCHAR(255) NOT NULL,
			name VARCHAR(255),
			organization VARCHAR(255),
			ticket_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			CONSTRAINT uq_customers_email UNIQUE (email)
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id ` + pk + `,
			number VARCHAR(32) NOT NULL,
			subject VARCHAR(255) NOT NULL,
			status VARCHAR(32) NOT NULL,
			priority VARCHAR(16) NOT NULL,
			tracking_token VARCHAR(64) NOT NULL,
			customer_id BIGINT NOT NULL,
			assignee_id BIGINT,
			thread_id VARCHAR(255),
			first_response_at TIMESTAMP,
			resolved_at TIMESTAMP,
			closed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			CONSTRAINT uq_tickets_number UNIQUE (number),
			CONSTRAINT uq_tickets_tracking_token UNIQUE (tracking_token)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id ` + pk + `,
			ticket_id BIGINT NOT NULL,
			type VARCHAR(16) NOT NULL,
			content TEXT NOT NULL,
			content_html TEXT,
			sender_email VARCHAR(255),
			sender_name VARCHAR(255),
			recipient_email VARCHAR(255),
			provider_message_id VARCHAR(255),
			author_id BIGINT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inbound_events (
			id ` + pk + `,
			provider_message_id VARCHAR(255) NOT NULL,
			raw_payload ` + blobType() + `,
			processed ` + boolType() + ` NOT NULL DEFAULT ` + boolFalse() + `,
			processed_at TIMESTAMP,
			ticket_id BIGINT,
			error TEXT,
			created_at TIMESTAMP NOT NULL,
			CONSTRAINT uq_inbound_events_provider_message_id UNIQUE (provider_message_id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id ` + pk + `,
			ticket_id BIGINT,
			entity_type VARCHAR(64) NOT NULL,
			entity_id BIGINT NOT NULL,
			action VARCHAR(64) NOT NULL,
			field VARCHAR(64),
			old_value TEXT,
			new_value TEXT,
			metadata TEXT,
			actor_id BIGINT,
			actor_email VARCHAR(255),
			ip VARCHAR(64),
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ticket_number_counters (
			scope VARCHAR(32) NOT NULL,
			counter BIGINT NOT NULL,
			CONSTRAINT uq_ticket_number_counters_scope UNIQUE (scope)
		)`,
	}
}

func indexStatements() []string {
	create := "CREATE INDEX"
	if !IsMySQL() {
		create = "CREATE INDEX IF NOT EXISTS"
	}
	return []string{
		create + " idx_messages_ticket_id ON messages (ticket_id)",
		create + " idx_audit_logs_ticket_id ON audit_logs (ticket_id)",
		create + " idx_tickets_customer_id ON tickets (customer_id)",
	}
}

func primaryKeyClause() string {
	switch {
	case IsSQLite():
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	case IsMySQL():
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		return "BIGSERIAL PRIMARY KEY"
	}
}

func blobType() string {
	if IsPostgreSQL() {
		return "BYTEA"
	}
	return "BLOB"
}

func boolType() string {
	if IsMySQL() {
		return "TINYINT(1)"
	}
	return "BOOLEAN"
}

func boolFalse() string {
	if IsPostgreSQL() {
		return "FALSE"
	}
	return "0"
}
