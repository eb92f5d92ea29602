package sqlstore

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// Supported database/sql driver names
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// schemaQueries use {{pk}} for the dialect's auto-increment key
var schemaQueries = []string{
	`CREATE TABLE IF NOT EXISTS websites (
		id {{pk}},
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS product_groups (
		id {{pk}},
		canonical_name TEXT NOT NULL,
		category TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		starting_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		attributes TEXT NOT NULL DEFAULT '{}',
		representative_image_url TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (canonical_name, category)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		short_description TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION NOT NULL,
		availability BOOLEAN NOT NULL DEFAULT TRUE,
		category TEXT NOT NULL,
		website_id BIGINT NOT NULL REFERENCES websites(id),
		group_id BIGINT REFERENCES product_groups(id),
		match_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		last_seen_batch TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category)`,
	`CREATE INDEX IF NOT EXISTS idx_products_group ON products (group_id)`,
}

// CreateTables creates the schema if it does not exist yet
func (s *Store) CreateTables(ctx context.Context) error {
	key := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == DriverPostgres {
		key = "BIGSERIAL PRIMARY KEY"
	}

	for _, q := range schemaQueries {
		if _, err := s.db.ExecContext(ctx, strings.ReplaceAll(q, "{{pk}}", key)); err != nil {
			return fmt.Errorf("error creating schema: %w", err)
		}
	}

	log.Printf("[STORE] Schema ready (%s)", s.driver)
	return nil
}

// rebind turns "?" placeholders into "$1", "$2", ... for postgres
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
