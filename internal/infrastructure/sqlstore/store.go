// Package sqlstore implements the product store on database/sql, backed by
// SQLite or PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/pricetracker/backend/internal/domain"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store persists websites, product groups and products in SQL tables
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the schema
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[STORE] Connected to %s database", driver)
	return s, nil
}

// sqliteDSN enables foreign keys and a busy timeout unless the DSN sets them
func sqliteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_foreign_keys") && !strings.Contains(dsn, "_fk") {
		params = append(params, "_foreign_keys=on")
	}
	if !strings.Contains(dsn, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if len(params) == 0 {
		return dsn
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// tx wraps one SQL transaction
type tx struct {
	s  *Store
	tx *sql.Tx
}

// WithTx runs fn in a transaction, rolled back when fn fails
func (s *Store) WithTx(ctx context.Context, fn func(tx domain.StoreTx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if err := fn(&tx{s: s, tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			log.Printf("[STORE] Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func (t *tx) UpsertWebsite(ctx context.Context, name string) (domain.Website, error) {
	_, err := t.tx.ExecContext(ctx, t.s.rebind(
		`INSERT INTO websites (name) VALUES (?) ON CONFLICT (name) DO NOTHING`), name)
	if err != nil {
		return domain.Website{}, err
	}

	var site domain.Website
	err = t.tx.QueryRowContext(ctx, t.s.rebind(
		`SELECT id, name FROM websites WHERE name = ?`), name).Scan(&site.ID, &site.Name)
	return site, err
}

func (t *tx) GetOrCreateGroup(ctx context.Context, group domain.ProductGroup) (domain.ProductGroup, bool, error) {
	attributes, err := json.Marshal(group.Attributes)
	if err != nil {
		return domain.ProductGroup{}, false, fmt.Errorf("error encoding attributes: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, t.s.rebind(`
		INSERT INTO product_groups
			(canonical_name, category, brand, starting_price, attributes, representative_image_url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (canonical_name, category) DO NOTHING`),
		group.CanonicalName, group.Category, group.Brand, group.StartingPrice,
		string(attributes), group.RepresentativeImageURL)
	if err != nil {
		return domain.ProductGroup{}, false, err
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return domain.ProductGroup{}, false, err
	}

	row := t.tx.QueryRowContext(ctx, t.s.rebind(groupSelect+` WHERE canonical_name = ? AND category = ?`),
		group.CanonicalName, group.Category)
	stored, err := scanGroup(row)
	if err != nil {
		return domain.ProductGroup{}, false, err
	}
	return stored, inserted == 1, nil
}

func (t *tx) UpsertProduct(ctx context.Context, p domain.Product) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, t.s.rebind(
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = ?)`), p.ID).Scan(&exists)
	if err != nil {
		return false, err
	}

	var groupID sql.NullInt64
	if p.GroupID != nil {
		groupID = sql.NullInt64{Int64: *p.GroupID, Valid: true}
	}

	_, err = t.tx.ExecContext(ctx, t.s.rebind(`
		INSERT INTO products
			(id, name, short_description, url, image_url, price, availability, category,
			 website_id, group_id, match_confidence, last_seen_batch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			short_description = excluded.short_description,
			url = excluded.url,
			image_url = excluded.image_url,
			price = excluded.price,
			availability = excluded.availability,
			category = excluded.category,
			website_id = excluded.website_id,
			group_id = excluded.group_id,
			match_confidence = excluded.match_confidence,
			last_seen_batch = excluded.last_seen_batch,
			updated_at = CURRENT_TIMESTAMP`),
		p.ID, p.Name, p.ShortDescription, p.URL, p.ImageURL, p.Price, p.Availability, p.Category,
		p.WebsiteID, groupID, p.MatchConfidence, p.LastSeenBatch)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// SweepUnseen marks unavailable the products of categories not seen by batchID
func (s *Store) SweepUnseen(ctx context.Context, categories []string, batchID string) (int, error) {
	if len(categories) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(categories)+1)
	args = append(args, batchID)
	for _, c := range categories {
		args = append(args, c)
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE products SET availability = FALSE, updated_at = CURRENT_TIMESTAMP
		WHERE availability = TRUE AND last_seen_batch <> ?
		AND category IN (`+placeholders(len(categories))+`)`), args...)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

const groupSelect = `SELECT id, canonical_name, category, brand, starting_price, attributes, representative_image_url
	FROM product_groups`

// ListGroups returns all groups ordered by id
func (s *Store) ListGroups(ctx context.Context) ([]domain.ProductGroup, error) {
	rows, err := s.db.QueryContext(ctx, groupSelect+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.ProductGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// CountGroups returns the number of groups
func (s *Store) CountGroups(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM product_groups`).Scan(&n)
	return n, err
}

// MinAvailablePrice returns the lowest price among available members
func (s *Store) MinAvailablePrice(ctx context.Context, groupID int64) (float64, bool, error) {
	var price sql.NullFloat64
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT MIN(price) FROM products WHERE group_id = ? AND availability = TRUE`), groupID).Scan(&price)
	if err != nil {
		return 0, false, err
	}
	return price.Float64, price.Valid, nil
}

// HasAvailableImage reports whether an available member shows imageURL
func (s *Store) HasAvailableImage(ctx context.Context, groupID int64, imageURL string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT EXISTS (
			SELECT 1 FROM products
			WHERE group_id = ? AND availability = TRUE AND image_url = ?
		)`), groupID, imageURL).Scan(&exists)
	return exists, err
}

// FindAvailableImage returns the image of the first available member, by
// product id, sold by website ("" for any website)
func (s *Store) FindAvailableImage(ctx context.Context, groupID int64, website string) (string, bool, error) {
	query := `SELECT p.image_url FROM products p
		JOIN websites w ON w.id = p.website_id
		WHERE p.group_id = ? AND p.availability = TRUE AND p.image_url <> ''`
	args := []any{groupID}
	if website != "" {
		query += ` AND LOWER(w.name) = LOWER(?)`
		args = append(args, website)
	}
	query += ` ORDER BY p.id LIMIT 1`

	var image string
	err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&image)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return image, true, nil
}

// UpdateGroupAggregates stores a new starting price and image for a group
func (s *Store) UpdateGroupAggregates(ctx context.Context, groupID int64, startingPrice float64, imageURL string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE product_groups
		SET starting_price = ?, representative_image_url = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`), startingPrice, imageURL, groupID)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: group %d", domain.ErrNotFound, groupID)
	}
	return nil
}

const productSelect = `SELECT p.id, p.name, p.short_description, p.url, p.image_url, p.price,
	p.availability, p.category, p.website_id, w.name, p.group_id, p.match_confidence, p.last_seen_batch
	FROM products p JOIN websites w ON w.id = p.website_id`

// GetProduct returns a product by id
func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(productSelect+` WHERE p.id = ?`), id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return p, err
}

// ListProducts returns the products of a category ("" for all), ordered by id
func (s *Store) ListProducts(ctx context.Context, category string) ([]domain.Product, error) {
	query := productSelect
	var args []any
	if category != "" {
		query += ` WHERE p.category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY p.id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanGroup(row scanner) (domain.ProductGroup, error) {
	var g domain.ProductGroup
	var attributes string
	if err := row.Scan(&g.ID, &g.CanonicalName, &g.Category, &g.Brand, &g.StartingPrice,
		&attributes, &g.RepresentativeImageURL); err != nil {
		return domain.ProductGroup{}, err
	}
	if err := json.Unmarshal([]byte(attributes), &g.Attributes); err != nil {
		return domain.ProductGroup{}, fmt.Errorf("error decoding attributes of group %d: %w", g.ID, err)
	}
	return g, nil
}

func scanProduct(row scanner) (domain.Product, error) {
	var p domain.Product
	var groupID sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &p.ShortDescription, &p.URL, &p.ImageURL, &p.Price,
		&p.Availability, &p.Category, &p.WebsiteID, &p.WebsiteName, &groupID,
		&p.MatchConfidence, &p.LastSeenBatch); err != nil {
		return domain.Product{}, err
	}
	if groupID.Valid {
		id := groupID.Int64
		p.GroupID = &id
	}
	return p, nil
}
