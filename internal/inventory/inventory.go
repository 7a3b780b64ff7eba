// Package inventory is the SQL-backed product and order store behind the
// catalog server. It runs on SQLite for development and Postgres in production.
package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Roman-G-men/vipsneaker-bot/internal/model"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// RecentOrdersLimit is how many orders the order history shows.
const RecentOrdersLimit = 5

// Repository reads the catalog and records orders.
type Repository struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and creates the schema if needed.
// For SQLite, dsn is a file path or ":memory:".
func Open(ctx context.Context, driver, dsn string) (*Repository, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time; also keeps a ":memory:" database on a single connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	r := &Repository{db: db, driver: driver}
	if err := r.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return r, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	serial, ts := "INTEGER PRIMARY KEY AUTOINCREMENT", "TIMESTAMP"
	if r.driver == DriverPostgres {
		serial, ts = "BIGSERIAL PRIMARY KEY", "TIMESTAMPTZ"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id ` + serial + `,
			name TEXT NOT NULL,
			brand TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			composition TEXT NOT NULL DEFAULT '',
			photo_url TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS product_variants (
			id ` + serial + `,
			product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			size TEXT NOT NULL,
			price BIGINT NOT NULL CHECK (price >= 0),
			stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_variants_product ON product_variants(product_id)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id ` + serial + `,
			user_id BIGINT NOT NULL,
			items_json TEXT NOT NULL,
			total_amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// === Catalog ===

const productColumns = `p.id, p.name, p.brand, p.category, p.description, p.composition, p.photo_url`

// ActiveProducts returns active products, newest first, each with only its
// in-stock variants. Products with nothing in stock are left out.
func (r *Repository) ActiveProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`, v.id, v.size, v.price, v.stock
		FROM products p
		JOIN product_variants v ON v.product_id = p.id
		WHERE p.is_active AND v.stock > 0
		ORDER BY p.id DESC, v.id`)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		var v model.Variant
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Description, &p.Composition, &p.PhotoURL,
			&v.ID, &v.Size, &v.Price, &v.Stock); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		if n := len(products); n > 0 && products[n-1].ID == p.ID {
			products[n-1].Variants = append(products[n-1].Variants, v)
			continue
		}
		p.Variants = []model.Variant{v}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

// Product returns one active product with its in-stock variants.
// Returns a not-found APIError when the product is missing or inactive.
func (r *Repository) Product(ctx context.Context, id int64) (*model.Product, error) {
	var p model.Product
	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT `+productColumns+`
		FROM products p
		WHERE p.id = ? AND p.is_active`), id).
		Scan(&p.ID, &p.Name, &p.Brand, &p.Category, &p.Description, &p.Composition, &p.PhotoURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NewNotFoundError("product")
	}
	if err != nil {
		return nil, fmt.Errorf("querying product %d: %w", id, err)
	}

	p.Variants, err = r.variants(ctx, id, true)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// variants returns a product's variants in ID order, optionally only those in stock.
func (r *Repository) variants(ctx context.Context, productID int64, inStock bool) ([]model.Variant, error) {
	query := `SELECT id, size, price, stock FROM product_variants WHERE product_id = ?`
	if inStock {
		query += ` AND stock > 0`
	}
	rows, err := r.db.QueryContext(ctx, r.rebind(query+` ORDER BY id`), productID)
	if err != nil {
		return nil, fmt.Errorf("querying variants of product %d: %w", productID, err)
	}
	defer rows.Close()

	variants := []model.Variant{}
	for rows.Next() {
		var v model.Variant
		if err := rows.Scan(&v.ID, &v.Size, &v.Price, &v.Stock); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating variants: %w", err)
	}
	return variants, nil
}

// CreateProduct inserts an active product and its variants (with stock).
// IDs on p and its variants are ignored; the stored product is returned.
func (r *Repository) CreateProduct(ctx context.Context, p model.Product) (*model.Product, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, model.NewValidationError("name", "required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	out := p
	err = tx.QueryRowContext(ctx, r.rebind(`
		INSERT INTO products (name, brand, category, description, composition, photo_url, is_active)
		VALUES (?, ?, ?, ?, ?, ?, TRUE) RETURNING id`),
		p.Name, p.Brand, p.Category, p.Description, p.Composition, p.PhotoURL).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting product %q: %w", p.Name, err)
	}

	out.Variants = make([]model.Variant, 0, len(p.Variants))
	for _, v := range p.Variants {
		if v.Price < 0 || v.Stock < 0 {
			return nil, model.NewValidationError("variant", fmt.Sprintf("size %s has negative price or stock", v.Size))
		}
		err := tx.QueryRowContext(ctx, r.rebind(`
			INSERT INTO product_variants (product_id, size, price, stock)
			VALUES (?, ?, ?, ?) RETURNING id`),
			out.ID, v.Size, int64(v.Price), v.Stock).Scan(&v.ID)
		if err != nil {
			return nil, fmt.Errorf("inserting variant %s of %q: %w", v.Size, p.Name, err)
		}
		out.Variants = append(out.Variants, v)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing product: %w", err)
	}
	return &out, nil
}

// SetActive shows or hides a product in the catalog.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, r.rebind(`UPDATE products SET is_active = ? WHERE id = ?`), active, id)
	if err != nil {
		return fmt.Errorf("updating product %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NewNotFoundError("product")
	}
	return nil
}

// === Administration ===

// AdminPageSize is how many products one admin listing page holds.
const AdminPageSize = 5

// Listing is a product as the catalog administrator sees it: every variant,
// whatever its stock, and whether the product is shown in the catalog.
type Listing struct {
	model.Product
	Active bool
}

// ProductPage returns page (zero-based) of all products, newest first, and
// the total product count. perPage <= 0 means AdminPageSize.
func (r *Repository) ProductPage(ctx context.Context, page, perPage int) ([]Listing, int, error) {
	if perPage <= 0 {
		perPage = AdminPageSize
	}
	if page < 0 {
		page = 0
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT `+productColumns+`, p.is_active
		FROM products p
		ORDER BY p.id DESC
		LIMIT ? OFFSET ?`), perPage, page*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("querying product page %d: %w", page, err)
	}

	listings := []Listing{}
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.ID, &l.Name, &l.Brand, &l.Category, &l.Description, &l.Composition, &l.PhotoURL, &l.Active); err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("scanning product: %w", err)
		}
		listings = append(listings, l)
	}
	// Close before the variant queries: SQLite runs on a single connection.
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating products: %w", err)
	}

	for i := range listings {
		if listings[i].Variants, err = r.variants(ctx, listings[i].ID, false); err != nil {
			return nil, 0, err
		}
	}
	return listings, total, nil
}

// DeleteProduct removes a product and its variants. Recorded orders keep
// their item snapshots.
func (r *Repository) DeleteProduct(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM product_variants WHERE product_id = ?`), id); err != nil {
		return fmt.Errorf("deleting variants of product %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, r.rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.NewNotFoundError("product")
	}
	return tx.Commit()
}

// Seed inserts products into an empty catalog. It reports how many were
// inserted; a catalog that already has products is left alone.
func (r *Repository) Seed(ctx context.Context, products []model.Product) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting products: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for i, p := range products {
		if _, err := r.CreateProduct(ctx, p); err != nil {
			return i, fmt.Errorf("seeding product %d: %w", i, err)
		}
	}
	return len(products), nil
}

// === Orders ===

// CreateOrder reserves stock for every item and records the order, all in one
// transaction. If any variant is missing or short on stock nothing changes
// and the error wraps model.ErrInsufficientStock.
func (r *Repository) CreateOrder(ctx context.Context, userID int64, data model.OrderData) (*model.Order, error) {
	if len(data.Items) == 0 {
		return nil, model.NewValidationError("items", "order has no items")
	}
	items, err := json.Marshal(data.Items)
	if err != nil {
		return nil, fmt.Errorf("encoding order items: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range data.Items {
		if item.Quantity < 1 {
			return nil, model.NewValidationError("quantity", fmt.Sprintf("variant %d has quantity %d", item.VariantID, item.Quantity))
		}
		res, err := tx.ExecContext(ctx, r.rebind(`
			UPDATE product_variants SET stock = stock - ?
			WHERE id = ? AND stock >= ?`),
			item.Quantity, item.VariantID, item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("reserving variant %d: %w", item.VariantID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("reserving variant %d: %w", item.VariantID, err)
		}
		if n == 0 {
			return nil, model.NewStockError(item.VariantID)
		}
	}

	order := &model.Order{
		UserID:      userID,
		Items:       data.Items,
		TotalAmount: data.TotalAmount,
		Status:      model.OrderStatusProcessing,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	err = tx.QueryRowContext(ctx, r.rebind(`
		INSERT INTO orders (user_id, items_json, total_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`),
		userID, string(items), int64(data.TotalAmount), order.Status, order.CreatedAt).Scan(&order.ID)
	if err != nil {
		return nil, fmt.Errorf("inserting order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing order: %w", err)
	}
	return order, nil
}

// RecentOrders returns the user's latest orders, newest first.
func (r *Repository) RecentOrders(ctx context.Context, userID int64, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = RecentOrdersLimit
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, user_id, items_json, total_amount, status, created_at
		FROM orders WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		var o model.Order
		var items string
		if err := rows.Scan(&o.ID, &o.UserID, &items, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
			return nil, fmt.Errorf("decoding items of order %d: %w", o.ID, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return orders, nil
}
