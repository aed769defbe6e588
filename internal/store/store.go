package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pos-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

var _ Repository = (*Store)(nil)

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate creates missing tables and indexes
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ListProducts retrieves all products
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY name")
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, description, cost_price, sale_price, stock, distributor, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.Description, p.CostPrice, p.SalePrice, p.Stock, p.Distributor, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("product %q: %w", p.Name, ErrDuplicate)
	}
	return err
}

// UpdateProduct overwrites the editable fields of a product. Stock is left
// untouched and p.Stock is refreshed from the row.
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, cost_price = $3, sale_price = $4,
		    distributor = $5, active = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING stock, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.Description, p.CostPrice, p.SalePrice, p.Distributor, p.Active, p.ID,
	).Scan(&p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %d: %w", p.ID, ErrNotFound)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("product %q: %w", p.Name, ErrDuplicate)
	}
	return err
}

// DeleteProduct removes a product. Sale and order lines keep their snapshots.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return nil
}

// DecrementStock atomically subtracts qty when enough stock is available.
// The row lock taken by UPDATE serializes concurrent sales of one product.
func (s *Store) DecrementStock(ctx context.Context, productID int64, qty int) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products SET stock = stock - $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1
		RETURNING *`, qty, productID)
	if err == nil {
		return &product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to decrement stock: %w", err)
	}

	current, err := s.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return current, fmt.Errorf("product %d: available=%d, requested=%d: %w",
		productID, current.Stock, qty, ErrInsufficientStock)
}

// IncrementStock atomically adds qty to a product's stock
func (s *Store) IncrementStock(ctx context.Context, productID int64, qty int) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, `
		UPDATE products SET stock = stock + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING *`, qty, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment stock: %w", err)
	}
	return &product, nil
}

// ResetData truncates every business table
func (s *Store) ResetData(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		TRUNCATE products, sale_items, sales, purchase_order_items, purchase_orders,
		         distributors, cash_movements, cash_closings, stock_alerts, processed_events
		RESTART IDENTITY`)
	return err
}

// rangeClause appends created_at bounds for r to a WHERE clause
func rangeClause(column string, r models.DateRange, args []interface{}) (string, []interface{}) {
	clause := ""
	if !r.From.IsZero() {
		args = append(args, r.From)
		clause += fmt.Sprintf(" AND %s >= $%d", column, len(args))
	}
	if !r.To.IsZero() {
		args = append(args, r.To)
		clause += fmt.Sprintf(" AND %s < $%d", column, len(args))
	}
	return clause, args
}
