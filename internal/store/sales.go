package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pos-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateSale inserts a sale and its lines in one transaction
func (s *Store) CreateSale(ctx context.Context, sale *models.Sale) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sales (total, payment_method, idempotency_key)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err = tx.QueryRowxContext(ctx, query, sale.Total, sale.PaymentMethod, sale.IdempotencyKey).
		Scan(&sale.ID, &sale.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("sale idempotency key %q: %w", sale.IdempotencyKey, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		item.Position = i
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO sale_items (sale_id, position, product_id, product_name, quantity, unit_price)
			VALUES (:sale_id, :position, :product_id, :product_name, :quantity, :unit_price)`, item)
		if err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}
	}

	return tx.Commit()
}

// GetSaleByID retrieves a sale with its lines
func (s *Store) GetSaleByID(ctx context.Context, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sale %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachSaleItems(ctx, []*models.Sale{&sale}); err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSaleByIdempotencyKey retrieves a sale by idempotency key
func (s *Store) GetSaleByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachSaleItems(ctx, []*models.Sale{&sale}); err != nil {
		return nil, err
	}
	return &sale, nil
}

// ListSales retrieves sales inside r, newest first
func (s *Store) ListSales(ctx context.Context, r models.DateRange) ([]models.Sale, error) {
	where, args := rangeClause("created_at", r, nil)
	sales := []models.Sale{}
	err := s.db.SelectContext(ctx, &sales,
		"SELECT * FROM sales WHERE TRUE"+where+" ORDER BY created_at DESC, id DESC", args...)
	if err != nil {
		return nil, err
	}

	ptrs := make([]*models.Sale, len(sales))
	for i := range sales {
		ptrs[i] = &sales[i]
	}
	if err := s.attachSaleItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) attachSaleItems(ctx context.Context, sales []*models.Sale) error {
	if len(sales) == 0 {
		return nil
	}

	ids := make([]int64, len(sales))
	byID := make(map[int64]*models.Sale, len(sales))
	for i, sale := range sales {
		ids[i] = sale.ID
		byID[sale.ID] = sale
		sale.Items = []models.SaleItem{}
	}

	query, args, err := sqlx.In("SELECT * FROM sale_items WHERE sale_id IN (?) ORDER BY sale_id, position", ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	var items []models.SaleItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return err
	}
	for _, item := range items {
		sale := byID[item.SaleID]
		sale.Items = append(sale.Items, item)
	}
	return nil
}

// TopProducts aggregates sale lines per product, ordered by quantity sold
func (s *Store) TopProducts(ctx context.Context, r models.DateRange, limit int) ([]models.ProductSales, error) {
	where, args := rangeClause("s.created_at", r, nil)
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT si.product_id,
		       MIN(si.product_name) AS product_name,
		       SUM(si.quantity) AS total_quantity,
		       SUM(si.quantity * si.unit_price) AS total_revenue
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE TRUE%s
		GROUP BY si.product_id
		ORDER BY total_quantity DESC, si.product_id
		LIMIT $%d`, where, len(args))

	rows := []models.ProductSales{}
	err := s.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}
