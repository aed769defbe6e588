package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pos-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreatePurchaseOrder creates a new purchase order with its lines
func (s *Store) CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO purchase_orders (distributor, status, ordered_at, expected_delivery)
		VALUES ($1, $2, $3, $4)
		RETURNING id, ordered_at, updated_at`

	if order.OrderedAt.IsZero() {
		order.OrderedAt = time.Now()
	}

	err = tx.QueryRowxContext(ctx, query, order.Distributor, order.Status, order.OrderedAt, order.ExpectedDelivery).
		Scan(&order.ID, &order.OrderedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert purchase order: %w", err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		item.Position = i
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO purchase_order_items (order_id, position, product_id, product_name, quantity)
			VALUES (:order_id, :position, :product_id, :product_name, :quantity)`, item)
		if err != nil {
			return fmt.Errorf("failed to insert purchase order item: %w", err)
		}
	}

	return tx.Commit()
}

// GetPurchaseOrderByID retrieves a purchase order by ID
func (s *Store) GetPurchaseOrderByID(ctx context.Context, id int64) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := s.db.GetContext(ctx, &order, "SELECT * FROM purchase_orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("purchase order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := s.attachOrderItems(ctx, []*models.PurchaseOrder{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListPurchaseOrders retrieves all purchase orders, newest first
func (s *Store) ListPurchaseOrders(ctx context.Context) ([]models.PurchaseOrder, error) {
	orders := []models.PurchaseOrder{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM purchase_orders ORDER BY ordered_at DESC, id DESC")
	if err != nil {
		return nil, err
	}

	ptrs := make([]*models.PurchaseOrder, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := s.attachOrderItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdatePurchaseOrderStatus moves an order from one status to another only
// if its stored status still equals from
func (s *Store) UpdatePurchaseOrderStatus(ctx context.Context, id int64, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE purchase_orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, id, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) attachOrderItems(ctx context.Context, orders []*models.PurchaseOrder) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*models.PurchaseOrder, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
		byID[order.ID] = order
		order.Items = []models.PurchaseOrderItem{}
	}

	query, args, err := sqlx.In(
		"SELECT * FROM purchase_order_items WHERE order_id IN (?) ORDER BY order_id, position", ids)
	if err != nil {
		return err
	}
	query = s.db.Rebind(query)

	var items []models.PurchaseOrderItem
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return err
	}
	for _, item := range items {
		order := byID[item.OrderID]
		order.Items = append(order.Items, item)
	}
	return nil
}
