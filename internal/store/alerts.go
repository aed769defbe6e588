package store

import (
	"context"

	"pos-service/internal/models"
)

// CreateStockAlert opens an alert for a product, refreshing the open one if present
func (s *Store) CreateStockAlert(ctx context.Context, a *models.StockAlert) error {
	return s.db.QueryRowxContext(ctx, `
		INSERT INTO stock_alerts (product_id, product_name, stock, threshold)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id) WHERE resolved_at IS NULL DO UPDATE
		SET product_name = EXCLUDED.product_name, stock = EXCLUDED.stock, threshold = EXCLUDED.threshold
		RETURNING id, created_at`, a.ProductID, a.ProductName, a.Stock, a.Threshold).
		Scan(&a.ID, &a.CreatedAt)
}

// ListOpenStockAlerts retrieves unresolved alerts, lowest stock first
func (s *Store) ListOpenStockAlerts(ctx context.Context) ([]models.StockAlert, error) {
	alerts := []models.StockAlert{}
	err := s.db.SelectContext(ctx, &alerts,
		"SELECT * FROM stock_alerts WHERE resolved_at IS NULL ORDER BY stock, product_name")
	return alerts, err
}

// ResolveStockAlerts closes the open alerts of a product
func (s *Store) ResolveStockAlerts(ctx context.Context, productID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE stock_alerts SET resolved_at = NOW() WHERE product_id = $1 AND resolved_at IS NULL", productID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
