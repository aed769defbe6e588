package service

import (
	"context"
	"fmt"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// AlertService turns stock events into low-stock alerts
type AlertService struct {
	store    store.AlertRepository
	settings *SettingsService
	logger   *zap.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(store store.AlertRepository, settings *SettingsService) *AlertService {
	return &AlertService{
		store:    store,
		settings: settings,
		logger:   util.GetLogger(),
	}
}

// HandleStockLow opens (or refreshes) the alert of the product in event
func (s *AlertService) HandleStockLow(ctx context.Context, event *models.StockLowEvent) error {
	ctx, span := util.StartSpan(ctx, "AlertService.HandleStockLow")
	defer span.End()

	processed, err := s.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		s.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	alert := &models.StockAlert{
		ProductID:   event.ProductID,
		ProductName: event.ProductName,
		Stock:       event.Stock,
		Threshold:   event.Threshold,
	}
	if err := s.store.CreateStockAlert(ctx, alert); err != nil {
		return fmt.Errorf("failed to create stock alert: %w", err)
	}
	util.StockAlertsOpenedTotal.Inc()

	if err := s.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		s.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	s.logger.Warn("Low stock",
		zap.Int64("product_id", event.ProductID),
		zap.String("product_name", event.ProductName),
		zap.String("distributor", event.Distributor),
		zap.Int("stock", event.Stock))
	return nil
}

// HandleOrderReceived resolves alerts of products restocked above the threshold
func (s *AlertService) HandleOrderReceived(ctx context.Context, event *models.OrderReceivedEvent) error {
	ctx, span := util.StartSpan(ctx, "AlertService.HandleOrderReceived")
	defer span.End()

	processed, err := s.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		s.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	threshold := s.settings.current(ctx).LowStockThreshold
	var resolved int64
	for _, item := range event.Items {
		if item.Stock <= threshold {
			continue
		}
		n, err := s.store.ResolveStockAlerts(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("failed to resolve alerts for product %d: %w", item.ProductID, err)
		}
		resolved += n
	}

	if err := s.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		s.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	if resolved > 0 {
		s.logger.Info("Stock alerts resolved",
			zap.Int64("order_id", event.OrderID),
			zap.Int64("resolved", resolved))
	}
	return nil
}

// ListOpenAlerts returns unresolved alerts
func (s *AlertService) ListOpenAlerts(ctx context.Context) ([]models.StockAlert, error) {
	alerts, err := s.store.ListOpenStockAlerts(ctx)
	if err != nil {
		return nil, persistenceErr("list stock alerts", err)
	}
	return alerts, nil
}
