package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// PurchaseOrderService handles purchase order business logic
type PurchaseOrderService struct {
	store          store.Repository
	locker         Locker
	eventPublisher EventPublisher
	lockTTL        time.Duration
	loc            *time.Location
	logger         *zap.Logger
}

// NewPurchaseOrderService creates a new purchase order service. locker may be
// nil, in which case only the status compare-and-swap guards receipts.
func NewPurchaseOrderService(
	store store.Repository,
	locker Locker,
	eventPublisher EventPublisher,
	lockTTL time.Duration,
	loc *time.Location,
) *PurchaseOrderService {
	if loc == nil {
		loc = time.Local
	}
	return &PurchaseOrderService{
		store:          store,
		locker:         locker,
		eventPublisher: eventPublisher,
		lockTTL:        lockTTL,
		loc:            loc,
		logger:         util.GetLogger(),
	}
}

// CreatePurchaseOrderRequest represents a request to place a restock order
type CreatePurchaseOrderRequest struct {
	Distributor      string                     `json:"distributor" binding:"required"`
	LineItems        []PurchaseOrderLineRequest `json:"line_items" binding:"required,min=1,dive"`
	ExpectedDelivery string                     `json:"expected_delivery" binding:"required"`
}

// PurchaseOrderLineRequest represents a requested line of a purchase order
type PurchaseOrderLineRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// UpdateStatusRequest represents a purchase order status change
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreatePurchaseOrder stores a new pending order. Stock is untouched until
// the order is received.
func (s *PurchaseOrderService) CreatePurchaseOrder(ctx context.Context, req *CreatePurchaseOrderRequest) (*models.PurchaseOrder, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseOrderService.CreatePurchaseOrder")
	defer span.End()

	distributor := strings.TrimSpace(req.Distributor)
	if distributor == "" {
		return nil, invalidf("distributor is required")
	}
	if len(req.LineItems) == 0 {
		return nil, invalidf("a purchase order needs at least one line item")
	}
	expected, err := parseDate(req.ExpectedDelivery, s.loc)
	if err != nil {
		return nil, invalidf("expected_delivery: %v", err)
	}

	order := &models.PurchaseOrder{
		Distributor:      distributor,
		Status:           models.OrderStatusPending,
		OrderedAt:        time.Now(),
		ExpectedDelivery: expected,
		Items:            make([]models.PurchaseOrderItem, 0, len(req.LineItems)),
	}
	for i, line := range req.LineItems {
		if line.Quantity < 1 {
			return nil, invalidf("line %d: quantity must be at least 1", i+1)
		}
		product, err := s.store.GetProductByID(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ProductNotFoundError{ProductID: line.ProductID, Name: line.Name}
		}
		if err != nil {
			return nil, persistenceErr("load product", err)
		}
		order.Items = append(order.Items, models.PurchaseOrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
		})
	}

	if err := s.store.CreatePurchaseOrder(ctx, order); err != nil {
		return nil, persistenceErr("save purchase order", err)
	}

	util.OrdersCreatedTotal.Inc()
	s.logger.Info("Purchase order created",
		zap.Int64("order_id", order.ID),
		zap.String("distributor", order.Distributor),
		zap.Int("lines", len(order.Items)))

	return order, nil
}

// GetPurchaseOrder retrieves a purchase order by ID
func (s *PurchaseOrderService) GetPurchaseOrder(ctx context.Context, id int64) (*models.PurchaseOrder, error) {
	order, err := s.store.GetPurchaseOrderByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, persistenceErr("load purchase order", err)
	}
	return order, nil
}

// ListPurchaseOrders retrieves every purchase order, newest first
func (s *PurchaseOrderService) ListPurchaseOrders(ctx context.Context) ([]models.PurchaseOrder, error) {
	orders, err := s.store.ListPurchaseOrders(ctx)
	if err != nil {
		return nil, persistenceErr("list purchase orders", err)
	}
	return orders, nil
}

// UpdateStatus moves a purchase order to status. Receiving a pending order
// increments stock for each line exactly once; receiving an already received
// order changes nothing. Terminal orders cannot move anywhere else.
func (s *PurchaseOrderService) UpdateStatus(ctx context.Context, id int64, status string) (*models.PurchaseOrder, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseOrderService.UpdateStatus")
	defer span.End()

	if !models.IsValidOrderStatus(status) {
		util.OrderTransitionsRejected.WithLabelValues("unknown_status").Inc()
		return nil, &TransitionError{To: status}
	}

	order, err := s.GetPurchaseOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if done, err := s.checkTransition(order, status); done || err != nil {
		return order, err
	}

	if s.locker != nil {
		lockKey := orderLockKey(id)
		token, acquired, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire order lock: %w", err)
		}
		if !acquired {
			util.OrderTransitionsRejected.WithLabelValues("busy").Inc()
			return nil, ErrOrderBusy
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
				s.logger.Warn("Failed to release order lock", zap.Int64("order_id", id), zap.Error(err))
			}
		}()
	}

	swapped, err := s.store.UpdatePurchaseOrderStatus(ctx, id, models.OrderStatusPending, status)
	if err != nil {
		return nil, persistenceErr("update purchase order status", err)
	}
	if !swapped {
		// Another request moved the order first.
		current, err := s.GetPurchaseOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if done, err := s.checkTransition(current, status); done || err != nil {
			return current, err
		}
		return nil, &TransitionError{From: current.Status, To: status}
	}

	order.Status = status
	order.UpdatedAt = time.Now()

	switch status {
	case models.OrderStatusReceived:
		return s.receive(ctx, order)
	case models.OrderStatusCancelled:
		util.OrdersCancelledTotal.Inc()
		s.logger.Info("Purchase order cancelled", zap.Int64("order_id", order.ID))
		event := &models.OrderCancelledEvent{
			BaseEvent:   newBaseEvent(models.EventTypeOrderCancelled),
			OrderID:     order.ID,
			Distributor: order.Distributor,
		}
		if err := s.eventPublisher.PublishOrderCancelled(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
		}
	}
	return order, nil
}

// checkTransition reports done for no-op transitions and an error for
// refused ones. Only pending orders proceed.
func (s *PurchaseOrderService) checkTransition(order *models.PurchaseOrder, to string) (bool, error) {
	from := order.Status
	switch {
	case from == to && to != models.OrderStatusCancelled:
		s.logger.Info("Purchase order already in requested status",
			zap.Int64("order_id", order.ID),
			zap.String("status", to))
		return true, nil
	case from != models.OrderStatusPending:
		util.OrderTransitionsRejected.WithLabelValues("terminal").Inc()
		return false, &TransitionError{From: from, To: to}
	}
	return false, nil
}

// receive applies the restock of a freshly received order. Lines whose
// product was deleted are skipped.
func (s *PurchaseOrderService) receive(ctx context.Context, order *models.PurchaseOrder) (*models.PurchaseOrder, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var (
		applied []models.StockLineData
		failed  []UnappliedLine
	)
	for _, item := range order.Items {
		product, err := s.store.IncrementStock(ctx, item.ProductID, item.Quantity)
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("Skipping restock of missing product",
				zap.Int64("order_id", order.ID),
				zap.Int64("product_id", item.ProductID))
			continue
		}
		if err != nil {
			s.logger.Error("Failed to restock product",
				zap.Int64("order_id", order.ID),
				zap.Int64("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
			failed = append(failed, UnappliedLine{
				ProductID: item.ProductID,
				Name:      item.ProductName,
				Quantity:  item.Quantity,
				Reason:    err.Error(),
			})
			continue
		}
		applied = append(applied, models.StockLineData{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			Stock:     product.Stock,
		})
	}

	util.OrdersReceivedTotal.Inc()
	s.logger.Info("Purchase order received",
		zap.Int64("order_id", order.ID),
		zap.Int("restocked_lines", len(applied)),
		zap.Int("failed_lines", len(failed)))

	event := &models.OrderReceivedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderReceived),
		OrderID:     order.ID,
		Distributor: order.Distributor,
		Items:       applied,
	}
	if err := s.eventPublisher.PublishOrderReceived(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderReceived event", zap.Error(err))
	}

	if len(failed) > 0 {
		util.PartialApplicationsTotal.WithLabelValues("order_receipt").Inc()
		return nil, &PartialApplicationError{Operation: "order receipt", Lines: failed}
	}
	return order, nil
}

func orderLockKey(id int64) string {
	return fmt.Sprintf("purchase_order:%d", id)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp
func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected YYYY-MM-DD, got %q", value)
	}
	return t, nil
}
