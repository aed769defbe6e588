package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const compensationTimeout = 5 * time.Second

// SaleService records sales and applies their stock changes
type SaleService struct {
	store          store.Repository
	settings       *SettingsService
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewSaleService creates a new sale service
func NewSaleService(store store.Repository, settings *SettingsService, eventPublisher EventPublisher) *SaleService {
	return &SaleService{
		store:          store,
		settings:       settings,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// CreateSaleRequest represents a request to register a sale
type CreateSaleRequest struct {
	LineItems      []SaleLineRequest `json:"line_items" binding:"required,min=1,dive"`
	Total          int64             `json:"total" binding:"min=0"`
	PaymentMethod  string            `json:"payment_method" binding:"required"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// SaleLineRequest represents one line of a sale. UnitPrice 0 means the
// product's current sale price.
type SaleLineRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	UnitPrice int64  `json:"unit_price" binding:"min=0"`
}

// appliedLine is a decrement already written to the catalog
type appliedLine struct {
	product  models.Product
	quantity int
}

// CreateSale applies the stock changes of every line and records the sale.
// Either all lines are applied and the sale is stored, or no stock changes
// remain and no sale is written. When a rollback itself fails the result is
// a *PartialApplicationError.
func (s *SaleService) CreateSale(ctx context.Context, req *CreateSaleRequest) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.CreateSale")
	defer span.End()

	if err := validateSaleRequest(req); err != nil {
		util.SalesFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetSaleByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, persistenceErr("check idempotency", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate sale request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Int64("sale_id", existing.ID))
			return existing, nil
		}
	}

	start := time.Now()
	applied, err := s.applyStock(ctx, req.LineItems)
	util.StockApplyLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.recordFailure(err)
		return nil, err
	}

	sale := &models.Sale{
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: req.IdempotencyKey,
		Items:          make([]models.SaleItem, 0, len(applied)),
	}
	for i, line := range req.LineItems {
		product := applied[i].product
		unitPrice := line.UnitPrice
		if unitPrice == 0 {
			unitPrice = product.SalePrice
		}
		sale.Items = append(sale.Items, models.SaleItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
		})
	}
	sale.Total = calculateTotal(sale.Items)

	if req.Total != 0 && req.Total != sale.Total {
		mismatch := fmt.Errorf("%w: submitted %d, computed %d", ErrTotalMismatch, req.Total, sale.Total)
		if err := s.rollback(ctx, applied, mismatch); err != nil {
			s.recordFailure(err)
			return nil, err
		}
		s.recordFailure(mismatch)
		return nil, mismatch
	}

	if err := s.store.CreateSale(ctx, sale); err != nil {
		if rbErr := s.rollback(ctx, applied, err); rbErr != nil {
			s.recordFailure(rbErr)
			return nil, rbErr
		}
		if errors.Is(err, store.ErrDuplicate) && req.IdempotencyKey != "" {
			existing, getErr := s.store.GetSaleByIdempotencyKey(ctx, req.IdempotencyKey)
			if getErr == nil && existing != nil {
				return existing, nil
			}
		}
		persistErr := persistenceErr("save sale", err)
		s.recordFailure(persistErr)
		return nil, persistErr
	}

	util.SalesRecordedTotal.WithLabelValues(sale.PaymentMethod).Inc()
	util.SalesRevenueTotal.Add(float64(sale.Total))
	s.logger.Info("Sale recorded",
		zap.Int64("sale_id", sale.ID),
		zap.Int64("total", sale.Total),
		zap.String("payment_method", sale.PaymentMethod),
		zap.Int("lines", len(sale.Items)))

	s.publishSaleEvents(ctx, sale, applied)
	return sale, nil
}

// applyStock decrements stock line by line with conditional writes. On the
// first failing line every earlier decrement is restored.
func (s *SaleService) applyStock(ctx context.Context, lines []SaleLineRequest) ([]appliedLine, error) {
	applied := make([]appliedLine, 0, len(lines))

	for _, line := range lines {
		product, err := s.store.DecrementStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			lineErr := classifyStockError(line, product, err)
			if rbErr := s.rollback(ctx, applied, lineErr); rbErr != nil {
				return nil, rbErr
			}
			return nil, lineErr
		}
		applied = append(applied, appliedLine{product: *product, quantity: line.Quantity})
	}

	return applied, nil
}

func classifyStockError(line SaleLineRequest, product *models.Product, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &ProductNotFoundError{ProductID: line.ProductID, Name: line.Name}
	case errors.Is(err, store.ErrInsufficientStock) && product != nil:
		return &InsufficientStockError{
			ProductID: product.ID,
			Name:      product.Name,
			Available: product.Stock,
			Requested: line.Quantity,
		}
	default:
		return persistenceErr("decrement stock", err)
	}
}

// rollback restores applied decrements in reverse order. It keeps going past
// individual failures and reports them together.
func (s *SaleService) rollback(ctx context.Context, applied []appliedLine, cause error) error {
	if len(applied) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var failed []UnappliedLine
	for i := len(applied) - 1; i >= 0; i-- {
		line := applied[i]
		if _, err := s.store.IncrementStock(ctx, line.product.ID, line.quantity); err != nil {
			util.StockCompensationsTotal.WithLabelValues("failed").Inc()
			s.logger.Error("Failed to compensate stock decrement",
				zap.Int64("product_id", line.product.ID),
				zap.Int("quantity", line.quantity),
				zap.Error(err))
			failed = append(failed, UnappliedLine{
				ProductID: line.product.ID,
				Name:      line.product.Name,
				Quantity:  line.quantity,
				Reason:    err.Error(),
			})
			continue
		}
		util.StockCompensationsTotal.WithLabelValues("restored").Inc()
	}

	if len(failed) > 0 {
		util.PartialApplicationsTotal.WithLabelValues("sale").Inc()
		return &PartialApplicationError{Operation: "sale", Lines: failed, Cause: cause}
	}
	return nil
}

func (s *SaleService) recordFailure(err error) {
	var partial *PartialApplicationError
	reason := "error"
	switch {
	case errors.As(err, &partial):
		reason = "partial_application"
	case errors.Is(err, ErrProductNotFound):
		reason = "product_not_found"
	case errors.Is(err, ErrInsufficientStock):
		reason = "insufficient_stock"
	case errors.Is(err, ErrTotalMismatch):
		reason = "total_mismatch"
	case errors.Is(err, ErrInvalidRequest):
		reason = "invalid_request"
	}
	util.SalesFailedTotal.WithLabelValues(reason).Inc()
	s.logger.Warn("Sale rejected", zap.String("reason", reason), zap.Error(err))
}

func (s *SaleService) publishSaleEvents(ctx context.Context, sale *models.Sale, applied []appliedLine) {
	lines := make([]models.StockLineData, len(applied))
	lowest := map[int64]models.Product{}
	for i, a := range applied {
		lines[i] = models.StockLineData{ProductID: a.product.ID, Quantity: a.quantity, Stock: a.product.Stock}
		if prev, ok := lowest[a.product.ID]; !ok || a.product.Stock < prev.Stock {
			lowest[a.product.ID] = a.product
		}
	}

	event := &models.SaleRecordedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeSaleRecorded),
		SaleID:        sale.ID,
		Total:         sale.Total,
		PaymentMethod: sale.PaymentMethod,
		Items:         lines,
	}
	if err := s.eventPublisher.PublishSaleRecorded(ctx, event); err != nil {
		s.logger.Error("Failed to publish SaleRecorded event", zap.Error(err))
	}

	threshold := s.settings.current(ctx).LowStockThreshold
	for _, product := range lowest {
		if product.Stock > threshold {
			continue
		}
		low := &models.StockLowEvent{
			BaseEvent:   newBaseEvent(models.EventTypeStockLow),
			ProductID:   product.ID,
			ProductName: product.Name,
			Distributor: product.Distributor,
			Stock:       product.Stock,
			Threshold:   threshold,
		}
		if err := s.eventPublisher.PublishStockLow(ctx, low); err != nil {
			s.logger.Error("Failed to publish StockLow event",
				zap.Int64("product_id", product.ID),
				zap.Error(err))
		}
	}
}

func validateSaleRequest(req *CreateSaleRequest) error {
	if len(req.LineItems) == 0 {
		return invalidf("a sale needs at least one line item")
	}
	if !models.IsValidPaymentMethod(req.PaymentMethod) {
		return invalidf("unknown payment method %q", req.PaymentMethod)
	}
	if req.Total < 0 {
		return invalidf("total must not be negative")
	}
	for i, line := range req.LineItems {
		if line.ProductID <= 0 {
			return invalidf("line %d: product_id is required", i+1)
		}
		if line.Quantity < 1 {
			return invalidf("line %d: quantity must be at least 1", i+1)
		}
		if line.UnitPrice < 0 {
			return invalidf("line %d: unit_price must not be negative", i+1)
		}
	}
	return nil
}

// calculateTotal calculates the total amount for a sale
func calculateTotal(items []models.SaleItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

// GetSale retrieves a sale by ID
func (s *SaleService) GetSale(ctx context.Context, id int64) (*models.Sale, error) {
	sale, err := s.store.GetSaleByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSaleNotFound
	}
	if err != nil {
		return nil, persistenceErr("load sale", err)
	}
	return sale, nil
}

// ListSales retrieves sales inside r, newest first
func (s *SaleService) ListSales(ctx context.Context, r models.DateRange) ([]models.Sale, error) {
	sales, err := s.store.ListSales(ctx, r)
	if err != nil {
		return nil, persistenceErr("list sales", err)
	}
	return sales, nil
}

// TopProducts reports the best selling products by quantity
func (s *SaleService) TopProducts(ctx context.Context, r models.DateRange, limit int) ([]models.ProductSales, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.store.TopProducts(ctx, r, limit)
	if err != nil {
		return nil, persistenceErr("aggregate top products", err)
	}
	return rows, nil
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
