package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CashService keeps the manual cash ledger and the daily register closing
type CashService struct {
	store          store.Repository
	settings       *SettingsService
	locker         Locker
	eventPublisher EventPublisher
	lockTTL        time.Duration
	loc            *time.Location
	now            func() time.Time
	logger         *zap.Logger
}

// NewCashService creates a new cash service
func NewCashService(
	store store.Repository,
	settings *SettingsService,
	locker Locker,
	eventPublisher EventPublisher,
	lockTTL time.Duration,
	loc *time.Location,
) *CashService {
	if loc == nil {
		loc = time.Local
	}
	return &CashService{
		store:          store,
		settings:       settings,
		locker:         locker,
		eventPublisher: eventPublisher,
		lockTTL:        lockTTL,
		loc:            loc,
		now:            time.Now,
		logger:         util.GetLogger(),
	}
}

// CashMovementRequest represents a manual income or expense entry
type CashMovementRequest struct {
	Concept string `json:"concept" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,min=1"`
	Kind    string `json:"kind" binding:"required"`
}

// CloseRegisterRequest carries the cash counted at the end of the day
type CloseRegisterRequest struct {
	CountedTotal int64 `json:"counted_total" binding:"min=0"`
}

// CashSummary is the register state for one day
type CashSummary struct {
	Date              string `json:"date"`
	CashSales         int64  `json:"cash_sales"`
	ManualIncome      int64  `json:"manual_income"`
	ManualExpense     int64  `json:"manual_expense"`
	PhysicalCash      int64  `json:"physical_cash"`
	PendingCredit     int64  `json:"pending_credit"`
	TotalSales        int64  `json:"total_sales"`
	PendingOrdersCost int64  `json:"pending_orders_cost"`
	CashProjection    int64  `json:"cash_projection"`
	Closed            bool   `json:"closed"`
}

// Location returns the business time zone used for calendar days
func (s *CashService) Location() *time.Location {
	return s.loc
}

// CreateMovement records a manual ledger entry
func (s *CashService) CreateMovement(ctx context.Context, req *CashMovementRequest) (*models.CashMovement, error) {
	concept := strings.TrimSpace(req.Concept)
	if concept == "" {
		return nil, invalidf("concept is required")
	}
	if req.Amount <= 0 {
		return nil, invalidf("amount must be positive")
	}
	if req.Kind != models.MovementKindIncome && req.Kind != models.MovementKindExpense {
		return nil, invalidf("kind must be %q or %q", models.MovementKindIncome, models.MovementKindExpense)
	}

	m := &models.CashMovement{Concept: concept, Amount: req.Amount, Kind: req.Kind}
	if err := s.store.CreateCashMovement(ctx, m); err != nil {
		return nil, persistenceErr("save cash movement", err)
	}
	s.logger.Info("Cash movement recorded",
		zap.Int64("movement_id", m.ID),
		zap.String("kind", m.Kind),
		zap.Int64("amount", m.Amount))
	return m, nil
}

// ListMovements returns ledger entries inside r, newest first
func (s *CashService) ListMovements(ctx context.Context, r models.DateRange) ([]models.CashMovement, error) {
	movements, err := s.store.ListCashMovements(ctx, r)
	if err != nil {
		return nil, persistenceErr("list cash movements", err)
	}
	return movements, nil
}

// Summary computes the register state for the calendar day containing day
func (s *CashService) Summary(ctx context.Context, day time.Time) (*CashSummary, error) {
	ctx, span := util.StartSpan(ctx, "CashService.Summary")
	defer span.End()

	r := models.DayRange(day, s.loc)
	summary := &CashSummary{Date: r.From.Format(dateLayout)}

	sales, err := s.store.ListSales(ctx, r)
	if err != nil {
		return nil, persistenceErr("list sales", err)
	}
	var klap, cajaVecina int64
	for _, sale := range sales {
		summary.TotalSales += sale.Total
		switch sale.PaymentMethod {
		case models.PaymentMethodCash:
			summary.CashSales += sale.Total
		case models.PaymentMethodDebitKlap:
			klap += sale.Total
		case models.PaymentMethodDebitCajaVecina:
			cajaVecina += sale.Total
		}
	}

	movements, err := s.store.ListCashMovements(ctx, r)
	if err != nil {
		return nil, persistenceErr("list cash movements", err)
	}
	for _, m := range movements {
		switch m.Kind {
		case models.MovementKindIncome:
			summary.ManualIncome += m.Amount
		case models.MovementKindExpense:
			summary.ManualExpense += m.Amount
		}
	}

	pendingCost, err := s.pendingOrdersCost(ctx, r)
	if err != nil {
		return nil, err
	}

	commission := s.settings.current(ctx).CardCommissionPct
	summary.PhysicalCash = summary.CashSales + summary.ManualIncome - summary.ManualExpense
	summary.PendingCredit = netOfCommission(klap, commission) + cajaVecina
	summary.PendingOrdersCost = pendingCost
	summary.CashProjection = summary.PhysicalCash - pendingCost

	closing, err := s.store.GetCashClosing(ctx, r)
	if err != nil {
		return nil, persistenceErr("load cash closing", err)
	}
	summary.Closed = closing != nil

	return summary, nil
}

// netOfCommission returns amount minus pct percent, rounded to whole units
func netOfCommission(amount int64, pct decimal.Decimal) int64 {
	if amount == 0 {
		return 0
	}
	keep := decimal.NewFromInt(1).Sub(pct.Div(hundred))
	return decimal.NewFromInt(amount).Mul(keep).Round(0).IntPart()
}

// pendingOrdersCost values pending orders expected inside r at current cost prices
func (s *CashService) pendingOrdersCost(ctx context.Context, r models.DateRange) (int64, error) {
	orders, err := s.store.ListPurchaseOrders(ctx)
	if err != nil {
		return 0, persistenceErr("list purchase orders", err)
	}

	var due []models.PurchaseOrder
	for _, o := range orders {
		if o.Status == models.OrderStatusPending && r.Contains(o.ExpectedDelivery) {
			due = append(due, o)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return 0, persistenceErr("list products", err)
	}
	cost := make(map[int64]int64, len(products))
	for _, p := range products {
		cost[p.ID] = p.CostPrice
	}

	var total int64
	for _, o := range due {
		for _, item := range o.Items {
			total += cost[item.ProductID] * int64(item.Quantity)
		}
	}
	return total, nil
}

// Close records today's register closing. The system total is today's
// physical cash; only one closing per day is accepted.
func (s *CashService) Close(ctx context.Context, req *CloseRegisterRequest, closedBy string) (*models.CashClosing, error) {
	ctx, span := util.StartSpan(ctx, "CashService.Close")
	defer span.End()

	if req.CountedTotal < 0 {
		return nil, invalidf("counted_total must not be negative")
	}

	now := s.now()
	r := models.DayRange(now, s.loc)

	if s.locker != nil {
		lockKey := closingLockKey(r.From)
		token, acquired, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire closing lock: %w", err)
		}
		if !acquired {
			return nil, ErrClosingBusy
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
				s.logger.Warn("Failed to release closing lock", zap.Error(err))
			}
		}()
	}

	summary, err := s.Summary(ctx, now)
	if err != nil {
		return nil, err
	}
	if summary.Closed {
		return nil, ErrAlreadyClosed
	}

	closing := &models.CashClosing{
		SystemTotal:  summary.PhysicalCash,
		CountedTotal: req.CountedTotal,
		Difference:   req.CountedTotal - summary.PhysicalCash,
		ClosedBy:     closedBy,
	}
	if err := s.store.CreateCashClosing(ctx, closing); err != nil {
		return nil, persistenceErr("save cash closing", err)
	}

	util.CashClosingsTotal.Inc()
	s.logger.Info("Register closed",
		zap.Int64("closing_id", closing.ID),
		zap.Int64("system_total", closing.SystemTotal),
		zap.Int64("counted_total", closing.CountedTotal),
		zap.Int64("difference", closing.Difference),
		zap.String("closed_by", closedBy))

	event := &models.CashClosedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeCashClosed),
		ClosingID:    closing.ID,
		SystemTotal:  closing.SystemTotal,
		CountedTotal: closing.CountedTotal,
		Difference:   closing.Difference,
	}
	if err := s.eventPublisher.PublishCashClosed(ctx, event); err != nil {
		s.logger.Error("Failed to publish CashClosed event", zap.Error(err))
	}
	return closing, nil
}

func closingLockKey(day time.Time) string {
	return fmt.Sprintf("cash_closing:%s", day.Format(dateLayout))
}

// IsClosedToday reports whether the register was already closed today
func (s *CashService) IsClosedToday(ctx context.Context) (bool, error) {
	closing, err := s.store.GetCashClosing(ctx, models.DayRange(s.now(), s.loc))
	if err != nil {
		return false, persistenceErr("load cash closing", err)
	}
	return closing != nil, nil
}

// RemindClosing logs a warning when today's register is still open
func (s *CashService) RemindClosing(ctx context.Context) {
	closed, err := s.IsClosedToday(ctx)
	if err != nil {
		s.logger.Error("Failed to check register closing", zap.Error(err))
		return
	}
	if closed {
		return
	}
	summary, err := s.Summary(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to compute cash summary", zap.Error(err))
		return
	}
	s.logger.Warn("Register not closed yet today",
		zap.String("date", summary.Date),
		zap.Int64("physical_cash", summary.PhysicalCash))
}
