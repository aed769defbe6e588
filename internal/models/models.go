package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CostPrice   int64     `db:"cost_price" json:"cost_price"`
	SalePrice   int64     `db:"sale_price" json:"sale_price"`
	Stock       int       `db:"stock" json:"stock"`
	Distributor string    `db:"distributor" json:"distributor"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Sale is an immutable record of a completed sale. Items hold name and
// price snapshots taken when the sale was recorded.
type Sale struct {
	ID             int64      `db:"id" json:"id"`
	Total          int64      `db:"total" json:"total"`
	PaymentMethod  string     `db:"payment_method" json:"payment_method"`
	IdempotencyKey string     `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	Items          []SaleItem `db:"-" json:"line_items"`
}

// SaleItem represents one line of a sale
type SaleItem struct {
	SaleID      int64  `db:"sale_id" json:"-"`
	Position    int    `db:"position" json:"-"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
}

// Subtotal returns quantity times unit price
func (i SaleItem) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

// PurchaseOrder represents a restock order placed with a distributor
type PurchaseOrder struct {
	ID               int64               `db:"id" json:"id"`
	Distributor      string              `db:"distributor" json:"distributor"`
	Status           string              `db:"status" json:"status"`
	OrderedAt        time.Time           `db:"ordered_at" json:"ordered_at"`
	ExpectedDelivery time.Time           `db:"expected_delivery" json:"expected_delivery"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
	Items            []PurchaseOrderItem `db:"-" json:"line_items"`
}

// PurchaseOrderItem represents one requested line of a purchase order
type PurchaseOrderItem struct {
	OrderID     int64  `db:"order_id" json:"-"`
	Position    int    `db:"position" json:"-"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
}

// Distributor represents a supplier
type Distributor struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Contact   string    `db:"contact" json:"contact"`
	Phone     string    `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CashMovement is a manual cash ledger entry
type CashMovement struct {
	ID        int64     `db:"id" json:"id"`
	Concept   string    `db:"concept" json:"concept"`
	Amount    int64     `db:"amount" json:"amount"`
	Kind      string    `db:"kind" json:"kind"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CashClosing records the daily register reconciliation
type CashClosing struct {
	ID           int64     `db:"id" json:"id"`
	SystemTotal  int64     `db:"system_total" json:"system_total"`
	CountedTotal int64     `db:"counted_total" json:"counted_total"`
	Difference   int64     `db:"difference" json:"difference"`
	ClosedBy     string    `db:"closed_by" json:"closed_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Settings holds the store-wide business parameters
type Settings struct {
	CardCommissionPct decimal.Decimal `db:"card_commission_pct" json:"card_commission_pct"`
	LowStockThreshold int             `db:"low_stock_threshold" json:"low_stock_threshold"`
	LoanDays          int             `db:"loan_days" json:"loan_days"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// DefaultSettings returns the parameters used until an admin changes them
func DefaultSettings() Settings {
	return Settings{
		CardCommissionPct: decimal.NewFromInt(23),
		LowStockThreshold: 5,
		LoanDays:          30,
	}
}

// User represents an administrator account
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StockAlert is raised when a product falls to or below the low stock threshold
type StockAlert struct {
	ID          int64      `db:"id" json:"id"`
	ProductID   int64      `db:"product_id" json:"product_id"`
	ProductName string     `db:"product_name" json:"product_name"`
	Stock       int        `db:"stock" json:"stock"`
	Threshold   int        `db:"threshold" json:"threshold"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}

// ProductSales is one row of the top products report
type ProductSales struct {
	ProductID     int64  `db:"product_id" json:"product_id"`
	ProductName   string `db:"product_name" json:"product_name"`
	TotalQuantity int64  `db:"total_quantity" json:"total_quantity"`
	TotalRevenue  int64  `db:"total_revenue" json:"total_revenue"`
}

// DateRange is a half-open [From, To) interval. The zero value matches everything.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether the range is unbounded
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether t falls inside the range
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// DayRange returns the calendar day containing t in loc
func DayRange(t time.Time, loc *time.Location) DateRange {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return DateRange{From: start, To: start.AddDate(0, 0, 1)}
}

// Payment methods
const (
	PaymentMethodCash            = "cash"
	PaymentMethodDebitKlap       = "debit_klap"
	PaymentMethodDebitCajaVecina = "debit_caja_vecina"
)

// IsValidPaymentMethod reports whether m is a known payment method
func IsValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodDebitKlap, PaymentMethodDebitCajaVecina:
		return true
	}
	return false
}

// Purchase order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusReceived  = "received"
	OrderStatusCancelled = "cancelled"
)

// IsValidOrderStatus reports whether s is a known purchase order status
func IsValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusReceived, OrderStatusCancelled:
		return true
	}
	return false
}

// Cash movement kinds
const (
	MovementKindIncome  = "income"
	MovementKindExpense = "expense"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
