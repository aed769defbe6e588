package models

import "time"

// Event types
const (
	EventTypeSaleRecorded   = "SALE_RECORDED"
	EventTypeStockLow       = "STOCK_LOW"
	EventTypeOrderReceived  = "ORDER_RECEIVED"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
	EventTypeCashClosed     = "CASH_CLOSED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleRecordedEvent published when a sale is persisted
type SaleRecordedEvent struct {
	BaseEvent
	SaleID        int64           `json:"sale_id"`
	Total         int64           `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	Items         []StockLineData `json:"items"`
}

// StockLowEvent published when a sale leaves a product at or below the threshold
type StockLowEvent struct {
	BaseEvent
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Distributor string `json:"distributor"`
	Stock       int    `json:"stock"`
	Threshold   int    `json:"threshold"`
}

// OrderReceivedEvent published when a purchase order restocks the catalog
type OrderReceivedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	Distributor string          `json:"distributor"`
	Items       []StockLineData `json:"items"`
}

// OrderCancelledEvent published when a pending purchase order is cancelled
type OrderCancelledEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	Distributor string `json:"distributor"`
}

// CashClosedEvent published when the register is closed for the day
type CashClosedEvent struct {
	BaseEvent
	ClosingID    int64 `json:"closing_id"`
	SystemTotal  int64 `json:"system_total"`
	CountedTotal int64 `json:"counted_total"`
	Difference   int64 `json:"difference"`
}

// StockLineData represents a stock-affecting line in events
type StockLineData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Stock     int   `json:"stock"`
}
