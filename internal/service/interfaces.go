package service

import (
	"context"
	"time"

	"pos-service/internal/models"
)

// EventPublisher is satisfied by broker.EventPublisher
type EventPublisher interface {
	PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
	PublishOrderReceived(ctx context.Context, event *models.OrderReceivedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishCashClosed(ctx context.Context, event *models.CashClosedEvent) error
}

// Locker is satisfied by redisclient.Client
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, lockKey, token string) error
}

// SessionStore is satisfied by redisclient.Client
type SessionStore interface {
	StoreSession(ctx context.Context, tokenID string, userID int64, ttl time.Duration) error
	SessionExists(ctx context.Context, tokenID string) (bool, error)
	DeleteSession(ctx context.Context, tokenID string) error
	StoreResetToken(ctx context.Context, token string, userID int64, ttl time.Duration) error
	ConsumeResetToken(ctx context.Context, token string) (int64, bool, error)
	RegisterFailedLogin(ctx context.Context, email string, window time.Duration) (int64, error)
	FailedLogins(ctx context.Context, email string) (int64, error)
	ClearFailedLogins(ctx context.Context, email string) error
}
