package store

import (
	"context"
	"errors"

	"pos-service/internal/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate record")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductRepository persists the catalog. DecrementStock only succeeds when
// the current stock covers qty; on ErrInsufficientStock the returned product
// carries the stock observed at that moment.
type ProductRepository interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	DecrementStock(ctx context.Context, productID int64, qty int) (*models.Product, error)
	IncrementStock(ctx context.Context, productID int64, qty int) (*models.Product, error)
}

type SaleRepository interface {
	CreateSale(ctx context.Context, sale *models.Sale) error
	GetSaleByID(ctx context.Context, id int64) (*models.Sale, error)
	// GetSaleByIdempotencyKey returns nil, nil when no sale carries key.
	GetSaleByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error)
	ListSales(ctx context.Context, r models.DateRange) ([]models.Sale, error)
	TopProducts(ctx context.Context, r models.DateRange, limit int) ([]models.ProductSales, error)
}

// PurchaseOrderRepository persists purchase orders. UpdatePurchaseOrderStatus
// is a compare-and-swap: it reports false when the stored status is not from.
type PurchaseOrderRepository interface {
	CreatePurchaseOrder(ctx context.Context, order *models.PurchaseOrder) error
	GetPurchaseOrderByID(ctx context.Context, id int64) (*models.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context) ([]models.PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, id int64, from, to string) (bool, error)
}

type DistributorRepository interface {
	CreateDistributor(ctx context.Context, d *models.Distributor) error
	ListDistributors(ctx context.Context) ([]models.Distributor, error)
}

type LedgerRepository interface {
	CreateCashMovement(ctx context.Context, m *models.CashMovement) error
	ListCashMovements(ctx context.Context, r models.DateRange) ([]models.CashMovement, error)
	CreateCashClosing(ctx context.Context, c *models.CashClosing) error
	// GetCashClosing returns nil, nil when no closing falls inside r.
	GetCashClosing(ctx context.Context, r models.DateRange) (*models.CashClosing, error)
}

type SettingsRepository interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, s *models.Settings) error
}

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error
}

type AlertRepository interface {
	CreateStockAlert(ctx context.Context, a *models.StockAlert) error
	ListOpenStockAlerts(ctx context.Context) ([]models.StockAlert, error)
	ResolveStockAlerts(ctx context.Context, productID int64) (int64, error)
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// Repository is the full persistence surface of the service
type Repository interface {
	ProductRepository
	SaleRepository
	PurchaseOrderRepository
	DistributorRepository
	LedgerRepository
	SettingsRepository
	UserRepository
	AlertRepository

	// ResetData wipes business data. Users and settings are kept.
	ResetData(ctx context.Context) error
	Ping(ctx context.Context) error
}
