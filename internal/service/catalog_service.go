package service

import (
	"context"
	"errors"
	"strings"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// CatalogService manages products and distributors
type CatalogService struct {
	store             store.Repository
	settings          *SettingsService
	reorderDefaultQty int
	logger            *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store store.Repository, settings *SettingsService, reorderDefaultQty int) *CatalogService {
	if reorderDefaultQty <= 0 {
		reorderDefaultQty = 10
	}
	return &CatalogService{
		store:             store,
		settings:          settings,
		reorderDefaultQty: reorderDefaultQty,
		logger:            util.GetLogger(),
	}
}

// ProductRequest carries the editable fields of a product. Stock is the
// opening stock and is only accepted on creation; edits change stock through
// StockAdjustment, a signed delta applied atomically.
type ProductRequest struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	CostPrice       int64  `json:"cost_price" binding:"min=0"`
	SalePrice       int64  `json:"sale_price" binding:"required,min=1"`
	Stock           *int   `json:"stock" binding:"omitempty,min=0"`
	StockAdjustment int    `json:"stock_adjustment"`
	Distributor     string `json:"distributor"`
	Active          *bool  `json:"active"`
}

// ReorderSuggestion is a low-stock product with a proposed order quantity
type ReorderSuggestion struct {
	Product           models.Product `json:"product"`
	SuggestedQuantity int            `json:"suggested_quantity"`
}

// DistributorRequest represents a request to register a distributor
type DistributorRequest struct {
	Name    string `json:"name" binding:"required"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
}

func (req *ProductRequest) toProduct() (*models.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidf("name is required")
	}
	if req.SalePrice <= 0 {
		return nil, invalidf("sale_price must be positive")
	}
	stock := 0
	if req.Stock != nil {
		stock = *req.Stock
	}
	if req.CostPrice < 0 || stock < 0 {
		return nil, invalidf("cost_price and stock must not be negative")
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &models.Product{
		Name:        name,
		Description: req.Description,
		CostPrice:   req.CostPrice,
		SalePrice:   req.SalePrice,
		Stock:       stock,
		Distributor: strings.TrimSpace(req.Distributor),
		Active:      active,
	}, nil
}

// ListProducts returns the whole catalog
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, persistenceErr("list products", err)
	}
	return products, nil
}

// GetProduct retrieves a product by ID
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.store.GetProductByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &ProductNotFoundError{ProductID: id}
	}
	if err != nil {
		return nil, persistenceErr("load product", err)
	}
	return product, nil
}

// CreateProduct adds a product to the catalog
func (s *CatalogService) CreateProduct(ctx context.Context, req *ProductRequest) (*models.Product, error) {
	if req.StockAdjustment != 0 {
		return nil, invalidf("stock_adjustment only applies to existing products; use stock")
	}
	product, err := req.toProduct()
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrProductNameTaken
		}
		return nil, persistenceErr("save product", err)
	}
	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// UpdateProduct replaces the editable fields of a product. The stored stock
// is never overwritten; a non-zero StockAdjustment is applied as a delta with
// the same conditional update sales use, and rolled back if the edit fails.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, req *ProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.UpdateProduct")
	defer span.End()

	if req.Stock != nil {
		return nil, invalidf("stock cannot be set on an existing product; send stock_adjustment")
	}
	product, err := req.toProduct()
	if err != nil {
		return nil, err
	}
	product.ID = id

	if req.StockAdjustment != 0 {
		if err := s.adjustStock(ctx, id, product.Name, req.StockAdjustment); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		if req.StockAdjustment != 0 {
			s.revertAdjustment(ctx, id, product.Name, req.StockAdjustment)
		}
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, &ProductNotFoundError{ProductID: id}
		case errors.Is(err, store.ErrDuplicate):
			return nil, ErrProductNameTaken
		}
		return nil, persistenceErr("update product", err)
	}
	s.logger.Info("Product updated",
		zap.Int64("product_id", id),
		zap.Int("stock_adjustment", req.StockAdjustment),
		zap.Int("stock", product.Stock))
	return product, nil
}

func (s *CatalogService) adjustStock(ctx context.Context, id int64, name string, delta int) error {
	var err error
	var current *models.Product
	if delta > 0 {
		_, err = s.store.IncrementStock(ctx, id, delta)
	} else {
		current, err = s.store.DecrementStock(ctx, id, -delta)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return &ProductNotFoundError{ProductID: id}
	case errors.Is(err, store.ErrInsufficientStock):
		available := 0
		if current != nil {
			available = current.Stock
		}
		return &InsufficientStockError{ProductID: id, Name: name, Available: available, Requested: -delta}
	}
	return persistenceErr("adjust stock", err)
}

func (s *CatalogService) revertAdjustment(ctx context.Context, id int64, name string, delta int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	var err error
	if delta > 0 {
		_, err = s.store.DecrementStock(ctx, id, delta)
	} else {
		_, err = s.store.IncrementStock(ctx, id, -delta)
	}
	if err != nil {
		s.logger.Error("Failed to revert stock adjustment",
			zap.Int64("product_id", id),
			zap.String("name", name),
			zap.Int("stock_adjustment", delta),
			zap.Error(err))
	}
}

// DeleteProduct removes a product from the catalog
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &ProductNotFoundError{ProductID: id}
		}
		return persistenceErr("delete product", err)
	}
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

// LowStock lists active products at or below the low stock threshold,
// optionally restricted to one distributor
func (s *CatalogService) LowStock(ctx context.Context, distributor string) ([]ReorderSuggestion, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.LowStock")
	defer span.End()

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, persistenceErr("list products", err)
	}
	threshold := s.settings.current(ctx).LowStockThreshold
	distributor = strings.TrimSpace(distributor)

	suggestions := make([]ReorderSuggestion, 0)
	for _, p := range products {
		if !p.Active || p.Stock > threshold {
			continue
		}
		if distributor != "" && !strings.EqualFold(p.Distributor, distributor) {
			continue
		}
		suggestions = append(suggestions, ReorderSuggestion{Product: p, SuggestedQuantity: s.reorderDefaultQty})
	}
	return suggestions, nil
}

// ListDistributors returns every registered distributor
func (s *CatalogService) ListDistributors(ctx context.Context) ([]models.Distributor, error) {
	distributors, err := s.store.ListDistributors(ctx)
	if err != nil {
		return nil, persistenceErr("list distributors", err)
	}
	return distributors, nil
}

// CreateDistributor registers a distributor with a unique name
func (s *CatalogService) CreateDistributor(ctx context.Context, req *DistributorRequest) (*models.Distributor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalidf("name is required")
	}
	d := &models.Distributor{
		Name:    name,
		Contact: strings.TrimSpace(req.Contact),
		Phone:   strings.TrimSpace(req.Phone),
	}
	if err := s.store.CreateDistributor(ctx, d); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDistributorNameTaken
		}
		return nil, persistenceErr("save distributor", err)
	}
	s.logger.Info("Distributor created", zap.Int64("distributor_id", d.ID), zap.String("name", d.Name))
	return d, nil
}

// ResetData wipes business data. Users and settings survive.
func (s *CatalogService) ResetData(ctx context.Context) error {
	if err := s.store.ResetData(ctx); err != nil {
		return persistenceErr("reset data", err)
	}
	s.logger.Warn("Business data reset")
	return nil
}
