// Package memory is an in-process implementation of store.Repository for
// local runs and tests. It keeps every entity in maps guarded by one mutex.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pos-service/internal/models"
	"pos-service/internal/store"
)

type Store struct {
	mu sync.RWMutex

	nextID          int64
	products        map[int64]models.Product
	sales           map[int64]models.Sale
	salesByIdem     map[string]int64
	orders          map[int64]models.PurchaseOrder
	distributors    map[int64]models.Distributor
	movements       map[int64]models.CashMovement
	closings        map[int64]models.CashClosing
	settings        *models.Settings
	users           map[int64]models.User
	alerts          map[int64]models.StockAlert
	processedEvents map[string]string

	now func() time.Time
}

var _ store.Repository = (*Store)(nil)

// New returns an empty store
func New() *Store {
	s := &Store{now: time.Now}
	s.reset()
	s.users = map[int64]models.User{}
	return s
}

// WithClock replaces the time source, for tests
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) reset() {
	s.products = map[int64]models.Product{}
	s.sales = map[int64]models.Sale{}
	s.salesByIdem = map[string]int64{}
	s.orders = map[int64]models.PurchaseOrder{}
	s.distributors = map[int64]models.Distributor{}
	s.movements = map[int64]models.CashMovement{}
	s.closings = map[int64]models.CashClosing{}
	s.alerts = map[int64]models.StockAlert{}
	s.processedEvents = map[string]string{}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) ResetData(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

func (s *Store) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *Store) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (s *Store) nameTaken(name string, exceptID int64) bool {
	for _, p := range s.products {
		if p.Name == name && p.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nameTaken(p.Name, 0) {
		return fmt.Errorf("product %q: %w", p.Name, store.ErrDuplicate)
	}
	p.ID = s.id()
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = *p
	return nil
}

func (s *Store) UpdateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[p.ID]
	if !ok {
		return fmt.Errorf("product %d: %w", p.ID, store.ErrNotFound)
	}
	if s.nameTaken(p.Name, p.ID) {
		return fmt.Errorf("product %q: %w", p.Name, store.ErrDuplicate)
	}
	p.Stock = current.Stock
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = s.now()
	s.products[p.ID] = *p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, store.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) DecrementStock(_ context.Context, productID int64, qty int) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	if p.Stock < qty {
		return &p, fmt.Errorf("product %d: available=%d, requested=%d: %w",
			productID, p.Stock, qty, store.ErrInsufficientStock)
	}
	p.Stock -= qty
	p.UpdatedAt = s.now()
	s.products[productID] = p
	return &p, nil
}

func (s *Store) IncrementStock(_ context.Context, productID int64, qty int) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", productID, store.ErrNotFound)
	}
	p.Stock += qty
	p.UpdatedAt = s.now()
	s.products[productID] = p
	return &p, nil
}

func (s *Store) CreateSale(_ context.Context, sale *models.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.IdempotencyKey != "" {
		if _, ok := s.salesByIdem[sale.IdempotencyKey]; ok {
			return fmt.Errorf("sale idempotency key %q: %w", sale.IdempotencyKey, store.ErrDuplicate)
		}
	}
	sale.ID = s.id()
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = s.now()
	}
	items := make([]models.SaleItem, len(sale.Items))
	for i, item := range sale.Items {
		item.SaleID = sale.ID
		item.Position = i
		items[i] = item
	}
	sale.Items = items

	stored := *sale
	stored.Items = append([]models.SaleItem(nil), items...)
	s.sales[sale.ID] = stored
	if sale.IdempotencyKey != "" {
		s.salesByIdem[sale.IdempotencyKey] = sale.ID
	}
	return nil
}

func (s *Store) GetSaleByID(_ context.Context, id int64) (*models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, fmt.Errorf("sale %d: %w", id, store.ErrNotFound)
	}
	return copySale(sale), nil
}

func (s *Store) GetSaleByIdempotencyKey(_ context.Context, key string) (*models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.salesByIdem[key]
	if !ok {
		return nil, nil
	}
	return copySale(s.sales[id]), nil
}

func copySale(sale models.Sale) *models.Sale {
	sale.Items = append([]models.SaleItem(nil), sale.Items...)
	return &sale
}

func (s *Store) ListSales(_ context.Context, r models.DateRange) ([]models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := []models.Sale{}
	for _, sale := range s.sales {
		if r.Contains(sale.CreatedAt) {
			sales = append(sales, *copySale(sale))
		}
	}
	sort.Slice(sales, func(i, j int) bool {
		if sales[i].CreatedAt.Equal(sales[j].CreatedAt) {
			return sales[i].ID > sales[j].ID
		}
		return sales[i].CreatedAt.After(sales[j].CreatedAt)
	})
	return sales, nil
}

func (s *Store) TopProducts(_ context.Context, r models.DateRange, limit int) ([]models.ProductSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byProduct := map[int64]*models.ProductSales{}
	for _, sale := range s.sales {
		if !r.Contains(sale.CreatedAt) {
			continue
		}
		for _, item := range sale.Items {
			row, ok := byProduct[item.ProductID]
			if !ok {
				row = &models.ProductSales{ProductID: item.ProductID, ProductName: item.ProductName}
				byProduct[item.ProductID] = row
			}
			if item.ProductName < row.ProductName {
				row.ProductName = item.ProductName
			}
			row.TotalQuantity += int64(item.Quantity)
			row.TotalRevenue += item.Subtotal()
		}
	}

	rows := make([]models.ProductSales, 0, len(byProduct))
	for _, row := range byProduct {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalQuantity == rows[j].TotalQuantity {
			return rows[i].ProductID < rows[j].ProductID
		}
		return rows[i].TotalQuantity > rows[j].TotalQuantity
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, order *models.PurchaseOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order.ID = s.id()
	if order.OrderedAt.IsZero() {
		order.OrderedAt = s.now()
	}
	order.UpdatedAt = s.now()
	items := make([]models.PurchaseOrderItem, len(order.Items))
	for i, item := range order.Items {
		item.OrderID = order.ID
		item.Position = i
		items[i] = item
	}
	order.Items = items

	stored := *order
	stored.Items = append([]models.PurchaseOrderItem(nil), items...)
	s.orders[order.ID] = stored
	return nil
}

func copyOrder(order models.PurchaseOrder) *models.PurchaseOrder {
	order.Items = append([]models.PurchaseOrderItem(nil), order.Items...)
	return &order
}

func (s *Store) GetPurchaseOrderByID(_ context.Context, id int64) (*models.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("purchase order %d: %w", id, store.ErrNotFound)
	}
	return copyOrder(order), nil
}

func (s *Store) ListPurchaseOrders(_ context.Context) ([]models.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]models.PurchaseOrder, 0, len(s.orders))
	for _, order := range s.orders {
		orders = append(orders, *copyOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].OrderedAt.Equal(orders[j].OrderedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].OrderedAt.After(orders[j].OrderedAt)
	})
	return orders, nil
}

func (s *Store) UpdatePurchaseOrderStatus(_ context.Context, id int64, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	order.UpdatedAt = s.now()
	s.orders[id] = order
	return true, nil
}

func (s *Store) CreateDistributor(_ context.Context, d *models.Distributor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.distributors {
		if existing.Name == d.Name {
			return fmt.Errorf("distributor %q: %w", d.Name, store.ErrDuplicate)
		}
	}
	d.ID = s.id()
	d.CreatedAt = s.now()
	s.distributors[d.ID] = *d
	return nil
}

func (s *Store) ListDistributors(_ context.Context) ([]models.Distributor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	distributors := make([]models.Distributor, 0, len(s.distributors))
	for _, d := range s.distributors {
		distributors = append(distributors, d)
	}
	sort.Slice(distributors, func(i, j int) bool { return distributors[i].Name < distributors[j].Name })
	return distributors, nil
}

func (s *Store) CreateCashMovement(_ context.Context, m *models.CashMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.id()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	s.movements[m.ID] = *m
	return nil
}

func (s *Store) ListCashMovements(_ context.Context, r models.DateRange) ([]models.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	movements := []models.CashMovement{}
	for _, m := range s.movements {
		if r.Contains(m.CreatedAt) {
			movements = append(movements, m)
		}
	}
	sort.Slice(movements, func(i, j int) bool {
		if movements[i].CreatedAt.Equal(movements[j].CreatedAt) {
			return movements[i].ID > movements[j].ID
		}
		return movements[i].CreatedAt.After(movements[j].CreatedAt)
	})
	return movements, nil
}

func (s *Store) CreateCashClosing(_ context.Context, c *models.CashClosing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = s.id()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	s.closings[c.ID] = *c
	return nil
}

func (s *Store) GetCashClosing(_ context.Context, r models.DateRange) (*models.CashClosing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *models.CashClosing
	for _, c := range s.closings {
		if !r.Contains(c.CreatedAt) {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			c := c
			found = &c
		}
	}
	return found, nil
}

func (s *Store) GetSettings(_ context.Context) (*models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, fmt.Errorf("settings: %w", store.ErrNotFound)
	}
	settings := *s.settings
	return &settings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings *models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings.UpdatedAt = s.now()
	stored := *settings
	s.settings = &stored
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, store.ErrNotFound)
}

func (s *Store) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("user %s: %w", u.Email, store.ErrDuplicate)
		}
	}
	u.ID = s.id()
	u.CreatedAt = s.now()
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = *u
	return nil
}

func (s *Store) UpdateUserPassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

func (s *Store) CreateStockAlert(_ context.Context, a *models.StockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.alerts {
		if existing.ProductID == a.ProductID && existing.ResolvedAt == nil {
			existing.ProductName = a.ProductName
			existing.Stock = a.Stock
			existing.Threshold = a.Threshold
			s.alerts[id] = existing
			a.ID = existing.ID
			a.CreatedAt = existing.CreatedAt
			return nil
		}
	}
	a.ID = s.id()
	a.CreatedAt = s.now()
	s.alerts[a.ID] = *a
	return nil
}

func (s *Store) ListOpenStockAlerts(_ context.Context) ([]models.StockAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := []models.StockAlert{}
	for _, a := range s.alerts {
		if a.ResolvedAt == nil {
			alerts = append(alerts, a)
		}
	}
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Stock == alerts[j].Stock {
			return alerts[i].ProductName < alerts[j].ProductName
		}
		return alerts[i].Stock < alerts[j].Stock
	})
	return alerts, nil
}

func (s *Store) ResolveStockAlerts(_ context.Context, productID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	now := s.now()
	for id, a := range s.alerts {
		if a.ProductID == productID && a.ResolvedAt == nil {
			a.ResolvedAt = &now
			s.alerts[id] = a
			n++
		}
	}
	return n, nil
}

func (s *Store) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.processedEvents[eventID]
	return ok, nil
}

func (s *Store) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processedEvents[eventID] = eventType
	return nil
}
