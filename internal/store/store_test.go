package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"pos-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to TEST_DATABASE_URL or skips the test
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.ResetData(ctx))
	return store
}

func TestRangeClause(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	clause, args := rangeClause("created_at", models.DateRange{}, nil)
	assert.Empty(t, clause)
	assert.Empty(t, args)

	clause, args = rangeClause("s.created_at", models.DateRange{From: from, To: to}, []interface{}{"x"})
	assert.Equal(t, " AND s.created_at >= $2 AND s.created_at < $3", clause)
	assert.Equal(t, []interface{}{"x", from, to}, args)
}

func TestDecrementStock(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	product := &models.Product{Name: "Soda", SalePrice: 1000, Stock: 10, Active: true}
	require.NoError(t, store.CreateProduct(ctx, product))

	updated, err := store.DecrementStock(ctx, product.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Stock)

	current, err := store.DecrementStock(ctx, product.ID, 1)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	require.NotNil(t, current)
	assert.Equal(t, 0, current.Stock)

	_, err = store.DecrementStock(ctx, product.ID+1000, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestConcurrentDecrementNeverNegative(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	product := &models.Product{Name: "Bread", SalePrice: 500, Stock: 10, Active: true}
	require.NoError(t, store.CreateProduct(ctx, product))

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.DecrementStock(ctx, product.ID, 6)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, short int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientStock):
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)

	final, err := store.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, final.Stock)
}

func TestCreateSaleIdempotencyKey(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	sale := &models.Sale{
		Total:          2000,
		PaymentMethod:  models.PaymentMethodCash,
		IdempotencyKey: "idempotent-key-456",
		Items:          []models.SaleItem{{ProductID: 1, ProductName: "Soda", Quantity: 2, UnitPrice: 1000}},
	}
	require.NoError(t, store.CreateSale(ctx, sale))
	assert.NotZero(t, sale.ID)

	found, err := store.GetSaleByIdempotencyKey(ctx, "idempotent-key-456")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sale.ID, found.ID)
	assert.Len(t, found.Items, 1)

	dup := &models.Sale{Total: 1, PaymentMethod: models.PaymentMethodCash, IdempotencyKey: "idempotent-key-456"}
	err = store.CreateSale(ctx, dup)
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestPurchaseOrderStatusSwap(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	order := &models.PurchaseOrder{
		Distributor:      "Acme",
		Status:           models.OrderStatusPending,
		ExpectedDelivery: time.Now().Add(48 * time.Hour),
		Items:            []models.PurchaseOrderItem{{ProductID: 1, ProductName: "Soda", Quantity: 5}},
	}
	require.NoError(t, store.CreatePurchaseOrder(ctx, order))

	swapped, err := store.UpdatePurchaseOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusReceived)
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = store.UpdatePurchaseOrderStatus(ctx, order.ID, models.OrderStatusPending, models.OrderStatusReceived)
	require.NoError(t, err)
	assert.False(t, swapped)

	stored, err := store.GetPurchaseOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReceived, stored.Status)
	assert.Len(t, stored.Items, 1)
}
