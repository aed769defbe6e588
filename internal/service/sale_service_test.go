package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pos-service/internal/models"
	"pos-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSaleFixture(t *testing.T) (*SaleService, *faultyStore, *recordingPublisher) {
	t.Helper()
	repo := newFaultyStore()
	pub := &recordingPublisher{}
	return NewSaleService(repo, NewSettingsService(repo), pub), repo, pub
}

func addProduct(t *testing.T, repo store.ProductRepository, name string, price int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, SalePrice: price, CostPrice: price / 2, Stock: stock, Active: true}
	require.NoError(t, repo.CreateProduct(context.Background(), p))
	return p
}

func stockOf(t *testing.T, repo store.ProductRepository, id int64) int {
	t.Helper()
	p, err := repo.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestCreateSaleAppliesEveryLine(t *testing.T) {
	svc, repo, pub := newSaleFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 10)
	bread := addProduct(t, repo, "Bread", 500, 5)

	sale, err := svc.CreateSale(ctx, &CreateSaleRequest{
		LineItems: []SaleLineRequest{
			{ProductID: cola.ID, Quantity: 2},
			{ProductID: bread.ID, Quantity: 1},
		},
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	assert.NotZero(t, sale.ID)
	assert.Equal(t, int64(2500), sale.Total)
	require.Len(t, sale.Items, 2)
	assert.Equal(t, "Cola", sale.Items[0].ProductName)
	assert.Equal(t, int64(1000), sale.Items[0].UnitPrice)
	assert.Equal(t, 8, stockOf(t, repo, cola.ID))
	assert.Equal(t, 4, stockOf(t, repo, bread.ID))

	require.Len(t, pub.sales, 1)
	assert.Equal(t, sale.ID, pub.sales[0].SaleID)
	require.Len(t, pub.lows, 1)
	assert.Equal(t, bread.ID, pub.lows[0].ProductID)
	assert.Equal(t, 4, pub.lows[0].Stock)
}

func TestCreateSaleIsAllOrNothing(t *testing.T) {
	svc, repo, pub := newSaleFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 10)
	bread := addProduct(t, repo, "Bread", 500, 1)

	_, err := svc.CreateSale(ctx, &CreateSaleRequest{
		LineItems: []SaleLineRequest{
			{ProductID: cola.ID, Quantity: 3},
			{ProductID: bread.ID, Quantity: 2},
		},
		PaymentMethod: models.PaymentMethodCash,
	})

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 10, stockOf(t, repo, cola.ID))
	assert.Equal(t, 1, stockOf(t, repo, bread.ID))

	sales, err := repo.ListSales(ctx, models.DateRange{})
	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.Empty(t, pub.sales)
}

func TestSellingOutThenRejectingTheNextUnit(t *testing.T) {
	svc, repo, _ := newSaleFixture(t)
	ctx := context.Background()
	soda := addProduct(t, repo, "Soda", 800, 10)

	_, err := svc.CreateSale(ctx, &CreateSaleRequest{
		LineItems:     []SaleLineRequest{{ProductID: soda.ID, Quantity: 10}},
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stockOf(t, repo, soda.ID))

	_, err = svc.CreateSale(ctx, &CreateSaleRequest{
		LineItems:     []SaleLineRequest{{ProductID: soda.ID, Quantity: 1}},
		PaymentMethod: models.PaymentMethodCash,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, "insufficient stock for 'Soda': available 0, requested 1", err.Error())
	assert.Equal(t, 0, stockOf(t, repo, soda.ID))
}

func TestUnknownProductIsReportedBySubmittedName(t *testing.T) {
	svc, repo, _ := newSaleFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 10)

	_, err := svc.CreateSale(ctx, &CreateSaleRequest{
		LineItems: []SaleLineRequest{
			{ProductID: cola.ID, Quantity: 4},
			{ProductID: 9999, Name: "Ghost", Quantity: 1},
		},
		PaymentMethod: models.PaymentMethodDebitKlap,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProductNotFound))
	assert.Equal(t, "product not found: Ghost", err.Error())
	assert.Equal(t, 10, stockOf(t, repo, cola.ID))
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	svc, repo, _ := newSaleFixture(t)
	ctx := context.Background()
	rice := addProduct(t, repo, "Rice", 1500, 5)

	const attempts = 8
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateSale(ctx, &CreateSaleRequest{
				LineItems:     []SaleLineRequest{{ProductID: rice.ID, Quantity: 3}},
				PaymentMethod: models.PaymentMethodCash,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInsufficientStock):
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, insufficient)
	assert.Equal(t, 2, stockOf(t, repo, rice.ID))
}

func TestUnitPriceSnapshot(t *testing.T) {
	svc, repo, _ := newSaleFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 10)
	chips := addProduct(t, repo, "Chips", 700, 10)

	sale, err := svc.CreateSale(ctx, &CreateSaleRequest{
		LineItems: []SaleLineRequest{
			{ProductID: cola.ID, Quantity: 1, UnitPrice: 900},
			{ProductID: chips.ID, Quantity: 2},
		},
		Total:         2300,
		PaymentMethod: models.PaymentMethodDebitCajaVecina,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(900), sale.Items[0].UnitPrice)
	assert.Equal(t, int64(700), sale.Items[1].UnitPrice)
	assert.Equal(t, int64(2300), sale.Total)

	// Later catalog edits leave recorded sales untouched.
	cola.SalePrice = 5000
	cola.Name = "Cola Zero"
	require.NoError(t, repo.UpdateProduct(ctx, cola))
	stored, err := svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cola", stored.Items[0].ProductName)
	assert.Equal(t, int64(900), stored.Items[0].UnitPrice)
}

func TestTotalMismatchRestoresStock(t *testing.T) {
	svc, repo, pub := newSaleFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 10)

	_, err := svc.CreateSale(ctx, &CreateSaleRequest{
		LineItems:     []SaleLineRequest{{ProductID: cola.ID, Quantity: 2}},
		Total:         1500,
		PaymentMethod: models.PaymentMethodCash,
	})
	assert.True(t, errors.Is(err, ErrTotalMismatch))
	assert.Equal(t, 10, stockOf(t, repo, cola.ID))
	assert.Empty(t, pub.sales)
}

func TestPersistenceFailureRestoresStock(t *testing.T) {
	svc, repo, _ := newSaleFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 10)
	repo.failSale = true

	_, err := svc.CreateSale(ctx, &CreateSaleRequest{
		LineItems:     []SaleLineRequest{{ProductID: cola.ID, Quantity: 2}},
		PaymentMethod: models.PaymentMethodCash,
	})

	var persistErr *PersistenceError
	require.True(t, errors.As(err, &persistErr))
	assert.True(t, errors.Is(err, errStorageDown))
	assert.Equal(t, 10, stockOf(t, repo, cola.ID))
}

func TestFailedRollbackReportsPartialApplication(t *testing.T) {
	svc, repo, _ := newSaleFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 10)
	bread := addProduct(t, repo, "Bread", 500, 0)
	repo.failIncrement[cola.ID] = true

	_, err := svc.CreateSale(ctx, &CreateSaleRequest{
		LineItems: []SaleLineRequest{
			{ProductID: cola.ID, Quantity: 2},
			{ProductID: bread.ID, Quantity: 1},
		},
		PaymentMethod: models.PaymentMethodCash,
	})

	var partial *PartialApplicationError
	require.True(t, errors.As(err, &partial))
	require.Len(t, partial.Lines, 1)
	assert.Equal(t, cola.ID, partial.Lines[0].ProductID)
	assert.Equal(t, 2, partial.Lines[0].Quantity)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, 8, stockOf(t, repo, cola.ID))
}

func TestIdempotencyKeyReturnsRecordedSale(t *testing.T) {
	svc, repo, pub := newSaleFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 10)

	req := &CreateSaleRequest{
		LineItems:      []SaleLineRequest{{ProductID: cola.ID, Quantity: 1}},
		PaymentMethod:  models.PaymentMethodCash,
		IdempotencyKey: "register-1-0001",
	}
	first, err := svc.CreateSale(ctx, req)
	require.NoError(t, err)
	second, err := svc.CreateSale(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 9, stockOf(t, repo, cola.ID))
	assert.Len(t, pub.sales, 1)
}

func TestCreateSaleValidation(t *testing.T) {
	svc, repo, _ := newSaleFixture(t)
	cola := addProduct(t, repo, "Cola", 1000, 10)

	cases := map[string]*CreateSaleRequest{
		"no lines": {PaymentMethod: models.PaymentMethodCash},
		"unknown payment method": {
			LineItems:     []SaleLineRequest{{ProductID: cola.ID, Quantity: 1}},
			PaymentMethod: "cheque",
		},
		"zero quantity": {
			LineItems:     []SaleLineRequest{{ProductID: cola.ID, Quantity: 0}},
			PaymentMethod: models.PaymentMethodCash,
		},
		"negative price": {
			LineItems:     []SaleLineRequest{{ProductID: cola.ID, Quantity: 1, UnitPrice: -5}},
			PaymentMethod: models.PaymentMethodCash,
		},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.CreateSale(context.Background(), req)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
	assert.Equal(t, 10, stockOf(t, repo, cola.ID))
}

func TestGetSaleNotFound(t *testing.T) {
	svc, _, _ := newSaleFixture(t)
	_, err := svc.GetSale(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrSaleNotFound))
}

func TestCalculateTotal(t *testing.T) {
	items := []models.SaleItem{
		{ProductID: 1, Quantity: 2, UnitPrice: 1000},
		{ProductID: 2, Quantity: 1, UnitPrice: 500},
	}
	assert.Equal(t, int64(2500), calculateTotal(items))
}
