package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pos-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderFixture(t *testing.T) (*PurchaseOrderService, *faultyStore, *recordingPublisher) {
	t.Helper()
	repo := newFaultyStore()
	pub := &recordingPublisher{}
	svc := NewPurchaseOrderService(repo, newFakeLocker(), pub, 10*time.Second, time.UTC)
	return svc, repo, pub
}

func placeOrder(t *testing.T, svc *PurchaseOrderService, lines ...PurchaseOrderLineRequest) *models.PurchaseOrder {
	t.Helper()
	order, err := svc.CreatePurchaseOrder(context.Background(), &CreatePurchaseOrderRequest{
		Distributor:      "Andina",
		LineItems:        lines,
		ExpectedDelivery: "2024-06-01",
	})
	require.NoError(t, err)
	return order
}

func TestCreatePurchaseOrderLeavesStockAlone(t *testing.T) {
	svc, repo, _ := newOrderFixture(t)
	cola := addProduct(t, repo, "Cola", 1000, 2)

	order := placeOrder(t, svc, PurchaseOrderLineRequest{ProductID: cola.ID, Quantity: 12})

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "Cola", order.Items[0].ProductName)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), order.ExpectedDelivery)
	assert.Equal(t, 2, stockOf(t, repo, cola.ID))
}

func TestCreatePurchaseOrderValidation(t *testing.T) {
	svc, repo, _ := newOrderFixture(t)
	cola := addProduct(t, repo, "Cola", 1000, 2)
	ctx := context.Background()

	_, err := svc.CreatePurchaseOrder(ctx, &CreatePurchaseOrderRequest{
		Distributor:      "Andina",
		LineItems:        []PurchaseOrderLineRequest{{ProductID: cola.ID, Quantity: 1}},
		ExpectedDelivery: "tomorrow",
	})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	_, err = svc.CreatePurchaseOrder(ctx, &CreatePurchaseOrderRequest{
		Distributor:      "Andina",
		LineItems:        []PurchaseOrderLineRequest{{ProductID: 404, Name: "Ghost", Quantity: 1}},
		ExpectedDelivery: "2024-06-01",
	})
	assert.True(t, errors.Is(err, ErrProductNotFound))
}

func TestReceiveOrderRestocksExactlyOnce(t *testing.T) {
	svc, repo, pub := newOrderFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 2)
	bread := addProduct(t, repo, "Bread", 500, 0)
	order := placeOrder(t, svc,
		PurchaseOrderLineRequest{ProductID: cola.ID, Quantity: 12},
		PurchaseOrderLineRequest{ProductID: bread.ID, Quantity: 6},
	)

	received, err := svc.UpdateStatus(ctx, order.ID, models.OrderStatusReceived)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReceived, received.Status)
	assert.Equal(t, 14, stockOf(t, repo, cola.ID))
	assert.Equal(t, 6, stockOf(t, repo, bread.ID))

	again, err := svc.UpdateStatus(ctx, order.ID, models.OrderStatusReceived)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReceived, again.Status)
	assert.Equal(t, 14, stockOf(t, repo, cola.ID))
	assert.Equal(t, 6, stockOf(t, repo, bread.ID))

	require.Len(t, pub.received, 1)
	assert.Len(t, pub.received[0].Items, 2)
}

func TestConcurrentReceiptsApplyOnce(t *testing.T) {
	svc, repo, _ := newOrderFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 0)
	order := placeOrder(t, svc, PurchaseOrderLineRequest{ProductID: cola.ID, Quantity: 5})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.UpdateStatus(ctx, order.ID, models.OrderStatusReceived)
			if err != nil {
				assert.True(t, errors.Is(err, ErrOrderBusy), "unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, stockOf(t, repo, cola.ID))
}

func TestReceiveSkipsDeletedProducts(t *testing.T) {
	svc, repo, _ := newOrderFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 1)
	gone := addProduct(t, repo, "Discontinued", 300, 0)
	order := placeOrder(t, svc,
		PurchaseOrderLineRequest{ProductID: cola.ID, Quantity: 3},
		PurchaseOrderLineRequest{ProductID: gone.ID, Quantity: 3},
	)
	require.NoError(t, repo.DeleteProduct(ctx, gone.ID))

	_, err := svc.UpdateStatus(ctx, order.ID, models.OrderStatusReceived)
	require.NoError(t, err)
	assert.Equal(t, 4, stockOf(t, repo, cola.ID))
}

func TestReceiveReportsUnappliedLines(t *testing.T) {
	svc, repo, _ := newOrderFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 1)
	bread := addProduct(t, repo, "Bread", 500, 1)
	order := placeOrder(t, svc,
		PurchaseOrderLineRequest{ProductID: cola.ID, Quantity: 3},
		PurchaseOrderLineRequest{ProductID: bread.ID, Quantity: 4},
	)
	repo.failIncrement[bread.ID] = true

	_, err := svc.UpdateStatus(ctx, order.ID, models.OrderStatusReceived)

	var partial *PartialApplicationError
	require.True(t, errors.As(err, &partial))
	require.Len(t, partial.Lines, 1)
	assert.Equal(t, bread.ID, partial.Lines[0].ProductID)
	assert.Equal(t, 4, partial.Lines[0].Quantity)
	assert.Equal(t, 4, stockOf(t, repo, cola.ID))

	stored, err := svc.GetPurchaseOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusReceived, stored.Status)
}

func TestCancelRules(t *testing.T) {
	svc, repo, pub := newOrderFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 1)

	pending := placeOrder(t, svc, PurchaseOrderLineRequest{ProductID: cola.ID, Quantity: 3})
	cancelled, err := svc.UpdateStatus(ctx, pending.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 1, stockOf(t, repo, cola.ID))
	assert.Len(t, pub.cancelled, 1)

	_, err = svc.UpdateStatus(ctx, pending.ID, models.OrderStatusReceived)
	var transition *TransitionError
	require.True(t, errors.As(err, &transition))
	assert.Equal(t, models.OrderStatusCancelled, transition.From)
	assert.Equal(t, models.OrderStatusReceived, transition.To)

	_, err = svc.UpdateStatus(ctx, pending.ID, models.OrderStatusCancelled)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	received := placeOrder(t, svc, PurchaseOrderLineRequest{ProductID: cola.ID, Quantity: 2})
	_, err = svc.UpdateStatus(ctx, received.ID, models.OrderStatusReceived)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, received.ID, models.OrderStatusCancelled)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	_, err = svc.UpdateStatus(ctx, received.ID, models.OrderStatusPending)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, 3, stockOf(t, repo, cola.ID))
}

func TestUpdateStatusErrors(t *testing.T) {
	svc, repo, _ := newOrderFixture(t)
	ctx := context.Background()
	cola := addProduct(t, repo, "Cola", 1000, 1)
	order := placeOrder(t, svc, PurchaseOrderLineRequest{ProductID: cola.ID, Quantity: 3})

	_, err := svc.UpdateStatus(ctx, 999, models.OrderStatusReceived)
	assert.True(t, errors.Is(err, ErrOrderNotFound))

	_, err = svc.UpdateStatus(ctx, order.ID, "shipped")
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	same, err := svc.UpdateStatus(ctx, order.ID, models.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, same.Status)
}

func TestUpdateStatusWhileLocked(t *testing.T) {
	repo := newFaultyStore()
	locker := newFakeLocker()
	svc := NewPurchaseOrderService(repo, locker, &recordingPublisher{}, time.Second, time.UTC)
	cola := addProduct(t, repo, "Cola", 1000, 1)
	order := placeOrder(t, svc, PurchaseOrderLineRequest{ProductID: cola.ID, Quantity: 3})

	_, ok, err := locker.AcquireLock(context.Background(), orderLockKey(order.ID), time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusReceived)
	assert.True(t, errors.Is(err, ErrOrderBusy))
	assert.Equal(t, 1, stockOf(t, repo, cola.ID))
}
