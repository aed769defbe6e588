package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pos-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	keys   []string
	events []interface{}
}

func (r *recordingPublisher) PublishEvent(_ context.Context, key string, event interface{}) error {
	r.keys = append(r.keys, key)
	r.events = append(r.events, event)
	return nil
}

func TestEventPublisherKeys(t *testing.T) {
	rec := &recordingPublisher{}
	ep := NewEventPublisher(rec)
	ctx := context.Background()

	require.NoError(t, ep.PublishStockLow(ctx, &models.StockLowEvent{ProductID: 7}))
	require.NoError(t, ep.PublishOrderReceived(ctx, &models.OrderReceivedEvent{OrderID: 3}))
	require.NoError(t, ep.PublishSaleRecorded(ctx, &models.SaleRecordedEvent{SaleID: 9}))

	assert.Equal(t, []string{"product-7", "order-3", "sale-9"}, rec.keys)
}

func TestHandleRoutesByEventType(t *testing.T) {
	eh := NewEventHandler()

	var gotLow *models.StockLowEvent
	var gotReceived *models.OrderReceivedEvent
	eh.OnStockLow(func(_ context.Context, e *models.StockLowEvent) error {
		gotLow = e
		return nil
	})
	eh.OnOrderReceived(func(_ context.Context, e *models.OrderReceivedEvent) error {
		gotReceived = e
		return nil
	})

	low, err := json.Marshal(&models.StockLowEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeStockLow, Timestamp: time.Now()},
		ProductID: 4,
		Stock:     2,
	})
	require.NoError(t, err)
	require.NoError(t, eh.Handle(context.Background(), low))
	require.NotNil(t, gotLow)
	assert.Equal(t, int64(4), gotLow.ProductID)
	assert.Equal(t, "e1", gotLow.EventID)

	received, err := json.Marshal(&models.OrderReceivedEvent{
		BaseEvent: models.BaseEvent{EventID: "e2", EventType: models.EventTypeOrderReceived},
		OrderID:   11,
	})
	require.NoError(t, err)
	require.NoError(t, eh.Handle(context.Background(), received))
	require.NotNil(t, gotReceived)
	assert.Equal(t, int64(11), gotReceived.OrderID)
}

func TestHandleIgnoresUnknownAndRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()

	assert.NoError(t, eh.Handle(context.Background(), []byte(`{"event_type":"SALE_RECORDED"}`)))
	assert.Error(t, eh.Handle(context.Background(), []byte(`not json`)))
}
