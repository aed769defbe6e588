package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/store/memory"
)

var errStorageDown = errors.New("storage down")

type recordingPublisher struct {
	mu        sync.Mutex
	sales     []*models.SaleRecordedEvent
	lows      []*models.StockLowEvent
	received  []*models.OrderReceivedEvent
	cancelled []*models.OrderCancelledEvent
	closed    []*models.CashClosedEvent
}

func (p *recordingPublisher) PublishSaleRecorded(_ context.Context, e *models.SaleRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, e)
	return nil
}

func (p *recordingPublisher) PublishStockLow(_ context.Context, e *models.StockLowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lows = append(p.lows, e)
	return nil
}

func (p *recordingPublisher) PublishOrderReceived(_ context.Context, e *models.OrderReceivedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.received = append(p.received, e)
	return nil
}

func (p *recordingPublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return nil
}

func (p *recordingPublisher) PublishCashClosed(_ context.Context, e *models.CashClosedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, e)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]string{}}
}

func (l *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	l.held[key] = key + "-token"
	return l.held[key], true, nil
}

func (l *fakeLocker) ReleaseLock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]int64
	resets   map[string]int64
	failures map[string]int64
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		sessions: map[string]int64{},
		resets:   map[string]int64{},
		failures: map[string]int64{},
	}
}

func (f *fakeSessions) StoreSession(_ context.Context, tokenID string, userID int64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[tokenID] = userID
	return nil
}

func (f *fakeSessions) SessionExists(_ context.Context, tokenID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[tokenID]
	return ok, nil
}

func (f *fakeSessions) DeleteSession(_ context.Context, tokenID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, tokenID)
	return nil
}

func (f *fakeSessions) StoreResetToken(_ context.Context, token string, userID int64, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[token] = userID
	return nil
}

func (f *fakeSessions) ConsumeResetToken(_ context.Context, token string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.resets[token]
	delete(f.resets, token)
	return id, ok, nil
}

func (f *fakeSessions) RegisterFailedLogin(_ context.Context, email string, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[email]++
	return f.failures[email], nil
}

func (f *fakeSessions) FailedLogins(_ context.Context, email string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures[email], nil
}

func (f *fakeSessions) ClearFailedLogins(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.failures, email)
	return nil
}

// faultyStore wraps the memory store and fails selected writes
type faultyStore struct {
	*memory.Store
	failIncrement map[int64]bool
	failSale      bool
}

var _ store.Repository = (*faultyStore)(nil)

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memory.New(), failIncrement: map[int64]bool{}}
}

func (f *faultyStore) IncrementStock(ctx context.Context, productID int64, qty int) (*models.Product, error) {
	if f.failIncrement[productID] {
		return nil, errStorageDown
	}
	return f.Store.IncrementStock(ctx, productID, qty)
}

func (f *faultyStore) CreateSale(ctx context.Context, sale *models.Sale) error {
	if f.failSale {
		return errStorageDown
	}
	return f.Store.CreateSale(ctx, sale)
}
