package worker

import (
	"context"
	"fmt"
	"time"

	"pos-service/internal/broker"
	"pos-service/internal/service"
	"pos-service/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AlertWorker consumes stock events and keeps low-stock alerts current
type AlertWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAlertWorker creates a new alert worker
func NewAlertWorker(consumer *broker.Consumer, alerts *service.AlertService) *AlertWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnStockLow(alerts.HandleStockLow)
	eventHandler.OnOrderReceived(alerts.HandleOrderReceived)

	return &AlertWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *AlertWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting alert worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AlertWorker) Stop() error {
	w.logger.Info("Stopping alert worker")
	return w.consumer.Close()
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ClosingReminder periodically warns when the register was left open
type ClosingReminder struct {
	sched  *cron.Cron
	cash   *service.CashService
	logger *zap.Logger
}

// NewClosingReminder schedules the reminder with a cron expression evaluated in loc
func NewClosingReminder(schedule string, loc *time.Location, cash *service.CashService) (*ClosingReminder, error) {
	if loc == nil {
		loc = time.Local
	}
	r := &ClosingReminder{
		sched:  cron.New(cron.WithLocation(loc), cron.WithParser(cronParser)),
		cash:   cash,
		logger: util.GetLogger(),
	}
	if _, err := r.sched.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid closing reminder schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *ClosingReminder) run() {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error("Closing reminder panicked", zap.Any("panic", err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	r.cash.RemindClosing(ctx)
}

// Start starts the scheduler
func (r *ClosingReminder) Start() {
	r.logger.Info("Starting closing reminder")
	r.sched.Start()
}

// Stop stops the scheduler and waits for a running reminder to finish
func (r *ClosingReminder) Stop() {
	<-r.sched.Stop().Done()
}
