package worker

import (
	"testing"
	"time"

	"pos-service/internal/broker"
	"pos-service/internal/service"
	"pos-service/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCashService() *service.CashService {
	repo := memory.New()
	publisher := broker.NewEventPublisher(broker.NopPublisher{})
	return service.NewCashService(repo, service.NewSettingsService(repo), nil, publisher, time.Second, time.UTC)
}

func TestClosingReminderSchedule(t *testing.T) {
	r, err := NewClosingReminder("55 23 * * *", time.UTC, newCashService())
	require.NoError(t, err)

	entries := r.sched.Entries()
	require.Len(t, entries, 1)

	from := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 5, 10, 23, 55, 0, 0, time.UTC), entries[0].Schedule.Next(from))
}

func TestClosingReminderRejectsBadSpec(t *testing.T) {
	_, err := NewClosingReminder("every evening", time.UTC, newCashService())
	assert.Error(t, err)
}

func TestClosingReminderRunsWithoutPanicking(t *testing.T) {
	r, err := NewClosingReminder("@daily", time.UTC, newCashService())
	require.NoError(t, err)
	assert.NotPanics(t, r.run)

	r.Start()
	r.Stop()
}
