package config

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("AUTH_TOKEN_TTL", "")
	t.Setenv("KAFKA_ENABLED", "")
	t.Setenv("ADMIN_EMAIL", "")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 30*time.Minute, cfg.Auth.ResetTTL)
	assert.Equal(t, 5, cfg.Auth.MaxFailedLogins)
	assert.Equal(t, 10, cfg.Business.ReorderDefaultQty)
	assert.Equal(t, "55 23 * * *", cfg.Business.ClosingReminderCron)
	assert.True(t, cfg.Kafka.Enabled)
	// the seeded admin must pass the login email rule
	assert.NoError(t, validator.New().Var(cfg.Auth.AdminEmail, "required,email"))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "MEMORY")
	t.Setenv("AUTH_TOKEN_TTL", "90m")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LOCK_TTL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.Business.LockTTL)
}

func TestLocationFallback(t *testing.T) {
	assert.Equal(t, time.Local, BusinessConfig{Timezone: "Nowhere/Atlantis"}.Location())
	assert.Equal(t, "UTC", BusinessConfig{Timezone: "UTC"}.Location().String())
}
