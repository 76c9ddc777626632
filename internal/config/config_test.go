package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "0.05", cfg.Fees.Percent)
	assert.Equal(t, int64(50), cfg.Fees.FixedPerTicket)
	assert.Equal(t, 30*time.Minute, cfg.Ticketing.PendingOrderTTL)
	assert.Equal(t, 10, cfg.Ticketing.DefaultMaxPerOrder)
	assert.Equal(t, "ticketing.order.completed", cfg.Kafka.Topics.OrderCompleted)
	assert.Len(t, cfg.Kafka.Topics.All(), 3)
	assert.Greater(t, cfg.Redis.CaptureLockTTL, cfg.MinCaptureLockTTL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FEE_PERCENT", "0.029")
	t.Setenv("TICKETING_PENDING_ORDER_TTL", "45m")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "0.029", cfg.Fees.Percent)
	assert.Equal(t, 45*time.Minute, cfg.Ticketing.PendingOrderTTL)
	assert.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
}

func TestLoadRejectsUnknownTimezone(t *testing.T) {
	t.Setenv("TICKETING_DISPLAY_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadCaptureLockMustOutlastPaymentRetries(t *testing.T) {
	t.Setenv("REDIS_CAPTURE_LOCK_TTL", "30s")

	_, err := Load()
	assert.ErrorContains(t, err, "REDIS_CAPTURE_LOCK_TTL")

	t.Setenv("STRIPE_REQUEST_TIMEOUT", "5s")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20500*time.Millisecond, cfg.MinCaptureLockTTL())
}
