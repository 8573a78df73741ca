package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/booking")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "pgx", cfg.Database.Driver)
	assert.Equal(t, 3*time.Second, cfg.Booking.LockTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Booking.HoldTTL)
	assert.Equal(t, 10, cfg.Booking.ReferenceAttempts)
	assert.Equal(t, SurchargePolicyReject, cfg.Booking.SurchargePolicy)
	assert.Equal(t, 30*time.Second, cfg.Redis.SeatMapTTL)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.RabbitMQ.Enabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/booking")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("SEAT_LOCK_TIMEOUT_MS", "500")
	t.Setenv("FARE_SURCHARGE_POLICY", "WARN")
	t.Setenv("SEAT_MAP_CACHE_TTL", "1m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("REDIS_ENABLED", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Booking.LockTimeout)
	assert.Equal(t, SurchargePolicyWarn, cfg.Booking.SurchargePolicy)
	assert.Equal(t, time.Minute, cfg.Redis.SeatMapTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{URL: "postgres://localhost/booking", Driver: "pgx"},
			JWT:      JWTConfig{Secret: "secret"},
			Booking: BookingConfig{
				LockTimeout:       time.Second,
				HoldTTL:           time.Minute,
				ReferenceAttempts: 3,
				SurchargePolicy:   SurchargePolicyReject,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing database url", func(c *Config) { c.Database.URL = "" }, "DATABASE_URL"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "DATABASE_DRIVER"},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "JWT_SECRET"},
		{"zero lock timeout", func(c *Config) { c.Booking.LockTimeout = 0 }, "SEAT_LOCK_TIMEOUT_MS"},
		{"zero hold ttl", func(c *Config) { c.Booking.HoldTTL = 0 }, "SEAT_HOLD_TTL_SECONDS"},
		{"no reference attempts", func(c *Config) { c.Booking.ReferenceAttempts = 0 }, "BOOKING_REFERENCE_ATTEMPTS"},
		{"unknown surcharge policy", func(c *Config) { c.Booking.SurchargePolicy = "clamp" }, "FARE_SURCHARGE_POLICY"},
		{"rabbitmq without url", func(c *Config) { c.RabbitMQ = RabbitMQConfig{Enabled: true} }, "RABBITMQ_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
