package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 2*time.Hour, cfg.RefundWindow)
	assert.Equal(t, 1, cfg.CreditCost)
	assert.Equal(t, 3, cfg.TxMaxRetries)
	assert.Equal(t, "10", cfg.ReportRatePerClass.String())
	assert.Equal(t, "notifications.dispatch", cfg.NotifyQueue)
	assert.False(t, cfg.NotificationsBroker)
	assert.Equal(t, "0 2 * * *", cfg.Jobs.CompletionSpec)
	assert.Equal(t, 24*time.Hour, cfg.Jobs.CompletionGrace)
	assert.True(t, cfg.Cache.Methods["GET"])
	assert.Equal(t, 60, cfg.RateLimit.Capacity)
}

func TestLoad_Overrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REFUND_WINDOW_HOURS", "1.5")
	t.Setenv("REPORT_RATE_PER_CLASS", "12.50")
	t.Setenv("NOTIFICATIONS_BROKER", "true")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("CACHE_METHODS", "get, head")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, cfg.RefundWindow)
	assert.Equal(t, "12.5", cfg.ReportRatePerClass.String())
	assert.True(t, cfg.NotificationsBroker)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Cache.Methods)
}

func TestLoad_Errors(t *testing.T) {
	chdir(t, t.TempDir())

	t.Run("mysql needs db vars", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("STORE_DRIVER", "mysql")
		for _, k := range []string{"DB_USER", "DB_HOST", "DB_PORT", "DB_NAME"} {
			t.Setenv(k, "")
		}
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_HOST, DB_NAME, DB_PORT, DB_USER")
	})
	t.Run("secret required", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		t.Setenv("STORE_DRIVER", "memory")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("STORE_DRIVER", "sqlite")
		_, err := Load()
		assert.ErrorContains(t, err, "unknown STORE_DRIVER")
	})
	t.Run("bad rate", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("STORE_DRIVER", "memory")
		t.Setenv("REPORT_RATE_PER_CLASS", "ten")
		_, err := Load()
		assert.ErrorContains(t, err, "REPORT_RATE_PER_CLASS")
	})
}

func TestLoadRateLimitConfig_Shorthands(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 5, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Second, c.TTL, "TTL is raised to five refill intervals")
}
