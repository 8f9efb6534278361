package config_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leafline/internal/config"
	"leafline/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.PincodeCacheTTL)
	assert.Equal(t, 60*time.Second, cfg.PaymentDelay)

	s, err := cfg.Shipping()
	require.NoError(t, err)
	assert.Equal(t, "0", s[domain.ShippingStandard].String())
	assert.Equal(t, "150", s[domain.ShippingExpress].String())
	assert.Equal(t, "300", s[domain.ShippingOvernight].String())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", " Postgres ")
	t.Setenv("SHIPPING_EXPRESS", "175.50")
	t.Setenv("PAYMENT_VERIFY_DELAY", "5s")
	t.Setenv("REDIS_DB", "3")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5*time.Second, cfg.PaymentDelay)
	assert.Equal(t, 3, cfg.RedisDB)
	s, err := cfg.Shipping()
	require.NoError(t, err)
	assert.Equal(t, "175.5", s[domain.ShippingExpress].String())
}

func TestRejectsBadShipping(t *testing.T) {
	t.Setenv("SHIPPING_OVERNIGHT", "-1")
	_, err := config.Load()
	assert.ErrorContains(t, err, "negative")

	t.Setenv("SHIPPING_OVERNIGHT", "cheap")
	_, err = config.Load()
	assert.Error(t, err)
}

func TestConfigFileIsWatched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leafline.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SHIPPING_EXPRESS: \"120\"\nSITE_NAME: Leafline Test\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	l := config.NewLoader()
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "Leafline Test", cfg.SiteName)
	assert.Equal(t, "120", cfg.ShippingExpress)

	var (
		mu   sync.Mutex
		last config.Config
	)
	l.Watch(func(c config.Config, err error) {
		if err != nil {
			return
		}
		mu.Lock()
		last = c
		mu.Unlock()
	})
	require.NoError(t, os.WriteFile(path, []byte("SHIPPING_EXPRESS: \"99\"\nSITE_NAME: Leafline Test\n"), 0o644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.ShippingExpress == "99"
	}, 5*time.Second, 20*time.Millisecond)
}
