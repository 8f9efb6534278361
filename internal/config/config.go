package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"leafline/internal/domain"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBDSN             string        `mapstructure:"DB_DSN"`
	LogFile           string        `mapstructure:"LOG_FILE"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	SPADir            string        `mapstructure:"SPA_DIR"`
	SiteURL           string        `mapstructure:"SITE_URL"`
	SiteName          string        `mapstructure:"SITE_NAME"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int           `mapstructure:"REDIS_DB"`
	PincodeCacheTTL   time.Duration `mapstructure:"PINCODE_CACHE_TTL"`
	RabbitMQURL       string        `mapstructure:"RABBITMQ_URL"`
	RabbitMQQueue     string        `mapstructure:"RABBITMQ_QUEUE"`
	UPIPayeeVPA       string        `mapstructure:"UPI_PAYEE_VPA"`
	UPIPayeeName      string        `mapstructure:"UPI_PAYEE_NAME"`
	PaymentDelay      time.Duration `mapstructure:"PAYMENT_VERIFY_DELAY"`
	PaymentWebhookURL string        `mapstructure:"PAYMENT_WEBHOOK_URL"`
	GeocodeURL        string        `mapstructure:"GEOCODE_URL"`
	GeocodeTimeout    time.Duration `mapstructure:"GEOCODE_TIMEOUT"`
	ShippingStandard  string        `mapstructure:"SHIPPING_STANDARD"`
	ShippingExpress   string        `mapstructure:"SHIPPING_EXPRESS"`
	ShippingOvernight string        `mapstructure:"SHIPPING_OVERNIGHT"`
	ConfigFile        string        `mapstructure:"CONFIG_FILE"`
}

var defaults = map[string]any{
	"PORT":                 "8081",
	"DB_DRIVER":            "sqlite",
	"DB_DSN":               "leafline.db",
	"LOG_FILE":             "./leafline.log",
	"LOG_LEVEL":            "info",
	"SPA_DIR":              "./web/dist",
	"SITE_URL":             "http://localhost:8081",
	"SITE_NAME":            "Leafline",
	"REDIS_ADDR":           "",
	"REDIS_PASSWORD":       "",
	"REDIS_DB":             0,
	"PINCODE_CACHE_TTL":    "24h",
	"RABBITMQ_URL":         "",
	"RABBITMQ_QUEUE":       "payments.pending",
	"UPI_PAYEE_VPA":        "leafline@upi",
	"UPI_PAYEE_NAME":       "Leafline Store",
	"PAYMENT_VERIFY_DELAY": "60s",
	"PAYMENT_WEBHOOK_URL":  "",
	"GEOCODE_URL":          "https://nominatim.openstreetmap.org",
	"GEOCODE_TIMEOUT":      "10s",
	"SHIPPING_STANDARD":    "0",
	"SHIPPING_EXPRESS":     "150",
	"SHIPPING_OVERNIGHT":   "300",
	"CONFIG_FILE":          "",
}

// Loader reads configuration from the environment and, when CONFIG_FILE is
// set, from that file. Environment values win.
type Loader struct {
	v *viper.Viper
}

func NewLoader() *Loader {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	return &Loader{v: v}
}

func (l *Loader) Load() (Config, error) {
	if file := l.v.GetString("CONFIG_FILE"); file != "" {
		l.v.SetConfigFile(file)
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", file, err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if _, err := cfg.Shipping(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Watch calls onChange with the re-read configuration every time the config
// file changes. It is a no-op without CONFIG_FILE.
func (l *Loader) Watch(onChange func(Config, error)) {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(fsnotify.Event) {
		onChange(l.decode())
	})
	l.v.WatchConfig()
}

// Load is a shortcut for NewLoader().Load().
func Load() (Config, error) {
	return NewLoader().Load()
}

// Shipping returns the configured shipping schedule.
func (c Config) Shipping() (map[domain.ShippingTier]decimal.Decimal, error) {
	out := map[domain.ShippingTier]decimal.Decimal{}
	for tier, raw := range map[domain.ShippingTier]string{
		domain.ShippingStandard:  c.ShippingStandard,
		domain.ShippingExpress:   c.ShippingExpress,
		domain.ShippingOvernight: c.ShippingOvernight,
	} {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("shipping %s: %w", tier, err)
		}
		if d.IsNegative() {
			return nil, fmt.Errorf("shipping %s: negative cost %s", tier, raw)
		}
		out[tier] = d
	}
	return out, nil
}
