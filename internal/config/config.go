package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// ErrInvalidConfig возвращается, когда конфигурация не проходит проверку
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config конфигурация сервиса
type Config struct {
	Server         ServerConfig         `toml:"server"`
	Database       DatabaseConfig       `toml:"database"`
	Logs           LogsConfig           `toml:"logs"`
	Metrics        MetricsConfig        `toml:"metrics"`
	Commission     CommissionConfig     `toml:"commission"`
	Gateways       GatewaysConfig       `toml:"gateways"`
	Messaging      MessagingConfig      `toml:"messaging"`
	Outbox         OutboxConfig         `toml:"outbox"`
	Reconciler     ReconcilerConfig     `toml:"reconciler"`
	RateLimit      RateLimitConfig      `toml:"rate_limit"`
	CatalogService CatalogServiceConfig `toml:"catalog_service"`
}

// ServerConfig параметры HTTP сервера (таймауты в секундах)
type ServerConfig struct {
	HTTPPort        int `toml:"http_port"`
	ReadTimeout     int `toml:"read_timeout"`
	WriteTimeout    int `toml:"write_timeout"`
	IdleTimeout     int `toml:"idle_timeout"`
	ShutdownTimeout int `toml:"shutdown_timeout"`
}

// DatabaseConfig параметры PostgreSQL
type DatabaseConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	DBName          string `toml:"dbname"`
	SSLMode         string `toml:"sslmode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime int    `toml:"conn_max_lifetime"`
}

// DSN строка подключения для lib/pq
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// LogsConfig параметры логирования
type LogsConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

// MetricsConfig параметры prometheus
type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	Path        string `toml:"path"`
	ServiceName string `toml:"service_name"`
}

// CommissionConfig ставка комиссии платформы
type CommissionConfig struct {
	Rate string `toml:"rate"`
}

// RateDecimal ставка как decimal
func (c CommissionConfig) RateDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(c.Rate)
}

// GatewaysConfig параметры платёжных шлюзов
type GatewaysConfig struct {
	Redirect RedirectGatewayConfig `toml:"redirect"`
	Cash     CashGatewayConfig     `toml:"cash"`
	Direct   DirectGatewayConfig   `toml:"direct"`
}

// RedirectGatewayConfig шлюз с редиректом на страницу процессора
type RedirectGatewayConfig struct {
	Enabled            bool   `toml:"enabled"`
	MerchantID         string `toml:"merchant_id"`
	MerchantKey        string `toml:"merchant_key"`
	Passphrase         string `toml:"passphrase"`
	SignatureAlgorithm string `toml:"signature_algorithm"`
	ProcessURL         string `toml:"process_url"`
	ReturnURL          string `toml:"return_url"`
	CancelURL          string `toml:"cancel_url"`
	NotifyURL          string `toml:"notify_url"`
}

// CashGatewayConfig оплата наличными
type CashGatewayConfig struct {
	Enabled bool `toml:"enabled"`
}

// DirectGatewayConfig прямое списание через Stripe (таймаут в секундах)
type DirectGatewayConfig struct {
	Enabled         bool   `toml:"enabled"`
	StripeSecretKey string `toml:"stripe_secret_key"`
	Currency        string `toml:"currency"`
	PaymentMethod   string `toml:"payment_method"`
	Timeout         int    `toml:"timeout"`
}

// MessagingConfig брокер для событий outbox
type MessagingConfig struct {
	Transport      string `toml:"transport"`
	RabbitURL      string `toml:"rabbit_url"`
	RabbitExchange string `toml:"rabbit_exchange"`
	RedisAddr      string `toml:"redis_addr"`
	RedisPassword  string `toml:"redis_password"`
	RedisDB        int    `toml:"redis_db"`
	RedisChannel   string `toml:"redis_channel"`
}

// OutboxConfig релей outbox (интервал в миллисекундах)
type OutboxConfig struct {
	Enabled     bool `toml:"enabled"`
	IntervalMs  int  `toml:"interval_ms"`
	BatchSize   int  `toml:"batch_size"`
	MaxAttempts int  `toml:"max_attempts"`
}

// Interval интервал опроса
func (o OutboxConfig) Interval() time.Duration {
	return time.Duration(o.IntervalMs) * time.Millisecond
}

// ReconcilerConfig джоба сверки (интервал и возраст платежа в секундах)
type ReconcilerConfig struct {
	Enabled   bool `toml:"enabled"`
	Interval  int  `toml:"interval"`
	BatchSize int  `toml:"batch_size"`
	// StalePaymentAge pending платёж старше этого возраста сверка пытается разрешить
	StalePaymentAge int `toml:"stale_payment_age"`
}

// StaleAfter возраст зависшего pending платежа
func (r ReconcilerConfig) StaleAfter() time.Duration {
	return time.Duration(r.StalePaymentAge) * time.Second
}

// RateLimitConfig ограничение частоты запросов на IP для webhook
type RateLimitConfig struct {
	Enabled bool    `toml:"enabled"`
	RPS     float64 `toml:"rps"`
	Burst   int     `toml:"burst"`
}

// CatalogServiceConfig внешний каталог услуг (таймаут в секундах)
type CatalogServiceConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Timeout int    `toml:"timeout"`
}

// Load читает конфигурацию из TOML файла, применяет значения по умолчанию и проверяет её
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse разбирает конфигурацию из строки
func Parse(data string) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default значения по умолчанию
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     15,
			WriteTimeout:    15,
			IdleTimeout:     60,
			ShutdownTimeout: 30,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
		},
		Logs: LogsConfig{
			File:  "logs/app.log",
			Level: "info",
		},
		Metrics: MetricsConfig{
			Path:        "/metrics",
			ServiceName: "settlementservice",
		},
		Commission: CommissionConfig{Rate: "0.05"},
		Gateways: GatewaysConfig{
			Redirect: RedirectGatewayConfig{SignatureAlgorithm: "md5"},
			Cash:     CashGatewayConfig{Enabled: true},
			Direct:   DirectGatewayConfig{Currency: "usd", Timeout: 10},
		},
		Messaging: MessagingConfig{
			Transport:      "log",
			RabbitExchange: "settlement.events",
			RedisChannel:   "settlement.events",
		},
		Outbox: OutboxConfig{
			Enabled:     true,
			IntervalMs:  2000,
			BatchSize:   100,
			MaxAttempts: 10,
		},
		Reconciler: ReconcilerConfig{
			Enabled:         true,
			Interval:        60,
			BatchSize:       100,
			StalePaymentAge: 900,
		},
		RateLimit: RateLimitConfig{
			RPS:   20,
			Burst: 40,
		},
		CatalogService: CatalogServiceConfig{Timeout: 5},
	}
}

// Validate проверяет согласованность конфигурации
func (c *Config) Validate() error {
	var problems []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		problems = append(problems, "server.http_port must be in 1..65535")
	}
	if c.Database.DBName == "" {
		problems = append(problems, "database.dbname is required")
	}

	rate, err := c.Commission.RateDecimal()
	if err != nil {
		problems = append(problems, fmt.Sprintf("commission.rate %q is not a decimal", c.Commission.Rate))
	} else if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		problems = append(problems, "commission.rate must be in [0, 1)")
	}

	r := c.Gateways.Redirect
	if r.Enabled && (r.MerchantID == "" || r.ProcessURL == "") {
		problems = append(problems, "gateways.redirect requires merchant_id and process_url")
	}
	if c.Gateways.Direct.Enabled && c.Gateways.Direct.StripeSecretKey == "" {
		problems = append(problems, "gateways.direct requires stripe_secret_key")
	}
	if !r.Enabled && !c.Gateways.Cash.Enabled && !c.Gateways.Direct.Enabled {
		problems = append(problems, "at least one payment gateway must be enabled")
	}

	switch c.Messaging.Transport {
	case "log", "rabbitmq", "redis":
	default:
		problems = append(problems, fmt.Sprintf("messaging.transport %q is not one of log, rabbitmq, redis", c.Messaging.Transport))
	}

	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		problems = append(problems, "rate_limit requires positive rps and burst")
	}
	if c.Reconciler.StalePaymentAge <= 0 {
		problems = append(problems, "reconciler.stale_payment_age must be positive")
	}
	if c.CatalogService.Enabled && c.CatalogService.URL == "" {
		problems = append(problems, "catalog_service.url is required when enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
