package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	OTel      OTelConfig      `mapstructure:"otel"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"` // development, staging, production
	Debug       bool   `mapstructure:"debug"`
	Version     string `mapstructure:"version"`
	LogLevel    string `mapstructure:"log_level"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// KafkaConfig holds Kafka/Redpanda connection settings
type KafkaConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Brokers  []string `mapstructure:"brokers"`
	ClientID string   `mapstructure:"client_id"`
	Topic    string   `mapstructure:"topic"`
}

// JWTConfig holds JWT settings. Tokens are issued by the auth service;
// this service only verifies them and forwards them to the booking backend.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	ServiceName   string  `mapstructure:"service_name"`
	CollectorAddr string  `mapstructure:"collector_addr"`
	SampleRatio   float64 `mapstructure:"sample_ratio"`
}

// BackendConfig holds the booking backend REST client settings
type BackendConfig struct {
	Mode            string        `mapstructure:"mode"` // http, mock
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	ReadMaxRetries  int           `mapstructure:"read_max_retries"`
	ReadRetryDelay  time.Duration `mapstructure:"read_retry_delay"`
	MockWalletFunds string        `mapstructure:"mock_wallet_funds"`
}

// ReadBudget is the longest a retried read can take: every attempt timing out
// plus the doubling delays between them
func (b *BackendConfig) ReadBudget() time.Duration {
	budget := time.Duration(b.ReadMaxRetries+1) * b.Timeout
	delay := b.ReadRetryDelay
	for i := 0; i < b.ReadMaxRetries; i++ {
		budget += delay
		delay *= 2
	}
	return budget
}

// PricingConfig holds add-on prices in the backend's currency unit
type PricingConfig struct {
	PaddleUnitPrice string `mapstructure:"paddle_unit_price"`
	BallSetPrice    string `mapstructure:"ball_set_price"`
	Currency        string `mapstructure:"currency"`
}

// CheckoutConfig holds checkout session settings
type CheckoutConfig struct {
	Store         string        `mapstructure:"store"` // memory, redis
	TTL           time.Duration `mapstructure:"ttl"`
	SubmitLockTTL time.Duration `mapstructure:"submit_lock_ttl"`
	// EditLockTTL never drops below Backend.ReadBudget
	EditLockTTL time.Duration `mapstructure:"edit_lock_ttl"`
	// SearchWindow bounds the session lookup when a checkout names a class
	// session or group without a date range
	SearchWindow time.Duration `mapstructure:"search_window"`
}

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")

	// .env is optional; environment variables are enough
	_ = v.ReadInConfig()

	return load(v)
}

// LoadWithPath loads configuration from a specific path
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	if err := bindConfig(v, cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "checkout-service")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_DEBUG", true)
	v.SetDefault("APP_VERSION", "1.0.0")
	v.SetDefault("APP_LOG_LEVEL", "info")

	// Server defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8086)
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	// Redis defaults
	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 50)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 5)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")

	// Kafka defaults
	v.SetDefault("KAFKA_ENABLED", true)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CLIENT_ID", "checkout-service")
	v.SetDefault("KAFKA_TOPIC", "checkout-events")

	// JWT defaults
	v.SetDefault("JWT_SECRET", "your-secret-key-change-in-production")
	v.SetDefault("JWT_ISSUER", "")

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "checkout-service")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)

	// Booking backend defaults
	v.SetDefault("BACKEND_MODE", "mock")
	v.SetDefault("BACKEND_BASE_URL", "http://localhost:8080/api")
	v.SetDefault("BACKEND_TIMEOUT", "15s")
	v.SetDefault("BACKEND_READ_MAX_RETRIES", 2)
	v.SetDefault("BACKEND_READ_RETRY_DELAY", "200ms")
	v.SetDefault("BACKEND_MOCK_WALLET_FUNDS", "100")

	// Pricing defaults
	v.SetDefault("PRICING_PADDLE_UNIT_PRICE", "5")
	v.SetDefault("PRICING_BALL_SET_PRICE", "12")
	v.SetDefault("PRICING_CURRENCY", "MYR")

	// Checkout defaults
	v.SetDefault("CHECKOUT_STORE", "redis")
	v.SetDefault("CHECKOUT_TTL", "30m")
	v.SetDefault("CHECKOUT_SUBMIT_LOCK_TTL", "60s")
	v.SetDefault("CHECKOUT_EDIT_LOCK_TTL", "60s")
	v.SetDefault("CHECKOUT_SEARCH_WINDOW", "720h")

	// Rate limit defaults
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
}

func bindConfig(v *viper.Viper, cfg *Config) error {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Debug = v.GetBool("APP_DEBUG")
	cfg.App.Version = v.GetString("APP_VERSION")
	cfg.App.LogLevel = v.GetString("APP_LOG_LEVEL")

	// Server
	cfg.Server.Host = v.GetString("SERVER_HOST")
	cfg.Server.Port = v.GetInt("SERVER_PORT")
	cfg.Server.ReadTimeout = v.GetDuration("SERVER_READ_TIMEOUT")
	cfg.Server.WriteTimeout = v.GetDuration("SERVER_WRITE_TIMEOUT")
	cfg.Server.IdleTimeout = v.GetDuration("SERVER_IDLE_TIMEOUT")

	// Redis
	cfg.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.MinIdleConns = v.GetInt("REDIS_MIN_IDLE_CONNS")
	cfg.Redis.DialTimeout = v.GetDuration("REDIS_DIAL_TIMEOUT")
	cfg.Redis.ReadTimeout = v.GetDuration("REDIS_READ_TIMEOUT")
	cfg.Redis.WriteTimeout = v.GetDuration("REDIS_WRITE_TIMEOUT")

	// Kafka
	cfg.Kafka.Enabled = v.GetBool("KAFKA_ENABLED")
	cfg.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.ClientID = v.GetString("KAFKA_CLIENT_ID")
	cfg.Kafka.Topic = v.GetString("KAFKA_TOPIC")

	// JWT
	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.Issuer = v.GetString("JWT_ISSUER")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")
	cfg.OTel.SampleRatio = v.GetFloat64("OTEL_SAMPLE_RATIO")

	// Booking backend
	cfg.Backend.Mode = strings.ToLower(v.GetString("BACKEND_MODE"))
	cfg.Backend.BaseURL = strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/")
	cfg.Backend.Timeout = v.GetDuration("BACKEND_TIMEOUT")
	cfg.Backend.ReadMaxRetries = v.GetInt("BACKEND_READ_MAX_RETRIES")
	cfg.Backend.ReadRetryDelay = v.GetDuration("BACKEND_READ_RETRY_DELAY")
	cfg.Backend.MockWalletFunds = v.GetString("BACKEND_MOCK_WALLET_FUNDS")

	// Pricing
	cfg.Pricing.PaddleUnitPrice = v.GetString("PRICING_PADDLE_UNIT_PRICE")
	cfg.Pricing.BallSetPrice = v.GetString("PRICING_BALL_SET_PRICE")
	cfg.Pricing.Currency = v.GetString("PRICING_CURRENCY")

	// Checkout
	cfg.Checkout.Store = strings.ToLower(v.GetString("CHECKOUT_STORE"))
	cfg.Checkout.TTL = v.GetDuration("CHECKOUT_TTL")
	cfg.Checkout.SubmitLockTTL = v.GetDuration("CHECKOUT_SUBMIT_LOCK_TTL")
	cfg.Checkout.EditLockTTL = v.GetDuration("CHECKOUT_EDIT_LOCK_TTL")
	if budget := cfg.Backend.ReadBudget(); cfg.Checkout.EditLockTTL < budget {
		cfg.Checkout.EditLockTTL = budget
	}
	cfg.Checkout.SearchWindow = v.GetDuration("CHECKOUT_SEARCH_WINDOW")

	// Rate limit
	cfg.RateLimit.Enabled = v.GetBool("RATE_LIMIT_ENABLED")
	cfg.RateLimit.RPS = v.GetFloat64("RATE_LIMIT_RPS")
	cfg.RateLimit.Burst = v.GetInt("RATE_LIMIT_BURST")

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if c.IsProduction() && c.JWT.Secret == "your-secret-key-change-in-production" {
		return fmt.Errorf("default JWT secret is not allowed in production")
	}

	switch c.Backend.Mode {
	case "http":
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend base URL is required in http mode")
		}
	case "mock":
	default:
		return fmt.Errorf("invalid backend mode: %q", c.Backend.Mode)
	}

	switch c.Checkout.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid checkout store: %q", c.Checkout.Store)
	}

	if c.Checkout.TTL <= 0 {
		return fmt.Errorf("checkout TTL must be positive")
	}

	if c.Pricing.PaddleUnitPrice == "" || c.Pricing.BallSetPrice == "" {
		return fmt.Errorf("equipment prices are required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
