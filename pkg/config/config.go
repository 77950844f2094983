package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the data registry services
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Registry economics configuration
	Registry RegistryConfig `mapstructure:"registry"`

	// Content-addressable store configuration
	Storage StorageConfig `mapstructure:"storage"`

	// JWT configuration
	JWT JWTConfig `mapstructure:"jwt"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
	TLSEnabled   bool   `mapstructure:"tls_enabled"`
	CertFile     string `mapstructure:"cert_file"`
	KeyFile      string `mapstructure:"key_file"`
	RateLimit    int    `mapstructure:"rate_limit"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// RegistryConfig holds the registry economics parameters. Unit price,
// service fee and minimum withdrawal are starting values; admins can
// change them at runtime through the settlement API.
type RegistryConfig struct {
	UnitPrice             string `mapstructure:"unit_price"`
	ServiceFeeBps         int64  `mapstructure:"service_fee_bps"`
	MinimumWithdrawAmount string `mapstructure:"minimum_withdraw_amount"`
	EscrowAccount         string `mapstructure:"escrow_account"`
	AdminDID              string `mapstructure:"admin_did"`
	AdminAddress          string `mapstructure:"admin_address"`
}

// UnitPriceAmount parses the configured unit price into a token amount
func (r *RegistryConfig) UnitPriceAmount() (*big.Int, error) {
	return parseAmount(r.UnitPrice, "registry.unit_price")
}

// MinimumWithdraw parses the configured minimum withdrawal amount
func (r *RegistryConfig) MinimumWithdraw() (*big.Int, error) {
	return parseAmount(r.MinimumWithdrawAmount, "registry.minimum_withdraw_amount")
}

func parseAmount(s, key string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid token amount for %s: %q", key, s)
	}
	return v, nil
}

// StorageConfig holds content-addressable store configuration
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	AccessTokenTTL int    `mapstructure:"access_token_ttl"`
	Issuer         string `mapstructure:"issuer"`
	Audience       string `mapstructure:"audience"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	MetricsPath    string `mapstructure:"metrics_path"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPath     string `mapstructure:"health_path"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ledup")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables
	overrideWithEnv(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)
	viper.SetDefault("server.tls_enabled", false)
	viper.SetDefault("server.rate_limit", 300)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "ledup")
	viper.SetDefault("database.user", "ledup")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Registry defaults: 1e18 per data unit, 5% fee, 1e19 minimum withdrawal
	viper.SetDefault("registry.unit_price", "1000000000000000000")
	viper.SetDefault("registry.service_fee_bps", 500)
	viper.SetDefault("registry.minimum_withdraw_amount", "10000000000000000000")
	viper.SetDefault("registry.escrow_account", "registry-escrow")

	// Storage defaults
	viper.SetDefault("storage.backend", "leveldb")
	viper.SetDefault("storage.path", "./data/cas")

	// JWT defaults
	viper.SetDefault("jwt.access_token_ttl", 3600)
	viper.SetDefault("jwt.issuer", "ledup-data-registry")
	viper.SetDefault("jwt.audience", "ledup-participants")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")
	viper.SetDefault("monitoring.prometheus_port", 9090)
	viper.SetDefault("monitoring.health_path", "/health")

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if jwtSecret := os.Getenv("JWT_SECRET_KEY"); jwtSecret != "" {
		config.JWT.SecretKey = jwtSecret
	}

	if adminDID := os.Getenv("REGISTRY_ADMIN_DID"); adminDID != "" {
		config.Registry.AdminDID = adminDID
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.JWT.SecretKey == "" {
		return fmt.Errorf("JWT secret key is required")
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Registry.ServiceFeeBps < 0 || config.Registry.ServiceFeeBps > 5000 {
		return fmt.Errorf("service fee out of range: %d bps", config.Registry.ServiceFeeBps)
	}

	if _, err := config.Registry.UnitPriceAmount(); err != nil {
		return err
	}

	if _, err := config.Registry.MinimumWithdraw(); err != nil {
		return err
	}

	return nil
}
