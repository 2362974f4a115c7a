// Package config provides environment-based configuration management for the
// passkey authentication service. It supports multiple environments
// (development, staging, production) with secure handling of the signing
// key and database credentials.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/logger"
	"github.com/radek-zitek-cloud/sentinel-auth/pkg/token"
	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
type Config struct {
	App AppConfig `mapstructure:"app"`

	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Jwt       JwtConfig       `mapstructure:"jwt"`
	Fido2     Fido2Config     `mapstructure:"fido2"`
	Session   SessionConfig   `mapstructure:"session"`
	Challenge ChallengeConfig `mapstructure:"challenge"`

	Logger logger.Config `mapstructure:"logger"`
}

// AppConfig contains basic application settings.
type AppConfig struct {
	Name        string        `mapstructure:"name"`
	Version     string        `mapstructure:"version"`
	Environment string        `mapstructure:"environment"`
	Port        int           `mapstructure:"port"`
	Host        string        `mapstructure:"host"`
	Timeout     time.Duration `mapstructure:"timeout"`
	CORS        CORSConfig    `mapstructure:"cors"`
}

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// DatabaseConfig contains MongoDB connection settings.
type DatabaseConfig struct {
	URI                 string        `mapstructure:"uri"`
	Database            string        `mapstructure:"database"`
	MaxPoolSize         int           `mapstructure:"max_pool_size"`
	MinPoolSize         int           `mapstructure:"min_pool_size"`
	MaxConnIdleTime     time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	ServerSelectTimeout time.Duration `mapstructure:"server_select_timeout"`
}

// CacheConfig contains Redis connection settings — backs the challenge store.
type CacheConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// JwtConfig holds the signed-token signing key (spec.md §6 Jwt:SigningKey).
type JwtConfig struct {
	SigningKeyBase64 string `mapstructure:"signing_key"`
}

// SigningKey decodes the configured base64 signing key. A zero-filled
// 32-byte key is accepted only because validate rejects it outside
// test/development environments.
func (j JwtConfig) SigningKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(j.SigningKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("jwt signing key is not valid base64: %w", err)
	}
	if len(key) != token.SigningKeySize {
		return nil, fmt.Errorf("jwt signing key must decode to %d bytes, got %d", token.SigningKeySize, len(key))
	}
	return key, nil
}

// Fido2Config configures the relying party for the passkey ceremony engine.
type Fido2Config struct {
	ServerDomain            string        `mapstructure:"server_domain"`
	Origins                 []string      `mapstructure:"origins"`
	TimestampDriftTolerance time.Duration `mapstructure:"timestamp_drift_tolerance"`
}

// SessionConfig controls the lifetime of minted tokens/sessions.
type SessionConfig struct {
	DefaultLifetime time.Duration `mapstructure:"default_lifetime"`
}

// ChallengeConfig controls challenge TTL.
type ChallengeConfig struct {
	Lifetime time.Duration `mapstructure:"lifetime"`
}

// Load reads configuration from environment variables, an optional config
// file, and defaults, in that precedence order (env > file > defaults).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/sentinel-auth")

	viper.SetEnvPrefix("SENTINEL")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	bindEnvironmentVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func bindEnvironmentVariables() {
	viper.BindEnv("app.name", "SENTINEL_APP_NAME")
	viper.BindEnv("app.version", "SENTINEL_APP_VERSION")
	viper.BindEnv("app.environment", "SENTINEL_APP_ENVIRONMENT")
	viper.BindEnv("app.port", "SENTINEL_APP_PORT")
	viper.BindEnv("app.host", "SENTINEL_APP_HOST")
	viper.BindEnv("app.timeout", "SENTINEL_APP_TIMEOUT")

	viper.BindEnv("app.cors.allowed_origins", "SENTINEL_APP_CORS_ALLOWED_ORIGINS")
	viper.BindEnv("app.cors.allowed_methods", "SENTINEL_APP_CORS_ALLOWED_METHODS")
	viper.BindEnv("app.cors.allowed_headers", "SENTINEL_APP_CORS_ALLOWED_HEADERS")

	viper.BindEnv("database.uri", "SENTINEL_DATABASE_URI")
	viper.BindEnv("database.database", "SENTINEL_DATABASE_DATABASE")
	viper.BindEnv("database.max_pool_size", "SENTINEL_DATABASE_MAX_POOL_SIZE")
	viper.BindEnv("database.min_pool_size", "SENTINEL_DATABASE_MIN_POOL_SIZE")
	viper.BindEnv("database.max_conn_idle_time", "SENTINEL_DATABASE_MAX_CONN_IDLE_TIME")
	viper.BindEnv("database.connect_timeout", "SENTINEL_DATABASE_CONNECT_TIMEOUT")
	viper.BindEnv("database.server_select_timeout", "SENTINEL_DATABASE_SERVER_SELECT_TIMEOUT")

	viper.BindEnv("cache.host", "SENTINEL_CACHE_HOST")
	viper.BindEnv("cache.port", "SENTINEL_CACHE_PORT")
	viper.BindEnv("cache.password", "SENTINEL_CACHE_PASSWORD")
	viper.BindEnv("cache.database", "SENTINEL_CACHE_DATABASE")
	viper.BindEnv("cache.max_retries", "SENTINEL_CACHE_MAX_RETRIES")
	viper.BindEnv("cache.pool_size", "SENTINEL_CACHE_POOL_SIZE")
	viper.BindEnv("cache.dial_timeout", "SENTINEL_CACHE_DIAL_TIMEOUT")
	viper.BindEnv("cache.read_timeout", "SENTINEL_CACHE_READ_TIMEOUT")
	viper.BindEnv("cache.write_timeout", "SENTINEL_CACHE_WRITE_TIMEOUT")
	viper.BindEnv("cache.idle_timeout", "SENTINEL_CACHE_IDLE_TIMEOUT")

	viper.BindEnv("jwt.signing_key", "SENTINEL_JWT_SIGNING_KEY")

	viper.BindEnv("fido2.server_domain", "SENTINEL_FIDO2_SERVER_DOMAIN")
	viper.BindEnv("fido2.origins", "SENTINEL_FIDO2_ORIGINS")
	viper.BindEnv("fido2.timestamp_drift_tolerance", "SENTINEL_FIDO2_TIMESTAMP_DRIFT_TOLERANCE")

	viper.BindEnv("session.default_lifetime", "SENTINEL_SESSION_DEFAULT_LIFETIME")
	viper.BindEnv("challenge.lifetime", "SENTINEL_CHALLENGE_LIFETIME")

	viper.BindEnv("logger.level", "SENTINEL_LOGGER_LEVEL")
	viper.BindEnv("logger.environment", "SENTINEL_LOGGER_ENVIRONMENT")
	viper.BindEnv("logger.output_path", "SENTINEL_LOGGER_OUTPUT_PATH")
}

// devSigningKey is the all-zero 32-byte key permitted only for test
// fixtures and non-production environments (spec.md §4.7).
const devSigningKey = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="

func setDefaults() {
	viper.SetDefault("app.name", "sentinel-auth")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.port", 8443)
	viper.SetDefault("app.host", "0.0.0.0")
	viper.SetDefault("app.timeout", "30s")

	viper.SetDefault("app.cors.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("app.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("app.cors.allowed_headers", []string{"Authorization", "Content-Type"})

	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.database", "sentinel_auth")
	viper.SetDefault("database.max_pool_size", 100)
	viper.SetDefault("database.min_pool_size", 10)
	viper.SetDefault("database.max_conn_idle_time", "5m")
	viper.SetDefault("database.connect_timeout", "10s")
	viper.SetDefault("database.server_select_timeout", "10s")

	viper.SetDefault("cache.host", "localhost")
	viper.SetDefault("cache.port", 6379)
	viper.SetDefault("cache.password", "")
	viper.SetDefault("cache.database", 0)
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.dial_timeout", "5s")
	viper.SetDefault("cache.read_timeout", "3s")
	viper.SetDefault("cache.write_timeout", "3s")
	viper.SetDefault("cache.idle_timeout", "5m")

	viper.SetDefault("jwt.signing_key", devSigningKey)

	viper.SetDefault("fido2.server_domain", "localhost")
	viper.SetDefault("fido2.origins", []string{"http://localhost:3000"})
	viper.SetDefault("fido2.timestamp_drift_tolerance", "300000ms")

	viper.SetDefault("session.default_lifetime", "1h")
	viper.SetDefault("challenge.lifetime", "5m")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.environment", "development")
	viper.SetDefault("logger.output_path", "stdout")
}

// validate ensures required fields are set and within acceptable ranges,
// with stricter checks outside development.
func validate(config *Config) error {
	if config.App.Environment != "development" && config.App.Environment != "test" {
		if config.Jwt.SigningKeyBase64 == devSigningKey {
			return fmt.Errorf("jwt signing key must be changed outside development/test environments")
		}
		if config.Database.URI == "mongodb://localhost:27017" {
			return fmt.Errorf("database URI must be configured for production")
		}
	}

	if _, err := config.Jwt.SigningKey(); err != nil {
		return fmt.Errorf("invalid jwt signing key: %w", err)
	}

	if config.App.Port < 1024 || config.App.Port > 65535 {
		return fmt.Errorf("app port must be between 1024 and 65535, got %d", config.App.Port)
	}

	if config.Database.MaxPoolSize < config.Database.MinPoolSize {
		return fmt.Errorf("database max_pool_size must be >= min_pool_size")
	}

	if len(config.Fido2.Origins) == 0 {
		return fmt.Errorf("fido2 origins must not be empty")
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseURI returns the complete database connection URI.
func (c *Config) GetDatabaseURI() string {
	return c.Database.URI
}

// GetRedisAddr returns the Redis server address in host:port format.
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Cache.Host, c.Cache.Port)
}

// GetServerAddr returns the server address in host:port format.
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

// LogConfigSummary logs a summary of the loaded configuration for debugging
// purposes. Only used in development mode to avoid leaking secrets.
func (c *Config) LogConfigSummary() {
	if c.IsDevelopment() {
		fmt.Printf("🔧 Configuration Summary:\n")
		fmt.Printf("  App: %s v%s (%s)\n", c.App.Name, c.App.Version, c.App.Environment)
		fmt.Printf("  Server: %s\n", c.GetServerAddr())
		fmt.Printf("  Database: %s (db: %s)\n", maskSensitive(c.Database.URI), c.Database.Database)
		fmt.Printf("  Cache: %s (db: %d)\n", c.GetRedisAddr(), c.Cache.Database)
		fmt.Printf("  Fido2 RP: %s (origins: %v)\n", c.Fido2.ServerDomain, c.Fido2.Origins)
		fmt.Printf("  Jwt signing key: %s\n", maskSensitive(c.Jwt.SigningKeyBase64))
		fmt.Println("✅ Configuration loaded successfully")
	}
}

// maskSensitive masks sensitive information for logging purposes.
func maskSensitive(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:8] + "..."
}
