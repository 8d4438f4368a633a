package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the runtime settings of the storefront service.
type Config struct {
	AppPort        string
	JWTSecret      string
	TokenTTL       time.Duration
	StoreDriver    string // mongo | sqlite | postgres | memory
	MongoURI       string
	MongoDBName    string
	DatabaseDSN    string
	RedisAddr      string
	RedisPassword  string
	CartTTL        time.Duration
	SessionIdleTTL time.Duration
	RabbitMQURL    string
	StoreTimeout   time.Duration
	CatalogSource  string // local | tcg
	CatalogBaseURL string
	CatalogAPIKey  string
}

// Load reads configuration from storefront.yaml (when present) and the environment.
// Environment variables win over the file.
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB_NAME", "storefront")
	v.SetDefault("DATABASE_DSN", "file:storefront.db?cache=shared")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("CART_TTL", "72h")
	v.SetDefault("SESSION_IDLE_TTL", "30m")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("CATALOG_SOURCE", "local")
	v.SetDefault("CATALOG_BASE_URL", "https://api.pokemontcg.io/v2")
	v.SetDefault("CATALOG_API_KEY", "")

	v.SetConfigName("storefront")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:        v.GetString("APP_PORT"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		TokenTTL:       v.GetDuration("TOKEN_TTL"),
		StoreDriver:    strings.ToLower(v.GetString("STORE_DRIVER")),
		MongoURI:       v.GetString("MONGO_URI"),
		MongoDBName:    v.GetString("MONGO_DB_NAME"),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		RedisAddr:      v.GetString("REDIS_ADDR"),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		CartTTL:        v.GetDuration("CART_TTL"),
		SessionIdleTTL: v.GetDuration("SESSION_IDLE_TTL"),
		RabbitMQURL:    v.GetString("RABBITMQ_URL"),
		StoreTimeout:   v.GetDuration("STORE_TIMEOUT"),
		CatalogSource:  strings.ToLower(v.GetString("CATALOG_SOURCE")),
		CatalogBaseURL: strings.TrimRight(v.GetString("CATALOG_BASE_URL"), "/"),
		CatalogAPIKey:  v.GetString("CATALOG_API_KEY"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "mongo", "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	switch c.CatalogSource {
	case "local", "tcg":
	default:
		return fmt.Errorf("unsupported CATALOG_SOURCE: %s", c.CatalogSource)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout)
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive, got %s", c.SessionIdleTTL)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	return nil
}
