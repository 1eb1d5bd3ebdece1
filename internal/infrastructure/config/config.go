// Package config loads runtime settings from the environment. Every value
// has a local-development default; only secrets have none.
package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	Postgres Postgres
	Mongo    Mongo
	Redis    Redis
	Gateway  Gateway

	// WebhookSecret signs payment webhook payloads. When empty the webhook
	// route is not mounted at all; there is no unverified mode.
	WebhookSecret string

	// Currency is the ISO code used for payment intents.
	Currency string
}

type Postgres struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Mongo struct {
	URI      string
	Database string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Gateway struct {
	BaseURL    string
	APIKey     string
	SuccessURL string
	CancelURL  string
}

func Load() (*Config, error) {
	pgPort, err := getenvInt("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, err
	}
	redisDB, err := getenvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		ServiceName: getenvDefault("SERVICE_NAME", "storefront"),
		Env:         getenvDefault("ENV", "dev"),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		Postgres: Postgres{
			Host:              getenvDefault("POSTGRES_HOST", "localhost"),
			Port:              pgPort,
			User:              getenvDefault("POSTGRES_USER", "storefront"),
			Password:          os.Getenv("POSTGRES_PASSWORD"),
			DBName:            getenvDefault("POSTGRES_DB", "storefront"),
			MigrationsDirPath: getenvDefault("MIGRATIONS_DIR", "migrations"),
		},
		Mongo: Mongo{
			URI:      getenvDefault("MONGO_URI", "mongodb://localhost:27017"),
			Database: getenvDefault("MONGO_DB", "storefront"),
		},
		Redis: Redis{
			Addr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Gateway: Gateway{
			BaseURL:    getenvDefault("GATEWAY_BASE_URL", "https://api.checkout.test"),
			APIKey:     os.Getenv("GATEWAY_API_KEY"),
			SuccessURL: getenvDefault("GATEWAY_SUCCESS_URL", "http://localhost:3000/payment-success"),
			CancelURL:  getenvDefault("GATEWAY_CANCEL_URL", "http://localhost:3000/payment-cancel"),
		},
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		Currency:      getenvDefault("CURRENCY", "INR"),
	}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}
