// Package config handles loading and validation of storefront configuration.
// Supports both development (env vars or a config file) and production
// (secrets from Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"gopkg.in/yaml.v3"
)

// Storage backends for the cart snapshot.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
)

// Order sinks a shopper session hands finished orders to.
const (
	SinkStdout = "stdout"
	SinkHTTP   = "http"
	SinkKafka  = "kafka"
)

// Config holds all storefront configuration.
// Environment determines whether secrets load from env vars (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string `json:"port" yaml:"port"`
	Environment string `json:"environment" yaml:"environment"` // "development" or "production"
	LogLevel    string `json:"log_level" yaml:"log_level"`     // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string `json:"gcp_project" yaml:"gcp_project"`
	SecretID   string `json:"secret_id" yaml:"secret_id"`

	Catalog  CatalogConfig  `json:"catalog" yaml:"catalog"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Session  SessionConfig  `json:"session" yaml:"session"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Orders   OrdersConfig   `json:"orders" yaml:"orders"`

	// CORSOrigins lists the web app origins allowed to call the API. Empty allows any.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
}

// CatalogConfig points a shopper session at the catalog API.
type CatalogConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
	TLSMode string `json:"tls_mode" yaml:"tls_mode"` // "standard" or "chrome"
}

// StorageConfig selects where the cart snapshot is persisted.
type StorageConfig struct {
	Backend       string `json:"backend" yaml:"backend"`
	Path          string `json:"path" yaml:"path"`
	RedisAddr     string `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `json:"redis_password" yaml:"redis_password"`
	RedisDB       int    `json:"redis_db" yaml:"redis_db"`
}

// SessionConfig tunes the shopper session.
type SessionConfig struct {
	CartKey     string `json:"cart_key" yaml:"cart_key"`
	HostVersion string `json:"host_version" yaml:"host_version"` // emulated host platform version
}

// DatabaseConfig locates the catalog and order database.
type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite3" or "postgres"
	DSN    string `json:"dsn" yaml:"dsn"`
}

// OrdersConfig configures how orders travel from a session to the intake.
type OrdersConfig struct {
	Sink          string   `json:"sink" yaml:"sink"`
	IntakeURL     string   `json:"intake_url" yaml:"intake_url"`
	UserID        int64    `json:"user_id" yaml:"user_id"`
	KafkaBrokers  []string `json:"kafka_brokers" yaml:"kafka_brokers"`
	Topic         string   `json:"topic" yaml:"topic"`
	ConsumerGroup string   `json:"consumer_group" yaml:"consumer_group"`
}

// Secrets are the sensitive settings stored as one JSON secret in production.
type Secrets struct {
	RedisPassword string `json:"redis_password"`
	DatabaseDSN   string `json:"database_dsn"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
// Validates all required fields and returns an error if any are missing.
func Load(ctx context.Context) (*Config, error) {
	// If CONFIG_FILE is set, load everything from the file
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := loadFromEnv()

	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if err := cfg.loadFromSecretManager(ctx); err != nil {
			return nil, fmt.Errorf("loading secrets: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON or YAML file.
// Used for local development to avoid multiple ENV vars.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv reads configuration from individual environment variables.
func loadFromEnv() *Config {
	userID, _ := strconv.ParseInt(os.Getenv("USER_ID"), 10, 64)
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))

	return &Config{
		Port:        os.Getenv("PORT"),
		Environment: os.Getenv("ENVIRONMENT"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		SecretID:    os.Getenv("SECRET_ID"),
		Catalog: CatalogConfig{
			BaseURL: os.Getenv("CATALOG_URL"),
			TLSMode: os.Getenv("CATALOG_TLS"),
		},
		Storage: StorageConfig{
			Backend:       os.Getenv("STORAGE_BACKEND"),
			Path:          os.Getenv("STORAGE_PATH"),
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       redisDB,
		},
		Session: SessionConfig{
			CartKey:     os.Getenv("CART_KEY"),
			HostVersion: os.Getenv("HOST_VERSION"),
		},
		Database: DatabaseConfig{
			Driver: os.Getenv("DB_DRIVER"),
			DSN:    os.Getenv("DATABASE_DSN"),
		},
		Orders: OrdersConfig{
			Sink:          os.Getenv("ORDER_SINK"),
			IntakeURL:     os.Getenv("ORDER_INTAKE_URL"),
			UserID:        userID,
			KafkaBrokers:  splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:         os.Getenv("KAFKA_TOPIC"),
			ConsumerGroup: os.Getenv("KAFKA_GROUP"),
		},
		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),
	}
}

// loadFromSecretManager fetches the secret settings from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{secret_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
		c.GCPProject, withDefault(c.SecretID, "storefront"))

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	var secrets Secrets
	if err := json.Unmarshal(result.Payload.Data, &secrets); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	c.applySecrets(secrets)
	return nil
}

// applySecrets overrides settings with the non-empty secret values.
func (c *Config) applySecrets(s Secrets) {
	if s.RedisPassword != "" {
		c.Storage.RedisPassword = s.RedisPassword
	}
	if s.DatabaseDSN != "" {
		c.Database.DSN = s.DatabaseDSN
	}
}

// applyDefaults fills unset fields.
func (c *Config) applyDefaults() {
	c.Port = withDefault(c.Port, "8080")
	c.Environment = withDefault(c.Environment, "development")
	c.LogLevel = withDefault(c.LogLevel, "info")
	c.Catalog.BaseURL = withDefault(c.Catalog.BaseURL, "http://localhost:"+c.Port)
	c.Catalog.TLSMode = withDefault(c.Catalog.TLSMode, "standard")
	c.Storage.Backend = withDefault(c.Storage.Backend, StorageMemory)
	c.Session.CartKey = withDefault(c.Session.CartKey, "vibesCart")
	c.Database.Driver = withDefault(c.Database.Driver, "sqlite3")
	c.Database.DSN = withDefault(c.Database.DSN, "vipsneaker.db")
	c.Orders.Sink = withDefault(c.Orders.Sink, SinkStdout)
	c.Orders.Topic = withDefault(c.Orders.Topic, "storefront.orders")
	c.Orders.ConsumerGroup = withDefault(c.Orders.ConsumerGroup, "storefront-intake")
}

// validate checks that all required configuration fields are present.
func (c *Config) validate() error {
	u, err := url.Parse(c.Catalog.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid catalog base_url %q", c.Catalog.BaseURL)
	}
	if c.Catalog.TLSMode != "standard" && c.Catalog.TLSMode != "chrome" {
		return fmt.Errorf("catalog tls_mode must be standard or chrome, got %q", c.Catalog.TLSMode)
	}

	switch c.Storage.Backend {
	case StorageMemory:
	case StorageFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the file backend")
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q (memory, file or redis)", c.Storage.Backend)
	}

	if c.Database.Driver != "sqlite3" && c.Database.Driver != "postgres" {
		return fmt.Errorf("database driver must be sqlite3 or postgres, got %q", c.Database.Driver)
	}

	switch c.Orders.Sink {
	case SinkStdout:
	case SinkHTTP:
		if c.Orders.IntakeURL == "" {
			return fmt.Errorf("intake_url is required for the http order sink")
		}
		if c.Orders.UserID <= 0 {
			return fmt.Errorf("user_id is required for the http order sink")
		}
	case SinkKafka:
		if len(c.Orders.KafkaBrokers) == 0 {
			return fmt.Errorf("kafka_brokers is required for the kafka order sink")
		}
		if c.Orders.UserID <= 0 {
			return fmt.Errorf("user_id is required for the kafka order sink")
		}
	default:
		return fmt.Errorf("unknown order sink %q (stdout, http or kafka)", c.Orders.Sink)
	}

	return nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
