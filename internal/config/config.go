package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `env:",prefix=SERVER_"`

	// Database configuration
	Database DatabaseConfig `env:",prefix=DB_"`

	// Redis snapshot cache configuration
	Redis RedisConfig `env:",prefix=REDIS_"`

	// External completion service configuration
	Completion CompletionConfig `env:",prefix=COMPLETION_"`

	// Assistant configuration
	Assistant AssistantConfig `env:",prefix=ASSISTANT_"`

	// Application configuration
	App AppConfig `env:",prefix=APP_"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string `env:"PORT,default=8080"`
	Host         string `env:"HOST,default=0.0.0.0"`
	ReadTimeout  int    `env:"READ_TIMEOUT,default=30"`  // seconds
	WriteTimeout int    `env:"WRITE_TIMEOUT,default=30"` // seconds
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host        string `env:"HOST,default=localhost"`
	Port        string `env:"PORT,default=5432"`
	User        string `env:"USER,default=postgres"`
	Password    string `env:"PASSWORD,default=postgres"`
	Name        string `env:"NAME,default=portal"`
	SSLMode     string `env:"SSL_MODE,default=disable"`
	MaxConns    int    `env:"MAX_CONNS,default=25"`
	MinConns    int    `env:"MIN_CONNS,default=5"`
	AutoMigrate bool   `env:"AUTO_MIGRATE,default=true"`
}

// RedisConfig holds the snapshot cache connection. An empty Addr disables caching.
type RedisConfig struct {
	Addr        string `env:"ADDR"`
	Password    string `env:"PASSWORD"`
	DB          int    `env:"DB,default=0"`
	SnapshotTTL int    `env:"SNAPSHOT_TTL,default=60"` // seconds
}

// CompletionConfig holds the OpenAI-compatible chat completion endpoint.
// An empty APIKey disables delegation.
type CompletionConfig struct {
	APIKey        string  `env:"API_KEY"`
	BaseURL       string  `env:"BASE_URL,default=https://api.openai.com/v1"`
	Model         string  `env:"MODEL,default=gpt-4o-mini"`
	TimeoutMS     int     `env:"TIMEOUT_MS,default=10000"`
	MaxAttempts   int     `env:"MAX_ATTEMPTS,default=2"`
	RatePerSecond float64 `env:"RATE_PER_SECOND,default=2"`
	Burst         int     `env:"BURST,default=4"`
}

// AssistantConfig holds responder tuning.
type AssistantConfig struct {
	RowLimit int `env:"ROW_LIMIT,default=10"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
	Debug       bool   `env:"DEBUG,default=false"`
}

// Load reads an optional .env file and then loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith loads configuration from the given lookuper
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

// GetDatabaseURL returns the PostgreSQL connection URL
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Enabled reports whether a redis address is configured
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// TTL returns the snapshot cache lifetime
func (c *RedisConfig) TTL() time.Duration {
	return time.Duration(c.SnapshotTTL) * time.Second
}

// Enabled reports whether delegation to the completion service is configured
func (c *CompletionConfig) Enabled() bool {
	return c.APIKey != ""
}

// Timeout returns the per-request completion timeout
func (c *CompletionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}
