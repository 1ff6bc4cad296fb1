package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Core settings
	Environment string
	ServiceName string
	LogLevel    string

	// Component configurations
	Server   ServerConfig
	Database DatabaseConfig
	Catalyst CatalystConfig
	Storage  StorageConfig
	Lambda   LambdaConfig
	Sync     SyncConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// Connection pool
	MaxOpenConns int
	MaxIdleConns int
}

// CatalystConfig holds configuration for the QQ Catalyst document API
type CatalystConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string

	PageSize int
	Timeout  time.Duration

	// QuotaCooldown is how long to wait when the API reports its
	// per-minute request quota exceeded. The quota window is fixed,
	// so this is a flat wait rather than a backoff.
	QuotaCooldown time.Duration

	// Retry policy for transient errors on single-document fetches
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// StorageConfig holds S3 object storage configuration
type StorageConfig struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
	MaxRetries      int
}

// LambdaConfig holds configuration for the external analysis function
type LambdaConfig struct {
	FunctionName    string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
}

// SyncConfig holds document sync pipeline configuration
type SyncConfig struct {
	// ScratchDir is the local staging area for downloaded documents.
	// Each customer sync works in its own subdirectory.
	ScratchDir string

	// RecencyWindow bounds which remote documents are eligible for
	// ingestion; documents older than this are never synced.
	RecencyWindow time.Duration
}

// Validate validates the entire configuration
func (c *Config) Validate() error {
	var errs []string

	if c.ServiceName == "" {
		errs = append(errs, "SERVICE_NAME is required")
	}
	if c.Catalyst.PageSize <= 0 {
		errs = append(errs, "CATALYST_PAGE_SIZE must be positive")
	}
	if c.Catalyst.Timeout <= 0 {
		errs = append(errs, "CATALYST_TIMEOUT must be positive")
	}
	if c.Catalyst.MaxRetries < 0 {
		errs = append(errs, "CATALYST_MAX_RETRIES cannot be negative")
	}
	if c.Sync.RecencyWindow <= 0 {
		errs = append(errs, "SYNC_RECENCY_WINDOW must be positive")
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, "DB_MAX_OPEN_CONNS must be positive")
	}

	if c.IsProduction() {
		if c.Storage.Bucket == "" {
			errs = append(errs, "AWS_S3_BUCKET is required in production")
		}
		if c.Catalyst.ClientID == "" || c.Catalyst.ClientSecret == "" {
			errs = append(errs, "QQ_CLIENT_ID and QQ_CLIENT_SECRET are required in production")
		}
		if c.Catalyst.RefreshToken == "" {
			errs = append(errs, "QQ_REFRESH_TOKEN is required in production")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsLocal returns true if running in local/development environment
func (c *Config) IsLocal() bool {
	env := strings.ToLower(c.Environment)
	return env == "local" || env == "development" || env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Environment)
	return env == "production" || env == "prod"
}

// IsTest returns true if running in test environment
func (c *Config) IsTest() bool {
	env := strings.ToLower(c.Environment)
	return env == "test" || env == "testing"
}
