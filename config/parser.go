package config

// parse reads configuration from environment variables
func parse() (*Config, error) {
	cfg := &Config{
		// Core
		Environment: getEnv("ENVIRONMENT", "local"),
		ServiceName: getEnv("SERVICE_NAME", "golden-review-backend"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// HTTP server
		Server: ServerConfig{
			Addr:           ":" + getEnv("PORT", "8080"),
			AllowedOrigins: getStrings("ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", "30s"),
			WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", "300s"),
		},

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getInt("DB_PORT", 5432),
			Database: getEnv("DB_NAME", "goldenaudit"),
			Username: getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),

			// Connection pool
			MaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 5),
		},

		// QQ Catalyst document API
		Catalyst: CatalystConfig{
			BaseURL:      getEnv("QQ_BASE_URL", "https://api.qqcatalyst.com"),
			TokenURL:     getEnv("QQ_TOKEN_URL", "https://login.qqcatalyst.com/oauth/token"),
			ClientID:     getEnv("QQ_CLIENT_ID", ""),
			ClientSecret: getEnv("QQ_CLIENT_SECRET", ""),
			RefreshToken: getEnv("QQ_REFRESH_TOKEN", ""),

			PageSize: getInt("QQ_PAGE_SIZE", 100),
			Timeout:  getDuration("QQ_TIMEOUT", "60s"),

			// The API admits 60 requests per minute; once exceeded the
			// window has to roll over before any request succeeds.
			QuotaCooldown:  getDuration("QQ_QUOTA_COOLDOWN", "65s"),
			MaxRetries:     getInt("QQ_MAX_RETRIES", 4),
			RetryBaseDelay: getDuration("QQ_RETRY_BASE_DELAY", "600ms"),
		},

		// S3 object storage
		Storage: StorageConfig{
			Bucket:          getEnv("AWS_S3_BUCKET", ""),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Timeout:         getDuration("STORAGE_TIMEOUT", "30s"),
			MaxRetries:      getInt("STORAGE_MAX_RETRIES", 3),
		},

		// External analysis Lambda
		Lambda: LambdaConfig{
			FunctionName:    getEnv("LAMBDA_FUNCTION_NAME", "carrier-application-to-json-lambda"),
			Region:          getEnv("LAMBDA_AWS_REGION", getEnv("AWS_REGION", "us-east-1")),
			AccessKeyID:     getEnv("LAMBDA_AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("LAMBDA_AWS_SECRET_ACCESS_KEY", ""),
			Timeout:         getDuration("LAMBDA_TIMEOUT", "180s"),
		},

		// Sync pipeline
		Sync: SyncConfig{
			ScratchDir:    getEnv("SYNC_SCRATCH_DIR", "./downloads"),
			RecencyWindow: getDuration("SYNC_RECENCY_WINDOW", "8760h"), // one year
		},
	}

	return cfg, nil
}
