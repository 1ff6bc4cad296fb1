package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "https://api.qqcatalyst.com", cfg.Catalyst.BaseURL)
	assert.Equal(t, 100, cfg.Catalyst.PageSize)
	assert.Equal(t, 65*time.Second, cfg.Catalyst.QuotaCooldown)
	assert.Equal(t, 4, cfg.Catalyst.MaxRetries)
	assert.Equal(t, 600*time.Millisecond, cfg.Catalyst.RetryBaseDelay)
	assert.Equal(t, 365*24*time.Hour, cfg.Sync.RecencyWindow)
	assert.Equal(t, "./downloads", cfg.Sync.ScratchDir)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("QQ_PAGE_SIZE", "25")
	t.Setenv("QQ_QUOTA_COOLDOWN", "10ms")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Catalyst.PageSize)
	assert.Equal(t, 10*time.Millisecond, cfg.Catalyst.QuotaCooldown)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	cfg, err := parse()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	cfg.Catalyst.PageSize = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CATALYST_PAGE_SIZE")
}

func TestValidateProduction(t *testing.T) {
	cfg, err := parse()
	require.NoError(t, err)

	cfg.Environment = "production"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AWS_S3_BUCKET")
	assert.Contains(t, err.Error(), "QQ_REFRESH_TOKEN")

	cfg.Storage.Bucket = "audit-files"
	cfg.Catalyst.ClientID = "id"
	cfg.Catalyst.ClientSecret = "secret"
	cfg.Catalyst.RefreshToken = "token"
	assert.NoError(t, cfg.Validate())
}
