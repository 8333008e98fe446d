package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", "test-secret-key-0123456789")
	t.Setenv("TICKET_SIGNING_KEY", "ticket-signing-key-0123456789")
	t.Setenv("PAYMENT_BANK_ACCOUNT_NO", "0123456789")
	t.Setenv("PAYMENT_BANK_ACCOUNT_NAME", "XE VCP")
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	setRequired(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 24, cfg.JWT.ExpiryHours)
	assert.Equal(t, int64(1000), cfg.Reconcile.AmountTolerance)
	assert.Equal(t, 24*time.Hour, cfg.Reconcile.DedupTTL)
	assert.Equal(t, "970422", cfg.Bank.BankID)
	assert.Equal(t, []string{"https://*", "http://*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.Casso.APIKey)
	assert.Empty(t, cfg.AMQP.URL)
}

func TestLoad_EnvFileAndOverrides(t *testing.T) {
	viper.Reset()
	setRequired(t)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CASSO_API_KEY=from-file\nRECONCILE_AMOUNT_TOLERANCE=500\n"), 0o600))
	t.Setenv("RECONCILE_DEDUP_TTL", "2h")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.Casso.APIKey)
	assert.Equal(t, int64(500), cfg.Reconcile.AmountTolerance)
	assert.Equal(t, 2*time.Hour, cfg.Reconcile.DedupTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingSecret(t *testing.T) {
	viper.Reset()
	setRequired(t)
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "SecretKey")
}
