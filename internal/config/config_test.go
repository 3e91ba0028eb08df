package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	t.Setenv("SECUREPROMPT_SIGNING_KEY", "")
	t.Setenv("SECUREPROMPT_CRYPTO_KEY", "")
	t.Setenv("SECUREPROMPT_DATA_DIR", "")
	t.Setenv("SECUREPROMPT_PATTERNS_FILE", "")
	t.Setenv("SECUREPROMPT_ROSTER_CSV", "")
	t.Setenv("SECUREPROMPT_RETENTION_DAYS", "")
	t.Setenv("SECUREPROMPT_LISTEN_ADDR", "")
	t.Setenv("SECUREPROMPT_MIN_SCORE", "")
	viper.Reset()
	viper.SetEnvPrefix("SECUREPROMPT")
	viper.AutomaticEnv()
	viper.SetDefault(KeyRetentionDays, DefaultRetentionDays)
	viper.SetDefault(KeyListenAddr, DefaultListenAddr)
	viper.SetDefault(KeyGlobalRPM, DefaultGlobalRPM)
	viper.SetDefault(KeyPerKeyRPM, DefaultPerKeyRPM)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultRetentionDays, cfg.RetentionDays)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultGlobalRPM, cfg.GlobalRPM)
	assert.Equal(t, DefaultPerKeyRPM, cfg.PerKeyRPM)
	assert.True(t, cfg.UsingDefaultKeys(), "should report default keys when none are set")
	assert.Len(t, cfg.CryptoKey, 64, "derived keys are hex-encoded SHA-256")
	assert.Len(t, cfg.SigningKey, 64)
}

func TestLoad_ExplicitKeys(t *testing.T) {
	resetViper(t)
	t.Setenv("SECUREPROMPT_CRYPTO_KEY", "abcdefghijklmnopqrstuvwxyz012345")
	t.Setenv("SECUREPROMPT_SIGNING_KEY", "my-signing-key-at-least-32-chars!")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz012345", cfg.CryptoKey)
	assert.Equal(t, "my-signing-key-at-least-32-chars!", cfg.SigningKey)
	assert.False(t, cfg.UsingDefaultKeys())
}

func TestLoad_InvalidCryptoKeyLength(t *testing.T) {
	resetViper(t)
	t.Setenv("SECUREPROMPT_CRYPTO_KEY", "too-short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crypto_key must be exactly 32 bytes")
}

func TestLoad_InvalidSigningKeyLength(t *testing.T) {
	resetViper(t)
	t.Setenv("SECUREPROMPT_SIGNING_KEY", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing_key must be at least 32 bytes")
}

func TestLoad_CustomDataDir(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	t.Setenv("SECUREPROMPT_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
}

func TestLoad_CustomRetention(t *testing.T) {
	resetViper(t)
	t.Setenv("SECUREPROMPT_RETENTION_DAYS", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.RetentionDays)
}

func TestLoad_InvalidRetention(t *testing.T) {
	resetViper(t)
	t.Setenv("SECUREPROMPT_RETENTION_DAYS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retention_days")
}

func TestLoad_InvalidMinScore(t *testing.T) {
	resetViper(t)
	t.Setenv("SECUREPROMPT_MIN_SCORE", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_score")
}

func TestLoad_APIKeysShape(t *testing.T) {
	resetViper(t)
	viper.Set(KeyAPIKeys, map[string]string{"key-1": "acme:scrubber"})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "acme:scrubber", cfg.APIKeys["key-1"])

	viper.Set(KeyAPIKeys, map[string]string{"key-1": "no-role"})
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corp_key:role")
}

func TestConfig_AuditDBPath(t *testing.T) {
	cfg := &Config{DataDir: "/data/secureprompt"}
	assert.Equal(t, "/data/secureprompt/audit.db", cfg.AuditDBPath())
}

func TestConfig_EnsureDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{DataDir: dir + "/nested/deep"}
	require.NoError(t, cfg.EnsureDataDir())
}

func TestDeriveDefaultKey_Deterministic(t *testing.T) {
	k1 := deriveDefaultKey("/home/user/.secureprompt", "test-salt")
	k2 := deriveDefaultKey("/home/user/.secureprompt", "test-salt")
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)
}

func TestDeriveDefaultKey_DifferentSalts(t *testing.T) {
	k1 := deriveDefaultKey("/data", "audit-signing-----")
	k2 := deriveDefaultKey("/data", "original-text-aes-")
	assert.NotEqual(t, k1, k2)
}

func TestDeriveDefaultKey_DifferentPaths(t *testing.T) {
	k1 := deriveDefaultKey("/home/alice/.secureprompt", "salt")
	k2 := deriveDefaultKey("/home/bob/.secureprompt", "salt")
	assert.NotEqual(t, k1, k2)
}
