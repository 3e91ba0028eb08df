// Package config holds OPERATOR-LEVEL configuration for a SecurePrompt
// installation.
//
// This is infrastructure config set by the admin who deploys the service,
// NOT caller configuration. It covers the data directory, the audit-trail
// crypto keys, the recognizer override file, the employee roster, retention,
// and the HTTP listener. Set via env vars (SECUREPROMPT_*) or a config file
// (secureprompt.config.yaml).
//
// API keys map each caller key to "corp_key:role"; the role vocabulary is
// owned by internal/access.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/albertopd/secureprompt/internal/cryptoutil"
)

// Viper keys. Each maps to an env var with the SECUREPROMPT_ prefix
// (e.g. "signing_key" → SECUREPROMPT_SIGNING_KEY) and to a YAML field in
// secureprompt.config.yaml.
const (
	KeyDataDir       = "data_dir"
	KeySigningKey    = "signing_key"
	KeyCryptoKey     = "crypto_key"
	KeyPatternsFile  = "patterns_file"
	KeyRosterCSV     = "roster_csv"
	KeyRetentionDays = "retention_days"
	KeyListenAddr    = "listen_addr"
	KeyAPIKeys       = "api_keys"
	KeyGlobalRPM     = "global_rpm"
	KeyPerKeyRPM     = "per_key_rpm"
	KeyMinScore      = "min_score"
)

// Defaults that do NOT involve crypto material. Crypto keys intentionally
// have no baked-in defaults — when unset we generate a deterministic
// per-machine fallback and warn loudly.
const (
	DefaultRetentionDays = 90
	DefaultListenAddr    = ":8080"
	DefaultGlobalRPM     = 600
	DefaultPerKeyRPM     = 120
)

// Config holds resolved operator-level configuration for a SecurePrompt
// process.
type Config struct {
	DataDir       string  // Base directory for all state (~/.secureprompt)
	SigningKey    string  // HMAC-SHA256 key for audit record signing (≥32 bytes)
	CryptoKey     string  // AES-256 key for original text at rest (exactly 32 bytes)
	PatternsFile  string  // Optional recognizer override YAML (empty: embedded defaults only)
	RosterCSV     string  // Optional employee roster CSV for the PERSON detector
	RetentionDays int     // Audit records older than this are purged
	ListenAddr    string  // HTTP listen address
	APIKeys       map[string]string // api key → "corp_key:role"
	GlobalRPM     int     // Total requests/minute across all keys
	PerKeyRPM     int     // Requests/minute per API key
	MinScore      float64 // Detection score floor (0 keeps everything)

	usingDefaultSigningKey bool
	usingDefaultCryptoKey  bool
}

// UsingDefaultKeys returns true if either crypto key fell back to a generated
// default. Commands should warn when this is the case.
func (c *Config) UsingDefaultKeys() bool {
	return c.usingDefaultSigningKey || c.usingDefaultCryptoKey
}

// AuditDBPath returns the full path to the audit SQLite database.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

// WarnIfDefaultKeys logs a warning when crypto keys are not explicitly set.
// Suppressed when SECUREPROMPT_QUICKSTART=1 or true (demos, local trials).
func (c *Config) WarnIfDefaultKeys() {
	if isQuickstart() {
		return
	}
	if c.usingDefaultSigningKey {
		log.Warn().Msg("Using generated default SECUREPROMPT_SIGNING_KEY — set via env var or config file for production")
	}
	if c.usingDefaultCryptoKey {
		log.Warn().Msg("Using generated default SECUREPROMPT_CRYPTO_KEY — set via env var or config file for production")
	}
}

func isQuickstart() bool {
	v := os.Getenv("SECUREPROMPT_QUICKSTART")
	return v == "1" || v == "true" || v == "TRUE"
}

func init() {
	viper.SetEnvPrefix("SECUREPROMPT")
	viper.AutomaticEnv()
	viper.SetDefault(KeyRetentionDays, DefaultRetentionDays)
	viper.SetDefault(KeyListenAddr, DefaultListenAddr)
	viper.SetDefault(KeyGlobalRPM, DefaultGlobalRPM)
	viper.SetDefault(KeyPerKeyRPM, DefaultPerKeyRPM)
}

// Load reads configuration from Viper (which merges env vars, config file,
// and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:       resolveDataDir(),
		SigningKey:    viper.GetString(KeySigningKey),
		CryptoKey:     viper.GetString(KeyCryptoKey),
		PatternsFile:  viper.GetString(KeyPatternsFile),
		RosterCSV:     viper.GetString(KeyRosterCSV),
		RetentionDays: viper.GetInt(KeyRetentionDays),
		ListenAddr:    viper.GetString(KeyListenAddr),
		APIKeys:       viper.GetStringMapString(KeyAPIKeys),
		GlobalRPM:     viper.GetInt(KeyGlobalRPM),
		PerKeyRPM:     viper.GetInt(KeyPerKeyRPM),
		MinScore:      viper.GetFloat64(KeyMinScore),
	}

	if cfg.SigningKey == "" {
		cfg.SigningKey = deriveDefaultKey(cfg.DataDir, "audit-signing-----")
		cfg.usingDefaultSigningKey = true
	}
	if cfg.CryptoKey == "" {
		cfg.CryptoKey = deriveDefaultKey(cfg.DataDir, "original-text-aes-")
		cfg.usingDefaultCryptoKey = true
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".secureprompt"
	}
	return filepath.Join(home, ".secureprompt")
}

// deriveDefaultKey produces a deterministic 32-byte fallback key from the
// data directory path and a salt. Uses SHA-256 so the full salt always
// contributes to the output regardless of path length. This is NOT
// cryptographically strong — it exists solely so the service starts out of
// the box while still signing and encrypting with a per-machine-unique key.
func deriveDefaultKey(dataDir, salt string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("secureprompt:%s:%s", dataDir, salt)))
	return hex.EncodeToString(h[:])
}

func (c *Config) validate() error {
	if err := validateCryptoKey(c.CryptoKey); err != nil {
		return err
	}
	if err := validateSigningKey(c.SigningKey); err != nil {
		return err
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive")
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return fmt.Errorf("min_score must be within [0, 1]")
	}
	for key, principal := range c.APIKeys {
		if !strings.Contains(principal, ":") {
			return fmt.Errorf("api_keys entry for %q must be \"corp_key:role\" (got %q)", key, principal)
		}
	}
	return nil
}

// validateCryptoKey accepts either 32 raw bytes or 64 hex characters
// (decodes to 32 bytes for AES-256).
func validateCryptoKey(key string) error {
	n := len(key)
	if n == 32 {
		return nil
	}
	if n == 64 && cryptoutil.IsHexString(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) != 32 {
			return fmt.Errorf("crypto_key hex must decode to 32 bytes: %w", err)
		}
		return nil
	}
	return fmt.Errorf("crypto_key must be exactly 32 bytes or 64 hex characters (got %d); set SECUREPROMPT_CRYPTO_KEY", n)
}

// validateSigningKey accepts either ≥32 raw bytes or ≥64 hex characters
// (decoded length ≥32 for HMAC-SHA256). Hex is checked first (disjoint from
// raw) so that hex format is validated; raw is accepted otherwise when n ≥ 32.
func validateSigningKey(key string) error {
	n := len(key)
	if n >= 64 && n%2 == 0 && cryptoutil.IsHexString(key) {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) < 32 {
			return fmt.Errorf("signing_key hex must decode to at least 32 bytes: %w", err)
		}
		return nil
	}
	if n >= 32 {
		return nil
	}
	return fmt.Errorf("signing_key must be at least 32 bytes or 64+ hex characters (got %d); set SECUREPROMPT_SIGNING_KEY", n)
}
